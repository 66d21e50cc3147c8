package market

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// Postgres implementa Registry sobre fixtures, markets, outcomes e match_events.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) Fixture(ctx context.Context, id string) (Fixture, error) {
	var f Fixture
	err := p.db.QueryRowContext(ctx, `
		SELECT id, home_team, away_team, home_score, away_score, status, kickoff_at
		FROM fixtures WHERE id=$1`, id).
		Scan(&f.ID, &f.HomeTeam, &f.AwayTeam, &f.HomeScore, &f.AwayScore, &f.Status, &f.KickoffAt)
	if err == sql.ErrNoRows {
		return Fixture{}, ErrNotFound
	}
	return f, err
}

func (p *Postgres) UpsertFixture(ctx context.Context, f Fixture) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO fixtures(id, home_team, away_team, home_score, away_score, status, kickoff_at)
		VALUES($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET
			home_score=EXCLUDED.home_score, away_score=EXCLUDED.away_score,
			status=EXCLUDED.status, kickoff_at=EXCLUDED.kickoff_at`,
		f.ID, f.HomeTeam, f.AwayTeam, f.HomeScore, f.AwayScore, f.Status, f.KickoffAt)
	return err
}

func (p *Postgres) SetFixtureStatus(ctx context.Context, id string, status FixtureStatus) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE fixtures SET status=$1 WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) SetScore(ctx context.Context, id string, home, away int) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE fixtures SET home_score=$1, away_score=$2 WHERE id=$3`, home, away, id)
	return err
}

func (p *Postgres) EventsByFixture(ctx context.Context, fixtureID string) ([]MatchEvent, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, fixture_id, event_type, minute, second, team, executed
		FROM match_events WHERE fixture_id=$1
		ORDER BY minute, second, id`, fixtureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MatchEvent
	for rows.Next() {
		var e MatchEvent
		if err := rows.Scan(&e.ID, &e.FixtureID, &e.Type, &e.Minute, &e.Second, &e.Team, &e.Executed); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) AddEvent(ctx context.Context, e MatchEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO match_events(id, fixture_id, event_type, minute, second, team, executed)
		VALUES($1,$2,$3,$4,$5,$6,false)`,
		e.ID, e.FixtureID, e.Type, e.Minute, e.Second, e.Team)
	return err
}

// MarkEventExecuted é a guarda de idempotência: o UPDATE condicional garante
// que cada evento executa no máximo uma vez mesmo com ticks concorrentes.
func (p *Postgres) MarkEventExecuted(ctx context.Context, eventID string) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE match_events SET executed=true WHERE id=$1 AND executed=false`, eventID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *Postgres) MarketsByFixture(ctx context.Context, fixtureID string) ([]Market, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, fixture_id, market_key, status, display_order
		FROM markets WHERE fixture_id=$1 ORDER BY display_order, market_key`, fixtureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Market
	for rows.Next() {
		var m Market
		if err := rows.Scan(&m.ID, &m.FixtureID, &m.Key, &m.Status, &m.DisplayOrder); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		ocs, err := p.outcomesByMarket(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Outcomes = ocs
	}
	return out, nil
}

func (p *Postgres) outcomesByMarket(ctx context.Context, marketID string) ([]Outcome, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, market_id, outcome_key, odds, status
		FROM outcomes WHERE market_id=$1 ORDER BY outcome_key`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		if err := rows.Scan(&o.ID, &o.MarketID, &o.Key, &o.Odds, &o.Status); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateMarket(ctx context.Context, m Market) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = MarketOpen
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO markets(id, fixture_id, market_key, status, display_order)
		VALUES($1,$2,$3,$4,$5)`,
		m.ID, m.FixtureID, m.Key, m.Status, m.DisplayOrder); err != nil {
		return err
	}

	for _, o := range m.Outcomes {
		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		if o.Status == "" {
			o.Status = OutcomeActive
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO outcomes(id, market_id, outcome_key, odds, status)
			VALUES($1,$2,$3,$4,$5)`,
			o.ID, m.ID, o.Key, o.Odds, o.Status); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) OutcomeByKey(ctx context.Context, fixtureID, marketKey, outcomeKey string) (Market, Outcome, error) {
	var m Market
	var o Outcome
	err := p.db.QueryRowContext(ctx, `
		SELECT m.id, m.fixture_id, m.market_key, m.status, m.display_order,
		       o.id, o.market_id, o.outcome_key, o.odds, o.status
		FROM markets m
		JOIN outcomes o ON o.market_id = m.id
		WHERE m.fixture_id=$1 AND m.market_key=$2 AND o.outcome_key=$3`,
		fixtureID, marketKey, outcomeKey).
		Scan(&m.ID, &m.FixtureID, &m.Key, &m.Status, &m.DisplayOrder,
			&o.ID, &o.MarketID, &o.Key, &o.Odds, &o.Status)
	if err == sql.ErrNoRows {
		return Market{}, Outcome{}, ErrNotFound
	}
	return m, o, err
}

// SuspendMarkets: open -> suspended. O filtro de status implementa a máquina
// de estados no próprio UPDATE; mercados settled nunca voltam.
func (p *Postgres) SuspendMarkets(ctx context.Context, fixtureID string) error {
	return p.transitionMarkets(ctx, fixtureID,
		`UPDATE markets SET status='suspended' WHERE fixture_id=$1 AND status='open'`,
		`UPDATE outcomes SET status='suspended' WHERE status='active' AND market_id IN
			(SELECT id FROM markets WHERE fixture_id=$1 AND status='suspended')`)
}

// ReopenMarkets: suspended -> open, com repricing multiplicativo das odds.
func (p *Postgres) ReopenMarkets(ctx context.Context, fixtureID string, oddsShift float64) error {
	if oddsShift <= 0 {
		oddsShift = 1
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `
		UPDATE outcomes SET status='active', odds = GREATEST(ROUND((odds * $2)::numeric, 2), 1.01)
		WHERE status='suspended' AND market_id IN
			(SELECT id FROM markets WHERE fixture_id=$1 AND status='suspended')`,
		fixtureID, oddsShift); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE markets SET status='open' WHERE fixture_id=$1 AND status='suspended'`,
		fixtureID); err != nil {
		return err
	}
	return tx.Commit()
}

// SettleMarkets: transição terminal de todos os mercados e outcomes da partida.
func (p *Postgres) SettleMarkets(ctx context.Context, fixtureID string) error {
	return p.transitionMarkets(ctx, fixtureID,
		`UPDATE markets SET status='settled' WHERE fixture_id=$1 AND status <> 'settled'`,
		`UPDATE outcomes SET status='settled' WHERE status <> 'settled' AND market_id IN
			(SELECT id FROM markets WHERE fixture_id=$1)`)
}

func (p *Postgres) transitionMarkets(ctx context.Context, fixtureID, marketsSQL, outcomesSQL string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, marketsSQL, fixtureID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, outcomesSQL, fixtureID); err != nil {
		return err
	}
	return tx.Commit()
}
