package betting

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// Postgres implementa Store sobre as tabelas bets e bet_selections.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// CreatePending insere aposta e seleções na mesma transação.
func (p *Postgres) CreatePending(ctx context.Context, b *Bet) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.Status = BetPending

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO bets (id, user_id, bet_type, stake_cents, potential_win_cents, total_odds, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		b.ID, b.UserID, b.Type, b.StakeCents, b.PotentialWinCents, b.TotalOdds); err != nil {
		return err
	}

	for i := range b.Selections {
		s := &b.Selections[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.BetID = b.ID
		s.Status = SelectionPending
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO bet_selections (id, bet_id, fixture_id, market_key, outcome_key, odds, status)
			VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
			s.ID, b.ID, s.FixtureID, s.Market, s.Label, s.Odds); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Delete remove aposta e seleções (rollback compensatório do placement).
func (p *Postgres) Delete(ctx context.Context, betID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM bet_selections WHERE bet_id=$1`, betID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM bets WHERE id=$1`, betID); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *Postgres) Get(ctx context.Context, betID string) (Bet, error) {
	var b Bet
	err := p.db.QueryRowContext(ctx, `
		SELECT id, user_id, bet_type, stake_cents, potential_win_cents, total_odds,
		       status, placed_at, settled_at, actual_win_cents
		FROM bets WHERE id=$1`, betID).
		Scan(&b.ID, &b.UserID, &b.Type, &b.StakeCents, &b.PotentialWinCents, &b.TotalOdds,
			&b.Status, &b.PlacedAt, &b.SettledAt, &b.ActualWinCents)
	if err == sql.ErrNoRows {
		return Bet{}, ErrNotFound
	}
	if err != nil {
		return Bet{}, err
	}
	b.Selections, err = p.selectionsByBet(ctx, b.ID)
	return b, err
}

func (p *Postgres) ByUser(ctx context.Context, userID string) ([]Bet, error) {
	return p.queryBets(ctx, `
		SELECT id, user_id, bet_type, stake_cents, potential_win_cents, total_odds,
		       status, placed_at, settled_at, actual_win_cents
		FROM bets WHERE user_id=$1 ORDER BY placed_at DESC`, userID)
}

// PendingByFixture carrega apostas pending que tenham seleção na partida.
func (p *Postgres) PendingByFixture(ctx context.Context, fixtureID string) ([]Bet, error) {
	return p.queryBets(ctx, `
		SELECT DISTINCT b.id, b.user_id, b.bet_type, b.stake_cents, b.potential_win_cents,
		       b.total_odds, b.status, b.placed_at, b.settled_at, b.actual_win_cents
		FROM bets b
		JOIN bet_selections s ON s.bet_id = b.id
		WHERE s.fixture_id=$1 AND b.status='pending'
		ORDER BY b.placed_at`, fixtureID)
}

func (p *Postgres) queryBets(ctx context.Context, query string, arg any) ([]Bet, error) {
	rows, err := p.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bet
	for rows.Next() {
		var b Bet
		if err := rows.Scan(&b.ID, &b.UserID, &b.Type, &b.StakeCents, &b.PotentialWinCents,
			&b.TotalOdds, &b.Status, &b.PlacedAt, &b.SettledAt, &b.ActualWinCents); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		sels, err := p.selectionsByBet(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Selections = sels
	}
	return out, nil
}

func (p *Postgres) selectionsByBet(ctx context.Context, betID string) ([]Selection, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, bet_id, fixture_id, market_key, outcome_key, odds, status, result
		FROM bet_selections WHERE bet_id=$1 ORDER BY id`, betID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Selection
	for rows.Next() {
		var s Selection
		if err := rows.Scan(&s.ID, &s.BetID, &s.FixtureID, &s.Market, &s.Label,
			&s.Odds, &s.Status, &s.Result); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SettleSelection é condicional ao status pending (affected rows fecha a
// corrida check-then-act).
func (p *Postgres) SettleSelection(ctx context.Context, selectionID string, status SelectionStatus, result string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bet_selections SET status=$1, result=$2
		WHERE id=$3 AND status='pending'`, status, result, selectionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SettleBet grava o status terminal exatamente uma vez.
func (p *Postgres) SettleBet(ctx context.Context, betID string, status BetStatus, actualWinCents int64) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bets SET status=$1, actual_win_cents=$2, settled_at=NOW()
		WHERE id=$3 AND status='pending'`, status, actualWinCents, betID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
