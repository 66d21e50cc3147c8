package wallet

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Postgres implementa Store sobre as tabelas wallets e wallet_ledger.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// GetOrCreate retorna a carteira do usuário, criando se não existir.
// Usa transação para garantir atomicidade
func (p *Postgres) GetOrCreate(ctx context.Context, userID string) (Wallet, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Wallet{}, err
	}
	defer tx.Rollback()

	var w Wallet
	w.UserID = userID
	err = tx.QueryRowContext(ctx,
		`SELECT id, balance_cents, version, created_at FROM wallets WHERE user_id=$1`,
		userID).Scan(&w.ID, &w.BalanceCents, &w.Version, &w.CreatedAt)
	if err == sql.ErrNoRows {
		w.ID = uuid.NewString()
		w.Version = 1
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO wallets(id, user_id, balance_cents, version) VALUES($1,$2,0,1)`,
			w.ID, userID); err != nil {
			return Wallet{}, err
		}
	} else if err != nil {
		return Wallet{}, err
	}

	if err = tx.Commit(); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// Balance retorna o saldo atual em centavos.
func (p *Postgres) Balance(ctx context.Context, userID string) (int64, error) {
	var bal int64
	err := p.db.QueryRowContext(ctx,
		`SELECT balance_cents FROM wallets WHERE user_id=$1`, userID).Scan(&bal)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return bal, err
}

// DebitCAS debita o saldo condicionado ao valor esperado (optimistic locking).
// O UPDATE só afeta linha se balance_cents ainda for o observado; zero linhas
// afetadas significa corrida com outra mutação.
func (p *Postgres) DebitCAS(ctx context.Context, userID string, expectedBalance, amountCents int64, entryType EntryType, reference, actorID string) (int64, error) {
	if amountCents <= 0 {
		return 0, ErrInvalidAmount
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance_cents = balance_cents - $1, version = version + 1
		 WHERE user_id = $2 AND balance_cents = $3`,
		amountCents, userID, expectedBalance)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		// Distingue carteira inexistente de corrida de saldo
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM wallets WHERE user_id=$1)`, userID).Scan(&exists); err != nil {
			return 0, err
		}
		if !exists {
			return 0, ErrNotFound
		}
		return 0, ErrConcurrentModification
	}

	newBalance := expectedBalance - amountCents
	if err := insertEntry(ctx, tx, Entry{
		UserID:        userID,
		Type:          entryType,
		AmountCents:   -amountCents,
		BalanceBefore: expectedBalance,
		BalanceAfter:  newBalance,
		Reference:     reference,
		ActorID:       actorID,
	}); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Credit incrementa o saldo com lock pessimista na linha da carteira,
// garantindo balance_before/after consistentes no lançamento.
func (p *Postgres) Credit(ctx context.Context, userID string, amountCents int64, entryType EntryType, reference, actorID string) (int64, error) {
	if amountCents <= 0 {
		return 0, ErrInvalidAmount
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var before int64
	err = tx.QueryRowContext(ctx,
		`SELECT balance_cents FROM wallets WHERE user_id=$1 FOR UPDATE`, userID).Scan(&before)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	} else if err != nil {
		return 0, err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance_cents = balance_cents + $1, version = version + 1 WHERE user_id=$2`,
		amountCents, userID); err != nil {
		return 0, err
	}

	newBalance := before + amountCents
	if err := insertEntry(ctx, tx, Entry{
		UserID:        userID,
		Type:          entryType,
		AmountCents:   amountCents,
		BalanceBefore: before,
		BalanceAfter:  newBalance,
		Reference:     reference,
		ActorID:       actorID,
	}); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Entries retorna os lançamentos do usuário em ordem de criação.
func (p *Postgres) Entries(ctx context.Context, userID string) ([]Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, entry_type, amount_cents, balance_before, balance_after, reference, actor_id, created_at
		FROM wallet_ledger WHERE user_id=$1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Type, &e.AmountCents, &e.BalanceBefore,
			&e.BalanceAfter, &e.Reference, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertEntry(ctx context.Context, tx *sql.Tx, e Entry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_ledger(id, user_id, entry_type, amount_cents, balance_before, balance_after, reference, actor_id)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		uuid.NewString(), e.UserID, e.Type, e.AmountCents, e.BalanceBefore, e.BalanceAfter, e.Reference, e.ActorID)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}
