package betting

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("bet not found")

	// ErrValidation cobre requests malformados/fora dos limites; nunca muta estado.
	ErrValidation = errors.New("validation error")

	// ErrDuplicateSettlement sinaliza aposta/seleção já em status terminal.
	ErrDuplicateSettlement = errors.New("duplicate settlement")
)

// Store persiste apostas e seleções. Criação é agrupada (bet + seleções numa
// unidade); as transições de settlement são condicionais ao status pending,
// fechando a corrida check-then-act.
type Store interface {
	// CreatePending insere a aposta e suas seleções como uma unidade.
	CreatePending(ctx context.Context, b *Bet) error

	// Delete remove aposta e seleções — rollback compensatório do placement
	// quando o CAS de saldo falha. Nunca usado após confirmação do débito.
	Delete(ctx context.Context, betID string) error

	Get(ctx context.Context, betID string) (Bet, error)
	ByUser(ctx context.Context, userID string) ([]Bet, error)

	// PendingByFixture retorna apostas pending com ao menos uma seleção na
	// partida, com todas as seleções carregadas.
	PendingByFixture(ctx context.Context, fixtureID string) ([]Bet, error)

	// SettleSelection: pending -> status, condicional; false se já resolvida.
	SettleSelection(ctx context.Context, selectionID string, status SelectionStatus, result string) (bool, error)

	// SettleBet: pending -> status terminal, condicional (affected rows).
	// false significa que outro settlement chegou primeiro.
	SettleBet(ctx context.Context, betID string, status BetStatus, actualWinCents int64) (bool, error)
}
