package market

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrMarketUnavailable sinaliza mercado suspenso/liquidado ou outcome
	// indisponível no momento do placement.
	ErrMarketUnavailable = errors.New("market unavailable")
)

// Registry é a fonte autoritativa de status de fixtures, mercados e outcomes.
// Broadcast é notificação best-effort; o estado vive aqui.
type Registry interface {
	Fixture(ctx context.Context, id string) (Fixture, error)
	UpsertFixture(ctx context.Context, f Fixture) error
	SetFixtureStatus(ctx context.Context, id string, status FixtureStatus) error
	SetScore(ctx context.Context, id string, home, away int) error

	EventsByFixture(ctx context.Context, fixtureID string) ([]MatchEvent, error)
	AddEvent(ctx context.Context, e MatchEvent) error
	// MarkEventExecuted é condicional (WHERE executed=false); retorna false
	// se o evento já tiver sido executado por outro tick.
	MarkEventExecuted(ctx context.Context, eventID string) (bool, error)

	MarketsByFixture(ctx context.Context, fixtureID string) ([]Market, error)
	CreateMarket(ctx context.Context, m Market) error
	// OutcomeByKey retorna mercado e outcome correntes — o "preço verdadeiro"
	// relido pelo placement dentro da própria transação.
	OutcomeByKey(ctx context.Context, fixtureID, marketKey, outcomeKey string) (Market, Outcome, error)

	// SuspendMarkets: open -> suspended em todos os mercados da partida.
	SuspendMarkets(ctx context.Context, fixtureID string) error
	// ReopenMarkets: suspended -> open, aplicando oddsShift multiplicativo
	// às odds dos outcomes (repricing pós-gol). Mercados settled não reabrem.
	ReopenMarkets(ctx context.Context, fixtureID string, oddsShift float64) error
	// SettleMarkets: open|suspended -> settled (terminal), outcomes inclusos.
	SettleMarkets(ctx context.Context, fixtureID string) error
}
