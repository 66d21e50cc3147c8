package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/betting"
	"github.com/radieske/sportsbook-core/internal/wallet"
	"github.com/radieske/sportsbook-core/pkg/contracts/events"
)

// Publisher emite eventos de aposta liquidada (best-effort).
type Publisher interface {
	PublishBetSettled(ctx context.Context, e events.BetSettled) error
}

// Summary agrega o resultado de um settlement de partida.
type Summary struct {
	FixtureID        string
	Settled          int
	Won              int
	Lost             int
	Void             int
	Duplicates       int
	AwaitingLegs     int // acumuladas esperando pernas de outras partidas
	StructuralErrors int
	PaidOutCents     int64
}

// Engine resolve seleções e apostas pendentes a partir do resultado final da
// partida, credita ganhos via ledger e reporta cada tentativa ao Monitor, que
// gateia a entrada com o circuit breaker.
type Engine struct {
	bets    betting.Store
	wallets wallet.Store
	monitor *Monitor
	publ    Publisher // opcional
	log     *zap.Logger
	now     func() time.Time
}

func NewEngine(bets betting.Store, wallets wallet.Store, monitor *Monitor, log *zap.Logger) *Engine {
	return &Engine{
		bets:    bets,
		wallets: wallets,
		monitor: monitor,
		log:     log,
		now:     time.Now,
	}
}

// SetPublisher liga a emissão de eventos bet_settled (opcional).
func (e *Engine) SetPublisher(p Publisher) { e.publ = p }

// SettleFixture é o ponto de entrada do settlement. Resultados não-finais
// (ongoing/postponed) são adiados sem contar como tentativa; o breaker open
// recusa antes de tocar qualquer store.
func (e *Engine) SettleFixture(ctx context.Context, res events.FixtureResult) (Summary, error) {
	switch res.Status {
	case events.ResultFinished, events.ResultCancelled:
	default:
		return Summary{FixtureID: res.FixtureID},
			fmt.Errorf("%w: fixture %s is %s", ErrFeedUnavailable, res.FixtureID, res.Status)
	}

	if err := e.monitor.Allow(); err != nil {
		return Summary{FixtureID: res.FixtureID}, err
	}

	start := e.now()
	sum, err := e.settle(ctx, res)
	elapsed := e.now().Sub(start)
	if err != nil {
		e.monitor.ReportFailure(elapsed)
		e.log.Error("settlement failed",
			zap.String("fixtureId", res.FixtureID),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return sum, err
	}

	e.monitor.ReportSuccess(elapsed)
	e.log.Info("settlement done",
		zap.String("fixtureId", res.FixtureID),
		zap.Int("settled", sum.Settled),
		zap.Int("won", sum.Won),
		zap.Int("duplicates", sum.Duplicates),
		zap.Int64("paidOutCents", sum.PaidOutCents),
		zap.Duration("elapsed", elapsed),
	)
	return sum, nil
}

// VoidFixture anula todas as apostas pendentes da partida (override de
// operador ou diretiva de cancelamento), devolvendo o stake integral.
func (e *Engine) VoidFixture(ctx context.Context, fixtureID, actorID string) (Summary, error) {
	e.log.Info("void fixture requested",
		zap.String("fixtureId", fixtureID),
		zap.String("actor", actorID),
	)
	return e.SettleFixture(ctx, events.FixtureResult{
		FixtureID: fixtureID,
		Status:    events.ResultCancelled,
		Source:    "operator:" + actorID,
		Ts:        e.now().UTC(),
	})
}

func (e *Engine) settle(ctx context.Context, res events.FixtureResult) (Summary, error) {
	sum := Summary{FixtureID: res.FixtureID}
	voidAll := res.Status == events.ResultCancelled

	bets, err := e.bets.PendingByFixture(ctx, res.FixtureID)
	if err != nil {
		return sum, fmt.Errorf("load pending bets: %w", err)
	}

	for _, b := range bets {
		if err := e.settleBet(ctx, b, res, voidAll, &sum); err != nil {
			return sum, fmt.Errorf("bet %s: %w", b.ID, err)
		}
	}
	return sum, nil
}

func (e *Engine) settleBet(ctx context.Context, b betting.Bet, res events.FixtureResult, voidAll bool, sum *Summary) error {
	for _, s := range b.Selections {
		if s.FixtureID != res.FixtureID || s.Status != betting.SelectionPending {
			continue
		}

		status := betting.SelectionVoid
		result := "cancelled"
		if !voidAll {
			var rerr error
			status, result, rerr = ResolveSelection(s.Market, s.Label, res.HomeScore, res.AwayScore)
			if rerr != nil {
				// Erro estrutural: perna anulada, reportado, nunca engolido
				sum.StructuralErrors++
				e.log.Error("structural settlement error",
					zap.String("betId", b.ID),
					zap.String("selectionId", s.ID),
					zap.Error(rerr),
				)
			}
		}
		if _, err := e.bets.SettleSelection(ctx, s.ID, status, result); err != nil {
			return fmt.Errorf("settle selection %s: %w", s.ID, err)
		}
	}

	// Relê a aposta: acumuladas podem ter pernas de outras partidas ainda
	// pendentes — só o último settlement faz o rollup.
	cur, err := e.bets.Get(ctx, b.ID)
	if err != nil {
		return fmt.Errorf("reload bet: %w", err)
	}
	for _, s := range cur.Selections {
		if s.Status == betting.SelectionPending {
			sum.AwaitingLegs++
			return nil
		}
	}

	status, winCents := Rollup(cur)
	ok, err := e.bets.SettleBet(ctx, cur.ID, status, winCents)
	if err != nil {
		return fmt.Errorf("settle bet: %w", err)
	}
	if !ok {
		// Outro settlement chegou primeiro — exatamente-uma-vez garantido
		// pela transição condicional; jamais pagar duas vezes.
		sum.Duplicates++
		e.monitor.ReportDuplicate()
		return nil
	}

	sum.Settled++
	switch status {
	case betting.BetWon:
		sum.Won++
	case betting.BetLost:
		sum.Lost++
	case betting.BetVoid:
		sum.Void++
	}

	if winCents > 0 {
		entryType := wallet.EntryWinnings
		if status == betting.BetVoid {
			entryType = wallet.EntryRefund
		}
		if _, err := e.wallets.Credit(ctx, cur.UserID, winCents, entryType, cur.ID, ""); err != nil {
			// Status já é terminal; o crédito pendente fica visível pro
			// operador via monitor — preferível a arriscar pagamento duplo.
			return fmt.Errorf("credit winnings: %w", err)
		}
		sum.PaidOutCents += winCents
	}

	if e.publ != nil {
		if err := e.publ.PublishBetSettled(ctx, events.BetSettled{
			BetID:         cur.ID,
			UserID:        cur.UserID,
			FixtureID:     res.FixtureID,
			Status:        string(status),
			WinningsCents: winCents,
			Ts:            e.now().UTC(),
		}); err != nil {
			e.log.Warn("publish bet_settled", zap.String("betId", cur.ID), zap.Error(err))
		}
	}
	return nil
}

// IsDeferral indica erros que significam "ainda não liquidar" (sem resultado
// final), distintos de falha de dependência.
func IsDeferral(err error) bool {
	return errors.Is(err, ErrFeedUnavailable)
}
