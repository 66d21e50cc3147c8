package market

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/pkg/contracts/events"
)

// Broadcaster publica mensagens no canal de observadores (fire-and-forget).
type Broadcaster interface {
	Publish(ctx context.Context, msg events.MatchMessage) error
}

// OddsSink recebe as odds correntes após um reopen (ex.: cache Redis lido
// pelo betting-service como pré-validação de preço).
type OddsSink interface {
	PublishOdds(ctx context.Context, fixtureID string, markets []Market) error
}

// Lifecycle aplica as transições da máquina de estados de mercado sobre o
// Registry e notifica observadores. A escrita de status é autoritativa;
// o broadcast é best-effort: falha é logada e re-tentada no próximo tick,
// nunca bloqueia a transição.
type Lifecycle struct {
	reg  Registry
	bc   Broadcaster
	odds OddsSink
	log  *zap.Logger

	mu      sync.Mutex
	pending []events.MatchMessage

	// timeout por envio de broadcast, pra não prender o tick do scheduler
	sendTimeout time.Duration
}

func NewLifecycle(reg Registry, bc Broadcaster, log *zap.Logger) *Lifecycle {
	return &Lifecycle{
		reg:         reg,
		bc:          bc,
		log:         log,
		sendTimeout: 2 * time.Second,
	}
}

// SetOddsSink liga a publicação de odds pós-reopen (opcional).
func (l *Lifecycle) SetOddsSink(s OddsSink) { l.odds = s }

// Suspend transiciona open -> suspended em todos os mercados da partida.
// Gatilhos: partida entrando em live, gol, ou ação de operador (actorID).
func (l *Lifecycle) Suspend(ctx context.Context, fixtureID, reason, actorID string) error {
	if err := l.reg.SuspendMarkets(ctx, fixtureID); err != nil {
		return err
	}
	l.log.Info("markets suspended",
		zap.String("fixtureId", fixtureID),
		zap.String("reason", reason),
		zap.String("actor", actorID),
	)
	l.notify(ctx, events.NewMatchMessage(events.MarketsSuspended, fixtureID,
		map[string]string{"reason": reason}))
	return nil
}

// Reopen transiciona suspended -> open após a janela de repricing,
// aplicando oddsShift às odds dos outcomes.
func (l *Lifecycle) Reopen(ctx context.Context, fixtureID string, oddsShift float64, actorID string) error {
	if err := l.reg.ReopenMarkets(ctx, fixtureID, oddsShift); err != nil {
		return err
	}
	l.log.Info("markets reopened",
		zap.String("fixtureId", fixtureID),
		zap.Float64("oddsShift", oddsShift),
		zap.String("actor", actorID),
	)
	l.notify(ctx, events.NewMatchMessage(events.MarketsReopened, fixtureID, nil))

	if l.odds != nil {
		mks, err := l.reg.MarketsByFixture(ctx, fixtureID)
		if err != nil {
			l.log.Warn("odds publish: read markets", zap.Error(err))
			return nil
		}
		if err := l.odds.PublishOdds(ctx, fixtureID, mks); err != nil {
			l.log.Warn("odds publish", zap.Error(err))
		}
	}
	return nil
}

// Settle transiciona todos os mercados da partida para settled (terminal).
func (l *Lifecycle) Settle(ctx context.Context, fixtureID string) error {
	if err := l.reg.SettleMarkets(ctx, fixtureID); err != nil {
		return err
	}
	l.log.Info("markets settled", zap.String("fixtureId", fixtureID))
	return nil
}

// notify envia com timeout; em falha guarda pra retry no próximo tick.
func (l *Lifecycle) notify(ctx context.Context, msg events.MatchMessage) {
	if l.bc == nil {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, l.sendTimeout)
	defer cancel()
	if err := l.bc.Publish(sctx, msg); err != nil {
		l.log.Warn("broadcast failed, queued for retry",
			zap.String("type", msg.Type),
			zap.String("fixtureId", msg.FixtureID),
			zap.Error(err),
		)
		l.mu.Lock()
		l.pending = append(l.pending, msg)
		l.mu.Unlock()
	}
}

// FlushPending re-tenta broadcasts que falharam; chamado pelo scheduler a
// cada tick. Mensagens que falharem de novo continuam na fila.
func (l *Lifecycle) FlushPending(ctx context.Context) {
	l.mu.Lock()
	queued := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, msg := range queued {
		l.notify(ctx, msg)
	}
}
