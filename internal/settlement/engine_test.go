package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/betting"
	"github.com/radieske/sportsbook-core/internal/wallet"
	"github.com/radieske/sportsbook-core/pkg/contracts/events"
)

type capturedPublisher struct {
	events []events.BetSettled
}

func (c *capturedPublisher) PublishBetSettled(_ context.Context, e events.BetSettled) error {
	c.events = append(c.events, e)
	return nil
}

type engineEnv struct {
	engine  *Engine
	bets    *betting.Memory
	wallets *wallet.Memory
	monitor *Monitor
	publ    *capturedPublisher
}

func newEngineEnv(t *testing.T) *engineEnv {
	t.Helper()
	bets := betting.NewMemory()
	wallets := wallet.NewMemory()
	monitor := NewMonitor(10, time.Minute)
	engine := NewEngine(bets, wallets, monitor, zap.NewNop())
	publ := &capturedPublisher{}
	engine.SetPublisher(publ)
	return &engineEnv{engine: engine, bets: bets, wallets: wallets, monitor: monitor, publ: publ}
}

// placeBet cria a aposta pendente e debita o stake, como o placement faria.
func (e *engineEnv) placeBet(t *testing.T, userID string, betType betting.BetType, stake int64, sels []betting.Selection) *betting.Bet {
	t.Helper()
	ctx := context.Background()
	_, err := e.wallets.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	_, err = e.wallets.Credit(ctx, userID, stake, wallet.EntryDeposit, "seed", "")
	require.NoError(t, err)

	b := &betting.Bet{
		UserID:            userID,
		Type:              betType,
		StakeCents:        stake,
		TotalOdds:         betting.TotalOdds(sels),
		PotentialWinCents: betting.PotentialWinnings(stake, betting.TotalOdds(sels)),
		Selections:        sels,
	}
	require.NoError(t, e.bets.CreatePending(ctx, b))
	bal, err := e.wallets.Balance(ctx, userID)
	require.NoError(t, err)
	_, err = e.wallets.DebitCAS(ctx, userID, bal, stake, wallet.EntryStake, b.ID, "")
	require.NoError(t, err)
	return b
}

func finished(fixtureID string, home, away int) events.FixtureResult {
	return events.FixtureResult{
		FixtureID: fixtureID,
		Status:    events.ResultFinished,
		HomeScore: home,
		AwayScore: away,
	}
}

func TestEngine_SettleSingleWon(t *testing.T) {
	ctx := context.Background()
	env := newEngineEnv(t)
	b := env.placeBet(t, "u1", betting.TypeSingle, 1000, []betting.Selection{
		{FixtureID: "fx1", Market: "1x2", Label: "home", Odds: 2.50},
	})

	sum, err := env.engine.SettleFixture(ctx, finished("fx1", 2, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Settled)
	assert.Equal(t, 1, sum.Won)
	assert.Equal(t, int64(2500), sum.PaidOutCents)

	cur, _ := env.bets.Get(ctx, b.ID)
	assert.Equal(t, betting.BetWon, cur.Status)
	assert.Equal(t, int64(2500), cur.ActualWinCents)
	require.NotNil(t, cur.SettledAt)
	assert.Equal(t, "2:1", cur.Selections[0].Result)

	// 1000 depositado - 1000 stake + 2500 winnings
	bal, _ := env.wallets.Balance(ctx, "u1")
	assert.Equal(t, int64(2500), bal)

	entries, _ := env.wallets.Entries(ctx, "u1")
	last := entries[len(entries)-1]
	assert.Equal(t, wallet.EntryWinnings, last.Type)
	assert.Equal(t, int64(2500), last.AmountCents)
	assert.Equal(t, b.ID, last.Reference)
	assert.Equal(t, bal, last.BalanceAfter)

	require.Len(t, env.publ.events, 1)
	assert.Equal(t, b.ID, env.publ.events[0].BetID)
	assert.Equal(t, string(betting.BetWon), env.publ.events[0].Status)
}

func TestEngine_ExpressWithLostLeg(t *testing.T) {
	ctx := context.Background()
	env := newEngineEnv(t)
	b := env.placeBet(t, "u1", betting.TypeExpress, 1000, []betting.Selection{
		{FixtureID: "fx1", Market: "1x2", Label: "home", Odds: 2.00},
		{FixtureID: "fx1", Market: "totals_2_5", Label: "over", Odds: 1.90},
		{FixtureID: "fx1", Market: "btts", Label: "yes", Odds: 1.80},
	})

	// 3x0: home ganha, over ganha, btts perde
	sum, err := env.engine.SettleFixture(ctx, finished("fx1", 3, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Lost)
	assert.Equal(t, int64(0), sum.PaidOutCents)

	cur, _ := env.bets.Get(ctx, b.ID)
	assert.Equal(t, betting.BetLost, cur.Status)

	// sem crédito nenhum: saldo segue zerado pós-stake
	bal, _ := env.wallets.Balance(ctx, "u1")
	assert.Equal(t, int64(0), bal)
}

func TestEngine_MultiFixtureExpressAwaitsLegs(t *testing.T) {
	ctx := context.Background()
	env := newEngineEnv(t)
	b := env.placeBet(t, "u1", betting.TypeExpress, 1000, []betting.Selection{
		{FixtureID: "fx1", Market: "1x2", Label: "home", Odds: 2.00},
		{FixtureID: "fx2", Market: "1x2", Label: "away", Odds: 3.00},
	})

	sum, err := env.engine.SettleFixture(ctx, finished("fx1", 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Settled)
	assert.Equal(t, 1, sum.AwaitingLegs)

	cur, _ := env.bets.Get(ctx, b.ID)
	assert.Equal(t, betting.BetPending, cur.Status)

	sum, err = env.engine.SettleFixture(ctx, finished("fx2", 0, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Won)
	assert.Equal(t, int64(6000), sum.PaidOutCents)

	cur, _ = env.bets.Get(ctx, b.ID)
	assert.Equal(t, betting.BetWon, cur.Status)
}

func TestEngine_DoubleSettleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newEngineEnv(t)
	b := env.placeBet(t, "u1", betting.TypeSingle, 1000, []betting.Selection{
		{FixtureID: "fx1", Market: "1x2", Label: "home", Odds: 2.50},
	})

	_, err := env.engine.SettleFixture(ctx, finished("fx1", 2, 1))
	require.NoError(t, err)
	balAfterFirst, _ := env.wallets.Balance(ctx, "u1")
	first, _ := env.bets.Get(ctx, b.ID)

	// segundo resultado pro mesmo jogo: nada pendente, nada muda
	sum, err := env.engine.SettleFixture(ctx, finished("fx1", 2, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Settled)

	bal, _ := env.wallets.Balance(ctx, "u1")
	assert.Equal(t, balAfterFirst, bal)
	cur, _ := env.bets.Get(ctx, b.ID)
	assert.Equal(t, first.SettledAt.UnixNano(), cur.SettledAt.UnixNano())
}

// raceStore simula o rival: liquida a aposta por fora logo antes do engine,
// forçando o caminho de duplicata na transição condicional.
type raceStore struct {
	*betting.Memory
}

func (r *raceStore) SettleBet(ctx context.Context, betID string, status betting.BetStatus, win int64) (bool, error) {
	_, _ = r.Memory.SettleBet(ctx, betID, status, win)
	return r.Memory.SettleBet(ctx, betID, status, win)
}

func TestEngine_DuplicateSettlementNeverPaysTwice(t *testing.T) {
	ctx := context.Background()
	bets := betting.NewMemory()
	wallets := wallet.NewMemory()
	monitor := NewMonitor(10, time.Minute)
	engine := NewEngine(&raceStore{Memory: bets}, wallets, monitor, zap.NewNop())

	env := &engineEnv{engine: engine, bets: bets, wallets: wallets, monitor: monitor}
	env.placeBet(t, "u1", betting.TypeSingle, 1000, []betting.Selection{
		{FixtureID: "fx1", Market: "1x2", Label: "home", Odds: 2.50},
	})

	sum, err := engine.SettleFixture(ctx, finished("fx1", 2, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Duplicates)
	assert.Equal(t, 0, sum.Settled)
	assert.Equal(t, int64(0), sum.PaidOutCents)

	// o rival gravou o status; o engine não paga de novo
	bal, _ := wallets.Balance(ctx, "u1")
	assert.Equal(t, int64(0), bal)
	assert.Equal(t, uint64(1), monitor.Snapshot().DuplicatesPrevented)
}

func TestEngine_CircuitOpenBlocksWithoutMutation(t *testing.T) {
	ctx := context.Background()
	env := newEngineEnv(t)
	env.placeBet(t, "u1", betting.TypeSingle, 1000, []betting.Selection{
		{FixtureID: "fx1", Market: "1x2", Label: "home", Odds: 2.50},
	})
	balBefore, _ := env.wallets.Balance(ctx, "u1")

	for i := 0; i < 10; i++ {
		env.monitor.ReportFailure(time.Millisecond)
	}
	require.Equal(t, BreakerOpen, env.monitor.State())

	_, err := env.engine.SettleFixture(ctx, finished("fx1", 2, 1))
	assert.ErrorIs(t, err, ErrCircuitOpen)

	bal, _ := env.wallets.Balance(ctx, "u1")
	assert.Equal(t, balBefore, bal)
	bets, _ := env.bets.PendingByFixture(ctx, "fx1")
	assert.Len(t, bets, 1)
}

func TestEngine_CancelledVoidsAndRefunds(t *testing.T) {
	ctx := context.Background()
	env := newEngineEnv(t)
	b := env.placeBet(t, "u1", betting.TypeSingle, 1000, []betting.Selection{
		{FixtureID: "fx1", Market: "1x2", Label: "home", Odds: 2.50},
	})

	sum, err := env.engine.SettleFixture(ctx, events.FixtureResult{
		FixtureID: "fx1", Status: events.ResultCancelled,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Void)
	assert.Equal(t, int64(1000), sum.PaidOutCents)

	cur, _ := env.bets.Get(ctx, b.ID)
	assert.Equal(t, betting.BetVoid, cur.Status)

	bal, _ := env.wallets.Balance(ctx, "u1")
	assert.Equal(t, int64(1000), bal)
	entries, _ := env.wallets.Entries(ctx, "u1")
	assert.Equal(t, wallet.EntryRefund, entries[len(entries)-1].Type)
}

func TestEngine_OngoingResultIsDeferred(t *testing.T) {
	ctx := context.Background()
	env := newEngineEnv(t)
	env.placeBet(t, "u1", betting.TypeSingle, 1000, []betting.Selection{
		{FixtureID: "fx1", Market: "1x2", Label: "home", Odds: 2.50},
	})

	_, err := env.engine.SettleFixture(ctx, events.FixtureResult{
		FixtureID: "fx1", Status: events.ResultOngoing,
	})
	assert.ErrorIs(t, err, ErrFeedUnavailable)
	assert.True(t, IsDeferral(err))

	// adiar não conta como tentativa nem como falha no breaker
	st := env.monitor.Snapshot()
	assert.Equal(t, uint64(0), st.Attempts)
	assert.Equal(t, BreakerClosed, st.State)
}

func TestEngine_UnknownMarketVoidsLeg(t *testing.T) {
	ctx := context.Background()
	env := newEngineEnv(t)
	b := env.placeBet(t, "u1", betting.TypeSingle, 1000, []betting.Selection{
		{FixtureID: "fx1", Market: "correct_score", Label: "2:0", Odds: 8.00},
	})

	sum, err := env.engine.SettleFixture(ctx, finished("fx1", 2, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.StructuralErrors)
	assert.Equal(t, 1, sum.Void)

	// perna estrutural anulada devolve o stake
	cur, _ := env.bets.Get(ctx, b.ID)
	assert.Equal(t, betting.BetVoid, cur.Status)
	bal, _ := env.wallets.Balance(ctx, "u1")
	assert.Equal(t, int64(1000), bal)
}

func TestEngine_VoidFixture(t *testing.T) {
	ctx := context.Background()
	env := newEngineEnv(t)
	b := env.placeBet(t, "u1", betting.TypeSingle, 1000, []betting.Selection{
		{FixtureID: "fx1", Market: "1x2", Label: "home", Odds: 2.50},
	})

	sum, err := env.engine.VoidFixture(ctx, "fx1", "op-7")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Void)

	cur, _ := env.bets.Get(ctx, b.ID)
	assert.Equal(t, betting.BetVoid, cur.Status)
	bal, _ := env.wallets.Balance(ctx, "u1")
	assert.Equal(t, int64(1000), bal)
}
