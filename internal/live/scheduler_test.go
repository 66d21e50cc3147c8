package live

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/market"
	"github.com/radieske/sportsbook-core/pkg/contracts/events"
)

type fakeBroadcaster struct {
	mu   sync.Mutex
	msgs []events.MatchMessage
}

func (f *fakeBroadcaster) Publish(_ context.Context, msg events.MatchMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeBroadcaster) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.msgs))
	for i, m := range f.msgs {
		out[i] = m.Type
	}
	return out
}

type fakeResultSink struct {
	mu      sync.Mutex
	results []events.FixtureResult
}

func (f *fakeResultSink) PublishResult(_ context.Context, res events.FixtureResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, res)
	return nil
}

type fixtureEnv struct {
	sched *Scheduler
	reg   *market.Memory
	bc    *fakeBroadcaster
	res   *fakeResultSink
	start time.Time
}

// setNow fixa o relógio injetado do scheduler.
func (e *fixtureEnv) setNow(t time.Time) {
	e.sched.now = func() time.Time { return t }
}

func newFixtureEnv(t *testing.T) *fixtureEnv {
	t.Helper()
	ctx := context.Background()
	reg := market.NewMemory()
	bc := &fakeBroadcaster{}
	lc := market.NewLifecycle(reg, bc, zap.NewNop())

	require.NoError(t, reg.UpsertFixture(ctx, market.Fixture{
		ID: "fx1", HomeTeam: "Grêmio", AwayTeam: "Inter", Status: market.FixtureScheduled,
	}))
	require.NoError(t, reg.CreateMarket(ctx, market.Market{
		FixtureID: "fx1",
		Key:       market.MarketKey1X2,
		Outcomes:  []market.Outcome{{Key: "home", Odds: 2.00}, {Key: "away", Odds: 3.50}},
	}))
	require.NoError(t, reg.AddEvent(ctx, market.MatchEvent{
		ID: "ev-goal", FixtureID: "fx1", Type: market.EventGoal, Minute: 37, Team: "home",
	}))

	sched := NewScheduler(Config{
		TickInterval:    15 * time.Second,
		SpeedMultiplier: 1,
		MinuteCeiling:   95,
		ReopenDelay:     30 * time.Second,
		ReopenOddsShift: 0.95,
		PushEveryMin:    5,
	}, reg, lc, bc, zap.NewNop())
	res := &fakeResultSink{}
	sched.SetResultSink(res)

	env := &fixtureEnv{sched: sched, reg: reg, bc: bc, res: res, start: time.Now()}
	env.setNow(env.start)
	return env
}

func marketStatus(t *testing.T, reg *market.Memory, fixtureID string) market.MarketStatus {
	t.Helper()
	mks, err := reg.MarketsByFixture(context.Background(), fixtureID)
	require.NoError(t, err)
	require.NotEmpty(t, mks)
	return mks[0].Status
}

func TestScheduler_StartFixture(t *testing.T) {
	ctx := context.Background()
	env := newFixtureEnv(t)

	require.NoError(t, env.sched.StartFixture(ctx, "fx1"))

	f, _ := env.reg.Fixture(ctx, "fx1")
	assert.Equal(t, market.FixtureLive, f.Status)
	// kickoff suspende até o repricing inicial
	assert.Equal(t, market.MarketSuspended, marketStatus(t, env.reg, "fx1"))
	assert.Contains(t, env.bc.types(), events.MatchStarted)

	// partida encerrada não re-inicia
	require.NoError(t, env.reg.SetFixtureStatus(ctx, "fx1", market.FixtureFinished))
	assert.Error(t, env.sched.StartFixture(ctx, "fx1"))
}

func TestScheduler_GoalSuspendsThenReopens(t *testing.T) {
	ctx := context.Background()
	env := newFixtureEnv(t)
	require.NoError(t, env.sched.StartFixture(ctx, "fx1"))

	// passada a janela de kickoff, mercados reabrem
	env.setNow(env.start.Add(1 * time.Minute))
	env.sched.tick(ctx)
	assert.Equal(t, market.MarketOpen, marketStatus(t, env.reg, "fx1"))

	// minuto 37: gol executa exatamente uma vez, placar persiste, suspende
	env.setNow(env.start.Add(37 * time.Minute))
	env.sched.tick(ctx)
	f, _ := env.reg.Fixture(ctx, "fx1")
	assert.Equal(t, 1, f.HomeScore)
	assert.Equal(t, 0, f.AwayScore)
	assert.Equal(t, market.MarketSuspended, marketStatus(t, env.reg, "fx1"))

	// tick repetido no mesmo minuto não re-executa o evento
	env.sched.tick(ctx)
	f, _ = env.reg.Fixture(ctx, "fx1")
	assert.Equal(t, 1, f.HomeScore)

	// passado o delay de reabertura, mercados voltam com odds reprecificadas
	env.setNow(env.start.Add(37*time.Minute + 31*time.Second))
	env.sched.tick(ctx)
	assert.Equal(t, market.MarketOpen, marketStatus(t, env.reg, "fx1"))
	mks, _ := env.reg.MarketsByFixture(ctx, "fx1")
	for _, o := range mks[0].Outcomes {
		if o.Key == "home" {
			assert.InDelta(t, 1.90, o.Odds, 1e-9) // 2.00 * 0.95
		}
	}

	// suspensão do gol veio antes da reabertura no canal de broadcast
	types := env.bc.types()
	suspIdx, reopenIdx := -1, -1
	for i := len(types) - 1; i >= 0; i-- {
		switch types[i] {
		case events.MarketsReopened:
			if reopenIdx == -1 {
				reopenIdx = i
			}
		case events.MarketsSuspended:
			if suspIdx == -1 {
				suspIdx = i
			}
		}
	}
	require.GreaterOrEqual(t, suspIdx, 0)
	require.GreaterOrEqual(t, reopenIdx, 0)
	assert.Less(t, suspIdx, reopenIdx)
	assert.Contains(t, types, events.MatchEventMsg)
	assert.Contains(t, types, events.MatchUpdate)
}

func TestScheduler_PauseIsCooperative(t *testing.T) {
	ctx := context.Background()
	env := newFixtureEnv(t)
	require.NoError(t, env.sched.StartFixture(ctx, "fx1"))
	env.sched.SetPaused("fx1", true)

	env.setNow(env.start.Add(40 * time.Minute))
	env.sched.tick(ctx)

	// pausada: evento do minuto 37 não executa
	f, _ := env.reg.Fixture(ctx, "fx1")
	assert.Equal(t, 0, f.HomeScore)

	env.sched.SetPaused("fx1", false)
	env.sched.tick(ctx)
	f, _ = env.reg.Fixture(ctx, "fx1")
	assert.Equal(t, 1, f.HomeScore)
}

func TestScheduler_FinishAtCeiling(t *testing.T) {
	ctx := context.Background()
	env := newFixtureEnv(t)
	require.NoError(t, env.sched.StartFixture(ctx, "fx1"))

	env.setNow(env.start.Add(96 * time.Minute))
	env.sched.tick(ctx)

	f, _ := env.reg.Fixture(ctx, "fx1")
	assert.Equal(t, market.FixtureFinished, f.Status)
	assert.Equal(t, market.MarketSettled, marketStatus(t, env.reg, "fx1"))
	assert.Contains(t, env.bc.types(), events.MatchFinished)

	// resultado final publicado pro settlement com o placar acumulado
	require.Len(t, env.res.results, 1)
	res := env.res.results[0]
	assert.Equal(t, "fx1", res.FixtureID)
	assert.Equal(t, events.ResultFinished, res.Status)
	assert.Equal(t, 1, res.HomeScore)
	assert.Equal(t, 0, res.AwayScore)

	// simulação destruída: tick seguinte não faz nada
	env.sched.tick(ctx)
	require.Len(t, env.res.results, 1)
}

func TestScheduler_StopClearsSimulations(t *testing.T) {
	ctx := context.Background()
	env := newFixtureEnv(t)
	require.NoError(t, env.sched.StartFixture(ctx, "fx1"))

	env.sched.Stop()

	env.setNow(env.start.Add(40 * time.Minute))
	env.sched.tick(ctx)

	// estado persistido fica como a última escrita: live e suspenso do kickoff
	f, _ := env.reg.Fixture(ctx, "fx1")
	assert.Equal(t, market.FixtureLive, f.Status)
	assert.Equal(t, 0, f.HomeScore)
}
