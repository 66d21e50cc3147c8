package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/market"
	"github.com/radieske/sportsbook-core/pkg/contracts/events"
)

// Config do scheduler de partidas ao vivo.
type Config struct {
	TickInterval    time.Duration
	SpeedMultiplier float64 // minutos simulados por minuto de relógio
	MinuteCeiling   int     // teto com acréscimos, ex: 95
	ReopenDelay     time.Duration
	ReopenOddsShift float64 // fator aplicado às odds no reopen pós-gol
	PushEveryMin    int     // push periódico de placar a cada N min simulados
}

var (
	activeSims = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "live_active_simulations",
		Help: "Simulações de partida ativas",
	})
	eventsExecuted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "live_events_executed_total",
		Help: "Eventos de partida executados",
	})
	ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "live_ticks_total",
		Help: "Ticks do scheduler",
	})
)

func init() {
	prometheus.MustRegister(activeSims, eventsExecuted, ticksTotal)
}

// Scheduler avança o relógio simulado de cada partida ativa, executa eventos
// exatamente uma vez e dirige a máquina de estados de mercado. Um tick nunca
// sobrepõe outro: o loop só rearma depois que o tick termina. Fixtures são
// processadas concorrentemente dentro do tick — o estado de cada uma é
// disjunto, então não há lock por fixture.
type Scheduler struct {
	cfg Config
	reg market.Registry
	lc  *market.Lifecycle
	bc  Broadcaster
	res ResultSink // opcional
	log *zap.Logger
	now func() time.Time // injetável em teste

	mu   sync.Mutex
	sims map[string]*Simulation
}

func NewScheduler(cfg Config, reg market.Registry, lc *market.Lifecycle, bc Broadcaster, log *zap.Logger) *Scheduler {
	if cfg.SpeedMultiplier <= 0 {
		cfg.SpeedMultiplier = 1
	}
	if cfg.MinuteCeiling <= 0 {
		cfg.MinuteCeiling = 95
	}
	if cfg.ReopenOddsShift <= 0 {
		cfg.ReopenOddsShift = 0.95
	}
	if cfg.PushEveryMin <= 0 {
		cfg.PushEveryMin = 5
	}
	return &Scheduler{
		cfg:  cfg,
		reg:  reg,
		lc:   lc,
		bc:   bc,
		log:  log,
		now:  time.Now,
		sims: make(map[string]*Simulation),
	}
}

// SetResultSink liga a publicação do resultado final no fim da partida.
func (s *Scheduler) SetResultSink(r ResultSink) { s.res = r }

// StartFixture coloca a partida em live, suspende os mercados pra janela de
// repricing inicial e cria o registro de simulação.
func (s *Scheduler) StartFixture(ctx context.Context, fixtureID string) error {
	f, err := s.reg.Fixture(ctx, fixtureID)
	if err != nil {
		return err
	}
	if f.Status == market.FixtureFinished {
		return fmt.Errorf("fixture %s already finished", fixtureID)
	}

	evs, err := s.reg.EventsByFixture(ctx, fixtureID)
	if err != nil {
		return err
	}

	if err := s.reg.SetFixtureStatus(ctx, fixtureID, market.FixtureLive); err != nil {
		return err
	}
	// Entrada em live suspende os mercados; o tick reabre após o delay
	if err := s.lc.Suspend(ctx, fixtureID, "kickoff", ""); err != nil {
		return err
	}

	now := s.now()
	reopenAt := now.Add(s.cfg.ReopenDelay)
	sim := &Simulation{
		FixtureID: fixtureID,
		HomeTeam:  f.HomeTeam,
		AwayTeam:  f.AwayTeam,
		StartedAt: now,
		HomeScore: f.HomeScore,
		AwayScore: f.AwayScore,
		Events:    evs,
		ReopenAt:  &reopenAt,
	}

	s.mu.Lock()
	s.sims[fixtureID] = sim
	activeSims.Set(float64(len(s.sims)))
	s.mu.Unlock()

	s.publish(ctx, events.NewMatchMessage(events.MatchStarted, fixtureID,
		map[string]string{"home": f.HomeTeam, "away": f.AwayTeam}))
	s.log.Info("fixture started", zap.String("fixtureId", fixtureID),
		zap.Int("events", len(evs)))
	return nil
}

// SetPaused pausa/retoma a simulação. Cooperativo: checado no começo do passo
// de cada fixture, não interrompe evento em execução.
func (s *Scheduler) SetPaused(fixtureID string, paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sim, ok := s.sims[fixtureID]; ok {
		sim.Paused = paused
	}
}

// Stop limpa todo o estado de simulação em memória. O estado persistido
// (fixtures/mercados) fica exatamente como a última escrita — sem rollback.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sims = make(map[string]*Simulation)
	activeSims.Set(0)
}

// Run roda o loop de ticks até o contexto encerrar. O tick executa por
// completo antes do próximo disparo.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick processa todas as fixtures ativas. Pausadas ficam de fora do snapshot.
func (s *Scheduler) tick(ctx context.Context) {
	ticksTotal.Inc()
	s.lc.FlushPending(ctx)

	s.mu.Lock()
	batch := make([]*Simulation, 0, len(s.sims))
	for _, sim := range s.sims {
		if !sim.Paused {
			batch = append(batch, sim)
		}
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, sim := range batch {
		wg.Add(1)
		go func(sim *Simulation) {
			defer wg.Done()
			s.step(ctx, sim)
		}(sim)
	}
	wg.Wait()
}

// step avança uma fixture. Único escritor do registro durante o tick.
func (s *Scheduler) step(ctx context.Context, sim *Simulation) {
	now := s.now()

	if sim.ReopenAt != nil && !now.Before(*sim.ReopenAt) {
		if err := s.lc.Reopen(ctx, sim.FixtureID, s.cfg.ReopenOddsShift, ""); err != nil {
			s.log.Warn("reopen markets", zap.String("fixtureId", sim.FixtureID), zap.Error(err))
		} else {
			sim.ReopenAt = nil
		}
	}

	elapsed := now.Sub(sim.StartedAt)
	simMinute := int(elapsed.Minutes() * s.cfg.SpeedMultiplier)
	if simMinute > s.cfg.MinuteCeiling {
		simMinute = s.cfg.MinuteCeiling
	}
	sim.CurrentMinute = simMinute

	// Ordem estrita por minuto/segundo/índice dentro da fixture
	for sim.NextEvent < len(sim.Events) && sim.Events[sim.NextEvent].Minute <= simMinute {
		ev := sim.Events[sim.NextEvent]
		sim.NextEvent++
		s.execute(ctx, sim, ev, now)
	}

	if simMinute-sim.LastPushMinute >= s.cfg.PushEveryMin {
		sim.LastPushMinute = simMinute
		s.publish(ctx, events.NewMatchMessage(events.MatchUpdate, sim.FixtureID, events.ScorePayload{
			Minute:    simMinute,
			HomeScore: sim.HomeScore,
			AwayScore: sim.AwayScore,
		}))
	}

	if simMinute >= s.cfg.MinuteCeiling {
		s.finish(ctx, sim)
	}
}

// execute dispara um evento exatamente uma vez: a marcação condicional no
// Registry é a guarda de idempotência, mesmo se outro scheduler disputar.
func (s *Scheduler) execute(ctx context.Context, sim *Simulation, ev market.MatchEvent, now time.Time) {
	ok, err := s.reg.MarkEventExecuted(ctx, ev.ID)
	if err != nil {
		s.log.Warn("mark event executed", zap.String("eventId", ev.ID), zap.Error(err))
		return
	}
	if !ok {
		return // já executado
	}
	eventsExecuted.Inc()

	if ev.Type == market.EventGoal {
		if ev.Team == "away" {
			sim.AwayScore++
		} else {
			sim.HomeScore++
		}
		if err := s.reg.SetScore(ctx, sim.FixtureID, sim.HomeScore, sim.AwayScore); err != nil {
			s.log.Warn("persist score", zap.String("fixtureId", sim.FixtureID), zap.Error(err))
		}
	}

	s.publish(ctx, events.NewMatchMessage(events.MatchEventMsg, sim.FixtureID, events.ScorePayload{
		Minute:    ev.Minute,
		HomeScore: sim.HomeScore,
		AwayScore: sim.AwayScore,
		EventType: string(ev.Type),
		Team:      ev.Team,
	}))

	// Gol suspende imediatamente; reabertura agendada pro tick após o delay,
	// já com odds reprecificadas
	if ev.Type == market.EventGoal {
		if err := s.lc.Suspend(ctx, sim.FixtureID, "goal", ""); err != nil {
			s.log.Warn("suspend markets", zap.String("fixtureId", sim.FixtureID), zap.Error(err))
		}
		reopenAt := now.Add(s.cfg.ReopenDelay)
		sim.ReopenAt = &reopenAt
	}

	s.log.Info("match event executed",
		zap.String("fixtureId", sim.FixtureID),
		zap.String("type", string(ev.Type)),
		zap.Int("minute", ev.Minute),
	)
}

// finish encerra a partida: status finished, mercados settled, broadcast e
// resultado final publicado; o registro de simulação é destruído.
func (s *Scheduler) finish(ctx context.Context, sim *Simulation) {
	if err := s.reg.SetFixtureStatus(ctx, sim.FixtureID, market.FixtureFinished); err != nil {
		s.log.Error("finish fixture", zap.String("fixtureId", sim.FixtureID), zap.Error(err))
		return
	}
	if err := s.lc.Settle(ctx, sim.FixtureID); err != nil {
		s.log.Error("settle markets", zap.String("fixtureId", sim.FixtureID), zap.Error(err))
	}

	s.publish(ctx, events.NewMatchMessage(events.MatchFinished, sim.FixtureID, events.ScorePayload{
		Minute:    sim.CurrentMinute,
		HomeScore: sim.HomeScore,
		AwayScore: sim.AwayScore,
	}))

	if s.res != nil {
		res := events.FixtureResult{
			FixtureID: sim.FixtureID,
			Status:    events.ResultFinished,
			HomeTeam:  sim.HomeTeam,
			AwayTeam:  sim.AwayTeam,
			HomeScore: sim.HomeScore,
			AwayScore: sim.AwayScore,
			Source:    "live-service",
			Ts:        s.now().UTC(),
		}
		if err := s.res.PublishResult(ctx, res); err != nil {
			s.log.Error("publish fixture result", zap.String("fixtureId", sim.FixtureID), zap.Error(err))
		}
	}

	s.mu.Lock()
	delete(s.sims, sim.FixtureID)
	activeSims.Set(float64(len(s.sims)))
	s.mu.Unlock()

	s.log.Info("fixture finished",
		zap.String("fixtureId", sim.FixtureID),
		zap.Int("homeScore", sim.HomeScore),
		zap.Int("awayScore", sim.AwayScore),
	)
}

// publish envia com timeout; falha é logada, nunca bloqueia o tick.
func (s *Scheduler) publish(ctx context.Context, msg events.MatchMessage) {
	if s.bc == nil {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.bc.Publish(sctx, msg); err != nil {
		s.log.Warn("broadcast failed",
			zap.String("type", msg.Type),
			zap.String("fixtureId", msg.FixtureID),
			zap.Error(err),
		)
	}
}
