package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/betting"
	"github.com/radieske/sportsbook-core/internal/settlement"
	"github.com/radieske/sportsbook-core/internal/shared/config"
	"github.com/radieske/sportsbook-core/internal/shared/db"
	"github.com/radieske/sportsbook-core/internal/shared/kafka"
	"github.com/radieske/sportsbook-core/internal/shared/logger"
	"github.com/radieske/sportsbook-core/internal/shared/metrics"
	"github.com/radieske/sportsbook-core/internal/wallet"
	ev "github.com/radieske/sportsbook-core/pkg/contracts/events"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	// Consumer de resultados de partida
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicFixtureResults, "settlement-worker")
	defer reader.Close()

	// Producer de bet_settled + DLQ de mensagens venenosas
	settledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled)
	defer settledWriter.Close()

	var dlqWriter *kafkago.Writer
	if cfg.TopicFixtureResultsDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicFixtureResultsDLQ)
		defer dlqWriter.Close()
	}

	// deps
	bets := betting.NewPostgres(pg)
	wallets := wallet.NewPostgres(pg)
	monitor := settlement.NewMonitor(cfg.FailureThreshold, cfg.BreakerCooldown)
	engine := settlement.NewEngine(bets, wallets, monitor, log)
	engine.SetPublisher(settlement.NewKafkaPublisher(settledWriter))

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})
	log.Info("metrics/health", zap.String("port", cfg.MetricsPort))

	log.Info("settlement-worker started",
		zap.String("consume", cfg.TopicFixtureResults),
		zap.String("publish", cfg.TopicBetSettled),
	)

	ctx := context.Background()

	// Loop principal: consome resultados e dispara a liquidação
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		var res ev.FixtureResult
		if jerr := json.Unmarshal(msg.Value, &res); jerr != nil {
			log.Error("unmarshal fixture_result", zap.Error(jerr))
			if dlqWriter != nil {
				_ = kafka.WriteJSON(ctx, dlqWriter, string(msg.Key), msg.Value)
			}
			continue
		}

		if err := processOne(ctx, log, engine, monitor, &res); err != nil {
			log.Error("settle fixture", zap.String("fixtureId", res.FixtureID), zap.Error(err))
			if dlqWriter != nil {
				_ = kafka.WriteJSON(ctx, dlqWriter, res.FixtureID, msg.Value)
			}
			// Backoff simples pra não inundar em cenário de falha sistêmica
			time.Sleep(500 * time.Millisecond)
		}
	}
}

// processOne liquida uma partida:
// - resultado sem placar final (ongoing/postponed) é adiado, sem contar falha
// - breaker aberto re-tenta aguardando o cooldown, com limite de tentativas
func processOne(
	ctx context.Context,
	log *zap.Logger,
	engine *settlement.Engine,
	monitor *settlement.Monitor,
	res *ev.FixtureResult,
) error {
	const retries = 3
	var (
		sum settlement.Summary
		err error
	)
	for attempt := 0; attempt < retries; attempt++ {
		sum, err = engine.SettleFixture(ctx, *res)
		if err == nil {
			break
		}
		if settlement.IsDeferral(err) {
			// Feed sem resultado final: volta pro tópico via producer upstream,
			// aqui apenas registra e segue
			log.Info("settlement deferred",
				zap.String("fixtureId", res.FixtureID),
				zap.String("status", res.Status),
			)
			return nil
		}
		if errors.Is(err, settlement.ErrCircuitOpen) {
			log.Warn("circuit open, waiting cooldown",
				zap.String("fixtureId", res.FixtureID),
				zap.Int("attempt", attempt+1),
			)
			time.Sleep(monitor.Cooldown())
			continue
		}
		// Falha transitória: backoff incremental
		time.Sleep(time.Duration(300*(attempt+1)) * time.Millisecond)
	}
	if err != nil {
		return err
	}

	log.Info("fixture settled",
		zap.String("fixtureId", res.FixtureID),
		zap.Int("settled", sum.Settled),
		zap.Int("won", sum.Won),
		zap.Int("lost", sum.Lost),
		zap.Int("void", sum.Void),
		zap.Int("duplicates", sum.Duplicates),
		zap.Int64("paidOutCents", sum.PaidOutCents),
		zap.String("health", monitor.Health()),
	)
	return nil
}
