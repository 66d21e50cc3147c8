package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/betting/odds"
	"github.com/radieske/sportsbook-core/internal/live"
	lhttp "github.com/radieske/sportsbook-core/internal/live/http"
	"github.com/radieske/sportsbook-core/internal/live/ws"
	"github.com/radieske/sportsbook-core/internal/market"
	"github.com/radieske/sportsbook-core/internal/shared/cache"
	"github.com/radieske/sportsbook-core/internal/shared/config"
	"github.com/radieske/sportsbook-core/internal/shared/db"
	"github.com/radieske/sportsbook-core/internal/shared/kafka"
	"github.com/radieske/sportsbook-core/internal/shared/logger"
	"github.com/radieske/sportsbook-core/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres (registry de fixtures/mercados/eventos)
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	// Redis (broadcast Pub/Sub + cache de odds pós-reopen)
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka producer do resultado final (consumido pelo settlement-worker)
	resultWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicFixtureResults)
	defer resultWriter.Close()

	// deps
	registry := market.NewPostgres(pg)
	broadcaster := live.NewRedisBroadcaster(rdb, cfg.RedisPubSubChannel)

	lifecycle := market.NewLifecycle(registry, broadcaster, log)
	lifecycle.SetOddsSink(odds.NewCache(rdb, 5*time.Minute))

	sched := live.NewScheduler(live.Config{
		TickInterval:    cfg.TickInterval,
		SpeedMultiplier: cfg.SpeedMultiplier,
		MinuteCeiling:   cfg.MinuteCeiling,
		ReopenDelay:     cfg.ReopenDelay,
		PushEveryMin:    cfg.PushEveryMin,
	}, registry, lifecycle, broadcaster, log)
	sched.SetResultSink(live.NewKafkaResultPublisher(resultWriter))

	go sched.Run(ctx)

	// ws hub alimentado pelo mesmo canal Pub/Sub do broadcast
	hub := ws.NewHub(func(r *http.Request) bool { return true })
	ws.StartRedisSubscriber(ctx, rdb, cfg.RedisPubSubChannel, hub, log)

	// HTTP público: admin de fixtures + websocket
	api := lhttp.NewServer(log, registry, lifecycle, sched)
	mux := http.NewServeMux()
	mux.Handle("/", api.Router())
	mux.HandleFunc("/ws", hub.HandleWS)

	apiSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: mux,
	}

	// metrics/health
	metrics.StartMetricsServer(cfg.MetricsPort, func(hctx context.Context) error {
		if err := pg.PingContext(hctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		if err := rdb.Ping(hctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})
	log.Info("metrics/health", zap.String("port", cfg.MetricsPort))

	log.Info("live-service listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
