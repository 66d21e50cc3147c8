package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/betting"
	bhttp "github.com/radieske/sportsbook-core/internal/betting/http"
	"github.com/radieske/sportsbook-core/internal/betting/odds"
	"github.com/radieske/sportsbook-core/internal/market"
	"github.com/radieske/sportsbook-core/internal/shared/cache"
	"github.com/radieske/sportsbook-core/internal/shared/config"
	"github.com/radieske/sportsbook-core/internal/shared/db"
	"github.com/radieske/sportsbook-core/internal/shared/logger"
	"github.com/radieske/sportsbook-core/internal/shared/metrics"
	"github.com/radieske/sportsbook-core/internal/wallet"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	// Redis (cache de odds pré-validação de preço)
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// deps
	wallets := wallet.NewPostgres(pg)
	bets := betting.NewPostgres(pg)
	markets := market.NewPostgres(pg)
	oddsCache := odds.NewCache(rdb, 5*time.Minute)

	placer := betting.NewPlacer(wallets, bets, markets,
		betting.DefaultLimits(cfg.MinStakeCents, cfg.MaxStakeCents), log)

	// HTTP público
	api := bhttp.NewServer(log, placer, bets, wallets, oddsCache)
	apiSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.Router(),
	}

	// metrics/health
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})
	log.Info("metrics/health", zap.String("port", cfg.MetricsPort))

	log.Info("betting-service listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
