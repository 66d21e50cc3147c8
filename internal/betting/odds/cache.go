package odds

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/sportsbook-core/internal/market"
)

// Cache guarda a odd corrente de cada outcome no Redis. O live-service
// publica após cada reopen; o betting-service lê como pré-validação rápida
// de preço antes da transação (a fonte autoritativa continua o Registry).
type Cache struct {
	Rdb *redis.Client
	TTL time.Duration
}

func NewCache(r *redis.Client, ttl time.Duration) *Cache {
	return &Cache{Rdb: r, TTL: ttl}
}

// key: "odds:{fixtureID}:{marketKey}:{outcomeKey}" => "1.85"
func key(fixtureID, marketKey, outcomeKey string) string {
	return fmt.Sprintf("odds:%s:%s:%s", fixtureID, marketKey, outcomeKey)
}

// CurrentOdd retorna a odd cacheada; redis.Nil vira (0, nil) — cache frio não
// é erro, só pula a pré-validação.
func (c *Cache) CurrentOdd(ctx context.Context, fixtureID, marketKey, outcomeKey string) (float64, error) {
	val, err := c.Rdb.Get(ctx, key(fixtureID, marketKey, outcomeKey)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(val, 64)
}

// PublishOdds grava as odds de todos os outcomes abertos da partida.
// Satisfaz market.OddsSink.
func (c *Cache) PublishOdds(ctx context.Context, fixtureID string, markets []market.Market) error {
	pipe := c.Rdb.Pipeline()
	for _, m := range markets {
		if m.Status != market.MarketOpen {
			continue
		}
		for _, o := range m.Outcomes {
			pipe.Set(ctx, key(fixtureID, m.Key, o.Key),
				strconv.FormatFloat(o.Odds, 'f', -1, 64), c.TTL)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}
