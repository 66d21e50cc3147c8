package live

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/radieske/sportsbook-core/pkg/contracts/events"
)

// Broadcaster publica mensagens de partida pros observadores. Fire-and-forget.
type Broadcaster interface {
	Publish(ctx context.Context, msg events.MatchMessage) error
}

// ResultSink recebe o resultado final quando a simulação termina
// (alimenta o settlement-worker via Kafka).
type ResultSink interface {
	PublishResult(ctx context.Context, res events.FixtureResult) error
}

// RedisBroadcaster publica no canal Pub/Sub lido pelo hub WebSocket.
type RedisBroadcaster struct {
	rdb     *redis.Client
	channel string
}

func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: r, channel: channel}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, msg events.MatchMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

// KafkaResultPublisher emite fixture_results no Kafka. Satisfaz ResultSink.
type KafkaResultPublisher struct {
	Writer *kafka.Writer
}

func NewKafkaResultPublisher(w *kafka.Writer) *KafkaResultPublisher {
	return &KafkaResultPublisher{Writer: w}
}

func (p *KafkaResultPublisher) PublishResult(ctx context.Context, res events.FixtureResult) error {
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(res.FixtureID),
		Value: b,
	})
}
