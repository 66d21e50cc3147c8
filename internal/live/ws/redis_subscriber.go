package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/pkg/contracts/events"
)

// StartRedisSubscriber inicia uma goroutine que escuta o canal Redis Pub/Sub
// e repassa as mensagens de partida para os clientes WebSocket inscritos.
//
// Funcionamento:
// - Recebe mensagens JSON do canal Redis
// - Desserializa para MatchMessage
// - Chama hub.Broadcast para os clientes inscritos na fixture
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, hub *Hub, log *zap.Logger) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close() // encerra a inscrição ao finalizar o contexto
				return
			case msg := <-ch:
				if msg == nil {
					continue
				}
				var mm events.MatchMessage
				if err := json.Unmarshal([]byte(msg.Payload), &mm); err != nil {
					log.Warn("ws subscriber unmarshal", zap.Error(err))
					continue
				}
				hub.Broadcast(mm)
			}
		}
	}()
}
