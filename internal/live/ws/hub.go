package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/radieske/sportsbook-core/pkg/contracts/events"
)

var wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "live_ws_connections",
	Help: "Clientes WebSocket conectados",
})

func init() {
	prometheus.MustRegister(wsConnections)
}

// Hub gerencia conexões WebSocket e assinaturas por partida
// subs: mapeia fixtureID para o conjunto de conexões inscritas
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	// fixtureID -> set of connections
	subs map[string]map[*websocket.Conn]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*websocket.Conn]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
// Permite subscribe/unsubscribe em partidas e responde a pings
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	wsConnections.Inc()
	defer func() {
		wsConnections.Dec()
		conn.Close()
	}()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			h.mu.Lock()
			if _, ok := h.subs[msg.FixtureID]; !ok {
				h.subs[msg.FixtureID] = make(map[*websocket.Conn]struct{})
			}
			h.subs[msg.FixtureID][conn] = struct{}{}
			h.mu.Unlock()
		case "unsubscribe":
			h.mu.Lock()
			if m, ok := h.subs[msg.FixtureID]; ok {
				delete(m, conn)
				if len(m) == 0 {
					delete(h.subs, msg.FixtureID)
				}
			}
			h.mu.Unlock()
		case "ping":
			_ = conn.WriteJSON(map[string]string{"type": "pong"})
		}
	}
	// Remove a conexão de todas as assinaturas ao desconectar
	h.mu.Lock()
	for _, set := range h.subs {
		delete(set, conn)
	}
	h.mu.Unlock()
}

// Broadcast envia a mensagem para os clientes inscritos na partida.
func (h *Hub) Broadcast(msg events.MatchMessage) {
	h.mu.RLock()
	conns := h.subs[msg.FixtureID]
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	b, _ := json.Marshal(msg)
	for c := range conns {
		_ = c.SetWriteDeadline(time.Now().Add(2 * time.Second))
		_ = c.WriteMessage(websocket.TextMessage, b)
	}
}
