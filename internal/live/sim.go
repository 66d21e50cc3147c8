package live

import (
	"time"

	"github.com/radieske/sportsbook-core/internal/market"
)

// Simulation é o estado em memória de uma partida ativa. Cada registro tem um
// único dono: o passo do tick daquela fixture — nunca estado global ambiente.
// Criado no start da partida, destruído no fim ou no Stop do scheduler.
type Simulation struct {
	FixtureID string
	HomeTeam  string
	AwayTeam  string

	StartedAt     time.Time
	CurrentMinute int
	HomeScore     int
	AwayScore     int

	// Cronograma ordenado por minuto/segundo; NextEvent aponta o primeiro
	// ainda não processado neste scheduler.
	Events    []market.MatchEvent
	NextEvent int

	Paused bool

	// Deadline de reabertura dos mercados após suspensão (janela de
	// repricing); processado pelo próprio tick.
	ReopenAt *time.Time

	// Último minuto simulado em que o push periódico de placar foi enviado.
	LastPushMinute int
}
