package market

import "time"

// MarketStatus segue o ciclo open -> suspended -> open (repetível) e
// open|suspended -> settled (terminal).
type MarketStatus string

const (
	MarketOpen      MarketStatus = "open"
	MarketSuspended MarketStatus = "suspended"
	MarketSettled   MarketStatus = "settled"
)

// OutcomeStatus acompanha o status do mercado dono.
type OutcomeStatus string

const (
	OutcomeActive    OutcomeStatus = "active"
	OutcomeSuspended OutcomeStatus = "suspended"
	OutcomeSettled   OutcomeStatus = "settled"
)

// FixtureStatus é o ciclo de vida da partida.
type FixtureStatus string

const (
	FixtureScheduled FixtureStatus = "scheduled"
	FixtureLive      FixtureStatus = "live"
	FixtureFinished  FixtureStatus = "finished"
)

// Tipos de evento de partida.
type EventType string

const (
	EventGoal         EventType = "goal"
	EventYellowCard   EventType = "yellow_card"
	EventRedCard      EventType = "red_card"
	EventSubstitution EventType = "substitution"
)

// Chaves de mercado suportadas pelo settlement.
const (
	MarketKey1X2    = "1x2"
	MarketKeyTotals = "totals_2_5"
	MarketKeyBTTS   = "btts"
)

// Market é uma proposta apostável de uma partida; nunca é deletado,
// apenas transiciona de status.
type Market struct {
	ID           string
	FixtureID    string
	Key          string
	Status       MarketStatus
	DisplayOrder int
	Outcomes     []Outcome
}

// Outcome é um resultado possível do mercado, com odd corrente.
type Outcome struct {
	ID       string
	MarketID string
	Key      string
	Odds     float64
	Status   OutcomeStatus
}

// Fixture é a partida que dirige o status dos mercados.
type Fixture struct {
	ID        string
	HomeTeam  string
	AwayTeam  string
	HomeScore int
	AwayScore int
	Status    FixtureStatus
	KickoffAt time.Time
}

// MatchEvent é um evento do cronograma da partida. Executed é a guarda de
// idempotência: cada evento dispara no máximo uma vez.
type MatchEvent struct {
	ID        string
	FixtureID string
	Type      EventType
	Minute    int
	Second    int
	Team      string // "home" | "away"
	Executed  bool
}

// CanTransition valida as transições permitidas da máquina de estados de
// mercado. settled é terminal.
func CanTransition(from, to MarketStatus) bool {
	switch from {
	case MarketOpen:
		return to == MarketSuspended || to == MarketSettled
	case MarketSuspended:
		return to == MarketOpen || to == MarketSettled
	default:
		return false
	}
}
