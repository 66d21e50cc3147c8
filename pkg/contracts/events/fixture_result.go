package events

import "time"

// Status possíveis de um resultado vindo do feed.
const (
	ResultFinished  = "finished"
	ResultCancelled = "cancelled"
	ResultPostponed = "postponed"
	ResultOngoing   = "ongoing"
)

// FixtureResult é o evento publicado no tópico "fixture_results".
// Consumido pelo settlement-worker para liquidar as apostas da partida.
type FixtureResult struct {
	FixtureID string    `json:"fixture_id"`
	Status    string    `json:"status"` // finished | cancelled | postponed | ongoing
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	HomeScore int       `json:"home_score"`
	AwayScore int       `json:"away_score"`
	Source    string    `json:"source"`
	Ts        time.Time `json:"ts"`
}
