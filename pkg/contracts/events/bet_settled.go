package events

import "time"

// Evento emitido pelo settlement-worker após liquidar uma aposta.
type BetSettled struct {
	BetID         string    `json:"bet_id"`
	UserID        string    `json:"user_id"`
	FixtureID     string    `json:"fixture_id"`
	Status        string    `json:"status"` // won | lost | void
	WinningsCents int64     `json:"winnings_cents"`
	Ts            time.Time `json:"ts"`
}
