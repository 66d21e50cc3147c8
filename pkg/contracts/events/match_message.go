package events

import (
	"encoding/json"
	"time"
)

// Tipos de mensagem do canal de broadcast ao vivo.
const (
	MatchStarted     = "match_started"
	MatchUpdate      = "match_update"
	MatchFinished    = "match_finished"
	MarketsSuspended = "markets_suspended"
	MarketsReopened  = "markets_reopened"
	MatchEventMsg    = "match_event"
)

// MatchMessage é a mensagem enviada aos observadores (UI) via broadcast.
// Fire-and-forget: o core não espera ack.
type MatchMessage struct {
	Type      string          `json:"type"`
	FixtureID string          `json:"fixture_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Ts        time.Time       `json:"ts"`
}

// ScorePayload é o payload de match_update e match_event (gol).
type ScorePayload struct {
	Minute    int    `json:"minute"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
	EventType string `json:"event_type,omitempty"`
	Team      string `json:"team,omitempty"`
}

// NewMatchMessage monta a mensagem serializando o payload.
func NewMatchMessage(msgType, fixtureID string, payload any) MatchMessage {
	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	return MatchMessage{
		Type:      msgType,
		FixtureID: fixtureID,
		Payload:   raw,
		Ts:        time.Now().UTC(),
	}
}
