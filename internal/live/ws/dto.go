package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// FixtureID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type      string `json:"type"`      // subscribe | unsubscribe | ping
	FixtureID string `json:"fixtureId"` // requerido em subscribe/unsubscribe
}
