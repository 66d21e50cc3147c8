package dto

type SelectionRequest struct {
	FixtureID string  `json:"fixtureId"`
	Market    string  `json:"market"`    // ex: "1x2"
	Selection string  `json:"selection"` // ex: "home" | "draw" | "away"
	SeenOdds  float64 `json:"seen_odds"` // odd que o cliente viu no quote
}

type PlaceBetRequest struct {
	UserID     string             `json:"userId"`
	BetType    string             `json:"bet_type"` // single | express | system
	StakeCents int64              `json:"stake_cents"`
	Selections []SelectionRequest `json:"selections"`
}

type DepositRequest struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
	ExternalRef string `json:"external_ref,omitempty"` // opcional p/ conciliação
}

type WithdrawRequest struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
	ExternalRef string `json:"external_ref,omitempty"`
}
