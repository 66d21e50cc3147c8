package dto

import "time"

type SelectionResponse struct {
	FixtureID string  `json:"fixtureId"`
	Market    string  `json:"market"`
	Selection string  `json:"selection"`
	Odds      float64 `json:"odds"`
	Status    string  `json:"status"`
	Result    string  `json:"result,omitempty"`
}

type BetResponse struct {
	BetID             string              `json:"betId"`
	UserID            string              `json:"userId"`
	BetType           string              `json:"bet_type"`
	StakeCents        int64               `json:"stake_cents"`
	TotalOdds         float64             `json:"total_odds"`
	PotentialWinCents int64               `json:"potential_win_cents"`
	ActualWinCents    int64               `json:"actual_win_cents"`
	Status            string              `json:"status"`
	PlacedAt          time.Time           `json:"placed_at"`
	SettledAt         *time.Time          `json:"settled_at,omitempty"`
	Selections        []SelectionResponse `json:"selections"`
}

type WalletResponse struct {
	UserID       string `json:"userId"`
	WalletID     string `json:"walletId"`
	BalanceCents int64  `json:"balance_cents"`
}

type LedgerEntryResponse struct {
	Type          string    `json:"type"`
	AmountCents   int64     `json:"amount_cents"`
	BalanceBefore int64     `json:"balance_before"`
	BalanceAfter  int64     `json:"balance_after"`
	Reference     string    `json:"reference,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
