package betting

import (
	"math"
	"time"
)

// BetType é a variante fechada da aposta; o rollup de settlement é resolvido
// por tipo, não por branching ad hoc.
type BetType string

const (
	TypeSingle  BetType = "single"
	TypeExpress BetType = "express"
	TypeSystem  BetType = "system"
)

// Status de aposta. pending muta exatamente uma vez para um terminal.
type BetStatus string

const (
	BetPending   BetStatus = "pending"
	BetWon       BetStatus = "won"
	BetLost      BetStatus = "lost"
	BetVoid      BetStatus = "void"
	BetCashout   BetStatus = "cashout"
	BetCancelled BetStatus = "cancelled"
)

// Status de seleção (perna da aposta).
type SelectionStatus string

const (
	SelectionPending SelectionStatus = "pending"
	SelectionWon     SelectionStatus = "won"
	SelectionLost    SelectionStatus = "lost"
	SelectionVoid    SelectionStatus = "void"
)

// Bet é o agregado persistido; TotalOdds == produto das odds das seleções.
type Bet struct {
	ID                string
	UserID            string
	Type              BetType
	StakeCents        int64
	PotentialWinCents int64
	TotalOdds         float64
	Status            BetStatus
	PlacedAt          time.Time
	SettledAt         *time.Time
	ActualWinCents    int64
	Selections        []Selection
}

// Selection é uma perna da aposta, referenciando um outcome de mercado.
// Pertence exclusivamente à sua Bet (1:N).
type Selection struct {
	ID        string
	BetID     string
	FixtureID string
	Market    string // market key, ex: "1x2"
	Label     string // outcome key, ex: "home"
	Odds      float64
	Status    SelectionStatus
	Result    string // preenchido no settlement, ex: "2:1"
}

// IsTerminal indica se o status é final (nenhuma transição posterior).
func (s BetStatus) IsTerminal() bool { return s != BetPending }

// TotalOdds calcula o produto das odds das seleções.
func TotalOdds(sels []Selection) float64 {
	odds := 1.0
	for _, s := range sels {
		odds *= s.Odds
	}
	return odds
}

// PotentialWinnings arredonda stake × odds para o centavo mais próximo.
func PotentialWinnings(stakeCents int64, totalOdds float64) int64 {
	return int64(math.Round(float64(stakeCents) * totalOdds))
}
