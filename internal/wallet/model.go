package wallet

import "time"

// EntryType classifica um lançamento do ledger.
type EntryType string

const (
	EntryStake      EntryType = "stake"
	EntryWinnings   EntryType = "winnings"
	EntryRefund     EntryType = "refund"
	EntryDeposit    EntryType = "deposit"
	EntryWithdrawal EntryType = "withdrawal"
)

// Wallet é o saldo do usuário em centavos.
type Wallet struct {
	ID           string
	UserID       string
	BalanceCents int64
	Version      int64
	CreatedAt    time.Time
}

// Entry é um lançamento imutável do ledger, 1:1 com cada mutação de saldo.
// BalanceAfter deve espelhar o saldo persistido no momento da escrita — é o
// que permite reconstruir o histórico de saldo só pelo ledger.
type Entry struct {
	ID            string
	UserID        string
	Type          EntryType
	AmountCents   int64 // assinado: débitos negativos, créditos positivos
	BalanceBefore int64
	BalanceAfter  int64
	Reference     string // betId ou id de pagamento
	ActorID       string // operador, quando a ação vier do admin
	CreatedAt     time.Time
}
