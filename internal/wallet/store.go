package wallet

import (
	"context"
	"errors"
)

var (
	ErrNotFound               = errors.New("wallet not found")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrConcurrentModification = errors.New("concurrent balance modification")
	ErrInvalidAmount          = errors.New("invalid amount")
)

// Store define as operações de saldo e ledger usadas pelo placement e pelo
// settlement. Toda mutação de saldo grava o lançamento correspondente na
// mesma unidade atômica.
type Store interface {
	// GetOrCreate retorna a carteira do usuário, criando com saldo zero se não existir.
	GetOrCreate(ctx context.Context, userID string) (Wallet, error)

	// Balance retorna o saldo atual em centavos.
	Balance(ctx context.Context, userID string) (int64, error)

	// DebitCAS debita amountCents condicionado ao saldo observado pelo caller
	// (compare-and-swap). Se o saldo mudou desde a leitura, retorna
	// ErrConcurrentModification sem mutar nada. O retry é decisão do caller.
	DebitCAS(ctx context.Context, userID string, expectedBalance, amountCents int64, entryType EntryType, reference, actorID string) (newBalance int64, err error)

	// Credit incrementa o saldo atomicamente (sem CAS: crédito nunca disputa
	// com insuficiência) e grava o lançamento.
	Credit(ctx context.Context, userID string, amountCents int64, entryType EntryType, reference, actorID string) (newBalance int64, err error)

	// Entries retorna os lançamentos do usuário em ordem de criação.
	Entries(ctx context.Context, userID string) ([]Entry, error)
}
