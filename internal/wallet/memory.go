package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory implementa Store em memória, com a mesma semântica de CAS e
// incremento atômico do Postgres. Usado em testes e execução local.
type Memory struct {
	mu      sync.Mutex
	wallets map[string]*Wallet
	ledger  map[string][]Entry
}

func NewMemory() *Memory {
	return &Memory{
		wallets: make(map[string]*Wallet),
		ledger:  make(map[string][]Entry),
	}
}

func (m *Memory) GetOrCreate(_ context.Context, userID string) (Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[userID]
	if !ok {
		w = &Wallet{ID: uuid.NewString(), UserID: userID, Version: 1, CreatedAt: time.Now().UTC()}
		m.wallets[userID] = w
	}
	return *w, nil
}

func (m *Memory) Balance(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[userID]
	if !ok {
		return 0, ErrNotFound
	}
	return w.BalanceCents, nil
}

func (m *Memory) DebitCAS(_ context.Context, userID string, expectedBalance, amountCents int64, entryType EntryType, reference, actorID string) (int64, error) {
	if amountCents <= 0 {
		return 0, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.wallets[userID]
	if !ok {
		return 0, ErrNotFound
	}
	if w.BalanceCents != expectedBalance {
		return 0, ErrConcurrentModification
	}

	w.BalanceCents -= amountCents
	w.Version++
	m.append(Entry{
		UserID:        userID,
		Type:          entryType,
		AmountCents:   -amountCents,
		BalanceBefore: expectedBalance,
		BalanceAfter:  w.BalanceCents,
		Reference:     reference,
		ActorID:       actorID,
	})
	return w.BalanceCents, nil
}

func (m *Memory) Credit(_ context.Context, userID string, amountCents int64, entryType EntryType, reference, actorID string) (int64, error) {
	if amountCents <= 0 {
		return 0, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.wallets[userID]
	if !ok {
		return 0, ErrNotFound
	}
	before := w.BalanceCents
	w.BalanceCents += amountCents
	w.Version++
	m.append(Entry{
		UserID:        userID,
		Type:          entryType,
		AmountCents:   amountCents,
		BalanceBefore: before,
		BalanceAfter:  w.BalanceCents,
		Reference:     reference,
		ActorID:       actorID,
	})
	return w.BalanceCents, nil
}

func (m *Memory) Entries(_ context.Context, userID string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.ledger[userID]))
	copy(out, m.ledger[userID])
	return out, nil
}

// append assume m.mu já adquirido.
func (m *Memory) append(e Entry) {
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()
	m.ledger[e.UserID] = append(m.ledger[e.UserID], e)
}
