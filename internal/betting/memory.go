package betting

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory implementa Store em memória com as mesmas transições condicionais
// do Postgres. Usado em testes e execução local.
type Memory struct {
	mu   sync.Mutex
	bets map[string]*Bet
}

func NewMemory() *Memory {
	return &Memory{bets: make(map[string]*Bet)}
}

func (m *Memory) CreatePending(_ context.Context, b *Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.Status = BetPending
	b.PlacedAt = time.Now().UTC()
	for i := range b.Selections {
		if b.Selections[i].ID == "" {
			b.Selections[i].ID = uuid.NewString()
		}
		b.Selections[i].BetID = b.ID
		b.Selections[i].Status = SelectionPending
	}
	cp := copyBet(b)
	m.bets[b.ID] = &cp
	return nil
}

func (m *Memory) Delete(_ context.Context, betID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bets, betID)
	return nil
}

func (m *Memory) Get(_ context.Context, betID string) (Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bets[betID]
	if !ok {
		return Bet{}, ErrNotFound
	}
	return copyBet(b), nil
}

func (m *Memory) ByUser(_ context.Context, userID string) ([]Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Bet
	for _, b := range m.bets {
		if b.UserID == userID {
			out = append(out, copyBet(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.After(out[j].PlacedAt) })
	return out, nil
}

func (m *Memory) PendingByFixture(_ context.Context, fixtureID string) ([]Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Bet
	for _, b := range m.bets {
		if b.Status != BetPending {
			continue
		}
		for _, s := range b.Selections {
			if s.FixtureID == fixtureID {
				out = append(out, copyBet(b))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.Before(out[j].PlacedAt) })
	return out, nil
}

func (m *Memory) SettleSelection(_ context.Context, selectionID string, status SelectionStatus, result string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bets {
		for i := range b.Selections {
			if b.Selections[i].ID != selectionID {
				continue
			}
			if b.Selections[i].Status != SelectionPending {
				return false, nil
			}
			b.Selections[i].Status = status
			b.Selections[i].Result = result
			return true, nil
		}
	}
	return false, ErrNotFound
}

func (m *Memory) SettleBet(_ context.Context, betID string, status BetStatus, actualWinCents int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bets[betID]
	if !ok {
		return false, ErrNotFound
	}
	if b.Status != BetPending {
		return false, nil
	}
	now := time.Now().UTC()
	b.Status = status
	b.ActualWinCents = actualWinCents
	b.SettledAt = &now
	return true, nil
}

func copyBet(b *Bet) Bet {
	cp := *b
	cp.Selections = make([]Selection, len(b.Selections))
	copy(cp.Selections, b.Selections)
	if b.SettledAt != nil {
		t := *b.SettledAt
		cp.SettledAt = &t
	}
	return cp
}
