package market

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory implementa Registry em memória com a mesma semântica condicional
// dos UPDATEs do Postgres. Usado em testes e execução local.
type Memory struct {
	mu       sync.Mutex
	fixtures map[string]*Fixture
	markets  map[string]*Market // marketID -> market (outcomes inline)
	events   map[string]*MatchEvent
}

func NewMemory() *Memory {
	return &Memory{
		fixtures: make(map[string]*Fixture),
		markets:  make(map[string]*Market),
		events:   make(map[string]*MatchEvent),
	}
}

func (m *Memory) Fixture(_ context.Context, id string) (Fixture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fixtures[id]
	if !ok {
		return Fixture{}, ErrNotFound
	}
	return *f, nil
}

func (m *Memory) UpsertFixture(_ context.Context, f Fixture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	cp := f
	m.fixtures[f.ID] = &cp
	return nil
}

func (m *Memory) SetFixtureStatus(_ context.Context, id string, status FixtureStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fixtures[id]
	if !ok {
		return ErrNotFound
	}
	f.Status = status
	return nil
}

func (m *Memory) SetScore(_ context.Context, id string, home, away int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fixtures[id]
	if !ok {
		return ErrNotFound
	}
	f.HomeScore, f.AwayScore = home, away
	return nil
}

func (m *Memory) EventsByFixture(_ context.Context, fixtureID string) ([]MatchEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MatchEvent
	for _, e := range m.events {
		if e.FixtureID == fixtureID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Minute != out[j].Minute {
			return out[i].Minute < out[j].Minute
		}
		if out[i].Second != out[j].Second {
			return out[i].Second < out[j].Second
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) AddEvent(_ context.Context, e MatchEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Executed = false
	cp := e
	m.events[e.ID] = &cp
	return nil
}

func (m *Memory) MarkEventExecuted(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok {
		return false, ErrNotFound
	}
	if e.Executed {
		return false, nil
	}
	e.Executed = true
	return true, nil
}

func (m *Memory) MarketsByFixture(_ context.Context, fixtureID string) ([]Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Market
	for _, mk := range m.markets {
		if mk.FixtureID == fixtureID {
			out = append(out, copyMarket(mk))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (m *Memory) CreateMarket(_ context.Context, mk Market) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mk.ID == "" {
		mk.ID = uuid.NewString()
	}
	if mk.Status == "" {
		mk.Status = MarketOpen
	}
	for i := range mk.Outcomes {
		if mk.Outcomes[i].ID == "" {
			mk.Outcomes[i].ID = uuid.NewString()
		}
		if mk.Outcomes[i].Status == "" {
			mk.Outcomes[i].Status = OutcomeActive
		}
		mk.Outcomes[i].MarketID = mk.ID
	}
	cp := copyMarket(&mk)
	m.markets[mk.ID] = &cp
	return nil
}

func (m *Memory) OutcomeByKey(_ context.Context, fixtureID, marketKey, outcomeKey string) (Market, Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mk := range m.markets {
		if mk.FixtureID != fixtureID || mk.Key != marketKey {
			continue
		}
		for _, o := range mk.Outcomes {
			if o.Key == outcomeKey {
				return copyMarket(mk), o, nil
			}
		}
	}
	return Market{}, Outcome{}, ErrNotFound
}

func (m *Memory) SuspendMarkets(_ context.Context, fixtureID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mk := range m.markets {
		if mk.FixtureID != fixtureID || mk.Status != MarketOpen {
			continue
		}
		mk.Status = MarketSuspended
		for i := range mk.Outcomes {
			if mk.Outcomes[i].Status == OutcomeActive {
				mk.Outcomes[i].Status = OutcomeSuspended
			}
		}
	}
	return nil
}

func (m *Memory) ReopenMarkets(_ context.Context, fixtureID string, oddsShift float64) error {
	if oddsShift <= 0 {
		oddsShift = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mk := range m.markets {
		if mk.FixtureID != fixtureID || mk.Status != MarketSuspended {
			continue
		}
		mk.Status = MarketOpen
		for i := range mk.Outcomes {
			if mk.Outcomes[i].Status != OutcomeSuspended {
				continue
			}
			mk.Outcomes[i].Status = OutcomeActive
			odds := math.Round(mk.Outcomes[i].Odds*oddsShift*100) / 100
			if odds < 1.01 {
				odds = 1.01
			}
			mk.Outcomes[i].Odds = odds
		}
	}
	return nil
}

func (m *Memory) SettleMarkets(_ context.Context, fixtureID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mk := range m.markets {
		if mk.FixtureID != fixtureID || mk.Status == MarketSettled {
			continue
		}
		mk.Status = MarketSettled
		for i := range mk.Outcomes {
			mk.Outcomes[i].Status = OutcomeSettled
		}
	}
	return nil
}

func copyMarket(mk *Market) Market {
	cp := *mk
	cp.Outcomes = make([]Outcome, len(mk.Outcomes))
	copy(cp.Outcomes, mk.Outcomes)
	return cp
}
