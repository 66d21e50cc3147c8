package betting

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/market"
	"github.com/radieske/sportsbook-core/internal/wallet"
)

func seedFixtureWithMarkets(t *testing.T, reg market.Registry, fixtureID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, reg.UpsertFixture(ctx, market.Fixture{
		ID: fixtureID, HomeTeam: "Grêmio", AwayTeam: "Inter", Status: market.FixtureScheduled,
	}))
	require.NoError(t, reg.CreateMarket(ctx, market.Market{
		FixtureID: fixtureID,
		Key:       market.MarketKey1X2,
		Outcomes: []market.Outcome{
			{Key: "home", Odds: 2.50},
			{Key: "draw", Odds: 3.10},
			{Key: "away", Odds: 2.80},
		},
	}))
	require.NoError(t, reg.CreateMarket(ctx, market.Market{
		FixtureID: fixtureID,
		Key:       market.MarketKeyTotals,
		Outcomes: []market.Outcome{
			{Key: "over", Odds: 1.90},
			{Key: "under", Odds: 1.90},
		},
	}))
}

func newTestPlacer(t *testing.T) (*Placer, *wallet.Memory, *Memory, *market.Memory) {
	t.Helper()
	wallets := wallet.NewMemory()
	bets := NewMemory()
	reg := market.NewMemory()
	p := NewPlacer(wallets, bets, reg, DefaultLimits(100, 10_000_000), zap.NewNop())
	return p, wallets, bets, reg
}

func fundUser(t *testing.T, w *wallet.Memory, userID string, cents int64) {
	t.Helper()
	ctx := context.Background()
	_, err := w.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	_, err = w.Credit(ctx, userID, cents, wallet.EntryDeposit, "seed", "")
	require.NoError(t, err)
}

func TestPlacer_Place_Single(t *testing.T) {
	ctx := context.Background()
	p, wallets, _, reg := newTestPlacer(t)
	seedFixtureWithMarkets(t, reg, "fx1")
	fundUser(t, wallets, "u1", 5000)

	bet, err := p.Place(ctx, PlaceRequest{
		UserID:     "u1",
		Type:       TypeSingle,
		StakeCents: 1000,
		Selections: []SelectionRequest{{FixtureID: "fx1", Market: market.MarketKey1X2, Label: "home"}},
	})
	require.NoError(t, err)

	assert.Equal(t, BetPending, bet.Status)
	assert.InDelta(t, 2.50, bet.TotalOdds, 1e-9)
	assert.Equal(t, int64(2500), bet.PotentialWinCents)

	bal, _ := wallets.Balance(ctx, "u1")
	assert.Equal(t, int64(4000), bal)

	entries, _ := wallets.Entries(ctx, "u1")
	last := entries[len(entries)-1]
	assert.Equal(t, wallet.EntryStake, last.Type)
	assert.Equal(t, int64(-1000), last.AmountCents)
	assert.Equal(t, bet.ID, last.Reference)
}

func TestPlacer_Place_Validation(t *testing.T) {
	ctx := context.Background()
	p, wallets, _, reg := newTestPlacer(t)
	seedFixtureWithMarkets(t, reg, "fx1")
	fundUser(t, wallets, "u1", 100_000)

	one := []SelectionRequest{{FixtureID: "fx1", Market: market.MarketKey1X2, Label: "home"}}
	two := []SelectionRequest{
		{FixtureID: "fx1", Market: market.MarketKey1X2, Label: "home"},
		{FixtureID: "fx1", Market: market.MarketKeyTotals, Label: "over"},
	}

	cases := []struct {
		name string
		req  PlaceRequest
	}{
		{"sem userId", PlaceRequest{Type: TypeSingle, StakeCents: 1000, Selections: one}},
		{"stake abaixo do mínimo", PlaceRequest{UserID: "u1", Type: TypeSingle, StakeCents: 50, Selections: one}},
		{"stake acima do máximo", PlaceRequest{UserID: "u1", Type: TypeSingle, StakeCents: 99_000_000, Selections: one}},
		{"single com 2 seleções", PlaceRequest{UserID: "u1", Type: TypeSingle, StakeCents: 1000, Selections: two}},
		{"express com 1 seleção", PlaceRequest{UserID: "u1", Type: TypeExpress, StakeCents: 1000, Selections: one}},
		{"tipo desconhecido", PlaceRequest{UserID: "u1", Type: "parlay", StakeCents: 1000, Selections: one}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Place(ctx, tc.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	// validação nunca muta o saldo
	bal, _ := wallets.Balance(ctx, "u1")
	assert.Equal(t, int64(100_000), bal)
}

func TestPlacer_Place_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	p, wallets, bets, reg := newTestPlacer(t)
	seedFixtureWithMarkets(t, reg, "fx1")
	fundUser(t, wallets, "u1", 500)

	_, err := p.Place(ctx, PlaceRequest{
		UserID:     "u1",
		Type:       TypeSingle,
		StakeCents: 1000,
		Selections: []SelectionRequest{{FixtureID: "fx1", Market: market.MarketKey1X2, Label: "home"}},
	})
	assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	// nada foi criado nem debitado
	bal, _ := wallets.Balance(ctx, "u1")
	assert.Equal(t, int64(500), bal)
	userBets, _ := bets.ByUser(ctx, "u1")
	assert.Empty(t, userBets)
}

func TestPlacer_Place_SuspendedMarket(t *testing.T) {
	ctx := context.Background()
	p, wallets, _, reg := newTestPlacer(t)
	seedFixtureWithMarkets(t, reg, "fx1")
	fundUser(t, wallets, "u1", 5000)
	require.NoError(t, reg.SuspendMarkets(ctx, "fx1"))

	_, err := p.Place(ctx, PlaceRequest{
		UserID:     "u1",
		Type:       TypeSingle,
		StakeCents: 1000,
		Selections: []SelectionRequest{{FixtureID: "fx1", Market: market.MarketKey1X2, Label: "home"}},
	})
	assert.ErrorIs(t, err, market.ErrMarketUnavailable)
}

func TestPlacer_Place_UnknownOutcome(t *testing.T) {
	ctx := context.Background()
	p, wallets, _, reg := newTestPlacer(t)
	seedFixtureWithMarkets(t, reg, "fx1")
	fundUser(t, wallets, "u1", 5000)

	_, err := p.Place(ctx, PlaceRequest{
		UserID:     "u1",
		Type:       TypeSingle,
		StakeCents: 1000,
		Selections: []SelectionRequest{{FixtureID: "fx1", Market: market.MarketKey1X2, Label: "nope"}},
	})
	assert.ErrorIs(t, err, market.ErrMarketUnavailable)
}

// staleWallet força a corrida: o saldo observado no placement fica defasado,
// então o CAS do débito tem que falhar.
type staleWallet struct {
	*wallet.Memory
	staleBalance int64
}

func (s *staleWallet) GetOrCreate(ctx context.Context, userID string) (wallet.Wallet, error) {
	w, err := s.Memory.GetOrCreate(ctx, userID)
	w.BalanceCents = s.staleBalance
	return w, err
}

func TestPlacer_Place_CASFailureCompensates(t *testing.T) {
	ctx := context.Background()
	inner := wallet.NewMemory()
	fundUser(t, inner, "u1", 2000)

	bets := NewMemory()
	reg := market.NewMemory()
	seedFixtureWithMarkets(t, reg, "fx1")

	p := NewPlacer(&staleWallet{Memory: inner, staleBalance: 9999}, bets, reg,
		DefaultLimits(100, 10_000_000), zap.NewNop())

	_, err := p.Place(ctx, PlaceRequest{
		UserID:     "u1",
		Type:       TypeSingle,
		StakeCents: 1000,
		Selections: []SelectionRequest{{FixtureID: "fx1", Market: market.MarketKey1X2, Label: "home"}},
	})
	assert.ErrorIs(t, err, wallet.ErrConcurrentModification)

	// estado parcial não sobrevive: aposta órfã deletada, saldo intacto
	userBets, _ := bets.ByUser(ctx, "u1")
	assert.Empty(t, userBets)
	bal, _ := inner.Balance(ctx, "u1")
	assert.Equal(t, int64(2000), bal)
}

// N placements concorrentes disputando saldo de um único stake: exatamente
// um vence; os demais caem em CAS ou insuficiência, sem débito duplo.
func TestPlacer_Place_ConcurrentSingleStake(t *testing.T) {
	ctx := context.Background()
	p, wallets, bets, reg := newTestPlacer(t)
	seedFixtureWithMarkets(t, reg, "fx1")
	fundUser(t, wallets, "u1", 1000)

	const n = 8
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := p.Place(ctx, PlaceRequest{
				UserID:     "u1",
				Type:       TypeSingle,
				StakeCents: 1000,
				Selections: []SelectionRequest{{FixtureID: "fx1", Market: market.MarketKey1X2, Label: "home"}},
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	bal, _ := wallets.Balance(ctx, "u1")
	assert.Equal(t, int64(0), bal)
	userBets, _ := bets.ByUser(ctx, "u1")
	assert.Len(t, userBets, 1)

	// ledger fecha: depósito + exatamente um stake
	entries, _ := wallets.Entries(ctx, "u1")
	var sum int64
	for _, e := range entries {
		sum += e.AmountCents
	}
	assert.Equal(t, int64(0), sum)
}

func TestTotalOdds_And_PotentialWinnings(t *testing.T) {
	sels := []Selection{{Odds: 2.50}, {Odds: 1.90}}
	assert.InDelta(t, 4.75, TotalOdds(sels), 1e-9)
	assert.Equal(t, int64(2500), PotentialWinnings(1000, 2.50))
	assert.Equal(t, int64(333), PotentialWinnings(100, 3.333))
}
