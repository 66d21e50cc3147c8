package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/radieske/sportsbook-core/internal/betting"
)

func legs(statuses ...betting.SelectionStatus) []betting.Selection {
	out := make([]betting.Selection, len(statuses))
	for i, s := range statuses {
		out[i] = betting.Selection{Odds: 2.0, Status: s}
	}
	return out
}

func TestRollup_Single(t *testing.T) {
	won := betting.Bet{Type: betting.TypeSingle, StakeCents: 1000,
		Selections: []betting.Selection{{Odds: 2.50, Status: betting.SelectionWon}}}
	status, win := Rollup(won)
	assert.Equal(t, betting.BetWon, status)
	assert.Equal(t, int64(2500), win)

	lost := betting.Bet{Type: betting.TypeSingle, StakeCents: 1000,
		Selections: []betting.Selection{{Odds: 2.50, Status: betting.SelectionLost}}}
	status, win = Rollup(lost)
	assert.Equal(t, betting.BetLost, status)
	assert.Equal(t, int64(0), win)

	void := betting.Bet{Type: betting.TypeSingle, StakeCents: 1000,
		Selections: []betting.Selection{{Odds: 2.50, Status: betting.SelectionVoid}}}
	status, win = Rollup(void)
	assert.Equal(t, betting.BetVoid, status)
	assert.Equal(t, int64(1000), win) // reembolso integral do stake
}

func TestRollup_Express(t *testing.T) {
	// qualquer perna perdida derruba a acumulada inteira
	lost := betting.Bet{Type: betting.TypeExpress, StakeCents: 1000,
		Selections: legs(betting.SelectionWon, betting.SelectionLost, betting.SelectionWon)}
	status, win := Rollup(lost)
	assert.Equal(t, betting.BetLost, status)
	assert.Equal(t, int64(0), win)

	// todas ganhas: produto das odds
	won := betting.Bet{Type: betting.TypeExpress, StakeCents: 1000,
		Selections: legs(betting.SelectionWon, betting.SelectionWon)}
	status, win = Rollup(won)
	assert.Equal(t, betting.BetWon, status)
	assert.Equal(t, int64(4000), win) // 1000 * 2.0 * 2.0

	// perna void sai do produto
	mixed := betting.Bet{Type: betting.TypeExpress, StakeCents: 1000,
		Selections: legs(betting.SelectionWon, betting.SelectionVoid, betting.SelectionWon)}
	status, win = Rollup(mixed)
	assert.Equal(t, betting.BetWon, status)
	assert.Equal(t, int64(4000), win)

	// tudo void devolve o stake
	allVoid := betting.Bet{Type: betting.TypeExpress, StakeCents: 1000,
		Selections: legs(betting.SelectionVoid, betting.SelectionVoid)}
	status, win = Rollup(allVoid)
	assert.Equal(t, betting.BetVoid, status)
	assert.Equal(t, int64(1000), win)
}

func TestRollup_SystemFollowsAccumulator(t *testing.T) {
	b := betting.Bet{Type: betting.TypeSystem, StakeCents: 500,
		Selections: legs(betting.SelectionWon, betting.SelectionWon, betting.SelectionLost)}
	status, win := Rollup(b)
	assert.Equal(t, betting.BetLost, status)
	assert.Equal(t, int64(0), win)
}

func TestRollup_PendingLegIsNotRolled(t *testing.T) {
	b := betting.Bet{Type: betting.TypeExpress, StakeCents: 1000,
		Selections: legs(betting.SelectionWon, betting.SelectionPending)}
	status, win := Rollup(b)
	assert.Equal(t, betting.BetPending, status)
	assert.Equal(t, int64(0), win)
}
