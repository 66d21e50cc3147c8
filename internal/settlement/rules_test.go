package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sportsbook-core/internal/betting"
	"github.com/radieske/sportsbook-core/internal/market"
)

func TestResolveSelection(t *testing.T) {
	cases := []struct {
		name       string
		marketKey  string
		outcomeKey string
		home, away int
		want       betting.SelectionStatus
	}{
		{"1x2 home vence", market.MarketKey1X2, "home", 2, 1, betting.SelectionWon},
		{"1x2 home perde", market.MarketKey1X2, "home", 1, 2, betting.SelectionLost},
		{"1x2 empate", market.MarketKey1X2, "draw", 1, 1, betting.SelectionWon},
		{"1x2 empate perde aposta no home", market.MarketKey1X2, "home", 0, 0, betting.SelectionLost},
		{"over 2.5 com 3 gols", market.MarketKeyTotals, "over", 2, 1, betting.SelectionWon},
		{"over 2.5 com 2 gols", market.MarketKeyTotals, "over", 1, 1, betting.SelectionLost},
		{"under 2.5 com 2 gols", market.MarketKeyTotals, "under", 2, 0, betting.SelectionWon},
		{"under 2.5 com 4 gols", market.MarketKeyTotals, "under", 2, 2, betting.SelectionLost},
		{"btts sim com ambos marcando", market.MarketKeyBTTS, "yes", 1, 1, betting.SelectionWon},
		{"btts sim com um zerado", market.MarketKeyBTTS, "yes", 3, 0, betting.SelectionLost},
		{"btts não com um zerado", market.MarketKeyBTTS, "no", 3, 0, betting.SelectionWon},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, result, err := ResolveSelection(tc.marketKey, tc.outcomeKey, tc.home, tc.away)
			require.NoError(t, err)
			assert.Equal(t, tc.want, status)
			assert.NotEmpty(t, result)
		})
	}
}

func TestResolveSelection_ResultString(t *testing.T) {
	_, result, err := ResolveSelection(market.MarketKey1X2, "home", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, "2:1", result)
}

// Mercado desconhecido é erro estrutural: perna anulada e erro reportado.
func TestResolveSelection_UnknownMarket(t *testing.T) {
	status, _, err := ResolveSelection("correct_score", "2:0", 2, 0)
	assert.ErrorIs(t, err, ErrUnknownMarket)
	assert.Equal(t, betting.SelectionVoid, status)
}
