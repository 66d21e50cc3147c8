package settlement

import (
	"errors"
	"fmt"

	"github.com/radieske/sportsbook-core/internal/betting"
	"github.com/radieske/sportsbook-core/internal/market"
)

// ErrUnknownMarket: seleção referencia mercado que o settlement não sabe
// resolver — erro estrutural, reportado e a perna anulada (void).
var ErrUnknownMarket = errors.New("unknown market key")

// ResolveSelection decide won/lost/void de uma perna a partir do placar final.
// Retorna também a string de resultado gravada na seleção (ex: "2:1").
func ResolveSelection(marketKey, outcomeKey string, homeScore, awayScore int) (betting.SelectionStatus, string, error) {
	result := fmt.Sprintf("%d:%d", homeScore, awayScore)

	switch marketKey {
	case market.MarketKey1X2:
		return resolve1X2(outcomeKey, homeScore, awayScore), result, nil
	case market.MarketKeyTotals:
		return resolveTotals(outcomeKey, homeScore, awayScore), result, nil
	case market.MarketKeyBTTS:
		return resolveBTTS(outcomeKey, homeScore, awayScore), result, nil
	default:
		return betting.SelectionVoid, result, fmt.Errorf("%w: %s", ErrUnknownMarket, marketKey)
	}
}

func resolve1X2(outcomeKey string, home, away int) betting.SelectionStatus {
	var winner string
	switch {
	case home > away:
		winner = "home"
	case away > home:
		winner = "away"
	default:
		winner = "draw"
	}
	if outcomeKey == winner {
		return betting.SelectionWon
	}
	return betting.SelectionLost
}

// Linha fixa de 2.5 gols: nunca há push.
func resolveTotals(outcomeKey string, home, away int) betting.SelectionStatus {
	total := home + away
	over := total > 2
	if (outcomeKey == "over" && over) || (outcomeKey == "under" && !over) {
		return betting.SelectionWon
	}
	return betting.SelectionLost
}

func resolveBTTS(outcomeKey string, home, away int) betting.SelectionStatus {
	both := home > 0 && away > 0
	if (outcomeKey == "yes" && both) || (outcomeKey == "no" && !both) {
		return betting.SelectionWon
	}
	return betting.SelectionLost
}
