package settlement

import "github.com/radieske/sportsbook-core/internal/betting"

// rollupFunc reduz os status das seleções ao status terminal da aposta e ao
// ganho em centavos. Variante fechada por tipo de aposta, sem branching ad hoc.
type rollupFunc func(b betting.Bet) (betting.BetStatus, int64)

var rollups = map[betting.BetType]rollupFunc{
	betting.TypeSingle:  rollupSingle,
	betting.TypeExpress: rollupAccumulator,
	// system segue o rollup de acumulada: qualquer perna perdida derruba a
	// aposta; pernas void saem do produto de odds.
	betting.TypeSystem: rollupAccumulator,
}

// Rollup aplica a função da variante. Pressupõe todas as seleções resolvidas.
func Rollup(b betting.Bet) (betting.BetStatus, int64) {
	fn, ok := rollups[b.Type]
	if !ok {
		fn = rollupSingle
	}
	return fn(b)
}

func rollupSingle(b betting.Bet) (betting.BetStatus, int64) {
	s := b.Selections[0]
	switch s.Status {
	case betting.SelectionWon:
		return betting.BetWon, betting.PotentialWinnings(b.StakeCents, s.Odds)
	case betting.SelectionVoid:
		return betting.BetVoid, b.StakeCents
	default:
		return betting.BetLost, 0
	}
}

// rollupAccumulator: uma perna perdida perde tudo; void remove a perna do
// produto (ajuste de stake); tudo void devolve o stake integral.
func rollupAccumulator(b betting.Bet) (betting.BetStatus, int64) {
	odds := 1.0
	wonLegs := 0
	for _, s := range b.Selections {
		switch s.Status {
		case betting.SelectionLost:
			return betting.BetLost, 0
		case betting.SelectionWon:
			odds *= s.Odds
			wonLegs++
		case betting.SelectionVoid:
			// fator 1: perna anulada não multiplica nem derruba
		default:
			// pendente — o caller não deveria ter chamado; trate como lost-safe
			return betting.BetPending, 0
		}
	}
	if wonLegs == 0 {
		return betting.BetVoid, b.StakeCents
	}
	return betting.BetWon, betting.PotentialWinnings(b.StakeCents, odds)
}
