package betting

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/market"
	"github.com/radieske/sportsbook-core/internal/wallet"
)

// Limites de validação do placement.
type Limits struct {
	MinStakeCents int64
	MaxStakeCents int64
	MinTotalOdds  float64
	MaxTotalOdds  float64
}

// DefaultLimits aplica os defaults de produto: odds totais em [1.01, 10000].
func DefaultLimits(minStake, maxStake int64) Limits {
	return Limits{
		MinStakeCents: minStake,
		MaxStakeCents: maxStake,
		MinTotalOdds:  1.01,
		MaxTotalOdds:  10000,
	}
}

// SelectionRequest referencia um outcome; as odds correntes são relidas do
// Registry no momento do placement (preço verdadeiro), não as do quote.
type SelectionRequest struct {
	FixtureID string
	Market    string
	Label     string
}

// PlaceRequest é a entrada da transação de placement.
type PlaceRequest struct {
	UserID     string
	Type       BetType
	StakeCents int64
	Selections []SelectionRequest
}

var (
	placementAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "betting_placements_accepted_total",
		Help: "Apostas aceitas",
	})
	placementRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "betting_placements_rejected_total",
		Help: "Apostas rejeitadas por motivo",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(placementAccepted, placementRejected)
}

// Placer orquestra a transação de placement: validação, débito CAS do saldo,
// criação de bet+seleções e lançamento no ledger — tudo ou nada.
type Placer struct {
	wallets wallet.Store
	bets    Store
	markets market.Registry
	limits  Limits
	log     *zap.Logger
}

func NewPlacer(wallets wallet.Store, bets Store, markets market.Registry, limits Limits, log *zap.Logger) *Placer {
	return &Placer{wallets: wallets, bets: bets, markets: markets, limits: limits, log: log}
}

// Place executa a transação completa. Em caso de falha nenhum estado parcial
// sobrevive: o CAS falhando depois da criação da aposta dispara delete
// compensatório de bet+seleções.
func (p *Placer) Place(ctx context.Context, req PlaceRequest) (*Bet, error) {
	sels, totalOdds, err := p.validate(ctx, req)
	if err != nil {
		placementRejected.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	// Saldo observado na validação condiciona o débito (CAS). Insuficiência
	// estática é erro próprio, antes de qualquer mutação; o caminho de CAS
	// fica reservado pra corrida real.
	w, err := p.wallets.GetOrCreate(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("wallet: %w", err)
	}
	observed := w.BalanceCents
	if observed < req.StakeCents {
		placementRejected.WithLabelValues("insufficient_funds").Inc()
		return nil, wallet.ErrInsufficientFunds
	}

	bet := &Bet{
		UserID:            req.UserID,
		Type:              req.Type,
		StakeCents:        req.StakeCents,
		TotalOdds:         totalOdds,
		PotentialWinCents: PotentialWinnings(req.StakeCents, totalOdds),
		Selections:        sels,
	}
	if err := p.bets.CreatePending(ctx, bet); err != nil {
		return nil, fmt.Errorf("create bet: %w", err)
	}

	if _, err := p.wallets.DebitCAS(ctx, req.UserID, observed, req.StakeCents,
		wallet.EntryStake, bet.ID, ""); err != nil {
		// Rollback compensatório: a aposta nunca pode sobreviver órfã
		if derr := p.bets.Delete(ctx, bet.ID); derr != nil {
			p.log.Error("compensating delete failed",
				zap.String("betId", bet.ID), zap.Error(derr))
		}
		placementRejected.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	placementAccepted.Inc()
	p.log.Info("bet placed",
		zap.String("betId", bet.ID),
		zap.String("userId", req.UserID),
		zap.String("type", string(req.Type)),
		zap.Int64("stakeCents", req.StakeCents),
		zap.Float64("totalOdds", totalOdds),
	)
	return bet, nil
}

// validate checa o request sem mutar nada e materializa as seleções com o
// preço corrente do Registry.
func (p *Placer) validate(ctx context.Context, req PlaceRequest) ([]Selection, float64, error) {
	if req.UserID == "" {
		return nil, 0, fmt.Errorf("%w: userId required", ErrValidation)
	}
	if req.StakeCents < p.limits.MinStakeCents || req.StakeCents > p.limits.MaxStakeCents {
		return nil, 0, fmt.Errorf("%w: stake %d out of [%d,%d]",
			ErrValidation, req.StakeCents, p.limits.MinStakeCents, p.limits.MaxStakeCents)
	}

	switch req.Type {
	case TypeSingle:
		if len(req.Selections) != 1 {
			return nil, 0, fmt.Errorf("%w: single bet requires exactly 1 selection", ErrValidation)
		}
	case TypeExpress, TypeSystem:
		if len(req.Selections) < 2 {
			return nil, 0, fmt.Errorf("%w: %s bet requires at least 2 selections", ErrValidation, req.Type)
		}
	default:
		return nil, 0, fmt.Errorf("%w: unknown bet type %q", ErrValidation, req.Type)
	}

	sels := make([]Selection, 0, len(req.Selections))
	for _, sr := range req.Selections {
		mkt, oc, err := p.markets.OutcomeByKey(ctx, sr.FixtureID, sr.Market, sr.Label)
		if err != nil {
			if errors.Is(err, market.ErrNotFound) {
				return nil, 0, fmt.Errorf("%w: %s/%s/%s", market.ErrMarketUnavailable,
					sr.FixtureID, sr.Market, sr.Label)
			}
			return nil, 0, err
		}
		if mkt.Status != market.MarketOpen || oc.Status != market.OutcomeActive {
			return nil, 0, fmt.Errorf("%w: %s/%s is %s", market.ErrMarketUnavailable,
				sr.Market, sr.Label, mkt.Status)
		}
		sels = append(sels, Selection{
			FixtureID: sr.FixtureID,
			Market:    sr.Market,
			Label:     sr.Label,
			Odds:      oc.Odds,
		})
	}

	totalOdds := TotalOdds(sels)
	if totalOdds < p.limits.MinTotalOdds || totalOdds > p.limits.MaxTotalOdds {
		return nil, 0, fmt.Errorf("%w: total odds %.2f out of [%.2f,%.2f]",
			ErrValidation, totalOdds, p.limits.MinTotalOdds, p.limits.MaxTotalOdds)
	}
	return sels, totalOdds, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, wallet.ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, market.ErrMarketUnavailable):
		return "market_unavailable"
	default:
		return "internal"
	}
}
