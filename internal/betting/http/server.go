package http

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/betting"
	"github.com/radieske/sportsbook-core/internal/betting/dto"
	"github.com/radieske/sportsbook-core/internal/betting/odds"
	"github.com/radieske/sportsbook-core/internal/market"
	"github.com/radieske/sportsbook-core/internal/wallet"
)

// Tolerância de drift entre a odd vista no quote e a odd cacheada.
const oddsDriftTolerance = 0.001

// Server expõe a API HTTP de apostas e carteira.
type Server struct {
	log     *zap.Logger
	placer  *betting.Placer
	bets    betting.Store
	wallets wallet.Store
	odds    *odds.Cache
}

func NewServer(log *zap.Logger, placer *betting.Placer, bets betting.Store, wallets wallet.Store, oddsCache *odds.Cache) *Server {
	return &Server{log: log, placer: placer, bets: bets, wallets: wallets, odds: oddsCache}
}

// Router retorna o mux HTTP com as rotas da API.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/bets", s.placeBet)              // POST
	mux.HandleFunc("/bets/", s.getBet)               // GET /bets/{id}
	mux.HandleFunc("/wallet", s.getWallet)           // GET ?userId=...
	mux.HandleFunc("/wallet/deposit", s.deposit)     // POST
	mux.HandleFunc("/wallet/withdraw", s.withdraw)   // POST
	mux.HandleFunc("/wallet/ledger", s.getLedger)    // GET ?userId=...
	return mux
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.StakeCents <= 0 || len(req.Selections) == 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	// Pré-validação rápida de preço no cache; a validação autoritativa
	// acontece dentro da transação de placement, contra o Registry.
	if s.odds != nil {
		for _, sel := range req.Selections {
			if sel.SeenOdds <= 0 {
				continue
			}
			cur, err := s.odds.CurrentOdd(r.Context(), sel.FixtureID, sel.Market, sel.Selection)
			if err != nil || cur == 0 {
				continue // cache indisponível/frio não bloqueia
			}
			if math.Abs(cur-sel.SeenOdds) > oddsDriftTolerance {
				http.Error(w, "odds changed; re-quote required", http.StatusConflict)
				return
			}
		}
	}

	sels := make([]betting.SelectionRequest, 0, len(req.Selections))
	for _, sel := range req.Selections {
		sels = append(sels, betting.SelectionRequest{
			FixtureID: sel.FixtureID,
			Market:    sel.Market,
			Label:     sel.Selection,
		})
	}

	bet, err := s.placer.Place(r.Context(), betting.PlaceRequest{
		UserID:     req.UserID,
		Type:       betting.BetType(req.BetType),
		StakeCents: req.StakeCents,
		Selections: sels,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, toBetResponse(*bet))
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Path[len("/bets/"):]
	if id == "" {
		http.Error(w, "betId required", http.StatusBadRequest)
		return
	}
	bet, err := s.bets.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, toBetResponse(bet))
}

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}
	wal, err := s.wallets.GetOrCreate(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.WalletResponse{UserID: userID, WalletID: wal.ID, BalanceCents: wal.BalanceCents})
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.AmountCents <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	wal, err := s.wallets.GetOrCreate(r.Context(), req.UserID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	bal, err := s.wallets.Credit(r.Context(), req.UserID, req.AmountCents,
		wallet.EntryDeposit, req.ExternalRef, "")
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, dto.WalletResponse{UserID: req.UserID, WalletID: wal.ID, BalanceCents: bal})
}

// withdraw debita via CAS; em corrida relê o saldo e tenta de novo
// (o retry é responsabilidade do caller do CAS, não do store).
func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	var req dto.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.AmountCents <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	const casRetries = 3
	var lastErr error
	for i := 0; i < casRetries; i++ {
		observed, err := s.wallets.Balance(r.Context(), req.UserID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if observed < req.AmountCents {
			s.writeError(w, wallet.ErrInsufficientFunds)
			return
		}
		bal, err := s.wallets.DebitCAS(r.Context(), req.UserID, observed, req.AmountCents,
			wallet.EntryWithdrawal, req.ExternalRef, "")
		if err == nil {
			wal, _ := s.wallets.GetOrCreate(r.Context(), req.UserID)
			writeJSON(w, dto.WalletResponse{UserID: req.UserID, WalletID: wal.ID, BalanceCents: bal})
			return
		}
		lastErr = err
		if !errors.Is(err, wallet.ErrConcurrentModification) {
			break
		}
	}
	s.writeError(w, lastErr)
}

func (s *Server) getLedger(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}
	entries, err := s.wallets.Entries(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]dto.LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.LedgerEntryResponse{
			Type:          string(e.Type),
			AmountCents:   e.AmountCents,
			BalanceBefore: e.BalanceBefore,
			BalanceAfter:  e.BalanceAfter,
			Reference:     e.Reference,
			CreatedAt:     e.CreatedAt,
		})
	}
	writeJSON(w, out)
}

// writeError traduz a taxonomia de erros do core pra status HTTP, mantendo o
// motivo visível pro cliente re-cotar quando fizer sentido.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, betting.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, wallet.ErrInsufficientFunds):
		http.Error(w, "insufficient funds", http.StatusPaymentRequired)
	case errors.Is(err, wallet.ErrConcurrentModification):
		http.Error(w, "balance changed, retry", http.StatusConflict)
	case errors.Is(err, market.ErrMarketUnavailable):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, wallet.ErrNotFound), errors.Is(err, betting.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		s.log.Error("internal error", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toBetResponse(b betting.Bet) dto.BetResponse {
	sels := make([]dto.SelectionResponse, 0, len(b.Selections))
	for _, sel := range b.Selections {
		sels = append(sels, dto.SelectionResponse{
			FixtureID: sel.FixtureID,
			Market:    sel.Market,
			Selection: sel.Label,
			Odds:      sel.Odds,
			Status:    string(sel.Status),
			Result:    sel.Result,
		})
	}
	return dto.BetResponse{
		BetID:             b.ID,
		UserID:            b.UserID,
		BetType:           string(b.Type),
		StakeCents:        b.StakeCents,
		TotalOdds:         b.TotalOdds,
		PotentialWinCents: b.PotentialWinCents,
		ActualWinCents:    b.ActualWinCents,
		Status:            string(b.Status),
		PlacedAt:          b.PlacedAt,
		SettledAt:         b.SettledAt,
		Selections:        sels,
	}
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
