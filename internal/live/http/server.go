package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/live"
	"github.com/radieske/sportsbook-core/internal/market"
)

// Server expõe a API de administração de partidas ao vivo: seed de fixtures,
// start/pause/resume da simulação e suspend/reopen de operador.
type Server struct {
	log   *zap.Logger
	reg   market.Registry
	lc    *market.Lifecycle
	sched *live.Scheduler
}

func NewServer(log *zap.Logger, reg market.Registry, lc *market.Lifecycle, sched *live.Scheduler) *Server {
	return &Server{log: log, reg: reg, lc: lc, sched: sched}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/fixtures", s.createFixture) // POST
	mux.HandleFunc("/fixtures/", s.fixtureOps)   // GET {id} | POST {id}/start|pause|resume|suspend|reopen
	return mux
}

// SeedOutcome / SeedMarket / SeedEvent / SeedFixtureRequest formam o payload
// de criação de uma partida com cronograma e mercados iniciais.
type SeedOutcome struct {
	Key  string  `json:"key"`
	Odds float64 `json:"odds"`
}

type SeedMarket struct {
	Key          string        `json:"key"` // 1x2 | totals_2_5 | btts
	DisplayOrder int           `json:"displayOrder"`
	Outcomes     []SeedOutcome `json:"outcomes"`
}

type SeedEvent struct {
	Type   string `json:"type"` // goal | yellow_card | red_card | substitution
	Minute int    `json:"minute"`
	Second int    `json:"second"`
	Team   string `json:"team"` // home | away
}

type SeedFixtureRequest struct {
	ID        string       `json:"id"`
	HomeTeam  string       `json:"homeTeam"`
	AwayTeam  string       `json:"awayTeam"`
	KickoffAt time.Time    `json:"kickoffAt"`
	Markets   []SeedMarket `json:"markets"`
	Events    []SeedEvent  `json:"events"`
}

// createFixture registra a partida, seus mercados (abertos) e o cronograma
// de eventos da simulação.
func (s *Server) createFixture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req SeedFixtureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.HomeTeam == "" || req.AwayTeam == "" {
		http.Error(w, "homeTeam and awayTeam are required", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	ctx := r.Context()
	f := market.Fixture{
		ID:        req.ID,
		HomeTeam:  req.HomeTeam,
		AwayTeam:  req.AwayTeam,
		Status:    market.FixtureScheduled,
		KickoffAt: req.KickoffAt,
	}
	if err := s.reg.UpsertFixture(ctx, f); err != nil {
		s.writeError(w, err)
		return
	}

	for i, sm := range req.Markets {
		m := market.Market{
			ID:           uuid.NewString(),
			FixtureID:    req.ID,
			Key:          sm.Key,
			Status:       market.MarketOpen,
			DisplayOrder: sm.DisplayOrder,
		}
		if m.DisplayOrder == 0 {
			m.DisplayOrder = i
		}
		for _, so := range sm.Outcomes {
			m.Outcomes = append(m.Outcomes, market.Outcome{
				ID:       uuid.NewString(),
				MarketID: m.ID,
				Key:      so.Key,
				Odds:     so.Odds,
				Status:   market.OutcomeActive,
			})
		}
		if err := s.reg.CreateMarket(ctx, m); err != nil {
			s.writeError(w, err)
			return
		}
	}

	for _, se := range req.Events {
		e := market.MatchEvent{
			ID:        uuid.NewString(),
			FixtureID: req.ID,
			Type:      market.EventType(se.Type),
			Minute:    se.Minute,
			Second:    se.Second,
			Team:      se.Team,
		}
		if err := s.reg.AddEvent(ctx, e); err != nil {
			s.writeError(w, err)
			return
		}
	}

	s.log.Info("fixture seeded",
		zap.String("fixtureId", req.ID),
		zap.Int("markets", len(req.Markets)),
		zap.Int("events", len(req.Events)),
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"fixtureId": req.ID})
}

// fixtureOps roteia GET /fixtures/{id} e os POSTs de ação.
func (s *Server) fixtureOps(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/fixtures/")
	parts := strings.SplitN(rest, "/", 2)
	fixtureID := parts[0]
	if fixtureID == "" {
		http.Error(w, "fixture id required", http.StatusBadRequest)
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.getFixture(w, r, fixtureID)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	actor := r.URL.Query().Get("actorId")

	var err error
	switch parts[1] {
	case "start":
		err = s.sched.StartFixture(ctx, fixtureID)
	case "pause":
		s.sched.SetPaused(fixtureID, true)
	case "resume":
		s.sched.SetPaused(fixtureID, false)
	case "suspend":
		err = s.lc.Suspend(ctx, fixtureID, "operator", actor)
	case "reopen":
		err = s.lc.Reopen(ctx, fixtureID, 1.0, actor) // operador reabre sem repricing
	default:
		http.Error(w, "unknown action", http.StatusNotFound)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getFixture(w http.ResponseWriter, r *http.Request, fixtureID string) {
	ctx := r.Context()
	f, err := s.reg.Fixture(ctx, fixtureID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	mks, err := s.reg.MarketsByFixture(ctx, fixtureID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"fixture": f,
		"markets": mks,
	})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		s.log.Error("live api error", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
