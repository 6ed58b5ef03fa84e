/*
Package api
File: handlers.go
Description:
    Contains the HTTP handlers for the REST API.
    These functions decode incoming JSON requests, validate them,
    drive the Session (imported from internal/session), and return JSON responses.

    Key Responsibilities:
    - Input Validation (Is the JSON valid? Does the building exist?)
    - State Modification (Purchases, manual synthesis, save/load)
    - Read Views (State snapshot enriched with next costs and affordability)
*/

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/everforgeworks/quantum-incremental/internal/game"
	"github.com/everforgeworks/quantum-incremental/internal/save"
	"github.com/everforgeworks/quantum-incremental/internal/session"
)

// Request DTOs (Data Transfer Objects)
// These structs define exactly what we expect the client to send us.

type BuyBuildingRequest struct {
	BuildingID string `json:"building_id"`
}

type BuyUpgradeRequest struct {
	UpgradeID string `json:"upgrade_id"`
}

type ImportRequest struct {
	Save string `json:"save"`
}

type AutosaveRequest struct {
	Enabled bool `json:"enabled"`
}

// Response DTOs

type CostQuoteResponse struct {
	BuildingID string         `json:"building_id"`
	Cost       game.Resources `json:"cost"`
	CanAfford  bool           `json:"can_afford"`
}

type BuyMaxResponse struct {
	Bought int       `json:"bought"`
	State  StateView `json:"state"`
}

type SynthResponse struct {
	Gained float64   `json:"gained"`
	State  StateView `json:"state"`
}

type ExportResponse struct {
	Save string `json:"save"`
}

// BuildingView is one owned building as the UI renders it.
type BuildingView struct {
	game.BuildingTemplate
	Amount           int            `json:"amount"`
	OutputMultiplier float64        `json:"output_multiplier"`
	UpkeepModifier   float64        `json:"upkeep_modifier"`
	NextCost         game.Resources `json:"next_cost"`
	CanAfford        bool           `json:"can_afford"`
	Rates            game.Resources `json:"rates"` // Net per second for the whole stack
}

// UpgradeView is one catalog upgrade with its purchase status.
type UpgradeView struct {
	game.UpgradeTemplate
	Applied   bool `json:"applied"`
	CanAfford bool `json:"can_afford"`
}

// StateView is the read model served by GET /api/state and the websocket pulse.
type StateView struct {
	Resources  game.Resources `json:"resources"`
	Totals     game.Resources `json:"totals"`
	Rates      game.Resources `json:"rates"`
	ClickPower float64        `json:"click_power"`
	Ticks      uint64         `json:"ticks"`
	Autosave   bool           `json:"autosave"`
	Buildings  []BuildingView `json:"buildings"`
	Upgrades   []UpgradeView  `json:"upgrades"`
}

// BuildView derives the read model from one consistent snapshot.
// Buildings and upgrades without a catalog template are skipped.
func BuildView(c *game.Catalog, st game.GameState, ticks uint64) StateView {
	v := StateView{
		Resources:  st.Resources,
		Totals:     st.Totals,
		Rates:      game.ProductionRates(c, st.Buildings),
		ClickPower: st.ClickPower,
		Ticks:      ticks,
		Autosave:   st.Settings.Autosave,
		Buildings:  make([]BuildingView, 0, len(st.Buildings)),
		Upgrades:   make([]UpgradeView, 0, len(st.Upgrades)),
	}
	for _, b := range st.Buildings {
		t := c.GetBuilding(b.ID)
		if t == nil {
			continue
		}
		next := game.CostOf(t.BaseCost, t.CostScale, b.Amount)
		v.Buildings = append(v.Buildings, BuildingView{
			BuildingTemplate: *t,
			Amount:           b.Amount,
			OutputMultiplier: b.OutputMultiplier,
			UpkeepModifier:   b.UpkeepModifier,
			NextCost:         next,
			CanAfford:        game.CanAfford(next, st.Resources),
			Rates:            game.BuildingRates(t, b),
		})
	}
	for _, u := range st.Upgrades {
		t := c.GetUpgrade(u.ID)
		if t == nil {
			continue
		}
		v.Upgrades = append(v.Upgrades, UpgradeView{
			UpgradeTemplate: *t,
			Applied:         u.Applied,
			CanAfford:       !u.Applied && game.CanAfford(t.Cost, st.Resources),
		})
	}
	return v
}

// historian is implemented by stores that keep past revisions.
type historian interface {
	History(ctx context.Context) ([]save.Revision, error)
}

// ServerOptions tunes a Server.
type ServerOptions struct {
	ClickRate  float64 // Manual synth requests per second
	ClickBurst int
	Logger     *log.Logger
}

// Server exposes one Session over HTTP and pushes snapshots to the Hub.
type Server struct {
	session *session.Session
	hub     *Hub
	clicks  *rate.Limiter
	log     *log.Logger
}

func NewServer(s *session.Session, hub *Hub, opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	limit := rate.Inf
	if opts.ClickRate > 0 {
		limit = rate.Limit(opts.ClickRate)
	}
	if opts.ClickBurst <= 0 {
		opts.ClickBurst = 1
	}
	return &Server{
		session: s,
		hub:     hub,
		clicks:  rate.NewLimiter(limit, opts.ClickBurst),
		log:     opts.Logger,
	}
}

// Routes registers every endpoint on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Information Endpoints
	mux.HandleFunc("GET /api/state", s.handleGetState)
	mux.HandleFunc("GET /api/catalog", s.handleGetCatalog)
	mux.HandleFunc("GET /api/buildings/cost", s.handleCostQuote)

	// Action Endpoints
	mux.HandleFunc("POST /api/buildings/buy", s.handleBuyBuilding)
	mux.HandleFunc("POST /api/buildings/buy_max", s.handleBuyMax)
	mux.HandleFunc("POST /api/upgrades/buy", s.handleBuyUpgrade)
	mux.HandleFunc("POST /api/synth", s.handleSynth)
	mux.HandleFunc("POST /api/settings/autosave", s.handleSetAutosave)

	// Persistence Endpoints
	mux.HandleFunc("POST /api/save", s.handleSave)
	mux.HandleFunc("POST /api/load", s.handleLoad)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("GET /api/saves/history", s.handleHistory)

	// Real-Time WebSocket Endpoint
	if s.hub != nil {
		mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			ServeWs(s.hub, w, r)
		})
	}
	return mux
}

// View snapshots the session into the read model.
func (s *Server) View() StateView {
	return BuildView(s.session.Catalog(), s.session.State(), s.session.Ticks())
}

// Pulse pushes the current snapshot to every websocket client.
func (s *Server) Pulse() {
	if s.hub == nil {
		return
	}
	if err := s.hub.Publish("state_pulse", s.View()); err != nil {
		s.log.Printf("WS: pulse dropped: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.View())
}

func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.session.Catalog())
}

// handleCostQuote is the "pre-purchase check": the price of the next unit
// without buying it.
func (s *Server) handleCostQuote(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	cost, ok := s.session.CostOf(id)
	if !ok {
		http.Error(w, "Building not found", http.StatusNotFound)
		return
	}
	writeJSON(w, CostQuoteResponse{
		BuildingID: id,
		Cost:       cost,
		CanAfford:  game.CanAfford(cost, s.session.State().Resources),
	})
}

func (s *Server) handleBuyBuilding(w http.ResponseWriter, r *http.Request) {
	var req BuyBuildingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if _, ok := s.session.CostOf(req.BuildingID); !ok {
		http.Error(w, "Building not found", http.StatusNotFound)
		return
	}
	if !s.session.BuyOne(req.BuildingID) {
		http.Error(w, "Insufficient resources", http.StatusPaymentRequired)
		return
	}
	writeJSON(w, s.View())
}

// handleBuyMax never fails for lack of resources: buying zero units is a valid outcome.
func (s *Server) handleBuyMax(w http.ResponseWriter, r *http.Request) {
	var req BuyBuildingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if _, ok := s.session.CostOf(req.BuildingID); !ok {
		http.Error(w, "Building not found", http.StatusNotFound)
		return
	}
	n := s.session.BuyMax(req.BuildingID)
	writeJSON(w, BuyMaxResponse{Bought: n, State: s.View()})
}

func (s *Server) handleBuyUpgrade(w http.ResponseWriter, r *http.Request) {
	var req BuyUpgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	// A catalog upgrade can be missing from the live game after a replace-mode load.
	st := s.session.State()
	if s.session.Catalog().GetUpgrade(req.UpgradeID) == nil || st.Upgrade(req.UpgradeID) == nil {
		http.Error(w, "Upgrade not found", http.StatusNotFound)
		return
	}
	if !s.session.BuyUpgrade(req.UpgradeID) {
		st = s.session.State()
		if u := st.Upgrade(req.UpgradeID); u != nil && u.Applied {
			http.Error(w, "Upgrade already applied", http.StatusConflict)
			return
		}
		http.Error(w, "Insufficient resources", http.StatusPaymentRequired)
		return
	}
	writeJSON(w, s.View())
}

func (s *Server) handleSynth(w http.ResponseWriter, r *http.Request) {
	if !s.clicks.Allow() {
		http.Error(w, "Too many clicks", http.StatusTooManyRequests)
		return
	}
	gained := s.session.SynthManual()
	writeJSON(w, SynthResponse{Gained: gained, State: s.View()})
}

func (s *Server) handleSetAutosave(w http.ResponseWriter, r *http.Request) {
	var req AutosaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	s.session.SetAutosave(req.Enabled)
	writeJSON(w, s.View())
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Save(r.Context()); err != nil {
		http.Error(w, "Save failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.View())
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	err := s.session.Load(r.Context())
	switch {
	case errors.Is(err, save.ErrNoSave):
		http.Error(w, "No save found", http.StatusNotFound)
		return
	case errors.Is(err, save.ErrMalformed), errors.Is(err, game.ErrInvalidSave):
		http.Error(w, "Stored save is corrupt", http.StatusUnprocessableEntity)
		return
	case err != nil:
		http.Error(w, "Load failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.View())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	str, err := s.session.ExportString()
	if err != nil {
		s.log.Printf("SAVE: export failed: %v", err)
		http.Error(w, "Export failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, ExportResponse{Save: str})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if err := s.session.ImportString(req.Save); err != nil {
		// The live game is untouched on any import error.
		http.Error(w, "Invalid save string", http.StatusBadRequest)
		return
	}
	writeJSON(w, s.View())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.session.HardReset(r.Context()); err != nil {
		s.log.Printf("SAVE: reset could not clear the stored save: %v", err)
		http.Error(w, "Reset failed to clear save", http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.View())
}

// handleHistory lists stored revisions. Only the sqlite backend keeps them.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	h, ok := s.session.Store().(historian)
	if !ok {
		http.Error(w, "Save history not kept by this store", http.StatusNotFound)
		return
	}
	revs, err := h.History(r.Context())
	if err != nil {
		http.Error(w, "History unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, revs)
}

// CorsMiddleware lets a browser client on another origin talk to the server.
func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
