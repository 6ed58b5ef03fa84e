package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/everforgeworks/quantum-incremental/internal/game"
	"github.com/everforgeworks/quantum-incremental/internal/save"
	"github.com/everforgeworks/quantum-incremental/internal/session"
)

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func newTestServer(t *testing.T, store save.Store, opts ServerOptions) (*Server, *session.Session) {
	t.Helper()
	e := game.NewEngine(game.DefaultCatalog(), game.Options{Logger: quiet()})
	s := session.New(e, store, game.MergeReplace, quiet())
	opts.Logger = quiet()
	return NewServer(s, nil, opts), s
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return v
}

func TestGetStateView(t *testing.T) {
	srv, _ := newTestServer(t, save.NewMemoryStore(), ServerOptions{})
	rec := do(t, srv.Routes(), http.MethodGet, "/api/state", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	v := decode[StateView](t, rec)
	if len(v.Buildings) != 5 || len(v.Upgrades) != 4 {
		t.Fatalf("unexpected view sizes %d/%d", len(v.Buildings), len(v.Upgrades))
	}
	synth := v.Buildings[0]
	if synth.ID != "synth" || synth.NextCost.Atoms != 10 || synth.CanAfford {
		t.Fatalf("unexpected synth view %+v", synth)
	}
	if v.ClickPower != 1 || !v.Autosave {
		t.Fatalf("unexpected defaults %+v", v)
	}
}

func TestBuyFlow(t *testing.T) {
	srv, s := newTestServer(t, save.NewMemoryStore(), ServerOptions{})
	h := srv.Routes()

	rec := do(t, h, http.MethodPost, "/api/buildings/buy", BuyBuildingRequest{BuildingID: "synth"})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 with no atoms, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/api/buildings/buy", BuyBuildingRequest{BuildingID: "nope"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rec.Code)
	}

	for i := 0; i < 21; i++ {
		s.SynthManual()
	}
	rec = do(t, h, http.MethodPost, "/api/buildings/buy", BuyBuildingRequest{BuildingID: "synth"})
	if rec.Code != http.StatusOK {
		t.Fatalf("buy: %d %s", rec.Code, rec.Body.String())
	}
	v := decode[StateView](t, rec)
	if v.Buildings[0].Amount != 1 || v.Resources.Atoms != 11 || v.Buildings[0].NextCost.Atoms != 11 {
		t.Fatalf("unexpected view after buy %+v", v.Buildings[0])
	}

	rec = do(t, h, http.MethodGet, "/api/buildings/cost?id=synth", nil)
	q := decode[CostQuoteResponse](t, rec)
	if q.Cost.Atoms != 11 || !q.CanAfford {
		t.Fatalf("unexpected quote %+v", q)
	}
	rec = do(t, h, http.MethodGet, "/api/buildings/cost?id=ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/buildings/buy_max", BuyBuildingRequest{BuildingID: "synth"})
	bm := decode[BuyMaxResponse](t, rec)
	if bm.Bought != 1 || bm.State.Buildings[0].Amount != 2 {
		t.Fatalf("unexpected buy max %+v", bm)
	}
	rec = do(t, h, http.MethodPost, "/api/buildings/buy_max", BuyBuildingRequest{BuildingID: "synth"})
	if bm = decode[BuyMaxResponse](t, rec); bm.Bought != 0 {
		t.Fatalf("expected nothing bought, got %d", bm.Bought)
	}
}

func TestBuyUpgradeStatuses(t *testing.T) {
	srv, s := newTestServer(t, save.NewMemoryStore(), ServerOptions{})
	h := srv.Routes()
	if rec := do(t, h, http.MethodPost, "/api/upgrades/buy", BuyUpgradeRequest{UpgradeID: "u_click_boost"}); rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
	for i := 0; i < 1000; i++ {
		s.SynthManual()
	}
	rec := do(t, h, http.MethodPost, "/api/upgrades/buy", BuyUpgradeRequest{UpgradeID: "u_click_boost"})
	if rec.Code != http.StatusOK {
		t.Fatalf("buy upgrade: %d", rec.Code)
	}
	if v := decode[StateView](t, rec); v.ClickPower != 3 {
		t.Fatalf("expected click power 3, got %v", v.ClickPower)
	}
	if rec := do(t, h, http.MethodPost, "/api/upgrades/buy", BuyUpgradeRequest{UpgradeID: "u_click_boost"}); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second purchase, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/upgrades/buy", BuyUpgradeRequest{UpgradeID: "u_missing"}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPurchasesOfEntriesDroppedByLoad(t *testing.T) {
	srv, s := newTestServer(t, save.NewMemoryStore(), ServerOptions{})
	h := srv.Routes()

	// A save from before micro_reactor and u_reactor_eff existed; replace mode drops both.
	atoms := 1e9
	old, err := save.EncodeGame(game.SaveData{
		Resources: &game.Resources{Atoms: atoms, Energy: atoms, Quarks: atoms},
		Buildings: []game.SavedBuilding{{ID: "synth", Amount: 1}},
		Upgrades:  []game.Upgrade{{ID: "u_click_boost"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.ImportString(old); err != nil {
		t.Fatalf("import: %v", err)
	}

	for _, path := range []string{"/api/buildings/buy", "/api/buildings/buy_max"} {
		rec := do(t, h, http.MethodPost, path, BuyBuildingRequest{BuildingID: "micro_reactor"})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404 for a building absent from the game, got %d", path, rec.Code)
		}
	}
	rec := do(t, h, http.MethodPost, "/api/upgrades/buy", BuyUpgradeRequest{UpgradeID: "u_reactor_eff"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an upgrade absent from the game, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/buildings/buy", BuyBuildingRequest{BuildingID: "synth"}); rec.Code != http.StatusOK {
		t.Fatalf("expected the saved building to stay purchasable, got %d", rec.Code)
	}
}

func TestSynthIsThrottled(t *testing.T) {
	srv, _ := newTestServer(t, save.NewMemoryStore(), ServerOptions{ClickRate: 0.001, ClickBurst: 2})
	h := srv.Routes()
	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodPost, "/api/synth", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("click %d: %d", i, rec.Code)
		}
		if r := decode[SynthResponse](t, rec); r.Gained != 1 || r.State.Resources.Atoms != float64(i+1) {
			t.Fatalf("unexpected synth response %+v", r)
		}
	}
	if rec := do(t, h, http.MethodPost, "/api/synth", nil); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestMethodMismatch(t *testing.T) {
	srv, _ := newTestServer(t, save.NewMemoryStore(), ServerOptions{})
	if rec := do(t, srv.Routes(), http.MethodGet, "/api/synth", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestSaveLoadExportImport(t *testing.T) {
	store := save.NewMemoryStore()
	srv, s := newTestServer(t, store, ServerOptions{})
	h := srv.Routes()

	if rec := do(t, h, http.MethodPost, "/api/load", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a save, got %d", rec.Code)
	}
	for i := 0; i < 50; i++ {
		s.SynthManual()
	}
	if rec := do(t, h, http.MethodPost, "/api/save", nil); rec.Code != http.StatusOK {
		t.Fatalf("save: %d", rec.Code)
	}
	if store.Writes() != 1 {
		t.Fatalf("expected one write, got %d", store.Writes())
	}

	exp := decode[ExportResponse](t, do(t, h, http.MethodGet, "/api/export", nil))
	if exp.Save == "" {
		t.Fatalf("empty export")
	}

	other, _ := newTestServer(t, save.NewMemoryStore(), ServerOptions{})
	rec := do(t, other.Routes(), http.MethodPost, "/api/import", ImportRequest{Save: exp.Save})
	if rec.Code != http.StatusOK {
		t.Fatalf("import: %d", rec.Code)
	}
	if v := decode[StateView](t, rec); v.Resources.Atoms != 50 {
		t.Fatalf("expected 50 atoms after import, got %v", v.Resources.Atoms)
	}
	if rec := do(t, other.Routes(), http.MethodPost, "/api/import", ImportRequest{Save: "%%%"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for garbage, got %d", rec.Code)
	}

	_ = store.Write(context.Background(), "bm90IGpzb24=")
	if rec := do(t, h, http.MethodPost, "/api/load", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for corrupt save, got %d", rec.Code)
	}
}

func TestResetAndAutosaveToggle(t *testing.T) {
	store := save.NewMemoryStore()
	srv, s := newTestServer(t, store, ServerOptions{})
	h := srv.Routes()
	s.SynthManual()
	_ = s.Save(context.Background())

	rec := do(t, h, http.MethodPost, "/api/settings/autosave", AutosaveRequest{Enabled: false})
	if v := decode[StateView](t, rec); v.Autosave {
		t.Fatalf("autosave still on")
	}

	rec = do(t, h, http.MethodPost, "/api/reset", nil)
	if v := decode[StateView](t, rec); v.Resources.Atoms != 0 || !v.Autosave {
		t.Fatalf("reset must restore the initial game: %+v", v)
	}
	if _, err := store.Read(context.Background()); err == nil {
		t.Fatalf("reset must clear the stored save")
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, save.NewMemoryStore(), ServerOptions{})
	if rec := do(t, srv.Routes(), http.MethodGet, "/api/saves/history", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("memory store keeps no history, got %d", rec.Code)
	}

	db, err := save.OpenSQLite(filepath.Join(t.TempDir(), "saves.db"), "slot", 5)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	srv, s := newTestServer(t, db, ServerOptions{})
	for i := 0; i < 3; i++ {
		if err := s.Save(context.Background()); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	rec := do(t, srv.Routes(), http.MethodGet, "/api/saves/history", nil)
	if revs := decode[[]save.Revision](t, rec); len(revs) != 3 {
		t.Fatalf("expected 3 revisions, got %d", len(revs))
	}
}

func TestCorsPreflight(t *testing.T) {
	srv, _ := newTestServer(t, save.NewMemoryStore(), ServerOptions{})
	rec := do(t, CorsMiddleware(srv.Routes()), http.MethodOptions, "/api/state", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("unexpected preflight response %d %v", rec.Code, rec.Header())
	}
}

func TestPulseReachesWebsocketClients(t *testing.T) {
	e := game.NewEngine(game.DefaultCatalog(), game.Options{Logger: quiet()})
	s := session.New(e, save.NewMemoryStore(), game.MergeReplace, quiet())
	hub := NewHub(quiet())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := NewServer(s, hub, ServerOptions{Logger: quiet()})
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var welcome Message
	if err := conn.ReadJSON(&welcome); err != nil || welcome.Type != "welcome" || welcome.Payload == "" {
		t.Fatalf("welcome: %+v, %v", welcome, err)
	}

	s.SynthManual()
	// Registration finishes concurrently with the handshake; keep pulsing until one lands.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		tk := time.NewTicker(10 * time.Millisecond)
		defer tk.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tk.C:
				srv.Pulse()
			}
		}
	}()

	var pulse struct {
		Type    string    `json:"type"`
		Payload StateView `json:"payload"`
	}
	if err := conn.ReadJSON(&pulse); err != nil {
		t.Fatalf("read pulse: %v", err)
	}
	if pulse.Type != "state_pulse" || pulse.Payload.Resources.Atoms != 1 {
		t.Fatalf("unexpected pulse %+v", pulse)
	}
}
