package session

import (
	"context"
	"errors"
	"io"
	"log"
	"reflect"
	"testing"

	"github.com/everforgeworks/quantum-incremental/internal/game"
	"github.com/everforgeworks/quantum-incremental/internal/save"
)

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func newTestSession(t *testing.T, store save.Store) *Session {
	t.Helper()
	e := game.NewEngine(game.DefaultCatalog(), game.Options{Logger: quiet()})
	return New(e, store, game.MergeReplace, quiet())
}

func progress(s *Session) {
	for i := 0; i < 200; i++ {
		s.SynthManual()
	}
	s.BuyMax("synth")
	s.BuyUpgrade("u_click_boost")
	for i := 0; i < 10; i++ {
		s.Tick()
	}
}

type failingStore struct{ save.MemoryStore }

func (*failingStore) Write(context.Context, string) error { return errors.New("disk full") }

func TestSaveLoadRoundTrip(t *testing.T) {
	store := save.NewMemoryStore()
	a := newTestSession(t, store)
	progress(a)
	ctx := context.Background()
	if err := a.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}

	b := newTestSession(t, store)
	if err := b.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(a.State(), b.State()) {
		t.Fatalf("loaded state differs:\nwant %+v\ngot  %+v", a.State(), b.State())
	}
}

func TestLoadWithoutSave(t *testing.T) {
	s := newTestSession(t, save.NewMemoryStore())
	before := s.State()
	if err := s.Load(context.Background()); !errors.Is(err, save.ErrNoSave) {
		t.Fatalf("expected ErrNoSave, got %v", err)
	}
	if !reflect.DeepEqual(before, s.State()) {
		t.Fatalf("state changed on empty load")
	}
}

func TestLoadCorruptSaveLeavesStateUntouched(t *testing.T) {
	store := save.NewMemoryStore()
	_ = store.Write(context.Background(), "definitely not a save")
	s := newTestSession(t, store)
	progress(s)
	before := s.State()

	if err := s.Load(context.Background()); !errors.Is(err, save.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if !reflect.DeepEqual(before, s.State()) {
		t.Fatalf("corrupt load mutated state")
	}
}

func TestExportImportBetweenSessions(t *testing.T) {
	a := newTestSession(t, save.NewMemoryStore())
	progress(a)
	str, err := a.ExportString()
	if err != nil || str == "" {
		t.Fatalf("export: %q, %v", str, err)
	}

	b := newTestSession(t, save.NewMemoryStore())
	if err := b.ImportString(str); err != nil {
		t.Fatalf("import: %v", err)
	}
	if !reflect.DeepEqual(a.State(), b.State()) {
		t.Fatalf("imported state differs")
	}

	before := b.State()
	if err := b.ImportString("e30"); err == nil {
		t.Fatalf("expected error for truncated base64")
	}
	if !reflect.DeepEqual(before, b.State()) {
		t.Fatalf("failed import mutated state")
	}
}

func TestSaveFailureKeepsState(t *testing.T) {
	s := newTestSession(t, &failingStore{})
	progress(s)
	before := s.State()
	if err := s.Save(context.Background()); err == nil {
		t.Fatalf("expected write error")
	}
	if !reflect.DeepEqual(before, s.State()) {
		t.Fatalf("failed save mutated state")
	}
}

func TestHardResetClearsSave(t *testing.T) {
	store := save.NewMemoryStore()
	s := newTestSession(t, store)
	progress(s)
	ctx := context.Background()
	if err := s.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.HardReset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if st := s.State(); st.Resources.Atoms != 0 || st.ClickPower != 1 {
		t.Fatalf("reset left progress: %+v", st)
	}
	if _, err := store.Read(ctx); !errors.Is(err, save.ErrNoSave) {
		t.Fatalf("expected save cleared, got %v", err)
	}
}

func TestReconcileModeKeepsNewCatalogEntries(t *testing.T) {
	// A save written before micro_reactor existed.
	old, err := save.EncodeGame(game.SaveData{
		Buildings: []game.SavedBuilding{{ID: "synth", Amount: 2}},
	})
	if err != nil {
		t.Fatal(err)
	}

	replace := newTestSession(t, save.NewMemoryStore())
	if err := replace.ImportString(old); err != nil {
		t.Fatalf("import: %v", err)
	}
	if st := replace.State(); st.Building("micro_reactor") != nil {
		t.Fatalf("replace mode drops catalog entries absent from the save")
	}

	e := game.NewEngine(game.DefaultCatalog(), game.Options{Logger: quiet()})
	reconcile := New(e, save.NewMemoryStore(), game.MergeReconcile, quiet())
	if err := reconcile.ImportString(old); err != nil {
		t.Fatalf("import: %v", err)
	}
	st := reconcile.State()
	if st.Building("micro_reactor") == nil || st.Building("synth").Amount != 2 {
		t.Fatalf("reconcile must keep catalog entries and overlay the save: %+v", st.Buildings)
	}
}
