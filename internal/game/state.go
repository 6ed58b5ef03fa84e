/*
Package game
File: state.go
Description:
    Manages the runtime state of the economy.
    The Engine is the single owner of the GameState: every read and write
    goes through its lock, and callers only ever see copies.
*/

package game

import (
	"log"
	"sync"
	"time"
)

const (
	// DefaultTickPeriod is 5 evaluations per second.
	DefaultTickPeriod = 200 * time.Millisecond

	// DefaultBuyMaxLimit caps the units a single BuyMax call will evaluate.
	DefaultBuyMaxLimit = 200000
)

// Options tunes an Engine. Zero values fall back to the defaults above.
type Options struct {
	TickPeriod  time.Duration
	BuyMaxLimit int
	Logger      *log.Logger
}

// Engine holds the live game and serializes every mutation.
type Engine struct {
	// mu protects state and ticks. Any method reading or writing them MUST hold it.
	mu    sync.Mutex
	state GameState
	ticks uint64

	catalog     *Catalog
	period      time.Duration
	dt          float64 // period in seconds, fixed for the life of the engine
	buyMaxLimit int
	log         *log.Logger
}

// NewEngine starts a fresh game for the given catalog.
func NewEngine(c *Catalog, opts Options) *Engine {
	if opts.TickPeriod <= 0 {
		opts.TickPeriod = DefaultTickPeriod
	}
	if opts.BuyMaxLimit <= 0 {
		opts.BuyMaxLimit = DefaultBuyMaxLimit
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Engine{
		state:       c.NewGame(),
		catalog:     c,
		period:      opts.TickPeriod,
		dt:          opts.TickPeriod.Seconds(),
		buyMaxLimit: opts.BuyMaxLimit,
		log:         opts.Logger,
	}
}

// Catalog returns the static templates this engine was built with.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// TickPeriod is the simulated step length.
func (e *Engine) TickPeriod() time.Duration { return e.period }

// State returns a deep copy of the current game.
func (e *Engine) State() GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Ticks returns how many ticks have been integrated since the engine was created.
func (e *Engine) Ticks() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticks
}

// Rates returns the current net production per second.
func (e *Engine) Rates() Resources {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ProductionRates(e.catalog, e.state.Buildings)
}

// CostOf prices the next unit of a building for display.
// The bool is false when the id is not part of the live game.
func (e *Engine) CostOf(buildingID string) (Resources, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, b := e.lookupLocked(buildingID)
	if t == nil {
		return Resources{}, false
	}
	return CostOf(t.BaseCost, t.CostScale, b.Amount), true
}

// Autosave reports the persisted autosave preference.
func (e *Engine) Autosave() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Settings.Autosave
}

// SetAutosave toggles the autosave preference.
func (e *Engine) SetAutosave(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Settings.Autosave = on
}

// Reset discards all progress and starts over from the catalog defaults.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = e.catalog.NewGame()
	e.log.Println("ENGINE: hard reset")
}

// lookupLocked resolves a building id to its template and live instance.
// Note: Caller must hold e.mu.
func (e *Engine) lookupLocked(id string) (*BuildingTemplate, *Building) {
	b := e.state.Building(id)
	if b == nil {
		return nil, nil
	}
	t := e.catalog.GetBuilding(id)
	if t == nil {
		return nil, nil
	}
	return t, b
}
