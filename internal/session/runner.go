package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// Clock hands out tickers. Tests swap in a manual implementation.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// Ticker is the part of time.Ticker the Runner uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type systemClock struct{}

type systemTicker struct{ t *time.Ticker }

func (systemClock) NewTicker(d time.Duration) Ticker { return systemTicker{time.NewTicker(d)} }
func (t systemTicker) C() <-chan time.Time           { return t.t.C }
func (t systemTicker) Stop()                         { t.t.Stop() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// ErrRunning is returned by Start when the loop is already active.
var ErrRunning = errors.New("runner already started")

// RunnerOptions tunes a Runner. Zero values use the reference periods.
type RunnerOptions struct {
	Clock          Clock
	AutosavePeriod time.Duration
	Logger         *log.Logger
}

// Runner drives the session: a tick timer at the engine's period and an
// autosave timer. Both are handled on one goroutine, so an autosave never
// overlaps a tick.
type Runner struct {
	session        *Session
	clock          Clock
	autosavePeriod time.Duration
	log            *log.Logger

	hooks []func(tick uint64)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRunner(s *Session, opts RunnerOptions) *Runner {
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.AutosavePeriod <= 0 {
		opts.AutosavePeriod = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Runner{
		session:        s,
		clock:          opts.Clock,
		autosavePeriod: opts.AutosavePeriod,
		log:            opts.Logger,
	}
}

// OnTick registers fn to run on the loop goroutine after every tick.
// Register hooks before Start.
func (r *Runner) OnTick(fn func(tick uint64)) {
	r.hooks = append(r.hooks, fn)
}

// Start launches the loop. It stops when ctx is done or Stop is called.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	tick := r.clock.NewTicker(r.session.TickPeriod())
	autosave := r.clock.NewTicker(r.autosavePeriod)
	done := make(chan struct{})
	r.cancel, r.done = cancel, done

	go r.loop(ctx, tick, autosave, done)
	r.log.Printf("RUNNER: started (tick %v, autosave %v)", r.session.TickPeriod(), r.autosavePeriod)
	return nil
}

// Stop cancels both timers and returns once the loop has exited.
// No tick runs after Stop returns. Safe to call more than once.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.log.Println("RUNNER: stopped")
}

func (r *Runner) loop(ctx context.Context, tick, autosave Ticker, done chan struct{}) {
	defer close(done)
	defer tick.Stop()
	defer autosave.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-tick.C():
			// select picks randomly among ready cases; cancellation wins.
			if ctx.Err() != nil {
				return
			}
			r.session.Tick()
			n := r.session.Ticks()
			for _, fn := range r.hooks {
				fn(n)
			}

		case <-autosave.C():
			if ctx.Err() != nil {
				return
			}
			if !r.session.Autosave() {
				continue
			}
			if err := r.session.Save(ctx); err != nil {
				r.log.Printf("RUNNER: autosave failed: %v", err)
			}
		}
	}
}
