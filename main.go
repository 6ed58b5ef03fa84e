/*
Package main
File: main.go
Description: Server entry point. Loads the configuration and catalog, restores the
last save, starts the tick/autosave loop and the real-time WebSocket hub, and
serves the REST API.
*/

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/everforgeworks/quantum-incremental/internal/api"
	"github.com/everforgeworks/quantum-incremental/internal/config"
	"github.com/everforgeworks/quantum-incremental/internal/game"
	"github.com/everforgeworks/quantum-incremental/internal/save"
	"github.com/everforgeworks/quantum-incremental/internal/session"
)

func main() {
	configPath := flag.String("config", "server.yaml", "path to server config (missing file = defaults)")
	flag.Parse()

	logger := log.New(os.Stdout, "[quantum] ", log.LstdFlags|log.Lmicroseconds)

	// 1. Load configuration (YAML, then QI_* environment overrides)
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Config Fail: %v", err)
	}
	mode, err := game.ParseMergeMode(cfg.MergeMode)
	if err != nil {
		logger.Fatalf("Config Fail: %v", err)
	}

	// 2. Load the production and upgrade catalog
	catalog, err := game.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Fatalf("Catalog Fail: %v", err)
	}

	engine := game.NewEngine(catalog, game.Options{
		TickPeriod:  cfg.TickPeriod,
		BuyMaxLimit: cfg.BuyMaxLimit,
		Logger:      logger,
	})

	// 3. Open the save backend and restore the last game
	store, err := save.Open(cfg.StoreOptions())
	if err != nil {
		logger.Fatalf("Store Fail: %v", err)
	}
	sess := session.New(engine, store, mode, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch err := sess.Load(ctx); {
	case err == nil:
		logger.Printf("SAVE: restored game from %s store (slot %s)", cfg.Store.Kind, cfg.Store.Slot)
	case errors.Is(err, save.ErrNoSave):
		logger.Println("SAVE: no save found, starting a new game")
	default:
		// A corrupt save must not block the server; the live game stays fresh.
		logger.Printf("SAVE: ignoring unreadable save: %v", err)
	}

	// 4. Initialize and start the Real-Time WebSocket Hub
	hub := api.NewHub(logger)
	go hub.Run(ctx)

	server := api.NewServer(sess, hub, api.ServerOptions{
		ClickRate:  cfg.ClickRate,
		ClickBurst: cfg.ClickBurst,
		Logger:     logger,
	})

	// 5. THE ECONOMY HEARTBEAT
	// One tick every TickPeriod, autosave every AutosavePeriod, state pulse every N ticks.
	runner := session.NewRunner(sess, session.RunnerOptions{
		AutosavePeriod: cfg.AutosavePeriod,
		Logger:         logger,
	})
	if every := uint64(cfg.BroadcastEveryTicks); every > 0 {
		runner.OnTick(func(n uint64) {
			if n%every == 0 {
				server.Pulse()
			}
		})
	}
	if err := runner.Start(ctx); err != nil {
		logger.Fatalf("Runner Fail: %v", err)
	}

	// 6. Manual save: SIGHUP writes the game without waiting for autosave
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGHUP)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigChan:
				logger.Println("SIGNAL: Saving game...")
				if err := sess.Save(ctx); err != nil {
					logger.Printf("SIGNAL: save failed: %v", err)
				}
			}
		}
	}()

	// 7. Start the Server
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.CorsMiddleware(server.Routes()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Printf("QUANTUM INCREMENTAL server live on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(err)
		}
	}()

	<-ctx.Done()
	logger.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	// Stop ticking before the final save so the stored game is the last state.
	runner.Stop()
	if sess.Autosave() {
		if err := sess.Save(shutdownCtx); err != nil {
			logger.Printf("SAVE: final save failed: %v", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Printf("SAVE: close store: %v", err)
	}
}
