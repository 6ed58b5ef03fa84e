/*
Package config
File: config.go
Description:
    Server configuration. Values come from 'server.yaml' (optional), then
    QI_* environment variables override individual fields.
*/

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/everforgeworks/quantum-incremental/internal/game"
	"github.com/everforgeworks/quantum-incremental/internal/save"
)

// Config is the root of 'server.yaml'.
type Config struct {
	ListenAddr     string        `yaml:"listen_addr" env:"QI_LISTEN_ADDR"`
	TickPeriod     time.Duration `yaml:"tick_period" env:"QI_TICK_PERIOD"`         // Simulated step, also the timer period
	AutosavePeriod time.Duration `yaml:"autosave_period" env:"QI_AUTOSAVE_PERIOD"` // Ignored while autosave is off in settings
	BuyMaxLimit    int           `yaml:"buy_max_limit" env:"QI_BUY_MAX_LIMIT"`     // Units evaluated per Buy Max call
	CatalogPath    string        `yaml:"catalog_path" env:"QI_CATALOG_PATH"`       // Empty = embedded catalog
	MergeMode      string        `yaml:"merge_mode" env:"QI_MERGE_MODE"`           // "replace" or "reconcile"

	Store StoreConfig `yaml:"store" envPrefix:"QI_STORE_"`

	BroadcastEveryTicks int     `yaml:"broadcast_every_ticks" env:"QI_BROADCAST_EVERY_TICKS"` // Websocket pulse cadence
	ClickRate           float64 `yaml:"click_rate" env:"QI_CLICK_RATE"`                       // Manual synth requests per second
	ClickBurst          int     `yaml:"click_burst" env:"QI_CLICK_BURST"`
}

// StoreConfig selects the save backend.
type StoreConfig struct {
	Kind    string `yaml:"kind" env:"KIND"` // file, sqlite, memory
	Path    string `yaml:"path" env:"PATH"`
	Slot    string `yaml:"slot" env:"SLOT"`
	History int    `yaml:"history" env:"HISTORY"` // sqlite only
}

// Default returns the reference configuration.
func Default() Config {
	return Config{
		ListenAddr:     ":8081",
		TickPeriod:     game.DefaultTickPeriod,
		AutosavePeriod: 15 * time.Second,
		BuyMaxLimit:    game.DefaultBuyMaxLimit,
		MergeMode:      string(game.MergeReplace),
		Store: StoreConfig{
			Kind:    save.KindFile,
			Path:    "data/quantum_save_v1.zst",
			Slot:    "quantum_save_v1",
			History: save.DefaultHistory,
		},
		BroadcastEveryTicks: 5,
		ClickRate:           20,
		ClickBurst:          40,
	}
}

// Load reads the YAML file at path over the defaults, then applies the environment.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("%s: %w", path, err)
			}
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	if c.TickPeriod <= 0 {
		return fmt.Errorf("tick_period must be positive")
	}
	if c.AutosavePeriod <= 0 {
		return fmt.Errorf("autosave_period must be positive")
	}
	if c.BuyMaxLimit <= 0 {
		return fmt.Errorf("buy_max_limit must be positive")
	}
	if _, err := game.ParseMergeMode(c.MergeMode); err != nil {
		return err
	}
	switch c.Store.Kind {
	case save.KindFile, save.KindSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for %s store", c.Store.Kind)
		}
	case save.KindMemory:
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}
	if c.Store.Slot == "" {
		return fmt.Errorf("store.slot must not be empty")
	}
	if c.BroadcastEveryTicks < 0 {
		return fmt.Errorf("broadcast_every_ticks must not be negative")
	}
	if c.ClickRate <= 0 || c.ClickBurst <= 0 {
		return fmt.Errorf("click_rate and click_burst must be positive")
	}
	return nil
}

// StoreOptions maps the store section onto save.Options.
func (c Config) StoreOptions() save.Options {
	return save.Options{Kind: c.Store.Kind, Path: c.Store.Path, Slot: c.Store.Slot, History: c.Store.History}
}
