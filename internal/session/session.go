/*
Package session
File: session.go
Description:
    The single controller the presentation layer talks to. It owns the
    Engine (through embedding) together with the save backend, and exposes
    save/load/import/export on top of the engine's game operations.
*/

package session

import (
	"context"
	"fmt"
	"log"

	"github.com/everforgeworks/quantum-incremental/internal/game"
	"github.com/everforgeworks/quantum-incremental/internal/save"
)

// Session is one player's running game.
type Session struct {
	*game.Engine

	store save.Store
	mode  game.MergeMode
	log   *log.Logger
}

// New wires an engine to a save backend.
func New(engine *game.Engine, store save.Store, mode game.MergeMode, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	if mode == "" {
		mode = game.MergeReplace
	}
	return &Session{Engine: engine, store: store, mode: mode, log: logger}
}

// Store exposes the backend, e.g. for revision listings.
func (s *Session) Store() save.Store { return s.store }

// Save writes the current game to the backend.
// A failed write leaves the in-memory game as it was.
func (s *Session) Save(ctx context.Context) error {
	payload, err := s.ExportString()
	if err != nil {
		return err
	}
	if err := s.store.Write(ctx, payload); err != nil {
		s.log.Printf("SAVE: write failed: %v", err)
		return fmt.Errorf("write save: %w", err)
	}
	return nil
}

// Load merges the stored save into the live game.
// Returns save.ErrNoSave when the backend is empty.
func (s *Session) Load(ctx context.Context) error {
	payload, err := s.store.Read(ctx)
	if err != nil {
		return err
	}
	if err := s.ImportString(payload); err != nil {
		s.log.Printf("SAVE: stored game rejected: %v", err)
		return err
	}
	return nil
}

// ExportString encodes the current game as a transport string.
func (s *Session) ExportString() (string, error) {
	return save.EncodeGame(s.Export())
}

// ImportString decodes a transport string and merges it into the live game.
// Malformed input is rejected before anything is touched.
func (s *Session) ImportString(str string) error {
	data, err := save.DecodeGame(str)
	if err != nil {
		return err
	}
	return s.Merge(data, s.mode)
}

// HardReset restarts the game from scratch and deletes the stored save.
func (s *Session) HardReset(ctx context.Context) error {
	s.Reset()
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear save: %w", err)
	}
	return nil
}
