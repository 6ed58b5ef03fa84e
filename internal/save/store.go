/*
Package save
File: store.go
Description:
    Storage backends for encoded save strings.
    A Store only moves opaque transport strings; it never interprets them,
    so a failing backend can never corrupt the in-memory game.
*/

package save

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoSave is returned by Read when the backend holds nothing for the slot.
var ErrNoSave = errors.New("no save found")

// Store persists the latest encoded save of one slot.
type Store interface {
	Write(ctx context.Context, payload string) error
	Read(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
	Close() error
}

// Backend kinds accepted by Open.
const (
	KindFile   = "file"
	KindSQLite = "sqlite"
	KindMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Kind    string
	Path    string // file path (file) or database path (sqlite)
	Slot    string // save slot name, used as the sqlite key
	History int    // sqlite revisions kept per slot
}

// Open builds the backend named by opts.Kind.
func Open(opts Options) (Store, error) {
	switch opts.Kind {
	case KindFile, "":
		return NewFileStore(opts.Path), nil
	case KindSQLite:
		return OpenSQLite(opts.Path, opts.Slot, opts.History)
	case KindMemory:
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store kind %q", opts.Kind)
}
