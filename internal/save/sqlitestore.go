package save

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultHistory is how many revisions a slot keeps when none is configured.
const DefaultHistory = 10

// Revision describes one stored save.
type Revision struct {
	ID      string    `json:"id"`
	Slot    string    `json:"slot"`
	SavedAt time.Time `json:"saved_at"`
	Size    int       `json:"size"`
}

// SQLiteStore keeps a short history of saves per slot in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	slot string
	keep int
}

func OpenSQLite(path, slot string, keep int) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if slot == "" {
		return nil, fmt.Errorf("empty save slot")
	}
	if keep <= 0 {
		keep = DefaultHistory
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, slot: slot, keep: keep}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS saves (
			id TEXT PRIMARY KEY,
			slot TEXT NOT NULL,
			payload TEXT NOT NULL,
			saved_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS saves_slot_saved_at ON saves(slot, saved_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Write stores a new revision and prunes the slot down to its history size.
func (s *SQLiteStore) Write(ctx context.Context, payload string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO saves(id, slot, payload, saved_at) VALUES(?, ?, ?, ?)`,
		uuid.NewString(), s.slot, payload, time.Now().UnixNano(),
	); err != nil {
		return fmt.Errorf("insert save: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM saves WHERE slot = ? AND id NOT IN (
			SELECT id FROM saves WHERE slot = ? ORDER BY saved_at DESC, rowid DESC LIMIT ?
		)`,
		s.slot, s.slot, s.keep,
	); err != nil {
		return fmt.Errorf("prune saves: %w", err)
	}
	return tx.Commit()
}

// Read returns the newest revision of the slot.
func (s *SQLiteStore) Read(ctx context.Context) (string, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM saves WHERE slot = ? ORDER BY saved_at DESC, rowid DESC LIMIT 1`,
		s.slot,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoSave
	}
	if err != nil {
		return "", err
	}
	return payload, nil
}

// History lists the stored revisions of the slot, newest first.
func (s *SQLiteStore) History(ctx context.Context) ([]Revision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, slot, saved_at, length(payload) FROM saves WHERE slot = ? ORDER BY saved_at DESC, rowid DESC`,
		s.slot,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Revision{}
	for rows.Next() {
		var r Revision
		var ns int64
		if err := rows.Scan(&r.ID, &r.Slot, &ns, &r.Size); err != nil {
			return nil, err
		}
		r.SavedAt = time.Unix(0, ns).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM saves WHERE slot = ?`, s.slot)
	return err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
