// Package sqlitesink provides a SQLite-backed audit sink for deployments
// that want queryable event history instead of (or alongside) the JSONL
// chain log.
package sqlitesink

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/rkorstad/taintgate/internal/audit"
)

// Store implements audit.Sink on a SQLite database.
type Store struct {
	db *sql.DB
}

// Config contains configuration for the SQLite sink.
type Config struct {
	Path string // Path to SQLite database file; empty = in-memory
}

// New opens (or creates) the event store.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		cfg.Path = ":memory:"
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlitesink: open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			ts TEXT NOT NULL,
			kind TEXT NOT NULL,
			action TEXT,
			parameter TEXT,
			role TEXT,
			level TEXT,
			mode TEXT,
			actor TEXT,
			missing TEXT,
			from_level TEXT,
			to_level TEXT,
			chain TEXT,
			reason TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
		CREATE INDEX IF NOT EXISTS idx_events_action ON events(action);
	`)
	if err != nil {
		return fmt.Errorf("sqlitesink: create schema: %w", err)
	}
	return nil
}

// Record stores one event. Implements audit.Sink.
func (s *Store) Record(ev audit.Event) error {
	missing, err := json.Marshal(ev.Missing)
	if err != nil {
		return fmt.Errorf("sqlitesink: marshal missing: %w", err)
	}
	chain, err := json.Marshal(ev.Chain)
	if err != nil {
		return fmt.Errorf("sqlitesink: marshal chain: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO events (id, ts, kind, action, parameter, role, level, mode, actor, missing, from_level, to_level, chain, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Timestamp, string(ev.Kind), ev.Action, ev.Parameter, ev.Role,
		ev.Level, ev.Mode, ev.Actor, string(missing), ev.FromLevel, ev.ToLevel,
		string(chain), ev.Reason,
	)
	if err != nil {
		return fmt.Errorf("sqlitesink: insert event: %w", err)
	}
	return nil
}

// ByKind returns up to limit events of one kind, newest first.
func (s *Store) ByKind(kind audit.EventKind, limit int) ([]audit.Event, error) {
	return s.query(`SELECT id, ts, kind, action, parameter, role, level, mode, actor, missing, from_level, to_level, chain, reason
		FROM events WHERE kind = ? ORDER BY ts DESC LIMIT ?`, string(kind), limit)
}

// ByAction returns up to limit events for one action kind, newest first.
func (s *Store) ByAction(action string, limit int) ([]audit.Event, error) {
	return s.query(`SELECT id, ts, kind, action, parameter, role, level, mode, actor, missing, from_level, to_level, chain, reason
		FROM events WHERE action = ? ORDER BY ts DESC LIMIT ?`, action, limit)
}

// Recent returns the newest limit events.
func (s *Store) Recent(limit int) ([]audit.Event, error) {
	return s.query(`SELECT id, ts, kind, action, parameter, role, level, mode, actor, missing, from_level, to_level, chain, reason
		FROM events ORDER BY ts DESC LIMIT ?`, limit)
}

func (s *Store) query(q string, args ...any) ([]audit.Event, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitesink: query events: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var ev audit.Event
		var kind, missing, chain string
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &kind, &ev.Action, &ev.Parameter,
			&ev.Role, &ev.Level, &ev.Mode, &ev.Actor, &missing,
			&ev.FromLevel, &ev.ToLevel, &chain, &ev.Reason); err != nil {
			return nil, fmt.Errorf("sqlitesink: scan event: %w", err)
		}
		ev.Kind = audit.EventKind(kind)
		if missing != "" && missing != "null" {
			if err := json.Unmarshal([]byte(missing), &ev.Missing); err != nil {
				return nil, fmt.Errorf("sqlitesink: decode missing: %w", err)
			}
		}
		if chain != "" && chain != "null" {
			if err := json.Unmarshal([]byte(chain), &ev.Chain); err != nil {
				return nil, fmt.Errorf("sqlitesink: decode chain: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CountByKind returns event counts grouped by kind.
func (s *Store) CountByKind() (map[audit.EventKind]int, error) {
	rows, err := s.db.Query(`SELECT kind, COUNT(*) FROM events GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("sqlitesink: count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[audit.EventKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("sqlitesink: scan count: %w", err)
		}
		counts[audit.EventKind(kind)] = n
	}
	return counts, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// sanity check against accidental interface drift
var _ audit.Sink = (*Store)(nil)
