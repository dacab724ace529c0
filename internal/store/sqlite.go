// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// Current schema version
const SchemaVersion = "2"

// SQLite is a SQLite-backed transcript.
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLite opens (or creates) a transcript database at the given path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session TEXT NOT NULL,
			seq INTEGER NOT NULL,
			source TEXT NOT NULL,
			raw TEXT NOT NULL DEFAULT '',
			pretty TEXT NOT NULL DEFAULT '',
			rendered TEXT NOT NULL DEFAULT '',
			fault TEXT NOT NULL DEFAULT '',
			at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLite{db: db}

	version, err := s.getMetadataUnlocked("schema_version")
	if err != nil {
		db.Close()
		return nil, err
	}

	if version == "" || version == "1" {
		// New DB or migrate from v1 to v2: latency and session index
		if err := s.migrateToV2(); err != nil {
			db.Close()
			return nil, err
		}
		if err := s.setMetadataUnlocked("schema_version", SchemaVersion); err != nil {
			db.Close()
			return nil, err
		}
	} else if version != SchemaVersion {
		db.Close()
		return nil, fmt.Errorf("unsupported schema version: %s (expected %s)", version, SchemaVersion)
	}

	return s, nil
}

// migrateToV2 adds per-entry latency and the session index.
func (s *SQLite) migrateToV2() error {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('entries') WHERE name = 'latency_ns'`).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.db.Exec(`ALTER TABLE entries ADD COLUMN latency_ns INTEGER NOT NULL DEFAULT 0`); err != nil {
			return err
		}
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS entries_session ON entries (session, seq)`)
	return err
}

const entryColumns = `id, session, seq, source, raw, pretty, rendered, fault, latency_ns, at`

// Record appends an entry.
func (s *SQLite) Record(e Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.At.IsZero() {
		e.At = time.Now()
	}
	res, err := s.db.Exec(`
		INSERT INTO entries (session, seq, source, raw, pretty, rendered, fault, latency_ns, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Session, e.Seq, e.Source, e.Raw, e.Pretty, e.Rendered, e.Fault, int64(e.Latency), e.At.UnixNano())
	if err != nil {
		return Entry{}, err
	}
	e.ID, err = res.LastInsertId()
	return e, err
}

// History returns the most recent entries, newest first.
func (s *SQLite) History(limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := `SELECT ` + entryColumns + ` FROM entries ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryEntries(q, args...)
}

// Session returns the entries of one session.
func (s *SQLite) Session(id string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryEntries(`SELECT `+entryColumns+` FROM entries WHERE session = ? ORDER BY seq, id`, id)
}

// Sessions summarizes sessions, most recent first.
func (s *SQLite) Sessions(limit int) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := `
		SELECT session, COUNT(*), SUM(CASE WHEN fault != '' THEN 1 ELSE 0 END), MIN(at), MAX(at)
		FROM entries GROUP BY session ORDER BY MAX(at) DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var first, last int64
		if err := rows.Scan(&sum.Session, &sum.Entries, &sum.Faults, &first, &last); err != nil {
			return nil, err
		}
		sum.First = time.Unix(0, first)
		sum.Last = time.Unix(0, last)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// queryEntries runs q (caller must hold lock).
func (s *SQLite) queryEntries(q string, args ...any) ([]Entry, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var latency, at int64
		if err := rows.Scan(&e.ID, &e.Session, &e.Seq, &e.Source, &e.Raw, &e.Pretty, &e.Rendered, &e.Fault, &latency, &at); err != nil {
			return nil, err
		}
		e.Latency = time.Duration(latency)
		e.At = time.Unix(0, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// GetMetadata retrieves a metadata value by key.
func (s *SQLite) GetMetadata(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getMetadataUnlocked(key)
}

// getMetadataUnlocked retrieves metadata without locking (caller must hold lock).
func (s *SQLite) getMetadataUnlocked(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata stores a metadata value by key.
func (s *SQLite) SetMetadata(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setMetadataUnlocked(key, value)
}

// setMetadataUnlocked stores metadata without locking (caller must hold lock).
func (s *SQLite) setMetadataUnlocked(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
