// Package scriptstore is a sqlite-backed store of saved script sources.
// cmd/hspihost opens it at startup; pkg/scripthost has no session
// command that reads from or writes to it. One table, a plain
// connection/table-bootstrap setup, and bcrypt password hashing reused
// for an optional per-script write-lock passphrase.
package scriptstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/antibyte/hspc/pkg/hlog"
)

// ErrNotFound is returned when a lookup finds no script under the
// given name.
var ErrNotFound = errors.New("scriptstore: script not found")

// ErrLocked is returned by Save when the target script has a
// passphrase and the one supplied does not match.
var ErrLocked = errors.New("scriptstore: script is passphrase-protected")

// Store wraps a sqlite connection holding saved script sources plus
// the disassembly of their last successful compile.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("scriptstore: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("scriptstore: connect %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS scripts (
			name TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			bytecode_dump TEXT,
			passphrase_hash TEXT,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("scriptstore: create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save writes source (and its optional bytecode dump) under name. If
// the script already exists with a passphrase, passphrase must match
// or Save returns ErrLocked. Passing a non-empty newPassphrase sets or
// replaces the stored lock.
func (s *Store) Save(name, source, bytecodeDump, passphrase, newPassphrase string) error {
	var storedHash sql.NullString
	err := s.db.QueryRow(`SELECT passphrase_hash FROM scripts WHERE name = ?`, name).Scan(&storedHash)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("scriptstore: lookup %s: %w", name, err)
	}
	if storedHash.Valid && storedHash.String != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(storedHash.String), []byte(passphrase)); err != nil {
			return ErrLocked
		}
	}

	hash := storedHash.String
	if newPassphrase != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(newPassphrase), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("scriptstore: hash passphrase: %w", err)
		}
		hash = string(h)
	}

	_, err = s.db.Exec(`
		INSERT INTO scripts (name, source, bytecode_dump, passphrase_hash, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			source = excluded.source,
			bytecode_dump = excluded.bytecode_dump,
			passphrase_hash = excluded.passphrase_hash,
			updated_at = excluded.updated_at
	`, name, source, bytecodeDump, hash, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("scriptstore: save %s: %w", name, err)
	}
	hlog.DebugLog(hlog.AreaHost, "saved script %s (%d bytes)", name, len(source))
	return nil
}

// Load returns the saved source for name.
func (s *Store) Load(name string) (string, error) {
	var source string
	err := s.db.QueryRow(`SELECT source FROM scripts WHERE name = ?`, name).Scan(&source)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("scriptstore: load %s: %w", name, err)
	}
	return source, nil
}

// List returns every saved script name in alphabetical order.
func (s *Store) List() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM scripts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("scriptstore: list: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete removes a saved script, checking its passphrase the same way
// Save does.
func (s *Store) Delete(name, passphrase string) error {
	var storedHash sql.NullString
	err := s.db.QueryRow(`SELECT passphrase_hash FROM scripts WHERE name = ?`, name).Scan(&storedHash)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("scriptstore: lookup %s: %w", name, err)
	}
	if storedHash.Valid && storedHash.String != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(storedHash.String), []byte(passphrase)); err != nil {
			return ErrLocked
		}
	}
	_, err = s.db.Exec(`DELETE FROM scripts WHERE name = ?`, name)
	return err
}
