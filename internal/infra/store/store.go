// Package store provides a SQLite-backed shuffle store.
//
// Every active value carries a generation counter. Next picks uniformly among
// the active values with the lowest generation and bumps it, so no value is
// picked twice until every other active value has been picked as well.
// Removed values keep their generation and resume it if they come back.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"
)

const (
	// CurrentSchemaVersion is the current database schema version.
	CurrentSchemaVersion = "1"
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")

	// ErrEmpty is returned by Next when there are no active values.
	ErrEmpty = errors.New("store has no active values")
)

// Options controls how a store treats values it was not seeded with.
type Options struct {
	// KeepUnrecognized soft-removes stored values missing from the seed instead
	// of deleting them, and stops Compact from purging removed values.
	KeepUnrecognized bool

	// NewAsOld starts newly loaded values at the highest generation instead of
	// the lowest, so they wait for the current round to finish.
	NewAsOld bool
}

// Store is a persistent shuffle store. It is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
	opts Options
	rand *rand.Rand
}

// Open opens the store at path and reconciles it against seed.
// A nil seed leaves the stored values untouched.
func Open(path string, opts Options, seed []string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)

	s := &Store{
		db:   db,
		path: path,
		opts: opts,
		rand: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if seed != nil {
		if err := s.seed(seed); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to seed store: %w", err)
		}
	}

	log.Debug().
		Str("path", path).
		Bool("keep_unrecognized", opts.KeepUnrecognized).
		Int("seed", len(seed)).
		Msg("Shuffle store opened")
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		value TEXT PRIMARY KEY,
		generation INTEGER NOT NULL DEFAULT 0,
		removed INTEGER NOT NULL DEFAULT 0,
		added_at TEXT DEFAULT CURRENT_TIMESTAMP,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS store_meta (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_items_active ON items(removed, generation);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	version, err := s.getMeta("schema_version")
	if err != nil {
		return err
	}
	if version != CurrentSchemaVersion {
		if version != "" {
			log.Info().
				Str("current", version).
				Str("target", CurrentSchemaVersion).
				Msg("Migrating store schema")
		}
		return s.setMeta("schema_version", CurrentSchemaVersion)
	}
	return nil
}

func (s *Store) setMeta(key, value string) error {
	now := time.Now().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO store_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now)
	return err
}

func (s *Store) getMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM store_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

// startGeneration is the generation a newly loaded value starts at.
func (s *Store) startGeneration(q querier) (int64, error) {
	agg := "MIN"
	if s.opts.NewAsOld {
		agg = "MAX"
	}
	var gen sql.NullInt64
	err := q.QueryRow("SELECT " + agg + "(generation) FROM items WHERE removed = 0").Scan(&gen)
	if err != nil {
		return 0, err
	}
	return gen.Int64, nil
}

// minGeneration is the lowest generation among active values.
func minGeneration(q querier) (int64, error) {
	var gen sql.NullInt64
	if err := q.QueryRow("SELECT MIN(generation) FROM items WHERE removed = 0").Scan(&gen); err != nil {
		return 0, err
	}
	return gen.Int64, nil
}

func (s *Store) seed(values []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("CREATE TEMP TABLE IF NOT EXISTS seed (value TEXT PRIMARY KEY)"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM seed"); err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT OR IGNORE INTO seed (value) VALUES (?)")
	if err != nil {
		return err
	}
	for _, v := range values {
		if _, err := stmt.Exec(v); err != nil {
			stmt.Close()
			return err
		}
	}
	stmt.Close()

	now := time.Now().Format(time.RFC3339)

	if s.opts.KeepUnrecognized {
		_, err = tx.Exec(`
			UPDATE items SET removed = 1, updated_at = ?
			WHERE removed = 0 AND value NOT IN (SELECT value FROM seed)
		`, now)
	} else {
		_, err = tx.Exec("DELETE FROM items WHERE value NOT IN (SELECT value FROM seed)")
	}
	if err != nil {
		return err
	}

	// Restored values resume their old generation, but never below the
	// current round or they would dominate the next picks.
	floor, err := minGeneration(tx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`
		UPDATE items SET removed = 0, generation = MAX(generation, ?), updated_at = ?
		WHERE removed = 1 AND value IN (SELECT value FROM seed)
	`, floor, now); err != nil {
		return err
	}

	start, err := s.startGeneration(tx)
	if err != nil {
		return err
	}
	res, err := tx.Exec(`
		INSERT INTO items (value, generation, removed, added_at, updated_at)
		SELECT value, ?, 0, ?, ? FROM seed WHERE value NOT IN (SELECT value FROM items)
	`, start, now, now)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Debug().Int64("added", n).Msg("Seeded new values")
	}

	if _, err := tx.Exec("DROP TABLE seed"); err != nil {
		return err
	}
	return tx.Commit()
}

// Next returns a random value among those picked the fewest times.
func (s *Store) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return "", ErrClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var (
		gen   sql.NullInt64
		count int
	)
	err = tx.QueryRow(`
		SELECT generation, COUNT(*) FROM items
		WHERE removed = 0 AND generation = (SELECT MIN(generation) FROM items WHERE removed = 0)
	`).Scan(&gen, &count)
	if err != nil {
		return "", err
	}
	if count == 0 || !gen.Valid {
		return "", ErrEmpty
	}

	var value string
	err = tx.QueryRow(`
		SELECT value FROM items WHERE removed = 0 AND generation = ?
		ORDER BY value LIMIT 1 OFFSET ?
	`, gen.Int64, s.rand.IntN(count)).Scan(&value)
	if err != nil {
		return "", err
	}

	if _, err := tx.Exec(
		"UPDATE items SET generation = generation + 1, updated_at = ? WHERE value = ?",
		time.Now().Format(time.RFC3339), value,
	); err != nil {
		return "", err
	}

	return value, tx.Commit()
}

// Load adds value, or restores it if it was soft-removed. Active values are left alone.
func (s *Store) Load(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Format(time.RFC3339)

	var removed bool
	err = tx.QueryRow("SELECT removed FROM items WHERE value = ?", value).Scan(&removed)
	switch {
	case err == sql.ErrNoRows:
		start, err := s.startGeneration(tx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			"INSERT INTO items (value, generation, removed, added_at, updated_at) VALUES (?, ?, 0, ?, ?)",
			value, start, now, now,
		); err != nil {
			return err
		}
	case err != nil:
		return err
	case removed:
		floor, err := minGeneration(tx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			"UPDATE items SET removed = 0, generation = MAX(generation, ?), updated_at = ? WHERE value = ?",
			floor, now, value,
		); err != nil {
			return err
		}
	default:
		return nil
	}

	return tx.Commit()
}

// SoftRemove makes value ineligible while keeping its history.
func (s *Store) SoftRemove(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrClosed
	}

	_, err := s.db.Exec(
		"UPDATE items SET removed = 1, updated_at = ? WHERE value = ?",
		time.Now().Format(time.RFC3339), value,
	)
	return err
}

// Size returns the number of active values.
func (s *Store) Size() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return 0, ErrClosed
	}

	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM items WHERE removed = 0").Scan(&n)
	return n, err
}

// Values returns all active values, sorted.
func (s *Store) Values() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, ErrClosed
	}

	rows, err := s.db.Query("SELECT value FROM items WHERE removed = 0 ORDER BY value")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Compact purges removed values, unless they are being kept, and reclaims space.
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrClosed
	}

	if !s.opts.KeepUnrecognized {
		res, err := s.db.Exec("DELETE FROM items WHERE removed = 1")
		if err != nil {
			return fmt.Errorf("failed to purge removed values: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			log.Info().Int64("purged", n).Msg("Purged removed values")
		}
	}

	if _, err := s.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum store: %w", err)
	}
	if err := s.setMeta("last_compacted", time.Now().Format(time.RFC3339)); err != nil {
		return err
	}

	log.Info().Str("path", s.path).Msg("Shuffle store compacted")
	return nil
}
