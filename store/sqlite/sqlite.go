/*
Package sqlite provides a SQLite-backed ledger.DurableStore.

PURPOSE:
  Persists each ledger collection as one JSON document keyed by its
  collection name, plus a history of audit runs. The repository keeps the
  working set in memory; this store only has to load and replace whole
  collections.

INTERFACES IMPLEMENTED:
  ledger.DurableStore: Load / Save of one collection
  ledger.BatchStore:   SaveBatch of several collections in one transaction
  ledger.AuditLog:     Audit run history

KEY TABLES:
  collections: name -> JSON array, with the time of the last write
  audit_log:   one row per audit pass, run time in Unix nanoseconds,
               discrepancies as JSON

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The repository already serializes
  writers; the lock keeps Reset and SaveBatch from interleaving with reads.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  repo := ledger.NewRepository(store, ledger.Options{})

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - ledger/repository.go: Interface definitions and commit protocol
  - store/memory: In-memory implementation for testing
  - store/redis: Redis implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tarjetacolmado/ledger/ledger"
)

// Store implements the ledger storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Whole collections, replaced on every save
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Audit history
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		run_at_ns INTEGER NOT NULL,
		lines_checked INTEGER NOT NULL,
		discrepancies_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_run_at
		ON audit_log(run_at_ns);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// COLLECTIONS
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Load returns the stored collection. found is false when it was never saved.
func (s *Store) Load(ctx context.Context, name ledger.Collection) (json.RawMessage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM collections WHERE name = ?`, string(name),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load %s: %w", name, err)
	}
	return json.RawMessage(payload), true, nil
}

// Save replaces one collection.
func (s *Store) Save(ctx context.Context, name ledger.Collection, payload json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveTx(ctx, s.db, name, payload)
}

// SaveBatch replaces several collections in one transaction.
func (s *Store) SaveBatch(ctx context.Context, batch []ledger.CollectionPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, b := range batch {
		if err := s.saveTx(ctx, tx, b.Name, b.Payload); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) saveTx(ctx context.Context, db execer, name ledger.Collection, payload json.RawMessage) error {
	if !json.Valid(payload) {
		return fmt.Errorf("collection %s: payload is not valid JSON", name)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO collections (name, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, string(name), string(payload), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}

// =============================================================================
// AUDIT RUNS
// =============================================================================

// SaveAuditRun records one audit pass.
func (s *Store) SaveAuditRun(ctx context.Context, run ledger.AuditRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	discrepancies, err := json.Marshal(nonNil(run.Discrepancies))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, run_at_ns, lines_checked, discrepancies_json)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.At.UnixNano(), run.LinesChecked, string(discrepancies))
	return err
}

// AuditRuns returns the latest runs, newest first.
func (s *Store) AuditRuns(ctx context.Context, limit int) ([]ledger.AuditRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_at_ns, lines_checked, discrepancies_json
		FROM audit_log
		ORDER BY run_at_ns DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ledger.AuditRun
	for rows.Next() {
		var (
			run    ledger.AuditRun
			runAt  int64
			report string
		)
		if err := rows.Scan(&run.ID, &runAt, &run.LinesChecked, &report); err != nil {
			return nil, err
		}
		run.At = time.Unix(0, runAt).UTC()
		if err := json.Unmarshal([]byte(report), &run.Discrepancies); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset deletes all data. Used by tests and demo scenario loading.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"collections", "audit_log"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nonNil(d []ledger.Discrepancy) []ledger.Discrepancy {
	if d == nil {
		return []ledger.Discrepancy{}
	}
	return d
}
