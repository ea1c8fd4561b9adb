package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/tether/internal/storage"
	"github.com/scrypster/tether/pkg/types"
)

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite store with WAL self-healing. If the initial
// open fails due to stale WAL files (left behind by a crashed process), it
// verifies no other process holds them and retries once after removing the
// stale -shm/-wal files.
func NewStore(dsn string) (*Store, error) {
	store, err := openStore(dsn)
	if err == nil {
		return store, nil
	}

	if !isRecoverableWALError(err) {
		return nil, err
	}

	dbPath := dbPathFromDSN(dsn)
	if dbPath == "" || dbPath == ":memory:" {
		return nil, err
	}

	if !isWALStale(dbPath) {
		return nil, err
	}

	removeStaleWAL(dbPath)

	store, retryErr := openStore(dsn)
	if retryErr != nil {
		return nil, fmt.Errorf("failed after WAL recovery: %w (original: %v)", retryErr, err)
	}

	log.Printf("sqlite: recovered from stale WAL files for %s", dbPath)
	return store, nil
}

// openStore opens a SQLite database, configures WAL mode, and creates the schema.
func openStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Using a single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent load.
	// WAL mode allows concurrent readers to proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // Connections live for the lifetime of the store.

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set busy timeout so that callers wait instead of getting an immediate
	// SQLITE_BUSY error when the connection is held by another goroutine.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// LookupEntitiesByValue returns every entity indexed under any attribute
// type with this exact value.
func (s *Store) LookupEntitiesByValue(ctx context.Context, value string) ([]types.EntityID, error) {
	if value == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT entity_id FROM entity_index WHERE attr_value = ?", value)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup by value: %v", storage.ErrStorage, err)
	}
	defer rows.Close()

	var ids []types.EntityID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan entity id: %v", storage.ErrStorage, err)
		}
		ids = append(ids, types.EntityID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate candidates: %v", storage.ErrStorage, err)
	}
	return ids, nil
}

// Insert records a (type, value, entity) triple. Duplicate inserts are
// no-ops via ON CONFLICT DO NOTHING, which also holds under races.
func (s *Store) Insert(ctx context.Context, attrType, attrValue string, id types.EntityID) error {
	if attrType == "" || attrValue == "" {
		return fmt.Errorf("%w: attribute type and value are required", storage.ErrInvalidInput)
	}
	if id == "" {
		return fmt.Errorf("%w: entity ID is required", storage.ErrInvalidInput)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_index (attr_type, attr_value, entity_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(attr_type, attr_value, entity_id) DO NOTHING
	`, attrType, attrValue, string(id), time.Now())
	if err != nil {
		return fmt.Errorf("%w: insert index entry: %v", storage.ErrStorage, err)
	}
	return nil
}

// CountEntities returns the number of distinct entities in the index.
func (s *Store) CountEntities(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT entity_id) FROM entity_index").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count entities: %v", storage.ErrStorage, err)
	}
	return n, nil
}

// CountEntries returns the number of index rows.
func (s *Store) CountEntries(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entity_index").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count entries: %v", storage.ErrStorage, err)
	}
	return n, nil
}

// RecordSource registers an input source. Idempotent on source ID.
func (s *Store) RecordSource(ctx context.Context, src types.Source) error {
	if src.ID == "" {
		return fmt.Errorf("%w: source ID is required", storage.ErrInvalidInput)
	}
	if src.ImportedAt.IsZero() {
		src.ImportedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (id, filename, imported_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, src.ID, src.Filename, src.ImportedAt)
	if err != nil {
		return fmt.Errorf("%w: record source: %v", storage.ErrStorage, err)
	}
	return nil
}

// RecordObservation stores one observation and its contributing attributes.
// Re-recording the same hash is a no-op, including the attribute rows.
func (s *Store) RecordObservation(ctx context.Context, obs types.Observation, attrs []types.Attribute) error {
	if obs.Hash == "" {
		return fmt.Errorf("%w: observation hash is required", storage.ErrInvalidInput)
	}
	if obs.EntityID == "" {
		return fmt.Errorf("%w: entity ID is required", storage.ErrInvalidInput)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO observations (hash, source_id, entity_id, raw_data, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, obs.Hash, nullableString(obs.SourceID), string(obs.EntityID), obs.RawData, time.Now())
	if err != nil {
		return fmt.Errorf("%w: record observation: %v", storage.ErrStorage, err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: record observation: %v", storage.ErrStorage, err)
	}
	if inserted == 0 {
		// Re-import of a known item; attribute rows already exist.
		return nil
	}

	for _, attr := range attrs {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO observation_attributes (obs_hash, attr_type, attr_value)
			VALUES (?, ?, ?)
		`, obs.Hash, attr.Type, attr.Value)
		if err != nil {
			return fmt.Errorf("%w: record observation attribute: %v", storage.ErrStorage, err)
		}
	}
	return nil
}

// CountObservations returns the number of recorded observations.
func (s *Store) CountObservations(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM observations").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count observations: %v", storage.ErrStorage, err)
	}
	return n, nil
}

// GetDB exposes the underlying database handle for the web status surface.
func (s *Store) GetDB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// nullableString returns a NULL sql value for empty strings.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// dbPathFromDSN extracts the filesystem path from a SQLite DSN.
// Returns "" for in-memory databases or unparseable DSNs.
func dbPathFromDSN(dsn string) string {
	if dsn == ":memory:" || dsn == "" {
		return ""
	}

	if strings.HasPrefix(dsn, "file:") {
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == ":memory:" || path == "" {
			return ""
		}
		return path
	}

	return dsn
}

// isRecoverableWALError reports whether an open error may be caused by stale
// WAL files from a crashed process.
func isRecoverableWALError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "disk I/O error") ||
		strings.Contains(msg, "database is locked")
}

// isWALStale reports whether -shm/-wal files exist and no process holds them.
func isWALStale(dbPath string) bool {
	shmPath := dbPath + "-shm"
	walPath := dbPath + "-wal"

	if !fileExists(shmPath) && !fileExists(walPath) {
		return false
	}

	// Check if any process has the database or WAL files open.
	lsofPath, err := exec.LookPath("lsof")
	if err != nil {
		// lsof not available (e.g., Alpine Docker) — conservative fallback.
		return false
	}

	cmd := exec.Command(lsofPath, "-t", dbPath, shmPath, walPath)
	output, err := cmd.Output()
	if err != nil {
		// lsof returns exit code 1 when no files are open — that means stale.
		return true
	}

	return strings.TrimSpace(string(output)) == ""
}

// removeStaleWAL deletes leftover -shm/-wal files.
func removeStaleWAL(dbPath string) {
	for _, suffix := range []string{"-shm", "-wal"} {
		path := dbPath + suffix
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("sqlite: failed to remove stale %s: %v", path, err)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
