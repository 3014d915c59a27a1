// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Database-backed alternative to FileStore with the same key and error semantics

package rxtdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a single SQLite table.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	paths  PathScheme
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at opts.DatabasePath.
// Parent directories are created if needed.
func NewSQLiteStore(opts Options) (*SQLiteStore, error) {
	path := opts.DatabasePath
	if path == "" {
		return nil, fmt.Errorf("%w: database path is empty", ErrInvalidRoot)
	}
	logger := opts.logger()

	inMemory := path == ":memory:"
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if inMemory {
		// each connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		path:   path,
		paths:  NewPathScheme(path, opts.Extension),
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS rxt_records (
			id TEXT PRIMARY KEY,
			context TEXT NOT NULL,
			name TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_rxt_records_key
			ON rxt_records(context, name, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// location identifies a record inside the database the way a path does for FileStore.
func (s *SQLiteStore) location(contextName, name string, ts int64) string {
	return fmt.Sprintf("sqlite://%s/%s/%s/%s", s.path, contextName, name, s.paths.RecordName(contextName, name, ts))
}

// Contexts lists every context with at least one record.
func (s *SQLiteStore) Contexts(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT DISTINCT context FROM rxt_records ORDER BY context`)
}

// Names lists the names stored under a context.
func (s *SQLiteStore) Names(ctx context.Context, contextName string) ([]string, error) {
	names, err := s.queryStrings(ctx,
		`SELECT DISTINCT name FROM rxt_records WHERE context = ? ORDER BY name`, contextName)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no packages exist for context %q: %w", contextName, ErrNotFound)
	}
	return names, nil
}

// Timestamps lists the stored timestamps for a context and name in ascending order.
func (s *SQLiteStore) Timestamps(ctx context.Context, contextName, name string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp FROM rxt_records WHERE context = ? AND name = ? ORDER BY timestamp`,
		contextName, name)
	if err != nil {
		return nil, fmt.Errorf("querying timestamps: %w", err)
	}
	defer rows.Close()

	var stamps []int64
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("scanning timestamp: %w", err)
		}
		stamps = append(stamps, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating timestamps: %w", err)
	}
	if len(stamps) == 0 {
		return nil, fmt.Errorf("no timestamps exist for context %q name %q: %w", contextName, name, ErrNotFound)
	}
	return stamps, nil
}

// Resolve returns the location of a record.
func (s *SQLiteStore) Resolve(ctx context.Context, contextName, name string, ts int64, approximate bool) (string, error) {
	resolved, err := s.resolveTimestamp(ctx, contextName, name, ts, approximate)
	if err != nil {
		return "", err
	}
	return s.location(contextName, name, resolved), nil
}

// resolveTimestamp returns the stored timestamp a query resolves to.
func (s *SQLiteStore) resolveTimestamp(ctx context.Context, contextName, name string, ts int64, approximate bool) (int64, error) {
	var resolved int64

	if !approximate {
		err := s.db.QueryRowContext(ctx,
			`SELECT timestamp FROM rxt_records WHERE context = ? AND name = ? AND timestamp = ?`,
			contextName, name, ts).Scan(&resolved)
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("no record exists for context %q name %q timestamp %d: %w",
				contextName, name, ts, ErrNotFound)
		}
		if err != nil {
			return 0, fmt.Errorf("querying record: %w", err)
		}
		return resolved, nil
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT timestamp FROM rxt_records
		WHERE context = ? AND name = ? AND timestamp <= ?
		ORDER BY timestamp DESC LIMIT 1
	`, contextName, name, ts).Scan(&resolved)
	if err == sql.ErrNoRows {
		// every stored timestamp is after the query: fall back to the earliest
		err = s.db.QueryRowContext(ctx, `
			SELECT timestamp FROM rxt_records
			WHERE context = ? AND name = ?
			ORDER BY timestamp ASC LIMIT 1
		`, contextName, name).Scan(&resolved)
	}
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("no timestamps stored for context %q name %q: %w", contextName, name, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("querying nearest timestamp: %w", err)
	}

	s.logger.Debug("approximate timestamp resolved",
		"context", contextName, "name", name, "query", ts, "resolved", resolved)
	return resolved, nil
}

// Record resolves a key and decodes the stored record.
func (s *SQLiteStore) Record(ctx context.Context, contextName, name string, ts int64, approximate bool) (Record, error) {
	resolved, err := s.resolveTimestamp(ctx, contextName, name, ts, approximate)
	if err != nil {
		return nil, err
	}

	var data string
	err = s.db.QueryRowContext(ctx,
		`SELECT data FROM rxt_records WHERE context = ? AND name = ? AND timestamp = ?`,
		contextName, name, resolved).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("record %s vanished: %w", Key{Context: contextName, Name: name, Timestamp: resolved}, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying record data: %w", err)
	}

	rec, err := ParseRecord([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("reading record %s: %w", s.location(contextName, name, resolved), err)
	}
	return rec, nil
}

// RecordPaths returns the location of every record for a context and name.
func (s *SQLiteStore) RecordPaths(ctx context.Context, contextName, name string) ([]string, error) {
	stamps, err := s.Timestamps(ctx, contextName, name)
	if err != nil {
		return nil, err
	}
	locations := make([]string, 0, len(stamps))
	for _, ts := range stamps {
		locations = append(locations, s.location(contextName, name, ts))
	}
	return locations, nil
}

// Add inserts a new record keyed by its own timestamp.
func (s *SQLiteStore) Add(ctx context.Context, contextName, name string, record Record) (Key, error) {
	ts, err := record.Timestamp()
	if err != nil {
		return Key{}, err
	}
	if err := ValidateKey(contextName, name); err != nil {
		return Key{}, err
	}
	data, err := record.Encode()
	if err != nil {
		return Key{}, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rxt_records (id, context, name, timestamp, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), contextName, name, ts, string(data), now, now)
	if err != nil {
		if isConstraintViolation(err) {
			return Key{}, fmt.Errorf("context %q name %q timestamp %d: %w", contextName, name, ts, ErrAlreadyExists)
		}
		return Key{}, fmt.Errorf("inserting record: %w", err)
	}

	s.logger.Info("record added", "context", contextName, "name", name, "timestamp", ts)
	return Key{Context: contextName, Name: name, Timestamp: ts}, nil
}

// Update overwrites the record stored at an exact key.
func (s *SQLiteStore) Update(ctx context.Context, contextName, name string, ts int64, record Record) error {
	if err := checkUpdate(contextName, name, ts, record); err != nil {
		return err
	}
	data, err := record.Encode()
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE rxt_records SET data = ?, updated_at = ?
		WHERE context = ? AND name = ? AND timestamp = ?
	`, string(data), time.Now().UTC().Format(time.RFC3339), contextName, name, ts)
	if err != nil {
		return fmt.Errorf("updating record: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no record exists for context %q name %q timestamp %d: %w", contextName, name, ts, ErrNotFound)
	}

	s.logger.Info("record updated", "context", contextName, "name", name, "timestamp", ts)
	return nil
}

func (s *SQLiteStore) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*FileStore)(nil)
)
