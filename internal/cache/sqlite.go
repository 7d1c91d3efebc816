package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite via modernc.org/sqlite (pure Go).
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite-backed store. dbPath is the path to
// the SQLite database file; use ":memory:" for testing.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cache: open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: ping database: %w", err)
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS cache_entries (
			id          TEXT PRIMARY KEY,
			dialect     TEXT NOT NULL,
			union_tag   TEXT NOT NULL DEFAULT '',
			cache_key   TEXT NOT NULL,
			value_json  TEXT NOT NULL,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(dialect, union_tag, cache_key)
		);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: create table: %w", err)
	}

	createIndexSQL := `
		CREATE INDEX IF NOT EXISTS idx_cache_entries_lookup ON cache_entries(dialect, union_tag, cache_key);
	`
	if _, err := db.Exec(createIndexSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save upserts entry, keyed on (Dialect, UnionTag, Key). If entry.ID is
// empty, a new UUID is generated and assigned; an existing row matched by
// the composite key keeps its original ID.
func (s *SQLiteStore) Save(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	entry.UpdatedAt = now
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}

	query := `
		INSERT INTO cache_entries (id, dialect, union_tag, cache_key, value_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dialect, union_tag, cache_key) DO UPDATE SET
			value_json = excluded.value_json,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Dialect,
		entry.UnionTag,
		entry.Key,
		entry.ValueJSON,
		entry.CreatedAt.Format(time.RFC3339),
		entry.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("cache: save entry: %w", err)
	}
	return nil
}

// Load retrieves the entry for (dialect, unionTag, key). Returns
// (nil, nil) if no entry is found.
func (s *SQLiteStore) Load(ctx context.Context, dialect, unionTag, key string) (*Entry, error) {
	query := `
		SELECT id, dialect, union_tag, cache_key, value_json, created_at, updated_at
		FROM cache_entries
		WHERE dialect = ? AND union_tag = ? AND cache_key = ?
	`
	return s.loadOne(ctx, query, dialect, unionTag, key)
}

// LoadByID retrieves an entry by its unique ID. Returns (nil, nil) if no
// entry is found.
func (s *SQLiteStore) LoadByID(ctx context.Context, id string) (*Entry, error) {
	query := `
		SELECT id, dialect, union_tag, cache_key, value_json, created_at, updated_at
		FROM cache_entries
		WHERE id = ?
	`
	return s.loadOne(ctx, query, id)
}

func (s *SQLiteStore) loadOne(ctx context.Context, query string, args ...interface{}) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, query, args...)

	var (
		entry     Entry
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&entry.ID, &entry.Dialect, &entry.UnionTag, &entry.Key, &entry.ValueJSON, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("cache: scan row: %w", err)
	}

	var err error
	if entry.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("cache: parse created_at %q: %w", createdAt, err)
	}
	if entry.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("cache: parse updated_at %q: %w", updatedAt, err)
	}

	return &entry, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", raw)
}

// List returns a lightweight summary of every stored entry.
func (s *SQLiteStore) List(ctx context.Context) ([]*Summary, error) {
	query := `SELECT id, dialect, cache_key, updated_at FROM cache_entries ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("cache: list entries: %w", err)
	}
	defer rows.Close()

	var summaries []*Summary
	for rows.Next() {
		var (
			summary   Summary
			updatedAt string
		)
		if err := rows.Scan(&summary.ID, &summary.Dialect, &summary.Key, &updatedAt); err != nil {
			return nil, fmt.Errorf("cache: scan summary row: %w", err)
		}
		t, err := parseTimestamp(updatedAt)
		if err != nil {
			return nil, fmt.Errorf("cache: parse updated_at %q: %w", updatedAt, err)
		}
		summary.UpdatedAt = t
		summaries = append(summaries, &summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cache: iterate rows: %w", err)
	}

	return summaries, nil
}

// Delete removes an entry by its ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM cache_entries WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("cache: delete entry: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Cleanup removes entries whose updated_at is older than maxAge from now.
// It returns the number of deleted entries.
func (s *SQLiteStore) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339)

	query := `DELETE FROM cache_entries WHERE updated_at < ?`
	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache: cleanup entries: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache: rows affected: %w", err)
	}
	return deleted, nil
}

// JSONEntry marshals value and wraps it into an Entry ready for Save.
func JSONEntry(dialect, unionTag, key string, value interface{}) (*Entry, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("cache: marshal value: %w", err)
	}
	return &Entry{Dialect: dialect, UnionTag: unionTag, Key: key, ValueJSON: string(b)}, nil
}
