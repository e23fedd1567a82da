package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapquery/pkg/executor"
	sqliteexec "github.com/leapstack-labs/leapquery/pkg/executor/sqlite"
)

var errNotOpen = errors.New("database not opened")

// SQLiteStore implements Store on a SQLite file.
type SQLiteStore struct {
	exec *sqliteexec.Executor
	path string
}

// NewSQLiteStore creates a store; call Open before use.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	return &SQLiteStore{exec: sqliteexec.New(logger)}
}

// Open opens (creating if needed) the log at path and migrates it.
// Use ":memory:" for an in-memory log.
func (s *SQLiteStore) Open(ctx context.Context, path string) error {
	params := map[string]any{"busy_timeout": "5s"}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create state directory: %w", err)
			}
		}
		params["journal_mode"] = "wal"
	}
	if err := s.exec.Connect(ctx, executor.Config{Type: "sqlite", DSN: path, Params: params}); err != nil {
		return fmt.Errorf("failed to open query log: %w", err)
	}
	s.path = path
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return err
	}
	return nil
}

// Path returns the file the store was opened on.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.exec.Close()
}

// Log appends e. A zero ID or Time is filled in.
func (s *SQLiteStore) Log(ctx context.Context, e *Entry) error {
	if s.exec.DB == nil {
		return errNotOpen
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	_, err := s.exec.DB.ExecContext(ctx,
		`INSERT INTO query_log (id, logged_at, dialect, shape_hash, command_text, parameters, commands, cache_hit, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.Time, e.Dialect, formatHash(e.ShapeHash), e.CommandText,
		e.Parameters, e.Commands, e.CacheHit, e.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to log translation: %w", err)
	}
	return nil
}

// List returns the newest entries first.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	if s.exec.DB == nil {
		return nil, errNotOpen
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	q := `SELECT id, logged_at, dialect, shape_hash, command_text, parameters, commands, cache_hit, source FROM query_log`
	args := []any{}
	if opts.Dialect != "" {
		q += ` WHERE dialect = ?`
		args = append(args, opts.Dialect)
	}
	q += ` ORDER BY logged_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.exec.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list query log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var id, hash string
		if err := rows.Scan(&id, &e.Time, &e.Dialect, &hash, &e.CommandText,
			&e.Parameters, &e.Commands, &e.CacheHit, &e.Source); err != nil {
			return nil, fmt.Errorf("failed to scan query log: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid entry id %q: %w", id, err)
		}
		if e.ShapeHash, err = parseHash(hash); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Shapes groups entries by dialect and shape, most used first.
func (s *SQLiteStore) Shapes(ctx context.Context, limit int) ([]Shape, error) {
	if s.exec.DB == nil {
		return nil, errNotOpen
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.exec.DB.QueryContext(ctx, `
		SELECT dialect, shape_hash, COUNT(*), MAX(logged_at), MIN(command_text)
		FROM query_log
		GROUP BY dialect, shape_hash
		ORDER BY COUNT(*) DESC, dialect, shape_hash
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize query log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var shapes []Shape
	for rows.Next() {
		var sh Shape
		var hash string
		var last sql.NullString
		if err := rows.Scan(&sh.Dialect, &hash, &sh.Count, &last, &sh.CommandText); err != nil {
			return nil, fmt.Errorf("failed to scan shape: %w", err)
		}
		if sh.ShapeHash, err = parseHash(hash); err != nil {
			return nil, err
		}
		if last.Valid {
			sh.LastSeen, _ = parseTime(last.String)
		}
		shapes = append(shapes, sh)
	}
	return shapes, rows.Err()
}

// Aggregates lose the column type, so MAX(logged_at) comes back as text.
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

var _ Store = (*SQLiteStore)(nil)
