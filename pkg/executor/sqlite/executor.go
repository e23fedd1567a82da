// Package sqlite runs commands against SQLite through the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/leapstack-labs/leapquery/pkg/executor"

	_ "modernc.org/sqlite" // sqlite driver
)

// Params holds SQLite connection pragmas.
type Params struct {
	// BusyTimeout is how long a locked database is retried.
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`

	// ForeignKeys enables foreign key enforcement.
	ForeignKeys bool `mapstructure:"foreign_keys"`

	// JournalMode sets the journal mode (wal, delete, memory).
	JournalMode string `mapstructure:"journal_mode"`
}

// Executor implements executor.Executor for SQLite.
type Executor struct {
	executor.BaseSQLExecutor
}

// New creates a SQLite executor.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{BaseSQLExecutor: executor.BaseSQLExecutor{Logger: logger}}
}

// DialectName returns the SQL dialect for this executor.
func (e *Executor) DialectName() string { return "sqlite" }

// Connect opens the database file at cfg.DSN.
// An empty DSN or ":memory:" opens a private in-memory database.
func (e *Executor) Connect(ctx context.Context, cfg executor.Config) error {
	params, err := executor.DecodeParams[Params](cfg.Params)
	if err != nil {
		return err
	}
	path := cfg.DSN
	if path == "" {
		path = ":memory:"
	}
	e.Logger.Debug("connecting to sqlite", slog.String("path", path))
	if err := e.Open(ctx, "sqlite", DSN(path, params), cfg); err != nil {
		return err
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own database.
		e.DB.SetMaxOpenConns(1)
	}
	return nil
}

// DSN appends params to path as driver pragmas.
func DSN(path string, p *Params) string {
	q := url.Values{}
	if p.BusyTimeout > 0 {
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", p.BusyTimeout.Milliseconds()))
	}
	if p.ForeignKeys {
		q.Add("_pragma", "foreign_keys(1)")
	}
	if p.JournalMode != "" {
		q.Add("_pragma", fmt.Sprintf("journal_mode(%s)", strings.ToLower(p.JournalMode)))
	}
	if len(q) == 0 {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

var _ executor.Executor = (*Executor)(nil)
