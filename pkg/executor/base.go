package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

// ErrNotConnected is returned by commands run before Connect.
var ErrNotConnected = errors.New("database connection not established")

// BaseSQLExecutor provides the database/sql side of an executor.
// Embed it in concrete executors to get Close, Query and Exec.
type BaseSQLExecutor struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Open opens db through driver and verifies it answers. On success the
// connection is stored on b.
func (b *BaseSQLExecutor) Open(ctx context.Context, driver, dsn string, cfg Config) error {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", driver, err)
	}
	return b.Attach(ctx, db, cfg)
}

// Attach stores an already opened db after pinging it.
func (b *BaseSQLExecutor) Attach(ctx context.Context, db *sql.DB, cfg Config) error {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping %s: %w", cfg.Type, err)
	}
	b.DB = db
	b.Cfg = cfg
	return nil
}

// Close closes the database connection.
func (b *BaseSQLExecutor) Close() error {
	if b.DB == nil {
		return nil
	}
	b.logger().Debug("closing database connection", slog.String("type", b.Cfg.Type))
	err := b.DB.Close()
	b.DB = nil
	return err
}

// Query runs a command that returns rows. The caller closes the rows.
func (b *BaseSQLExecutor) Query(ctx context.Context, cmd *core.QueryCommand) (core.Rows, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	args, err := cmd.Args()
	if err != nil {
		return nil, err
	}
	b.logger().Debug("query", slog.Int("args", len(args)), slog.Int("length", len(cmd.CommandText)))
	//nolint:rowserrcheck // rows.Err() is checked by the plan reader after iteration
	rows, err := b.DB.QueryContext(ctx, cmd.CommandText, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

// Exec runs a command that returns no rows.
func (b *BaseSQLExecutor) Exec(ctx context.Context, cmd *core.QueryCommand) (int64, error) {
	if b.DB == nil {
		return 0, ErrNotConnected
	}
	args, err := cmd.Args()
	if err != nil {
		return 0, err
	}
	b.logger().Debug("exec", slog.Int("args", len(args)), slog.Int("length", len(cmd.CommandText)))
	res, err := b.DB.ExecContext(ctx, cmd.CommandText, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to execute SQL: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return n, nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLExecutor) IsConnected() bool {
	return b.DB != nil
}

func (b *BaseSQLExecutor) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}
