// Package duckdb runs commands against DuckDB.
package duckdb

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/executor"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Params holds DuckDB-specific configuration.
// Parsed from executor.Config.Params using mapstructure.
type Params struct {
	// Extensions to install and load (e.g., "httpfs", "json")
	Extensions []string `mapstructure:"extensions"`

	// Settings to apply after connecting (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// Executor implements executor.Executor for DuckDB.
type Executor struct {
	executor.BaseSQLExecutor
}

// New creates a DuckDB executor.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{BaseSQLExecutor: executor.BaseSQLExecutor{Logger: logger}}
}

// DialectName returns the SQL dialect for this executor.
func (e *Executor) DialectName() string { return "duckdb" }

// Connect opens the database at cfg.DSN.
// An empty DSN or ":memory:" opens an in-memory database.
func (e *Executor) Connect(ctx context.Context, cfg executor.Config) error {
	params, err := executor.DecodeParams[Params](cfg.Params)
	if err != nil {
		return err
	}
	path := cfg.DSN
	if path == "" {
		path = ":memory:"
	}
	if path == ":memory:" {
		path = ""
	}

	e.Logger.Debug("connecting to duckdb", slog.String("path", cfg.DSN))
	if err := e.Open(ctx, "duckdb", path, cfg); err != nil {
		return err
	}
	for _, stmt := range setupStatements(params) {
		if _, err := e.Exec(ctx, &core.QueryCommand{CommandText: stmt}); err != nil {
			_ = e.Close()
			return fmt.Errorf("duckdb setup %q: %w", stmt, err)
		}
	}
	return nil
}

// setupStatements returns the statements that load extensions and apply
// settings, in a stable order.
func setupStatements(p *Params) []string {
	var stmts []string
	for _, ext := range p.Extensions {
		stmts = append(stmts, "INSTALL "+ext, "LOAD "+ext)
	}
	keys := make([]string, 0, len(p.Settings))
	for k := range p.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stmts = append(stmts, fmt.Sprintf("SET %s = '%s'", k, strings.ReplaceAll(p.Settings[k], "'", "''")))
	}
	return stmts
}

var _ executor.Executor = (*Executor)(nil)
