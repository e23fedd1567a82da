// Package postgres runs commands against PostgreSQL through pgx.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/leapquery/pkg/executor"
)

// DefaultDSN is used when the target has no DSN.
const DefaultDSN = "host=localhost port=5432 sslmode=disable"

// Params holds PostgreSQL session settings, decoded from Config.Params.
type Params struct {
	// SearchPath sets the session search_path.
	SearchPath string `mapstructure:"search_path"`

	// ApplicationName is reported in pg_stat_activity. Defaults to leapquery.
	ApplicationName string `mapstructure:"application_name"`

	// StatementTimeout aborts statements running longer than this.
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`

	// MaxOpenConns bounds the pool. Zero leaves database/sql's default.
	MaxOpenConns int `mapstructure:"max_open_conns"`
}

// Executor implements executor.Executor for PostgreSQL.
type Executor struct {
	executor.BaseSQLExecutor
}

// New creates a PostgreSQL executor.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{BaseSQLExecutor: executor.BaseSQLExecutor{Logger: logger}}
}

// DialectName returns the SQL dialect for this executor.
func (e *Executor) DialectName() string { return "postgres" }

// Connect establishes a connection to PostgreSQL.
func (e *Executor) Connect(ctx context.Context, cfg executor.Config) error {
	params, err := executor.DecodeParams[Params](cfg.Params)
	if err != nil {
		return err
	}
	cc, err := connConfig(cfg.DSN, params)
	if err != nil {
		return err
	}

	e.Logger.Debug("connecting to postgres", slog.String("host", cc.Host), slog.String("database", cc.Database))

	db := stdlib.OpenDB(*cc)
	if params.MaxOpenConns > 0 {
		db.SetMaxOpenConns(params.MaxOpenConns)
	}
	return e.Attach(ctx, db, cfg)
}

// connConfig parses dsn and applies the session params as runtime
// parameters.
func connConfig(dsn string, params *Params) (*pgx.ConnConfig, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	cc, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	if params.SearchPath != "" {
		cc.RuntimeParams["search_path"] = params.SearchPath
	}
	if params.ApplicationName != "" {
		cc.RuntimeParams["application_name"] = params.ApplicationName
	} else if _, ok := cc.RuntimeParams["application_name"]; !ok {
		cc.RuntimeParams["application_name"] = "leapquery"
	}
	if params.StatementTimeout > 0 {
		cc.RuntimeParams["statement_timeout"] = strconv.FormatInt(params.StatementTimeout.Milliseconds(), 10)
	}
	return cc, nil
}

var _ executor.Executor = (*Executor)(nil)
