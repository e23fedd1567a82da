package duckdb

import (
	"log/slog"

	"github.com/leapstack-labs/leapquery/pkg/executor"

	// Import dialect to ensure it's registered
	_ "github.com/leapstack-labs/leapquery/pkg/dialects/duckdb"
)

func init() {
	executor.Register("duckdb", func(l *slog.Logger) executor.Executor { return New(l) })
}
