package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/leapquery/pkg/executor"

	// Import dialect to ensure it's registered
	_ "github.com/leapstack-labs/leapquery/pkg/dialects/postgres"
)

func init() {
	executor.Register("postgres", func(l *slog.Logger) executor.Executor { return New(l) })
}
