package sqlite

import (
	"log/slog"

	"github.com/leapstack-labs/leapquery/pkg/executor"

	// Import dialect to ensure it's registered
	_ "github.com/leapstack-labs/leapquery/pkg/dialects/sqlite"
)

func init() {
	executor.Register("sqlite", func(l *slog.Logger) executor.Executor { return New(l) })
}
