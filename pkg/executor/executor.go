// Package executor runs formatted commands against a database.
//
// This package holds the contract every executor implements, a registry of
// executor factories and BaseSQLExecutor, the database/sql plumbing the
// concrete executors embed. Concrete executors live in subpackages and
// register themselves on import:
//
//	import _ "github.com/leapstack-labs/leapquery/pkg/executor/sqlite"
package executor

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/leapquery/pkg/core"
)

// Config selects and configures an executor.
type Config struct {
	// Type is the registered executor name (postgres, duckdb, sqlite).
	Type string `koanf:"type"`
	// DSN is the driver connection string. For file databases it is the path.
	DSN string `koanf:"dsn"`
	// Params holds executor-specific settings, decoded by each executor.
	Params map[string]any `koanf:"params"`
}

// Executor is a connectable core.Executor.
type Executor interface {
	core.Executor

	// Connect opens the connection described by cfg.
	Connect(ctx context.Context, cfg Config) error

	// Close releases the connection.
	Close() error

	// DialectName names the SQL dialect the database speaks.
	DialectName() string
}

// DecodeParams decodes cfg.Params into a T. Unknown keys are errors; scalar
// values are converted where the target type asks for it.
func DecodeParams[T any](params map[string]any) (*T, error) {
	out := new(T)
	if len(params) == 0 {
		return out, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating params decoder: %w", err)
	}
	if err := dec.Decode(params); err != nil {
		return nil, fmt.Errorf("invalid executor params: %w", err)
	}
	return out, nil
}
