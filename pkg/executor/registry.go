package executor

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Factory creates an unconnected executor.
type Factory func(*slog.Logger) Executor

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds an executor factory to the registry.
// Called by executor implementations in their init() functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves an executor factory by name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// New creates an unconnected executor for cfg.Type.
// A nil logger discards output.
func New(cfg Config, logger *slog.Logger) (Executor, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("executor type not specified")
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownExecutorError{Type: cfg.Type, Available: List()}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return factory(logger), nil
}

// List returns all registered executor names (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if an executor type is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// UnknownExecutorError is returned when an unknown executor type is requested.
type UnknownExecutorError struct {
	Type      string
	Available []string
}

func (e *UnknownExecutorError) Error() string {
	return fmt.Sprintf("unknown executor type %q\nAvailable executors: %v\nHint: Check target.type in leapquery.yaml", e.Type, e.Available)
}
