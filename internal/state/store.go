// Package state keeps a local, append-only log of translations in SQLite.
// The log is for inspection; plans are never read back from it.
package state

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is one logged translation.
type Entry struct {
	ID          uuid.UUID
	Time        time.Time
	Dialect     string
	ShapeHash   uint64
	CommandText string
	Parameters  int
	Commands    int
	CacheHit    bool
	// Source names where the query came from, such as a document path.
	Source string
}

// Shape summarizes the entries that share a dialect and shape hash.
type Shape struct {
	Dialect     string
	ShapeHash   uint64
	Count       int
	LastSeen    time.Time
	CommandText string
}

// ListOptions filters List.
type ListOptions struct {
	// Dialect restricts entries to one dialect when set.
	Dialect string
	// Limit caps the result; zero means DefaultListLimit.
	Limit int
}

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 50

// Store records translations.
type Store interface {
	Log(ctx context.Context, e *Entry) error
	List(ctx context.Context, opts ListOptions) ([]Entry, error)
	Shapes(ctx context.Context, limit int) ([]Shape, error)
	Close() error
}

func formatHash(h uint64) string { return fmt.Sprintf("%016x", h) }

func parseHash(s string) (uint64, error) {
	var h uint64
	if _, err := fmt.Sscanf(s, "%x", &h); err != nil {
		return 0, fmt.Errorf("invalid shape hash %q: %w", s, err)
	}
	return h, nil
}
