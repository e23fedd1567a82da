package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapquery/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(context.Background(), ":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenMigrates(t *testing.T) {
	store := setupTestStore(t)
	v, err := store.MigrationVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestSQLiteStore_NotOpen(t *testing.T) {
	store := NewSQLiteStore(nil)
	ctx := context.Background()
	assert.ErrorIs(t, store.Log(ctx, &Entry{}), errNotOpen)
	_, err := store.List(ctx, ListOptions{})
	assert.ErrorIs(t, err, errNotOpen)
	_, err = store.Shapes(ctx, 0)
	assert.ErrorIs(t, err, errNotOpen)
	assert.ErrorIs(t, store.Migrate(ctx), errNotOpen)
}

func TestSQLiteStore_LogAndList(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []*Entry{
		{Time: base, Dialect: "postgres", ShapeHash: 0xfeedfacecafebeef, CommandText: "SELECT 1", Parameters: 1, Commands: 1},
		{Time: base.Add(time.Minute), Dialect: "tsql", ShapeHash: 42, CommandText: "SELECT 2", Commands: 2, CacheHit: true, Source: "q.yaml"},
		{Time: base.Add(2 * time.Minute), Dialect: "postgres", ShapeHash: 0xfeedfacecafebeef, CommandText: "SELECT 1", Parameters: 1, Commands: 1, CacheHit: true},
	}
	for _, e := range entries {
		require.NoError(t, store.Log(ctx, e))
		assert.NotEqual(t, uuid.Nil, e.ID, "ids are assigned on log")
	}

	got, err := store.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, entries[2].ID, got[0].ID, "newest first")
	assert.Equal(t, uint64(0xfeedfacecafebeef), got[0].ShapeHash, "high-bit hashes survive")
	assert.True(t, got[0].CacheHit)
	assert.True(t, got[0].Time.Equal(entries[2].Time))

	assert.Equal(t, "tsql", got[1].Dialect)
	assert.Equal(t, 2, got[1].Commands)
	assert.Equal(t, "q.yaml", got[1].Source)

	tests := []struct {
		name string
		opts ListOptions
		want int
	}{
		{"dialect filter", ListOptions{Dialect: "postgres"}, 2},
		{"limit", ListOptions{Limit: 1}, 1},
		{"unknown dialect", ListOptions{Dialect: "oracle"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.opts)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestSQLiteStore_Shapes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	for i := range 3 {
		require.NoError(t, store.Log(ctx, &Entry{Dialect: "sqlite", ShapeHash: 7, CommandText: "SELECT a", Parameters: i}))
	}
	require.NoError(t, store.Log(ctx, &Entry{Dialect: "sqlite", ShapeHash: 8, CommandText: "SELECT b"}))

	shapes, err := store.Shapes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, shapes, 2)
	assert.Equal(t, uint64(7), shapes[0].ShapeHash)
	assert.Equal(t, 3, shapes[0].Count)
	assert.Equal(t, "SELECT a", shapes[0].CommandText)
	assert.False(t, shapes[0].LastSeen.IsZero())
	assert.Equal(t, 1, shapes[1].Count)
}

func TestSQLiteStore_FileReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(ctx, path))
	assert.Equal(t, path, store.Path())
	require.NoError(t, store.Log(ctx, &Entry{Dialect: "duckdb", CommandText: "SELECT 1"}))
	require.NoError(t, store.Close())

	reopened := NewSQLiteStore(nil)
	require.NoError(t, reopened.Open(ctx, path))
	defer func() { _ = reopened.Close() }()
	got, err := reopened.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "duckdb", got[0].Dialect)
}

func TestHashText(t *testing.T) {
	for _, h := range []uint64{0, 1, 0xffffffffffffffff, 0x8000000000000000} {
		got, err := parseHash(formatHash(h))
		require.NoError(t, err)
		assert.Equal(t, h, got)
	}
	_, err := parseHash("zz")
	assert.Error(t, err)
}
