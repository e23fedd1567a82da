package duckdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_Connect(t *testing.T) {
	tests := []struct {
		name      string
		setupPath func(t *testing.T) string
		verify    func(t *testing.T, path string)
	}{
		{
			name:      "in-memory",
			setupPath: func(_ *testing.T) string { return ":memory:" },
		},
		{
			name:      "default",
			setupPath: func(_ *testing.T) string { return "" },
		},
		{
			name: "file-based",
			setupPath: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "test.duckdb")
			},
			verify: func(t *testing.T, path string) {
				_, err := os.Stat(path)
				assert.False(t, os.IsNotExist(err), "database file was not created")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(nil)
			path := tt.setupPath(t)
			require.NoError(t, e.Connect(context.Background(), executor.Config{Type: "duckdb", DSN: path}))
			defer func() { _ = e.Close() }()
			assert.True(t, e.IsConnected())

			if tt.verify != nil {
				tt.verify(t, path)
			}
		})
	}
}

func TestExecutor_QueryWithParameters(t *testing.T) {
	ctx := context.Background()
	e := New(nil)
	require.NoError(t, e.Connect(ctx, executor.Config{
		Type:   "duckdb",
		Params: map[string]any{"settings": map[string]any{"threads": "1"}},
	}))
	defer func() { _ = e.Close() }()

	for _, stmt := range []string{
		"CREATE TABLE customers (id INTEGER, name VARCHAR)",
		"INSERT INTO customers VALUES (1, 'ann'), (2, 'bob'), (3, 'cy')",
	} {
		_, err := e.Exec(ctx, &core.QueryCommand{CommandText: stmt})
		require.NoError(t, err)
	}

	cmd := &core.QueryCommand{
		CommandText: "SELECT name FROM customers WHERE id > ? ORDER BY id",
		Parameters:  []core.QueryParameter{{Name: "p0", Value: 1}},
		Bindings:    []core.Binding{{Name: "p0"}},
	}
	rows, err := e.Query(ctx, cmd)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var n string
		require.NoError(t, rows.Scan(&n))
		names = append(names, n)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"bob", "cy"}, names)
}

func TestSetupStatements(t *testing.T) {
	got := setupStatements(&Params{
		Extensions: []string{"json"},
		Settings:   map[string]string{"threads": "4", "memory_limit": "1GB", "search_path": "it's"},
	})
	assert.Equal(t, []string{
		"INSTALL json",
		"LOAD json",
		"SET memory_limit = '1GB'",
		"SET search_path = 'it''s'",
		"SET threads = '4'",
	}, got)
	assert.Empty(t, setupStatements(&Params{}))
}

func TestParseParams(t *testing.T) {
	got, err := executor.DecodeParams[Params](map[string]any{
		"extensions": []any{"httpfs", "spatial"},
		"settings":   map[string]any{"memory_limit": "4GB"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"httpfs", "spatial"}, got.Extensions)
	assert.Equal(t, map[string]string{"memory_limit": "4GB"}, got.Settings)

	_, err = executor.DecodeParams[Params](map[string]any{"extension": "x"})
	assert.Error(t, err)
}
