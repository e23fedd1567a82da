// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapquery/internal/cli/output"
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/executor"
	sqliteexec "github.com/leapstack-labs/leapquery/pkg/executor/sqlite"
	"github.com/stretchr/testify/require"
)

// Mappings describes the entities of a test project.
const Mappings = `entities:
  - name: Customer
    table: customers
    columns:
      - {field: ID, column: id, type: int, pk: true}
      - {field: Name, column: name}
      - {field: City, column: city, nullable: true}
  - name: Order
    table: orders
    columns:
      - {field: ID, column: id, type: int, pk: true}
      - {field: CustomerID, column: customer_id, type: int}
      - {field: Qty, column: qty, type: int}
`

// CustomersQuery pages through customers named $name.
const CustomersQuery = `from: Customer
where:
  - {field: Name, value: $name}
order_by: [ID]
take: 5
`

// Project is a temporary leapquery project.
type Project struct {
	Root     string
	Mappings string
	State    string
}

// SetupTestProject creates a project with a mapping file, a config file and
// one query at queries/customers.yaml.
func SetupTestProject(t *testing.T) *Project {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	p := &Project{
		Root:     root,
		Mappings: filepath.Join(root, "mappings.yaml"),
		State:    filepath.Join(root, ".leapquery", "history.db"),
	}
	require.NoError(t, os.WriteFile(p.Mappings, []byte(Mappings), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "leapquery.yaml"),
		[]byte("dialect: postgres\nmappings: mappings.yaml\n"), 0o600))
	p.WriteQuery(t, "customers.yaml", CustomersQuery)
	return p
}

// WriteQuery writes a query document under queries/ and returns its path.
func (p *Project) WriteQuery(t *testing.T, name, src string) string {
	t.Helper()
	dir := filepath.Join(p.Root, "queries")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	return path
}

// SeedSQLite creates a SQLite database file at path and runs stmts in it.
func SeedSQLite(t *testing.T, path string, stmts ...string) {
	t.Helper()
	ctx := context.Background()
	exec := sqliteexec.New(nil)
	require.NoError(t, exec.Connect(ctx, executor.Config{Type: "sqlite", DSN: path}))
	defer func() { _ = exec.Close() }()
	for _, stmt := range stmts {
		_, err := exec.Exec(ctx, &core.QueryCommand{CommandText: stmt})
		require.NoError(t, err, stmt)
	}
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a renderer writing to buffers. Buffers are never
// terminals, so auto mode renders markdown.
func NewTestRenderer(mode output.Mode) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRenderer(out, errOut, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()
	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", n)
	}
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
