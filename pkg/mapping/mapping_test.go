package mapping

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Customer struct {
	ID        int `db:"id,pk"`
	Name      string
	AccountNo string `db:"account"`
	Internal  string `db:"-"`
	hidden    string //nolint:unused
}

type lineItem struct {
	OrderID int `db:",pk"`
	Line    int `db:",pk"`
	SKU     string
}

func (lineItem) TableName() string { return "sales.order_lines" }

func TestTagResolver(t *testing.T) {
	r := NewTagResolver()
	m, err := r.Mapping(reflect.TypeOf(&Customer{}))
	require.NoError(t, err)

	assert.Equal(t, "customer", m.Table)
	assert.Equal(t, reflect.TypeOf(Customer{}), m.Type)
	require.Len(t, m.Members, 3)
	assert.Equal(t, core.MemberMapping{Field: "ID", Column: "id", Type: core.IntType, PrimaryKey: true}, m.Members[0])
	assert.Equal(t, "name", m.Members[1].Column)
	assert.Equal(t, "account", m.Members[2].Column)

	again, err := r.Mapping(reflect.TypeOf(Customer{}))
	require.NoError(t, err)
	assert.Same(t, m, again)
}

func TestTagResolver_TableNameAndKeys(t *testing.T) {
	m, err := NewTagResolver().Mapping(reflect.TypeOf(lineItem{}))
	require.NoError(t, err)
	assert.Equal(t, "sales", m.Schema)
	assert.Equal(t, "order_lines", m.Table)
	keys := m.PrimaryKeys()
	require.Len(t, keys, 2)
	assert.Equal(t, "order_id", keys[0].Column)
	assert.Equal(t, "sku", m.Members[2].Column)
}

func TestTagResolver_Errors(t *testing.T) {
	type badOption struct {
		ID int `db:"id,primary"`
	}
	type identity struct {
		ID int `db:"id,pk,generated"`
	}
	type duplicate struct {
		A int `db:"x"`
		B int `db:"x"`
	}
	type empty struct {
		a int //nolint:unused
	}
	tests := []struct {
		name string
		t    reflect.Type
		want string
	}{
		{"nil", nil, "no type"},
		{"not struct", reflect.TypeOf(1), "not a struct"},
		{"bad option", reflect.TypeOf(badOption{}), `unknown tag option "primary"`},
		{"identity option", reflect.TypeOf(identity{}), `unknown tag option "generated"`},
		{"duplicate", reflect.TypeOf(duplicate{}), `column "x" already mapped by A`},
		{"empty", reflect.TypeOf(empty{}), "no mapped fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTagResolver().Mapping(tt.t)
			var me *MappingError
			require.ErrorAs(t, err, &me)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTagResolver_Concurrent(t *testing.T) {
	r := NewTagResolver()
	var wg sync.WaitGroup
	results := make([]*core.EntityMapping, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = r.Mapping(reflect.TypeOf(Customer{}))
		}()
	}
	wg.Wait()
	for _, m := range results {
		assert.Same(t, results[0], m)
	}
}

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"ID":         "id",
		"CustomerID": "customer_id",
		"HTTPServer": "http_server",
		"OrderLine":  "order_line",
		"name":       "name",
		"SKU":        "sku",
	}
	for in, want := range tests {
		assert.Equal(t, want, snakeCase(in), in)
	}
}

const schemaYAML = `
entities:
  - name: Customer
    table: customers
    columns:
      - {field: ID, column: id, type: int, pk: true}
      - {field: Name, column: name}
      - {column: notes, nullable: true}
  - name: OrderLine
    schema: sales
    columns:
      - {field: OrderID, type: int64, pk: true}
      - {field: Total, type: float64}
`

func TestYAMLResolver(t *testing.T) {
	r, err := Load(strings.NewReader(schemaYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"Customer", "OrderLine"}, r.Names())

	m, err := r.Entity("customer")
	require.NoError(t, err)
	assert.Equal(t, "customers", m.Table)
	require.Len(t, m.Members, 3)
	assert.Equal(t, "Notes", m.Members[2].Field)
	assert.Equal(t, reflect.TypeOf((*string)(nil)), m.Members[2].Type)

	f, ok := m.Type.FieldByName("ID")
	require.True(t, ok)
	assert.Equal(t, "id", f.Tag.Get("db"))
	assert.Equal(t, core.IntType, f.Type)

	byType, err := r.Mapping(m.Type)
	require.NoError(t, err)
	assert.Same(t, m, byType)

	lines, err := r.Entity("OrderLine")
	require.NoError(t, err)
	assert.Equal(t, "order_line", lines.Table)
	assert.Equal(t, "sales", lines.Schema)
	assert.Equal(t, "order_id", lines.Members[0].Column)

	_, err = r.Entity("Invoice")
	assert.ErrorIs(t, err, ErrUnknownEntity)
	_, err = r.Mapping(reflect.TypeOf(Customer{}))
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestYAMLResolver_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown key", "entities:\n  - name: A\n    colour: red\n", "invalid YAML"},
		{"generated column", "entities:\n  - name: A\n    columns: [{column: id, generated: true}]\n", "invalid YAML"},
		{"no name", "entities:\n  - table: a\n    columns: [{column: id}]\n", "entity without a name"},
		{"no columns", "entities:\n  - name: A\n", `entity "A" has no columns`},
		{"bad type", "entities:\n  - name: A\n    columns: [{column: id, type: uuid}]\n", `unknown type "uuid"`},
		{"bad field", "entities:\n  - name: A\n    columns: [{field: id}]\n", `field "id" must be an identifier`},
		{"duplicate field", "entities:\n  - name: A\n    columns: [{field: ID}, {field: ID, column: other}]\n", `field "ID" defined twice`},
		{"duplicate entity", "entities:\n  - name: A\n    columns: [{column: id}]\n  - name: a\n    columns: [{column: id}]\n", `entity "a" defined twice`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "mappings.yaml")
	require.NoError(t, os.WriteFile(good, []byte(schemaYAML), 0o600))
	r, err := LoadFile(good)
	require.NoError(t, err)
	assert.Len(t, r.Names(), 2)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("entities:\n  - name: A\n"), 0o600))
	_, err = LoadFile(bad)
	assert.ErrorContains(t, err, bad+": ")

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
