package format

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
	"github.com/leapstack-labs/leapquery/pkg/dialects/ansi"
	"github.com/leapstack-labs/leapquery/pkg/dialects/postgres"
	"github.com/leapstack-labs/leapquery/pkg/dialects/sqlite"
	"github.com/leapstack-labs/leapquery/pkg/dialects/tsql"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type customer struct {
	ID      int
	Name    string
	Notes   *string
	Active  bool
	Created time.Time
}

var customers = &core.EntityMapping{Type: reflect.TypeOf(customer{}), Table: "customers"}

var orderLines = &core.EntityMapping{Table: "order_lines"}

func intCol(a *core.Alias, name string) *core.Column {
	return core.NewColumn(core.IntType, core.SQLType{}, a, name)
}

func strCol(a *core.Alias, name string) *core.Column {
	return core.NewColumn(core.StringType, core.SQLType{}, a, name)
}

func boolCol(a *core.Alias, name string) *core.Column {
	return core.NewColumn(core.BoolType, core.SQLType{}, a, name)
}

func decl(c *core.Column) core.ColumnDeclaration {
	return core.ColumnDeclaration{Name: c.Name, Expr: c}
}

func constant(v any) *core.Constant { return core.NewConstant(v, nil) }

// filterQuery selects two customer columns with a parameterized filter,
// an ordering and a limit.
func filterQuery() *core.Select {
	ta := core.NewAlias()
	where := core.NewBinary(core.OpAnd,
		core.NewBinary(core.OpEq, strCol(ta, "name"),
			core.NewNamedValue("p0", core.SQLType{Kind: core.SQLString}, constant("ann"))),
		core.NewBinary(core.OpGt, intCol(ta, "id"), constant(5)))
	return core.NewSelect(core.NewAlias(), []core.ColumnDeclaration{
		decl(intCol(ta, "id")),
		decl(strCol(ta, "name")),
	}, core.NewTable(ta, customers), where).
		SetOrderBy([]core.OrderExpression{{Order: core.Descending, Expr: strCol(ta, "name")}}).
		SetTake(constant(10))
}

func pagedQuery(skip, take core.Node) *core.Select {
	ta := core.NewAlias()
	return core.NewSelect(core.NewAlias(), []core.ColumnDeclaration{decl(intCol(ta, "id"))},
		core.NewTable(ta, customers), nil).
		SetOrderBy([]core.OrderExpression{{Order: core.Ascending, Expr: intCol(ta, "id")}}).
		SetSkip(skip).
		SetTake(take)
}

func leftJoinQuery() *core.Select {
	c, l := core.NewAlias(), core.NewAlias()
	join := core.NewJoin(core.LeftOuter, core.NewTable(c, customers), core.NewTable(l, orderLines),
		core.NewBinary(core.OpEq, intCol(c, "id"), intCol(l, "order_id")))
	return core.NewSelect(core.NewAlias(), []core.ColumnDeclaration{
		decl(strCol(c, "name")),
		decl(strCol(l, "sku")),
	}, join, core.NewBinary(core.OpEq, strCol(l, "sku"), constant(nil)))
}

func derivedTableQuery() *core.Select {
	ta, inner := core.NewAlias(), core.NewAlias()
	in := core.NewSelect(inner, []core.ColumnDeclaration{
		decl(intCol(ta, "id")),
		decl(strCol(ta, "name")),
	}, core.NewTable(ta, customers), nil)
	return core.NewSelect(core.NewAlias(), []core.ColumnDeclaration{decl(strCol(inner, "name"))}, in,
		core.NewBinary(core.OpGt, intCol(inner, "id"), constant(1)))
}

func booleanQuery() *core.Select {
	ta := core.NewAlias()
	where := core.NewBinary(core.OpAnd,
		boolCol(ta, "active"),
		core.Not(core.NewBinary(core.OpEq, strCol(ta, "name"), constant("x"))))
	return core.NewSelect(core.NewAlias(), []core.ColumnDeclaration{
		{Name: "big", Expr: core.NewBinary(core.OpGt, intCol(ta, "id"), constant(100))},
	}, core.NewTable(ta, customers), where)
}

func ifExistsCommand() *core.If {
	ta, tb := core.NewAlias(), core.NewAlias()
	check := core.NewExists(core.NewSelect(core.NewAlias(), nil, core.NewTable(ta, customers),
		core.NewBinary(core.OpEq, intCol(ta, "id"), constant(1))))
	names := core.NewSelect(core.NewAlias(), []core.ColumnDeclaration{decl(strCol(tb, "name"))},
		core.NewTable(tb, customers), nil)
	return core.NewIf(check, names, constant(0))
}

func render(res *Result) []byte {
	var b strings.Builder
	b.WriteString(res.Text)
	b.WriteString("\n")
	for _, bd := range res.Bindings {
		switch {
		case !bd.Variable:
			fmt.Fprintf(&b, "-- bind %s\n", bd.Name)
		case bd.Element < 0:
			fmt.Fprintf(&b, "-- bind %s[*]\n", bd.Name)
		default:
			fmt.Fprintf(&b, "-- bind %s[%d]\n", bd.Name, bd.Element)
		}
	}
	return []byte(b.String())
}

func TestFormat_Golden(t *testing.T) {
	tests := []struct {
		name    string
		dialect *dialect.Dialect
		node    core.Node
	}{
		{"filter_postgres", postgres.Postgres, filterQuery()},
		{"filter_tsql", tsql.TSQL, filterQuery()},
		{"skip_only_sqlite", sqlite.SQLite, pagedQuery(constant(20), nil)},
		{"offset_fetch_ansi", ansi.ANSI, pagedQuery(constant(10), constant(5))},
		{"left_join_postgres", postgres.Postgres, leftJoinQuery()},
		{"derived_table_postgres", postgres.Postgres, derivedTableQuery()},
		{"booleans_postgres", postgres.Postgres, booleanQuery()},
		{"booleans_tsql", tsql.TSQL, booleanQuery()},
		{"if_exists_tsql", tsql.TSQL, ifExistsCommand()},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Format(tt.dialect, tt.node)
			require.NoError(t, err)
			g.Assert(t, tt.name, render(res))
		})
	}
}

func TestFormat_AliasInvariance(t *testing.T) {
	for _, d := range []*dialect.Dialect{postgres.Postgres, tsql.TSQL, sqlite.SQLite} {
		t.Run(d.Name, func(t *testing.T) {
			a, err := Format(d, filterQuery())
			require.NoError(t, err)
			b, err := Format(d, filterQuery())
			require.NoError(t, err)
			assert.Equal(t, a.Text, b.Text)
			assert.Equal(t, a.Bindings, b.Bindings)
		})
	}
}

func TestFormat_Projection(t *testing.T) {
	sel := filterQuery()
	proj := core.NewProjection(sel, intCol(sel.Alias, "id"), nil)

	fromProjection, err := Format(postgres.Postgres, proj)
	require.NoError(t, err)
	fromSelect, err := Format(postgres.Postgres, sel)
	require.NoError(t, err)
	assert.Equal(t, fromSelect.Text, fromProjection.Text)
	assert.False(t, fromSelect.Named)

	named, err := Format(tsql.TSQL, sel)
	require.NoError(t, err)
	assert.True(t, named.Named)
}

// whereLine formats a one-table select filtered by where and returns the
// condition line.
func whereLine(t *testing.T, d *dialect.Dialect, where func(ta *core.Alias) core.Node) string {
	t.Helper()
	ta := core.NewAlias()
	sel := core.NewSelect(core.NewAlias(), []core.ColumnDeclaration{decl(intCol(ta, "id"))},
		core.NewTable(ta, customers), where(ta))
	res, err := Format(d, sel)
	require.NoError(t, err)
	lines := strings.Split(res.Text, "\n")
	for i, line := range lines {
		if line == "WHERE" && i+1 < len(lines) {
			return strings.TrimSpace(lines[i+1])
		}
	}
	t.Fatalf("no WHERE clause in:\n%s", res.Text)
	return ""
}

func TestFormat_Expressions(t *testing.T) {
	notes := func(ta *core.Alias) *core.Column {
		return core.NewColumn(reflect.TypeOf((*string)(nil)), core.SQLType{}, ta, "notes")
	}
	tests := []struct {
		name    string
		dialect *dialect.Dialect
		where   func(ta *core.Alias) core.Node
		want    string
	}{
		{"equals null", postgres.Postgres, func(ta *core.Alias) core.Node {
			return core.NewBinary(core.OpEq, notes(ta), constant(nil))
		}, "t0.notes IS NULL"},
		{"not equals null", postgres.Postgres, func(ta *core.Alias) core.Node {
			return core.NewBinary(core.OpNe, notes(ta), constant(nil))
		}, "t0.notes IS NOT NULL"},
		{"negated is null", postgres.Postgres, func(ta *core.Alias) core.Node {
			return core.Not(core.NewIsNull(notes(ta)))
		}, "t0.notes IS NOT NULL"},
		{"concat postgres", postgres.Postgres, func(ta *core.Alias) core.Node {
			return core.NewBinary(core.OpEq, core.NewBinary(core.OpAdd, strCol(ta, "name"), constant("x")), constant("yx"))
		}, "t0.name || 'x' = 'yx'"},
		{"concat tsql", tsql.TSQL, func(ta *core.Alias) core.Node {
			return core.NewBinary(core.OpEq, core.NewBinary(core.OpAdd, strCol(ta, "name"), constant("x")), constant("yx"))
		}, "t0.name + 'x' = 'yx'"},
		{"or inside and", postgres.Postgres, func(ta *core.Alias) core.Node {
			return core.NewBinary(core.OpAnd,
				core.NewBinary(core.OpOr,
					core.NewBinary(core.OpEq, intCol(ta, "id"), constant(1)),
					core.NewBinary(core.OpEq, intCol(ta, "id"), constant(2))),
				core.NewBinary(core.OpEq, strCol(ta, "name"), constant("x")))
		}, "(t0.id = 1 OR t0.id = 2) AND t0.name = 'x'"},
		{"right-nested subtraction", postgres.Postgres, func(ta *core.Alias) core.Node {
			return core.NewBinary(core.OpGt,
				core.NewBinary(core.OpSub, intCol(ta, "id"), core.NewBinary(core.OpSub, intCol(ta, "id"), constant(1))),
				constant(0))
		}, "t0.id - (t0.id - 1) > 0"},
		{"between", postgres.Postgres, func(ta *core.Alias) core.Node {
			return core.NewBetween(intCol(ta, "id"), constant(11), constant(15))
		}, "t0.id BETWEEN 11 AND 15"},
		{"in values", postgres.Postgres, func(ta *core.Alias) core.Node {
			return core.NewInValues(intCol(ta, "id"), []core.Node{constant(1), constant(2)})
		}, "t0.id IN (1, 2)"},
		{"inline slice", sqlite.SQLite, func(ta *core.Alias) core.Node {
			return core.NewInValues(intCol(ta, "id"), []core.Node{constant([]int{3, 4})})
		}, "t0.id IN (3, 4)"},
		{"empty in", postgres.Postgres, func(ta *core.Alias) core.Node {
			return core.NewInValues(intCol(ta, "id"), nil)
		}, "1 = 0"},
		{"coalesce", postgres.Postgres, func(ta *core.Alias) core.Node {
			return core.NewBinary(core.OpEq, core.NewBinary(core.OpCoalesce, strCol(ta, "notes"), constant("")), constant("x"))
		}, "COALESCE(t0.notes, '') = 'x'"},
		{"prefix call", postgres.Postgres, func(ta *core.Alias) core.Node {
			return core.NewCall("strings.HasPrefix", core.BoolType, nil, strCol(ta, "name"), constant("a"))
		}, "t0.name LIKE 'a' || '%'"},
		{"date part", postgres.Postgres, func(ta *core.Alias) core.Node {
			created := core.NewColumn(reflect.TypeOf(time.Time{}), core.SQLType{}, ta, "created")
			return core.NewBinary(core.OpEq, core.NewMember(created, "Year", core.IntType), constant(2024))
		}, "EXTRACT(YEAR FROM t0.created) = 2024"},
		{"true without booleans", tsql.TSQL, func(*core.Alias) core.Node {
			return constant(true)
		}, "1 = 1"},
		{"true with booleans", postgres.Postgres, func(*core.Alias) core.Node {
			return constant(true)
		}, "TRUE"},
		{"negated flag without booleans", tsql.TSQL, func(ta *core.Alias) core.Node {
			return core.Not(boolCol(ta, "active"))
		}, "NOT (t0.active = 1)"},
		{"outer joined value", postgres.Postgres, func(ta *core.Alias) core.Node {
			return core.NewBinary(core.OpGt, core.NewOuterJoined(intCol(ta, "id"), intCol(ta, "id")), constant(3))
		}, "t0.id > 3"},
		{"escaped literal", postgres.Postgres, func(ta *core.Alias) core.Node {
			return core.NewBinary(core.OpEq, strCol(ta, "name"), constant("o'brien"))
		}, "t0.name = 'o''brien'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, whereLine(t, tt.dialect, tt.where))
		})
	}
}

func TestFormat_Variables(t *testing.T) {
	ids := func() *core.NamedValue {
		return core.NewNamedValue("v0", core.SQLType{Kind: core.SQLInt64}, constant([]int{1, 2, 3}))
	}
	tests := []struct {
		name     string
		dialect  *dialect.Dialect
		want     string
		bindings []core.Binding
	}{
		{"array parameter", postgres.Postgres, "t0.id = ANY($1)", []core.Binding{
			{Name: "v0", Variable: true, Element: -1},
		}},
		{"positional expansion", sqlite.SQLite, "t0.id IN (?, ?, ?)", []core.Binding{
			{Name: "v0", Variable: true, Element: 0},
			{Name: "v0", Variable: true, Element: 1},
			{Name: "v0", Variable: true, Element: 2},
		}},
		{"named expansion", tsql.TSQL, "t0.id IN (@v0_0, @v0_1, @v0_2)", []core.Binding{
			{Name: "v0", Variable: true, Element: 0},
			{Name: "v0", Variable: true, Element: 1},
			{Name: "v0", Variable: true, Element: 2},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := core.NewAlias()
			sel := core.NewSelect(core.NewAlias(), []core.ColumnDeclaration{decl(intCol(ta, "id"))},
				core.NewTable(ta, customers), core.NewInValues(intCol(ta, "id"), []core.Node{ids()}))
			res, err := Format(tt.dialect, sel)
			require.NoError(t, err)
			assert.Contains(t, res.Text, "WHERE\n  "+tt.want)
			assert.Equal(t, tt.bindings, res.Bindings)
		})
	}

	t.Run("empty variable", func(t *testing.T) {
		ta := core.NewAlias()
		empty := core.NewNamedValue("v0", core.SQLType{}, constant([]int{}))
		sel := core.NewSelect(core.NewAlias(), []core.ColumnDeclaration{decl(intCol(ta, "id"))},
			core.NewTable(ta, customers), core.NewInValues(intCol(ta, "id"), []core.Node{empty}))
		res, err := Format(sqlite.SQLite, sel)
		require.NoError(t, err)
		assert.Contains(t, res.Text, "WHERE\n  1 = 0")
		assert.Empty(t, res.Bindings)
	})
}

func TestFormat_PlaceholderReuse(t *testing.T) {
	ta := core.NewAlias()
	p0 := func() core.Node { return core.NewNamedValue("p0", core.SQLType{}, constant("ann")) }
	where := core.NewBinary(core.OpOr,
		core.NewBinary(core.OpEq, strCol(ta, "name"), p0()),
		core.NewBinary(core.OpEq, strCol(ta, "notes"), p0()))
	sel := core.NewSelect(core.NewAlias(), []core.ColumnDeclaration{decl(intCol(ta, "id"))},
		core.NewTable(ta, customers), where)

	tests := []struct {
		dialect *dialect.Dialect
		want    string
		count   int
	}{
		{postgres.Postgres, "t0.name = $1 OR t0.notes = $1", 1},
		{tsql.TSQL, "t0.name = @p0 OR t0.notes = @p0", 1},
		{sqlite.SQLite, "t0.name = ? OR t0.notes = ?", 2},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.Name, func(t *testing.T) {
			res, err := Format(tt.dialect, sel)
			require.NoError(t, err)
			assert.Contains(t, res.Text, tt.want)
			assert.Len(t, res.Bindings, tt.count)
		})
	}
}

func TestFormat_RowNumber(t *testing.T) {
	ta := core.NewAlias()
	number := core.NewRowNumber([]core.OrderExpression{{Order: core.Descending, Expr: strCol(ta, "name")}})
	sel := core.NewSelect(core.NewAlias(), []core.ColumnDeclaration{
		decl(intCol(ta, "id")),
		{Name: "_rownum", Expr: number},
		{Name: "n", Expr: core.NewRowNumber(nil)},
	}, core.NewTable(ta, customers), nil)

	res, err := Format(tsql.TSQL, sel)
	require.NoError(t, err)
	assert.Contains(t, res.Text, "  ROW_NUMBER() OVER (ORDER BY t0.name DESC) AS _rownum,\n")
	assert.Contains(t, res.Text, "  ROW_NUMBER() OVER (ORDER BY (SELECT 1)) AS n\n")
}

func TestFormat_PagingErrors(t *testing.T) {
	_, err := Format(tsql.TSQL, pagedQuery(constant(10), nil))
	var inv *core.InvariantError
	require.ErrorAs(t, err, &inv)
	assert.ErrorIs(t, err, core.ErrTranslation)

	_, err = Format(postgres.Postgres, pagedQuery(nil, nil).SetReverse(true))
	require.ErrorAs(t, err, &inv)
}

func TestFormat_LateralJoin(t *testing.T) {
	c, l, s := core.NewAlias(), core.NewAlias(), core.NewAlias()
	right := core.NewSelect(s, []core.ColumnDeclaration{decl(strCol(l, "sku"))}, core.NewTable(l, orderLines),
		core.NewBinary(core.OpEq, intCol(l, "order_id"), intCol(c, "id")))
	sel := core.NewSelect(core.NewAlias(), []core.ColumnDeclaration{decl(strCol(s, "sku"))},
		core.NewJoin(core.OuterApply, core.NewTable(c, customers), right, nil), nil)

	res, err := Format(postgres.Postgres, sel)
	require.NoError(t, err)
	assert.Contains(t, res.Text, "\nLEFT JOIN LATERAL (\n")
	assert.Contains(t, res.Text, ") AS t0\n  ON TRUE")

	res, err = Format(tsql.TSQL, sel)
	require.NoError(t, err)
	assert.Contains(t, res.Text, "\nOUTER APPLY (\n")
	assert.NotContains(t, res.Text, "\n  ON ")

	_, err = Format(sqlite.SQLite, sel)
	var unsupported *core.UnsupportedError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, core.KindJoin, unsupported.Kind)
}

func TestFormat_Declaration(t *testing.T) {
	ta := core.NewAlias()
	source := core.NewSelect(core.NewAlias(), nil, core.NewTable(ta, customers), nil)
	d := core.NewDeclaration([]core.VariableDeclaration{{
		Name:    "n",
		SQLType: core.SQLType{Kind: core.SQLInt64},
		Expr:    core.NewAggregate(core.IntType, core.AggCount, nil, false),
	}}, source)

	res, err := Format(tsql.TSQL, core.NewBlock(d, core.NewVariable(core.IntType, core.SQLType{}, "n")))
	require.NoError(t, err)
	assert.Equal(t, "DECLARE @n BIGINT;\nSELECT\n  @n = COUNT(*)\nFROM customers AS t0;\nSELECT @n", res.Text)

	_, err = Format(postgres.Postgres, d)
	var unsupported *core.UnsupportedError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, core.KindDeclaration, unsupported.Kind)
}

func TestFormat_Unsupported(t *testing.T) {
	ta := core.NewAlias()
	tests := []struct {
		name string
		expr core.Node
		kind core.Kind
	}{
		{"unknown call", core.NewCall("strings.Fields", core.StringType, nil, strCol(ta, "name")), core.KindCall},
		{"unknown member", core.NewMember(strCol(ta, "name"), "Len", core.IntType), core.KindMember},
		{"local invoke", core.NewInvoke(strings.ToUpper, strCol(ta, "name")), core.KindInvoke},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := core.NewSelect(core.NewAlias(), []core.ColumnDeclaration{{Name: "x", Expr: tt.expr}},
				core.NewTable(ta, customers), nil)
			_, err := Format(postgres.Postgres, sel)
			var unsupported *core.UnsupportedError
			require.ErrorAs(t, err, &unsupported)
			assert.Equal(t, tt.kind, unsupported.Kind)
		})
	}
}

func TestDebug(t *testing.T) {
	out := Debug(derivedTableQuery())
	lines := strings.Split(out, "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "Select a0 [name]", lines[0])
	assert.Contains(t, out, "  Select a1 [id name]\n    Table a2 customers")
	assert.Contains(t, out, "Column a1.id")
}
