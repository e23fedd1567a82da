package translate

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapquery/internal/testutil"
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
	"github.com/leapstack-labs/leapquery/pkg/dialects/postgres"
	"github.com/leapstack-labs/leapquery/pkg/dialects/sqlite"
	"github.com/leapstack-labs/leapquery/pkg/dialects/tsql"
	"github.com/leapstack-labs/leapquery/pkg/executor"
	sqliteexec "github.com/leapstack-labs/leapquery/pkg/executor/sqlite"
	"github.com/leapstack-labs/leapquery/pkg/mapping"
	"github.com/leapstack-labs/leapquery/pkg/plan"
	"github.com/leapstack-labs/leapquery/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

type customer struct {
	ID    int     `db:"id,pk"`
	Name  string  `db:"name"`
	Notes *string `db:"notes"`
}

func (customer) TableName() string { return "customers" }

type order struct {
	ID         int `db:"id,pk"`
	CustomerID int
	Qty        int
}

func (order) TableName() string { return "orders" }

var resolver = mapping.NewTagResolver()

func entity(t *testing.T, v any) *core.EntityMapping {
	t.Helper()
	m, err := resolver.Mapping(reflect.TypeOf(v))
	require.NoError(t, err)
	return m
}

func field(name string) func(query.Row) core.Node {
	return func(r query.Row) core.Node { return r.Field(name) }
}

func node(t *testing.T, q *query.Query) core.Node {
	t.Helper()
	n, err := q.Node()
	require.NoError(t, err)
	return n
}

func newTranslator(t *testing.T, d *dialect.Dialect, cache *plan.Cache) *Translator {
	t.Helper()
	tr, err := New(Config{Dialect: d, Cache: cache, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	return tr
}

// mockExecutor runs commands against sqlmock.
type mockExecutor struct {
	executor.BaseSQLExecutor
}

func newMock(t *testing.T) (*mockExecutor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return &mockExecutor{executor.BaseSQLExecutor{DB: db}}, mock
}

func page(t *testing.T) core.Node {
	return node(t, query.From(entity(t, customer{})).OrderBy(field("ID")).Skip(10).Take(5))
}

func TestTranslate_PagingLimitOffset(t *testing.T) {
	tr := newTranslator(t, postgres.Postgres, nil)
	res, err := tr.Translate(context.Background(), page(t))
	require.NoError(t, err)

	require.Len(t, res.Commands, 1)
	text := res.Commands[0].CommandText
	assert.Equal(t, "SELECT\n  t0.id,\n  t0.name,\n  t0.notes\nFROM customers AS t0\nORDER BY\n  t0.id\nLIMIT 5\nOFFSET 10", text)
	assert.Equal(t, "postgres", res.Dialect)
	assert.NotZero(t, res.ShapeHash)

	exec, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"id", "name", "notes"})
	for id := 11; id <= 15; id++ {
		rows.AddRow(id, fmt.Sprintf("c%02d", id), nil)
	}
	mock.ExpectQuery(text).WillReturnRows(rows)

	got, err := Query[customer](context.Background(), tr, exec, page(t))
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, c := range got {
		assert.Equal(t, 11+i, c.ID)
		assert.Equal(t, fmt.Sprintf("c%02d", 11+i), c.Name)
		assert.Nil(t, c.Notes)
	}
}

func TestTranslate_ParametersAreInputs(t *testing.T) {
	tr := newTranslator(t, postgres.Postgres, nil)
	n := node(t, query.From(entity(t, customer{})).Where(func(c query.Row) core.Node {
		return query.Eq(c.Field("Name"), query.Local("bob"))
	}).GroupBy(field("Notes")).Select(func(g query.Group) core.Node {
		return g.Items()
	}))
	res, err := tr.Translate(context.Background(), n)
	require.NoError(t, err)

	var params int
	for _, cmd := range res.Commands {
		for _, p := range cmd.Parameters {
			assert.Equal(t, core.DirectionInput, p.Direction, p.Name)
			params++
		}
	}
	assert.NotZero(t, params)
}

func TestTranslate_PagingRowNumber(t *testing.T) {
	tr := newTranslator(t, tsql.TSQL, nil)
	res, err := tr.Translate(context.Background(), page(t))
	require.NoError(t, err)

	text := res.Commands[0].CommandText
	assert.Contains(t, text, "ROW_NUMBER() OVER (ORDER BY")
	assert.Contains(t, text, "BETWEEN")
	assert.NotContains(t, text, "OFFSET")
	assert.True(t, strings.Contains(text[strings.LastIndex(text, "FROM"):], "ORDER BY"),
		"the outer select keeps the ordering:\n%s", text)
}

func TestTranslate_PagingAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	exec := sqliteexec.New(testutil.NewTestLogger(t))
	require.NoError(t, exec.Connect(ctx, executor.Config{Type: "sqlite"}))
	defer func() { _ = exec.Close() }()

	_, err := exec.Exec(ctx, &core.QueryCommand{CommandText: "CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL, notes TEXT)"})
	require.NoError(t, err)
	for id := 20; id >= 1; id-- {
		_, err := exec.Exec(ctx, &core.QueryCommand{
			CommandText: "INSERT INTO customers (id, name) VALUES (?, ?)",
			Parameters:  []core.QueryParameter{{Name: "id", Value: id}, {Name: "name", Value: fmt.Sprintf("c%02d", id)}},
			Bindings:    []core.Binding{{Name: "id"}, {Name: "name"}},
		})
		require.NoError(t, err)
	}

	tr := newTranslator(t, sqlite.SQLite, plan.NewCache(16))
	got, err := Query[customer](ctx, tr, exec, page(t))
	require.NoError(t, err)

	ids := make([]int, len(got))
	for i, c := range got {
		ids[i] = c.ID
	}
	assert.Equal(t, []int{11, 12, 13, 14, 15}, ids)

	n, err := Single[int](ctx, tr, exec, mustNode(query.From(entity(t, customer{})).Where(func(c query.Row) core.Node {
		return query.Gt(c.Field("ID"), query.Local(17))
	}).Count()))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

type noteGroup struct {
	Notes *string
	N     int
	Items []customer
}

func TestTranslate_GroupByNullableKeyAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	exec := sqliteexec.New(testutil.NewTestLogger(t))
	require.NoError(t, exec.Connect(ctx, executor.Config{Type: "sqlite"}))
	defer func() { _ = exec.Close() }()

	for _, stmt := range []string{
		"CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL, notes TEXT)",
		"INSERT INTO customers (id, name, notes) VALUES (1, 'a', NULL), (2, 'b', NULL), (3, 'c', 'vip')",
	} {
		_, err := exec.Exec(ctx, &core.QueryCommand{CommandText: stmt})
		require.NoError(t, err)
	}

	n := mustNode(query.From(entity(t, customer{})).GroupBy(func(c query.Row) core.Node {
		return c.Field("Notes")
	}).Select(func(g query.Group) core.Node {
		return core.NewNew(reflect.TypeOf(noteGroup{}),
			core.MemberBinding{Name: "Notes", Expr: g.Key()},
			core.MemberBinding{Name: "N", Expr: g.Count()},
			core.MemberBinding{Name: "Items", Expr: g.Items()})
	}).Node())

	tr := newTranslator(t, sqlite.SQLite, nil)
	groups, err := Query[noteGroup](ctx, tr, exec, n)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	for _, g := range groups {
		if g.Notes == nil {
			assert.Equal(t, 2, g.N)
			assert.Len(t, g.Items, 2)
			for _, c := range g.Items {
				assert.Nil(t, c.Notes)
			}
			continue
		}
		assert.Equal(t, "vip", *g.Notes)
		assert.Equal(t, 1, g.N)
		require.Len(t, g.Items, 1)
		assert.Equal(t, 3, g.Items[0].ID)
	}
}

func mustNode(n core.Node, err error) core.Node {
	if err != nil {
		panic(err)
	}
	return n
}

func TestTranslate_CacheRebinds(t *testing.T) {
	cache := plan.NewCache(8)
	tr := newTranslator(t, postgres.Postgres, cache)
	byName := func(name string) core.Node {
		return node(t, query.From(entity(t, customer{})).Where(func(c query.Row) core.Node {
			return query.Eq(c.Field("Name"), query.Local(name))
		}))
	}

	first, err := tr.Translate(context.Background(), byName("ann"))
	require.NoError(t, err)
	second, err := tr.Translate(context.Background(), byName("bob"))
	require.NoError(t, err)

	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.ShapeHash, second.ShapeHash)
	assert.Equal(t, first.Commands[0].CommandText, second.Commands[0].CommandText)
	assert.Equal(t, "ann", first.Commands[0].Parameters[0].Value)
	assert.Equal(t, "bob", second.Commands[0].Parameters[0].Value)
	assert.Equal(t, 1, cache.Len())
}

func TestTranslate_Concurrent(t *testing.T) {
	defer goleak.VerifyNone(t)

	cache := plan.NewCache(8)
	tr := newTranslator(t, postgres.Postgres, cache)
	m := entity(t, customer{})

	// Strings are parameters, so every translation shares one shape.
	var g errgroup.Group
	for i := range 16 {
		root := node(t, query.From(m).Where(func(c query.Row) core.Node {
			return query.Eq(c.Field("Name"), query.Local(fmt.Sprintf("c%02d", i)))
		}))
		g.Go(func() error {
			_, err := tr.Translate(context.Background(), root)
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, cache.Len())
	hits, misses := cache.Stats()
	assert.Equal(t, int64(16), hits+misses)
}

func TestSingle_Count(t *testing.T) {
	tr := newTranslator(t, postgres.Postgres, nil)
	count := func() core.Node { return mustNode(query.From(entity(t, order{})).Count()) }

	res, err := tr.Translate(context.Background(), count())
	require.NoError(t, err)
	assert.Equal(t, "SELECT\n  COUNT(*) AS c0\nFROM orders AS t0", res.Commands[0].CommandText)

	exec, mock := newMock(t)
	mock.ExpectQuery(res.Commands[0].CommandText).WillReturnRows(sqlmock.NewRows([]string{"c0"}).AddRow(7))

	n, err := Single[int](context.Background(), tr, exec, count())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestExplain(t *testing.T) {
	tr := newTranslator(t, tsql.TSQL, nil)
	ex, err := tr.Explain(context.Background(), page(t))
	require.NoError(t, err)

	require.NotEmpty(t, ex.Steps)
	assert.GreaterOrEqual(t, ex.Iterations(), 2, "a changing round is followed by a quiet one")
	assert.NotEmpty(t, ex.Changed())
	assert.NotNil(t, ex.Evaluated)
	assert.Contains(t, ex.Dump(), "Select")
	assert.NotEmpty(t, ex.Commands)

	last := ex.Steps[len(ex.Steps)-1]
	assert.False(t, last.Changed)
}

func TestTranslate_Errors(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, dialect.ErrDialectRequired)

	tr := newTranslator(t, postgres.Postgres, nil)
	_, err = tr.Translate(context.Background(), nil)
	var inv *core.InvariantError
	assert.ErrorAs(t, err, &inv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.Translate(ctx, page(t))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = Query[customer](context.Background(), tr, nil, page(t))
	assert.ErrorIs(t, err, plan.ErrExecutorRequired)
}

func TestTranslator_Run(t *testing.T) {
	tr := newTranslator(t, postgres.Postgres, nil)
	exec, mock := newMock(t)

	res, err := tr.Translate(context.Background(), page(t))
	require.NoError(t, err)
	mock.ExpectQuery(res.Commands[0].CommandText).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "notes"}).AddRow(11, "c11", "vip"))

	res, v, err := tr.Run(context.Background(), exec, page(t))
	require.NoError(t, err)
	assert.NotNil(t, res.Plan)
	got, ok := v.([]customer)
	require.True(t, ok, "got %T", v)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Notes)
	assert.Equal(t, "vip", *got[0].Notes)
}
