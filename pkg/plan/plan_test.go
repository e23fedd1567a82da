package plan

import (
	"context"
	"database/sql"
	"reflect"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
	"github.com/leapstack-labs/leapquery/pkg/dialects/postgres"
	"github.com/leapstack-labs/leapquery/pkg/dialects/sqlite"
	"github.com/leapstack-labs/leapquery/pkg/dialects/tsql"
	"github.com/leapstack-labs/leapquery/pkg/eval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type customer struct {
	ID    int
	Name  string
	Notes *string
}

type customerSkus struct {
	Name string
	Skus []string
}

var customers = &core.EntityMapping{Type: reflect.TypeOf(customer{}), Table: "customers"}

var orderLines = &core.EntityMapping{Table: "order_lines"}

// sqlExecutor runs commands through database/sql.
type sqlExecutor struct {
	db *sql.DB
}

func (e sqlExecutor) Query(ctx context.Context, cmd *core.QueryCommand) (core.Rows, error) {
	args, err := cmd.Args()
	if err != nil {
		return nil, err
	}
	return e.db.QueryContext(ctx, cmd.CommandText, args...)
}

func (e sqlExecutor) Exec(ctx context.Context, cmd *core.QueryCommand) (int64, error) {
	args, err := cmd.Args()
	if err != nil {
		return 0, err
	}
	res, err := e.db.ExecContext(ctx, cmd.CommandText, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func newMock(t *testing.T) (sqlExecutor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return sqlExecutor{db: db}, mock
}

func col(t reflect.Type, a *core.Alias, name string) *core.Column {
	return core.NewColumn(t, core.SQLType{}, a, name)
}

func decl(c *core.Column) core.ColumnDeclaration {
	return core.ColumnDeclaration{Name: c.Name, Expr: c}
}

var notesType = reflect.TypeOf((*string)(nil))

// customerQuery selects customers with the given name as customer values.
func customerQuery(name string) *core.Projection {
	ta, sa := core.NewAlias(), core.NewAlias()
	sel := core.NewSelect(sa, []core.ColumnDeclaration{
		decl(col(core.IntType, ta, "id")),
		decl(col(core.StringType, ta, "name")),
		decl(col(notesType, ta, "notes")),
	}, core.NewTable(ta, customers),
		core.NewBinary(core.OpEq, col(core.StringType, ta, "name"), core.NewConstant(name, nil)))
	projector := core.NewNew(reflect.TypeOf(customer{}),
		core.MemberBinding{Name: "ID", Expr: col(core.IntType, sa, "id")},
		core.MemberBinding{Name: "Name", Expr: col(core.StringType, sa, "name")},
		core.MemberBinding{Name: "Notes", Expr: col(notesType, sa, "notes")},
	)
	return core.NewProjection(sel, projector, nil)
}

// countQuery counts customers.
func countQuery(aggregator string) *core.Projection {
	ta, sa := core.NewAlias(), core.NewAlias()
	sel := core.NewSelect(sa, []core.ColumnDeclaration{
		{Name: "c0", Expr: core.NewAggregate(core.IntType, core.AggCount, nil, false)},
	}, core.NewTable(ta, customers), nil)
	return core.NewProjection(sel, col(core.IntType, sa, "c0"), Aggregator(aggregator, core.IntType))
}

func build(t *testing.T, d *dialect.Dialect, root core.Node) *Plan {
	t.Helper()
	cctx := core.NewCompilationContext(d)
	tree, err := eval.Parameterize(cctx, root)
	require.NoError(t, err)
	p, err := Build(cctx, tree)
	require.NoError(t, err)
	return p
}

func TestBuild_Projection(t *testing.T) {
	p := build(t, postgres.Postgres, customerQuery("ann"))

	cmds := p.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "SELECT\n  t0.id,\n  t0.name,\n  t0.notes\nFROM customers AS t0\nWHERE\n  t0.name = $1", cmds[0].CommandText)
	require.Len(t, cmds[0].Parameters, 1)
	assert.Equal(t, "p0", cmds[0].Parameters[0].Name)
	assert.Equal(t, "ann", cmds[0].Parameters[0].Value)
	assert.Equal(t, reflect.TypeOf([]customer(nil)), p.Type)
	assert.True(t, p.Cacheable())

	exec, mock := newMock(t)
	mock.ExpectQuery(cmds[0].CommandText).
		WithArgs("ann").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "notes"}).
			AddRow(1, "ann", nil).
			AddRow(2, "ann", "vip"))

	got, err := Execute[[]customer](context.Background(), p, exec)
	require.NoError(t, err)
	vip := "vip"
	assert.Equal(t, []customer{
		{ID: 1, Name: "ann"},
		{ID: 2, Name: "ann", Notes: &vip},
	}, got)
}

func TestBuild_Aggregators(t *testing.T) {
	const countSQL = "SELECT\n  COUNT(*) AS c0\nFROM customers AS t0"

	tests := []struct {
		name       string
		aggregator string
		rows       []int
		want       any
		wantErr    error
	}{
		{name: "single", aggregator: Single, rows: []int{3}, want: 3},
		{name: "first of none", aggregator: First, rows: nil, wantErr: ErrNoElements},
		{name: "first or default of none", aggregator: FirstOrDefault, rows: nil, want: 0},
		{name: "single of many", aggregator: SingleOrDefault, rows: []int{1, 2}, wantErr: ErrMultipleElements},
		{name: "any", aggregator: Any, rows: []int{1}, want: true},
		{name: "any of none", aggregator: Any, rows: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := build(t, postgres.Postgres, countQuery(tt.aggregator))
			exec, mock := newMock(t)
			rows := sqlmock.NewRows([]string{"c0"})
			for _, r := range tt.rows {
				rows.AddRow(r)
			}
			mock.ExpectQuery(countSQL).WillReturnRows(rows)

			got, err := p.Run(context.Background(), exec)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuild_NestedProjection(t *testing.T) {
	ta, sa := core.NewAlias(), core.NewAlias()
	outer := core.NewSelect(sa, []core.ColumnDeclaration{
		decl(col(core.IntType, ta, "id")),
		decl(col(core.StringType, ta, "name")),
	}, core.NewTable(ta, customers), nil)

	la, ls := core.NewAlias(), core.NewAlias()
	inner := core.NewSelect(ls, []core.ColumnDeclaration{decl(col(core.StringType, la, "sku"))},
		core.NewTable(la, orderLines),
		core.NewBinary(core.OpEq, col(core.IntType, la, "order_id"), col(core.IntType, sa, "id")))
	skus := core.NewProjection(inner, col(core.StringType, ls, "sku"), nil)

	projector := core.NewNew(reflect.TypeOf(customerSkus{}),
		core.MemberBinding{Name: "Name", Expr: col(core.StringType, sa, "name")},
		core.MemberBinding{Name: "Skus", Expr: skus},
	)
	p := build(t, postgres.Postgres, core.NewProjection(outer, projector, nil))

	cmds := p.Commands()
	require.Len(t, cmds, 2)
	innerSQL := "SELECT\n  t0.sku\nFROM order_lines AS t0\nWHERE\n  t0.order_id = $1"
	assert.Equal(t, innerSQL, cmds[1].CommandText)
	require.Len(t, cmds[1].Parameters, 1)
	assert.Equal(t, "o0", cmds[1].Parameters[0].Name)

	exec, mock := newMock(t)
	mock.ExpectQuery(cmds[0].CommandText).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "ann").AddRow(2, "bob"))
	mock.ExpectQuery(innerSQL).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"sku"}).AddRow("a").AddRow("b"))
	mock.ExpectQuery(innerSQL).WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"sku"}))

	got, err := Execute[[]customerSkus](context.Background(), p, exec)
	require.NoError(t, err)
	assert.Equal(t, []customerSkus{
		{Name: "ann", Skus: []string{"a", "b"}},
		{Name: "bob", Skus: []string{}},
	}, got)
}

func TestBuild_VariablesAndCaching(t *testing.T) {
	inQuery := func() *core.Projection {
		ta, sa := core.NewAlias(), core.NewAlias()
		sel := core.NewSelect(sa, []core.ColumnDeclaration{decl(col(core.IntType, ta, "id"))},
			core.NewTable(ta, customers),
			core.NewInValues(col(core.IntType, ta, "id"), []core.Node{core.NewConstant([]int{1, 2}, nil)}))
		return core.NewProjection(sel, col(core.IntType, sa, "id"), nil)
	}

	pg := build(t, postgres.Postgres, inQuery())
	assert.True(t, pg.Cacheable())
	assert.Contains(t, pg.Commands()[0].CommandText, "t0.id = ANY($1)")
	require.Len(t, pg.Commands()[0].Variables, 1)
	assert.Equal(t, []int{1, 2}, pg.Commands()[0].Variables[0].Array)

	lite := build(t, sqlite.SQLite, inQuery())
	assert.False(t, lite.Cacheable())
	args, err := lite.Commands()[0].Args()
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, args)
}

func TestBuild_SequentialCommands(t *testing.T) {
	n := core.NewVariable(core.IntType, core.SQLType{Kind: core.SQLInt64}, "n")
	count := core.NewDeclaration([]core.VariableDeclaration{{
		Name:    "n",
		SQLType: core.SQLType{Kind: core.SQLInt64},
		Expr:    core.NewAggregate(core.IntType, core.AggCount, nil, false),
	}}, core.NewSelect(core.NewAlias(), nil, core.NewTable(core.NewAlias(), customers), nil))
	root := core.NewBlock(count, core.NewBinary(core.OpAdd, n, core.NewConstant(1, nil)))

	p := build(t, postgres.Postgres, root)
	cmds := p.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "SELECT\n  COUNT(*) AS n\nFROM customers AS t0", cmds[0].CommandText)
	assert.Equal(t, "SELECT $1 + 1", cmds[1].CommandText)
	assert.Equal(t, core.IntType, p.Type)

	exec, mock := newMock(t)
	mock.ExpectQuery(cmds[0].CommandText).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(3))
	mock.ExpectQuery(cmds[1].CommandText).WithArgs(3).WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(4))

	got, err := Execute[int](context.Background(), p, exec)
	require.NoError(t, err)
	assert.Equal(t, 4, got)
}

func TestBuild_SequentialIf(t *testing.T) {
	ta := core.NewAlias()
	check := core.NewExists(core.NewSelect(core.NewAlias(), nil, core.NewTable(ta, customers),
		core.NewBinary(core.OpEq, col(core.IntType, ta, "id"), core.NewConstant(1, nil))))
	root := core.NewIf(check, countQuery(Single), countQuery(Single))

	p := build(t, postgres.Postgres, root)
	require.Len(t, p.Commands(), 3)
	assert.True(t, strings.HasPrefix(p.Commands()[0].CommandText, "SELECT EXISTS ("))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("COUNT").WillReturnRows(sqlmock.NewRows([]string{"c0"}).AddRow(7))

	got, err := p.Run(context.Background(), sqlExecutor{db: db})
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuild_Batch(t *testing.T) {
	count := core.NewDeclaration([]core.VariableDeclaration{{
		Name:    "n",
		SQLType: core.SQLType{Kind: core.SQLInt64},
		Expr:    core.NewAggregate(core.IntType, core.AggCount, nil, false),
	}}, core.NewSelect(core.NewAlias(), nil, core.NewTable(core.NewAlias(), customers), nil))
	root := core.NewBlock(count, countQuery(Single))

	p := build(t, tsql.TSQL, root)
	cmds := p.Commands()
	require.Len(t, cmds, 1)
	assert.True(t, strings.HasPrefix(cmds[0].CommandText, "DECLARE @n "))
	assert.Contains(t, cmds[0].CommandText, "SELECT\n  @n = COUNT(*)\n")
	assert.Equal(t, core.IntType, p.Type)

	exec, mock := newMock(t)
	mock.ExpectQuery(cmds[0].CommandText).WillReturnRows(sqlmock.NewRows([]string{"c0"}).AddRow(5))
	got, err := Execute[int](context.Background(), p, exec)
	require.NoError(t, err)
	assert.Equal(t, 5, got)
}

func TestBuild_Errors(t *testing.T) {
	t.Run("no dialect", func(t *testing.T) {
		_, err := Build(core.NewCompilationContext(nil), countQuery(Single))
		require.ErrorIs(t, err, dialect.ErrDialectRequired)
	})
	t.Run("bare select", func(t *testing.T) {
		_, err := Build(core.NewCompilationContext(postgres.Postgres), countQuery(Single).Select)
		var inv *core.InvariantError
		require.ErrorAs(t, err, &inv)
	})
	t.Run("undefined column", func(t *testing.T) {
		q := countQuery(Single)
		bad := core.NewProjection(q.Select, col(core.IntType, q.Select.Alias, "missing"), nil)
		_, err := Build(core.NewCompilationContext(postgres.Postgres), bad)
		var undefined *core.UndefinedColumnError
		require.ErrorAs(t, err, &undefined)
		assert.Equal(t, "missing", undefined.Column)
		require.ErrorIs(t, err, core.ErrTranslation)
	})
	t.Run("unknown aggregator", func(t *testing.T) {
		q := countQuery(Single)
		bad := core.NewProjection(q.Select, q.Projector, Aggregator("Median", core.IntType))
		_, err := Build(core.NewCompilationContext(postgres.Postgres), bad)
		var unsupported *core.UnsupportedError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, "Median", unsupported.Name)
	})
}

func TestExecute_Errors(t *testing.T) {
	p := build(t, postgres.Postgres, countQuery(Single))

	_, err := p.Run(context.Background(), nil)
	require.ErrorIs(t, err, ErrExecutorRequired)

	exec, mock := newMock(t)
	mock.ExpectQuery("SELECT\n  COUNT(*) AS c0\nFROM customers AS t0").
		WillReturnRows(sqlmock.NewRows([]string{"c0"}).AddRow(1))
	_, err = Execute[string](context.Background(), p, exec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan produces int, not string")
}
