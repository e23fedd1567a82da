package eval

import (
	"reflect"
	"testing"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exprLanguage lets binary arithmetic run on the server.
type exprLanguage struct{ stubLanguage }

func (exprLanguage) CanBeColumn(n core.Node) bool {
	b, ok := n.(*core.Binary)
	return ok && !b.Op.IsLogical()
}

type clientOnly struct{ stubLanguage }

func (clientOnly) CanBeColumn(core.Node) bool { return false }

type row struct {
	ID    int
	Name  string
	Twice int
}

func rowProjector(a *core.Alias) core.Node {
	id := core.NewColumn(core.IntType, core.SQLType{}, a, "id")
	return core.NewNew(reflect.TypeOf(row{}),
		core.MemberBinding{Name: "ID", Expr: id},
		core.MemberBinding{Name: "Name", Expr: core.NewColumn(core.StringType, core.SQLType{}, a, "name")},
		core.MemberBinding{Name: "Twice", Expr: core.NewBinary(core.OpMul, id, core.NewConstant(2, nil))},
	)
}

func TestProjectColumns(t *testing.T) {
	tests := []struct {
		name      string
		lang      Language
		wantNames []string
	}{
		{"client computes expressions", clientOnly{}, []string{"id", "name"}},
		{"server computes expressions", exprLanguage{}, []string{"id", "name", "c0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner, outer := core.NewAlias(), core.NewAlias()
			pc, err := ProjectColumns(tt.lang, rowProjector(inner), nil, outer, inner)
			require.NoError(t, err)

			var names []string
			for _, c := range pc.Columns {
				names = append(names, c.Name)
			}
			assert.Equal(t, tt.wantNames, names)

			refs := core.ReferencedAliases(pc.Projector)
			assert.True(t, refs.Has(outer))
			assert.False(t, refs.Has(inner), "projector must read through the new alias")
		})
	}
}

func TestProjectColumns_ReusesExisting(t *testing.T) {
	inner, outer := core.NewAlias(), core.NewAlias()
	existing := []core.ColumnDeclaration{
		{Name: "id", Expr: core.NewColumn(core.IntType, core.SQLType{}, inner, "id")},
	}
	pc, err := ProjectColumns(clientOnly{}, rowProjector(inner), existing, outer, inner)
	require.NoError(t, err)
	assert.Len(t, pc.Columns, 2)
}

func TestProjectColumns_NameCollision(t *testing.T) {
	a, b, outer := core.NewAlias(), core.NewAlias(), core.NewAlias()
	projector := core.NewNew(reflect.TypeOf(struct{ X, Y int }{}),
		core.MemberBinding{Name: "X", Expr: core.NewColumn(core.IntType, core.SQLType{}, a, "id")},
		core.MemberBinding{Name: "Y", Expr: core.NewColumn(core.IntType, core.SQLType{}, b, "id")},
	)
	pc, err := ProjectColumns(clientOnly{}, projector, nil, outer, a, b)
	require.NoError(t, err)
	require.Len(t, pc.Columns, 2)
	assert.Equal(t, "id", pc.Columns[0].Name)
	assert.Equal(t, "id1", pc.Columns[1].Name)
}

func TestProjectColumns_AggregatesAndOuterScope(t *testing.T) {
	inner, outer, foreign := core.NewAlias(), core.NewAlias(), core.NewAlias()
	count := core.NewAggregate(core.IntType, core.AggCount, nil, false)
	far := core.NewColumn(core.IntType, core.SQLType{}, foreign, "k")
	projector := core.NewNew(reflect.TypeOf(struct{ N, K int }{}),
		core.MemberBinding{Name: "N", Expr: count},
		core.MemberBinding{Name: "K", Expr: far},
	)
	pc, err := ProjectColumns(clientOnly{}, projector, nil, outer, inner)
	require.NoError(t, err)
	require.Len(t, pc.Columns, 1)
	assert.Same(t, count, pc.Columns[0].Expr)

	k, _ := pc.Projector.(*core.New).Binding("K")
	assert.Same(t, far, k, "columns of other scopes stay in place")
}

func TestClassify(t *testing.T) {
	a := core.NewAlias()
	col := core.NewColumn(core.IntType, core.SQLType{}, a, "id")
	sum := core.NewBinary(core.OpAdd, col, col)
	assert.Equal(t, MustBeColumn, Classify(nil, col))
	assert.Equal(t, MayBeColumn, Classify(exprLanguage{}, sum))
	assert.Equal(t, Local, Classify(clientOnly{}, sum))
	assert.Equal(t, Local, Classify(nil, sum))
}
