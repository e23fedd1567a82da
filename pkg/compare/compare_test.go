package compare

import (
	"testing"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/stretchr/testify/assert"
)

var customers = &core.EntityMapping{Table: "customers"}

// buildQuery builds SELECT c.id, c.name FROM customers c WHERE c.id = <v>
// projected through a fresh set of aliases on every call.
func buildQuery(value any, param string) *core.Projection {
	ta, sa := core.NewAlias(), core.NewAlias()
	id := core.NewColumn(core.IntType, core.SQLType{Kind: core.SQLInt64}, ta, "id")
	name := core.NewColumn(core.StringType, core.SQLType{Kind: core.SQLString}, ta, "name")
	sel := &core.Select{
		Alias:   sa,
		Columns: []core.ColumnDeclaration{{Name: "id", Expr: id}, {Name: "name", Expr: name}},
		From:    core.NewTable(ta, customers),
		Where:   core.NewBinary(core.OpEq, id, core.NewNamedValue(param, core.SQLType{}, core.NewConstant(value, nil))),
	}
	return core.NewProjection(sel, core.NewColumn(core.StringType, core.SQLType{}, sa, "name"), nil)
}

func TestEqual_AliasInvariance(t *testing.T) {
	a := buildQuery(1, "p0")
	b := buildQuery(1, "p0")

	assert.NotSame(t, a.Select.Alias, b.Select.Alias)
	assert.True(t, Equal(a, b))
	assert.Equal(t, Hash(a), Hash(b))
}

func TestEqual_Values(t *testing.T) {
	tests := []struct {
		name string
		a, b *core.Projection
		opts []Option
		want bool
	}{
		{"same value", buildQuery(1, "p0"), buildQuery(1, "p0"), nil, true},
		{"different value", buildQuery(1, "p0"), buildQuery(2, "p0"), nil, false},
		{"different value ignored", buildQuery(1, "p0"), buildQuery(2, "p0"), []Option{IgnoreValues()}, true},
		{"different name", buildQuery(1, "p0"), buildQuery(1, "p1"), []Option{IgnoreValues()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b, tt.opts...))
		})
	}
}

func TestHash_IgnoreValues(t *testing.T) {
	a := buildQuery(1, "p0")
	b := buildQuery(2, "p0")
	assert.Equal(t, Hash(a, IgnoreValues()), Hash(b, IgnoreValues()))
	assert.NotEqual(t, Hash(a), Hash(b))
}

func TestEqual_ColumnsMustReferenceCorrespondingAliases(t *testing.T) {
	a := buildQuery(1, "p0")
	b := buildQuery(1, "p0")
	// point b's projector at an alias the select does not declare
	stray := core.NewProjection(b.Select, core.NewColumn(core.StringType, core.SQLType{}, core.NewAlias(), "name"), nil)
	assert.False(t, Equal(a, stray))
}

func TestEqual_JoinMapsBothSides(t *testing.T) {
	build := func() *core.Join {
		l, r := core.NewAlias(), core.NewAlias()
		cond := core.NewBinary(core.OpEq,
			core.NewColumn(core.IntType, core.SQLType{}, l, "id"),
			core.NewColumn(core.IntType, core.SQLType{}, r, "customer_id"))
		return core.NewJoin(core.InnerJoin, core.NewTable(l, customers), core.NewTable(r, &core.EntityMapping{Table: "orders"}), cond)
	}
	assert.True(t, Equal(build(), build()))

	swapped := build()
	swapped = core.NewJoin(core.InnerJoin, swapped.Right, swapped.Left, swapped.Condition)
	assert.False(t, Equal(build(), swapped))
}

func TestEqual_LambdaParameters(t *testing.T) {
	build := func() *core.Lambda {
		p := core.NewParameter("x", core.IntType)
		return core.NewLambda(core.NewBinary(core.OpAdd, p, core.NewConstant(1, nil)), p)
	}
	assert.True(t, Equal(build(), build()))
	assert.Equal(t, Hash(build()), Hash(build()))

	p := core.NewParameter("x", core.IntType)
	free := core.NewLambda(core.NewBinary(core.OpAdd, core.NewParameter("x", core.IntType), core.NewConstant(1, nil)), p)
	assert.False(t, Equal(build(), free))
}

func TestEqualScoped_PresetAliases(t *testing.T) {
	a, b := core.NewAlias(), core.NewAlias()
	ca := core.NewColumn(core.IntType, core.SQLType{}, a, "id")
	cb := core.NewColumn(core.IntType, core.SQLType{}, b, "id")

	assert.False(t, Equal(ca, cb))

	scope := core.NewScopedDictionary[*core.Alias, *core.Alias](nil)
	scope.Add(a, b)
	assert.True(t, EqualScoped(ca, cb, nil, scope))
}
