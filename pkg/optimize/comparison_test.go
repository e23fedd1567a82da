package optimize

import (
	"reflect"
	"testing"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderLineEntity(a *core.Alias) *core.Entity {
	return core.NewEntity(orderLines, core.NewNew(reflect.TypeOf(orderLine{}),
		core.MemberBinding{Name: "OrderID", Expr: intCol(a, "order_id")},
		core.MemberBinding{Name: "Line", Expr: intCol(a, "line")},
		core.MemberBinding{Name: "Sku", Expr: strCol(a, "sku")},
	))
}

func TestRewriteComparisons_CompositeKey(t *testing.T) {
	a, b := core.NewAlias(), core.NewAlias()
	out, err := RewriteComparisons(nil, core.NewBinary(core.OpEq, orderLineEntity(a), orderLineEntity(b)))
	require.NoError(t, err)

	and, ok := out.(*core.Binary)
	require.True(t, ok)
	assert.Equal(t, core.OpAnd, and.Op)

	terms := core.SplitConjunction(and)
	require.Len(t, terms, 2)
	for i, name := range []string{"order_id", "line"} {
		eq := terms[i].(*core.Binary)
		assert.Equal(t, core.OpEq, eq.Op)
		assert.Equal(t, core.ColumnKey{Alias: a, Name: name}, eq.Left.(*core.Column).Key())
		assert.Equal(t, core.ColumnKey{Alias: b, Name: name}, eq.Right.(*core.Column).Key())
	}
}

func TestRewriteComparisons_NotEqualNegates(t *testing.T) {
	a, b := core.NewAlias(), core.NewAlias()
	out, err := RewriteComparisons(nil, core.NewBinary(core.OpNe, orderLineEntity(a), orderLineEntity(b)))
	require.NoError(t, err)

	not, ok := out.(*core.Unary)
	require.True(t, ok)
	assert.Equal(t, core.OpNot, not.Op)
	assert.Len(t, core.SplitConjunction(not.Operand), 2)
}

func TestRewriteComparisons_EntityAgainstValue(t *testing.T) {
	a := core.NewAlias()
	value := core.NewConstant(orderLine{OrderID: 7, Line: 2, Sku: "x"}, nil)
	out, err := RewriteComparisons(nil, core.NewBinary(core.OpEq, orderLineEntity(a), value))
	require.NoError(t, err)

	terms := core.SplitConjunction(out)
	require.Len(t, terms, 2)
	assert.Equal(t, 7, terms[0].(*core.Binary).Right.(*core.Constant).Value)
	assert.Equal(t, 2, terms[1].(*core.Binary).Right.(*core.Constant).Value)
}

func TestRewriteComparisons_ConstructedValues(t *testing.T) {
	a := core.NewAlias()
	pair := func(names ...string) *core.New {
		var bs []core.MemberBinding
		for _, n := range names {
			bs = append(bs, core.MemberBinding{Name: n, Expr: intCol(a, n)})
		}
		return core.NewNew(reflect.TypeOf(struct{ X, Y, Z int }{}), bs...)
	}

	out, err := RewriteComparisons(nil, core.NewBinary(core.OpEq, pair("X", "Y"), pair("Y", "X")))
	require.NoError(t, err)
	assert.Len(t, core.SplitConjunction(out), 2)

	_, err = RewriteComparisons(nil, core.NewBinary(core.OpEq, pair("Y", "X"), pair("Z", "X")))
	var amb *core.AmbiguousComparisonError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, []string{"X", "Y"}, amb.Left)
	assert.Equal(t, []string{"X", "Z"}, amb.Right)
	assert.ErrorIs(t, err, core.ErrTranslation)
}

func TestRewriteComparisons_OuterJoinedNull(t *testing.T) {
	a := core.NewAlias()
	test := intCol(a, "test")
	oj := core.NewOuterJoined(test, orderLineEntity(a))
	null := core.NewConstant(nil, reflect.TypeOf(orderLine{}))

	out, err := RewriteComparisons(nil, core.NewBinary(core.OpEq, oj, null))
	require.NoError(t, err)
	isNull, ok := out.(*core.IsNull)
	require.True(t, ok)
	assert.Same(t, test, isNull.Expr)

	out, err = RewriteComparisons(nil, core.NewBinary(core.OpNe, null, oj))
	require.NoError(t, err)
	not, ok := out.(*core.Unary)
	require.True(t, ok)
	assert.IsType(t, &core.IsNull{}, not.Operand)
}

func TestRewriteComparisons_NoPrimaryKey(t *testing.T) {
	a, b := core.NewAlias(), core.NewAlias()
	keyless := &core.EntityMapping{Type: reflect.TypeOf(customer{}), Table: "customers"}
	entity := func(x *core.Alias) *core.Entity {
		return core.NewEntity(keyless, core.NewNew(reflect.TypeOf(customer{}),
			core.MemberBinding{Name: "ID", Expr: intCol(x, "id")}))
	}
	_, err := RewriteComparisons(nil, core.NewBinary(core.OpEq, entity(a), entity(b)))
	assert.ErrorIs(t, err, core.ErrTranslation)
}

func TestRewriteComparisons_Unchanged(t *testing.T) {
	a := core.NewAlias()
	in := core.NewBinary(core.OpEq, intCol(a, "id"), core.NewConstant(1, nil))
	out, err := RewriteComparisons(nil, in)
	require.NoError(t, err)
	assert.Same(t, in, out)
}
