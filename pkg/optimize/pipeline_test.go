package optimize

import (
	"errors"
	"reflect"
	"testing"

	"github.com/leapstack-labs/leapquery/pkg/compare"
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasses(t *testing.T) {
	base := []string{
		"comparison", "aggregate", "cross-apply", "cross-join", "order-by",
		"redundant-subquery", "redundant-column", "redundant-join", "unused-column",
	}
	assert.Equal(t, base, NewPipeline(Config{Paging: core.PagingLimitOffset}).Passes())
	assert.Equal(t, append(base, "row-number"), NewPipeline(Config{Paging: core.PagingRowNumber}).Passes())
}

// nestedQuery projects names from a pass-through select over a select with
// an ordering and an unused column.
func nestedQuery() *core.Projection {
	ta, inner, outer := core.NewAlias(), core.NewAlias(), core.NewAlias()
	in := customerSelect(inner, ta).SetOrderBy([]core.OrderExpression{
		{Order: core.Descending, Expr: strCol(ta, "name")},
	})
	sel := core.NewSelect(outer, []core.ColumnDeclaration{
		decl(intCol(inner, "id")),
		decl(strCol(inner, "name")),
	}, in, nil)
	projector := core.NewNew(reflect.TypeOf(struct{ Name string }{}),
		core.MemberBinding{Name: "Name", Expr: strCol(outer, "name")})
	return core.NewProjection(sel, projector, nil)
}

func TestPipeline_Optimize(t *testing.T) {
	p := NewPipeline(Config{Paging: core.PagingLimitOffset})
	out, err := p.Optimize(nestedQuery())
	require.NoError(t, err)

	proj := out.(*core.Projection)
	_, isTable := proj.Select.From.(*core.Table)
	assert.True(t, isTable, "pass-through selects are removed")
	assert.Equal(t, []string{"name"}, columnNames(proj.Select.Columns))
	require.Len(t, proj.Select.OrderBy, 1)
	assert.Equal(t, core.Descending, proj.Select.OrderBy[0].Order)

	again, err := p.Optimize(out)
	require.NoError(t, err)
	assert.True(t, compare.Equal(out, again), "optimizing an optimized tree changes nothing")
}

func TestPipeline_NoFixedPoint(t *testing.T) {
	flip := Pass{Name: "flip", Apply: func(_ *Context, n core.Node) (core.Node, error) {
		return core.NewConstant(1, nil), nil
	}}
	p := NewPipelineWithPasses(Config{MaxIterations: 3}, []Pass{flip})

	_, err := p.Optimize(core.NewConstant(1, nil))
	var inv *core.InvariantError
	require.ErrorAs(t, err, &inv)
	assert.Contains(t, inv.Detail, "3 iterations")
	assert.ErrorIs(t, err, core.ErrTranslation)
}

func TestPipeline_PassError(t *testing.T) {
	boom := errors.New("boom")
	fail := Pass{Name: "fail", Apply: func(*Context, core.Node) (core.Node, error) { return nil, boom }}
	p := NewPipelineWithPasses(Config{}, []Pass{fail})

	_, err := p.Optimize(core.NewConstant(1, nil))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "optimize fail")
}

func TestPipeline_NilResult(t *testing.T) {
	empty := Pass{Name: "empty", Apply: func(*Context, core.Node) (core.Node, error) { return nil, nil }}
	_, err := NewPipelineWithPasses(Config{}, []Pass{empty}).Optimize(core.NewConstant(1, nil))
	var inv *core.InvariantError
	assert.ErrorAs(t, err, &inv)
}

func TestPipeline_Trace(t *testing.T) {
	var steps []Step
	identity := Pass{Name: "identity", Apply: func(_ *Context, n core.Node) (core.Node, error) { return n, nil }}
	p := NewPipelineWithPasses(Config{Trace: func(s Step) { steps = append(steps, s) }}, []Pass{identity, identity})

	_, err := p.Optimize(core.NewConstant(1, nil))
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[1].Iteration)
	assert.False(t, steps[1].Changed)
}
