package optimize

import (
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/eval"
)

// RewriteCrossApply turns apply joins whose right side does not depend on
// the left side into ordinary joins. A correlated WHERE on the right side is
// lifted into the join condition.
func RewriteCrossApply(c *Context, n core.Node) (core.Node, error) {
	return core.Rewrite(n, func(e core.Node) (core.Node, error) {
		j, ok := e.(*core.Join)
		if !ok || (j.JoinType != core.CrossApply && j.JoinType != core.OuterApply) {
			return e, nil
		}
		return rewriteApply(c, j)
	})
}

func rewriteApply(c *Context, j *core.Join) (core.Node, error) {
	switch right := j.Right.(type) {
	case *core.Table:
		return core.NewJoin(core.CrossJoin, j.Left, right, nil), nil
	case *core.Select:
		if right.Take != nil || right.Skip != nil || right.Distinct || right.HasGroupBy() || core.HasAggregates(right) {
			return j, nil
		}
		if core.ReferencedAliases(right.SetWhere(nil)).Intersects(core.DeclaredAliases(j.Left)) {
			return j, nil
		}
		where := right.Where
		pc, err := eval.ProjectColumns(nil, where, right.Columns, right.Alias, core.DeclaredAliasList(right.From)...)
		if err != nil {
			return nil, err
		}
		var cond core.Node
		if where != nil {
			cond = pc.Projector
		}
		sel := right.SetWhere(nil).SetColumns(pc.Columns)
		jt := core.CrossJoin
		switch {
		case where == nil:
		case j.JoinType == core.CrossApply:
			jt = core.InnerJoin
		default:
			jt = core.LeftOuter
		}
		return core.NewJoin(jt, j.Left, sel, cond), nil
	}
	return j, nil
}
