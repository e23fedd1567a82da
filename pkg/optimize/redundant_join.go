package optimize

import (
	"github.com/leapstack-labs/leapquery/pkg/compare"
	"github.com/leapstack-labs/leapquery/pkg/core"
)

// RemoveRedundantJoins drops a join whose right side and condition repeat an
// earlier join of the same tree. References to the dropped source are
// redirected to the surviving one. Joins without a condition are kept since
// repeating them multiplies rows.
func RemoveRedundantJoins(_ *Context, n core.Node) (core.Node, error) {
	r := &redundantJoinRemover{mapped: make(map[*core.Alias]*core.Alias)}
	return r.Visit(n)
}

type redundantJoinRemover struct {
	mapped map[*core.Alias]*core.Alias
}

func (r *redundantJoinRemover) Visit(n core.Node) (core.Node, error) {
	switch x := n.(type) {
	case *core.Column:
		if a, ok := r.mapped[x.Alias]; ok {
			return core.NewColumn(x.Type(), x.SQLType, a, x.Name), nil
		}
		return x, nil
	case *core.Join:
		v, err := core.VisitChildren(r, x)
		if err != nil {
			return nil, err
		}
		j := v.(*core.Join)
		right, ok := j.Right.(core.Aliased)
		if !ok || j.Condition == nil {
			return j, nil
		}
		left, _ := j.Left.(*core.Join)
		if similar := findSimilarRight(left, j); similar != nil {
			r.mapped[right.SourceAlias()] = similar.SourceAlias()
			return j.Left, nil
		}
		return j, nil
	}
	return core.VisitChildren(r, n)
}

func findSimilarRight(j, target *core.Join) core.Aliased {
	if j == nil {
		return nil
	}
	if j.JoinType == target.JoinType && j.Condition != nil {
		if right, ok := j.Right.(core.Aliased); ok && compare.Equal(j.Right, target.Right) {
			if j.Condition == target.Condition {
				return right
			}
			scope := core.NewScopedDictionary[*core.Alias, *core.Alias](nil)
			scope.Add(right.SourceAlias(), target.Right.(core.Aliased).SourceAlias())
			if compare.EqualScoped(j.Condition, target.Condition, nil, scope) {
				return right
			}
		}
	}
	left, _ := j.Left.(*core.Join)
	if found := findSimilarRight(left, target); found != nil {
		return found
	}
	right, _ := j.Right.(*core.Join)
	return findSimilarRight(right, target)
}
