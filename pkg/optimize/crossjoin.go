package optimize

import (
	"github.com/leapstack-labs/leapquery/pkg/core"
)

// RewriteCrossJoins moves the WHERE terms of a select that relate both sides
// of a cross join into an inner join condition.
func RewriteCrossJoins(_ *Context, n core.Node) (core.Node, error) {
	r := &crossJoinRewriter{}
	return r.Visit(n)
}

type crossJoinRewriter struct {
	currentWhere core.Node
	// consumed holds the where terms moved into join conditions by the
	// joins of the select being visited.
	consumed map[core.Node]struct{}
}

func (r *crossJoinRewriter) Visit(n core.Node) (core.Node, error) {
	switch x := n.(type) {
	case *core.Select:
		return r.visitSelect(x)
	case *core.Join:
		return r.visitJoin(x)
	}
	return core.VisitChildren(r, n)
}

func (r *crossJoinRewriter) visitSelect(s *core.Select) (core.Node, error) {
	savedWhere, savedConsumed := r.currentWhere, r.consumed
	defer func() { r.currentWhere, r.consumed = savedWhere, savedConsumed }()

	r.currentWhere = s.Where
	r.consumed = nil
	from, err := core.Optional(r, s.From)
	if err != nil {
		return nil, err
	}
	where := s.Where
	if len(r.consumed) > 0 {
		var rest []core.Node
		for _, t := range core.SplitConjunction(s.Where) {
			if _, ok := r.consumed[t]; !ok {
				rest = append(rest, t)
			}
		}
		where = core.JoinConjunction(rest)
	}

	// Nested selects in the remaining clauses see no enclosing where.
	r.currentWhere, r.consumed = nil, nil
	if where, err = core.Optional(r, where); err != nil {
		return nil, err
	}
	orderBy, err := core.VisitOrderBy(r, s.OrderBy)
	if err != nil {
		return nil, err
	}
	groupBy, err := core.VisitList(r, s.GroupBy)
	if err != nil {
		return nil, err
	}
	skip, err := core.Optional(r, s.Skip)
	if err != nil {
		return nil, err
	}
	take, err := core.Optional(r, s.Take)
	if err != nil {
		return nil, err
	}
	cols, err := core.VisitColumns(r, s.Columns)
	if err != nil {
		return nil, err
	}
	return s.Update(cols, from, where, orderBy, groupBy, skip, take), nil
}

func (r *crossJoinRewriter) visitJoin(j *core.Join) (core.Node, error) {
	left, err := core.Required(r, j.Left, "Join.Left")
	if err != nil {
		return nil, err
	}
	right, err := core.Required(r, j.Right, "Join.Right")
	if err != nil {
		return nil, err
	}
	cond, err := core.Optional(r, j.Condition)
	if err != nil {
		return nil, err
	}
	out := j.Update(j.JoinType, left, right, cond)
	if out.JoinType != core.CrossJoin || r.currentWhere == nil {
		return out, nil
	}

	declaredLeft := core.DeclaredAliases(out.Left)
	declaredRight := core.DeclaredAliases(out.Right)
	declared := core.AliasSet{}
	for a := range declaredLeft {
		declared[a] = struct{}{}
	}
	for a := range declaredRight {
		declared[a] = struct{}{}
	}

	var good []core.Node
	for _, t := range core.SplitConjunction(r.currentWhere) {
		if _, done := r.consumed[t]; done {
			continue
		}
		refs := core.ReferencedAliases(t)
		if refs.Intersects(declaredLeft) && refs.Intersects(declaredRight) && refs.SubsetOf(declared) {
			good = append(good, t)
		}
	}
	if len(good) == 0 {
		return out, nil
	}
	if r.consumed == nil {
		r.consumed = make(map[core.Node]struct{})
	}
	for _, t := range good {
		r.consumed[t] = struct{}{}
	}
	return core.NewJoin(core.InnerJoin, out.Left, out.Right, core.JoinConjunction(good)), nil
}
