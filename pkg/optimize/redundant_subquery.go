package optimize

import (
	"github.com/leapstack-labs/leapquery/pkg/core"
)

// RemoveRedundantSubqueries removes nested selects that only pass columns
// through, then merges selects into their source select where the two
// clause sets combine without changing results.
func RemoveRedundantSubqueries(_ *Context, n core.Node) (core.Node, error) {
	out, err := (&redundantSubqueryRemover{}).Visit(n)
	if err != nil {
		return nil, err
	}
	return (&subqueryMerger{isTopLevel: true}).Visit(out)
}

type redundantSubqueryRemover struct{}

func (r *redundantSubqueryRemover) Visit(n core.Node) (core.Node, error) {
	switch x := n.(type) {
	case *core.Select:
		out, err := core.VisitSelectChildren(r, x)
		if err != nil {
			return nil, err
		}
		redundant := gatherRedundant(out.From)
		if len(redundant) == 0 {
			return out, nil
		}
		return removeSubqueries(out, redundant...)
	case *core.Projection:
		v, err := core.VisitChildren(r, x)
		if err != nil {
			return nil, err
		}
		proj := v.(*core.Projection)
		if _, ok := proj.Select.From.(*core.Select); !ok {
			return proj, nil
		}
		redundant := gatherRedundant(proj.Select)
		if len(redundant) == 0 {
			return proj, nil
		}
		return removeSubqueries(proj, redundant...)
	}
	return core.VisitChildren(r, n)
}

// gatherRedundant collects the redundant selects among the sources of a
// from clause. It looks through joins but not into nested selects.
func gatherRedundant(source core.Node) []*core.Select {
	var out []*core.Select
	var walk func(core.Node)
	walk = func(n core.Node) {
		switch x := n.(type) {
		case *core.Select:
			if isRedundantSubquery(x) {
				out = append(out, x)
			}
		case *core.Join:
			walk(x.Left)
			walk(x.Right)
		}
	}
	walk(source)
	return out
}

func isRedundantSubquery(s *core.Select) bool {
	return (isSimpleProjection(s) || isNameMapProjection(s)) &&
		!s.Distinct && !s.Reverse && s.Take == nil && s.Skip == nil &&
		s.Where == nil && !s.HasOrderBy() && !s.HasGroupBy()
}

// isSimpleProjection reports whether every column is a column reference
// declared under its own name.
func isSimpleProjection(s *core.Select) bool {
	for _, d := range s.Columns {
		c, ok := d.Expr.(*core.Column)
		if !ok || c.Name != d.Name {
			return false
		}
	}
	return true
}

// isNameMapProjection reports whether s renames the columns of its source
// select one to one. Columns are matched by name, so reordering is allowed.
func isNameMapProjection(s *core.Select) bool {
	from, ok := s.From.(*core.Select)
	if !ok || len(s.Columns) != len(from.Columns) {
		return false
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for _, d := range s.Columns {
		c, ok := d.Expr.(*core.Column)
		if !ok || c.Alias != from.Alias {
			return false
		}
		if _, declared := from.Column(c.Name); !declared {
			return false
		}
		if _, dup := seen[c.Name]; dup {
			return false
		}
		seen[c.Name] = struct{}{}
	}
	return true
}

// subqueryRemover replaces each removed select by its source and rewrites
// references to its columns into the declaring expressions.
type subqueryRemover struct {
	remove map[*core.Select]struct{}
	cols   map[*core.Alias]map[string]core.Node
}

func removeSubqueries(n core.Node, selects ...*core.Select) (core.Node, error) {
	r := &subqueryRemover{
		remove: make(map[*core.Select]struct{}, len(selects)),
		cols:   make(map[*core.Alias]map[string]core.Node, len(selects)),
	}
	for _, s := range selects {
		r.remove[s] = struct{}{}
		m := make(map[string]core.Node, len(s.Columns))
		for _, d := range s.Columns {
			m[d.Name] = d.Expr
		}
		r.cols[s.Alias] = m
	}
	return r.Visit(n)
}

func (r *subqueryRemover) Visit(n core.Node) (core.Node, error) {
	switch x := n.(type) {
	case *core.Select:
		if _, ok := r.remove[x]; ok {
			return core.Required(r, x.From, "subqueryRemover")
		}
	case *core.Column:
		m, ok := r.cols[x.Alias]
		if !ok {
			return x, nil
		}
		e, ok := m[x.Name]
		if !ok {
			return nil, &core.UndefinedColumnError{Alias: x.Alias, Column: x.Name}
		}
		return r.Visit(e)
	}
	return core.VisitChildren(r, n)
}

type subqueryMerger struct {
	isTopLevel bool
}

func (m *subqueryMerger) Visit(n core.Node) (core.Node, error) {
	s, ok := n.(*core.Select)
	if !ok {
		return core.VisitChildren(m, n)
	}
	wasTopLevel := m.isTopLevel
	m.isTopLevel = false
	s, err := core.VisitSelectChildren(m, s)
	if err != nil {
		return nil, err
	}
	for canMergeWithFrom(s, wasTopLevel) {
		from := leftMostSelect(s.From)
		out, err := removeSubqueries(s, from)
		if err != nil {
			return nil, err
		}
		merged := out.(*core.Select)

		where := merged.Where
		if from.Where != nil {
			where = core.And(from.Where, where)
		}
		orderBy := merged.OrderBy
		if len(orderBy) == 0 {
			orderBy = from.OrderBy
		}
		groupBy := merged.GroupBy
		if len(groupBy) == 0 {
			groupBy = from.GroupBy
		}
		skip := merged.Skip
		if skip == nil {
			skip = from.Skip
		}
		take := merged.Take
		if take == nil {
			take = from.Take
		}
		s = merged.Update(merged.Columns, merged.From, where, orderBy, groupBy, skip, take).
			SetDistinct(merged.Distinct || from.Distinct)
	}
	return s, nil
}

func leftMostSelect(source core.Node) *core.Select {
	switch x := source.(type) {
	case *core.Select:
		return x
	case *core.Join:
		return leftMostSelect(x.Left)
	}
	return nil
}

func isColumnProjection(s *core.Select) bool {
	for _, d := range s.Columns {
		switch d.Expr.(type) {
		case *core.Column, *core.Constant:
		default:
			return false
		}
	}
	return true
}

func canMergeWithFrom(s *core.Select, isTopLevel bool) bool {
	from := leftMostSelect(s.From)
	if from == nil || !isColumnProjection(from) {
		return false
	}
	selNameMap := isNameMapProjection(s)
	selOrder, selGroup, selAggs := s.HasOrderBy(), s.HasGroupBy(), core.HasAggregates(s)
	_, selJoin := s.From.(*core.Join)
	fromOrder, fromGroup, fromAggs := from.HasOrderBy(), from.HasGroupBy(), core.HasAggregates(from)

	switch {
	case selOrder && fromOrder:
		return false
	case selGroup && fromGroup:
		return false
	case s.Reverse || from.Reverse:
		return false
	case fromOrder && (selGroup || selAggs || s.Distinct):
		return false
	case fromGroup:
		// Moving a grouping outward needs proof that both projections agree.
		return false
	case from.Take != nil && (s.Take != nil || s.Skip != nil || s.Distinct || selAggs || selGroup || selJoin || s.Where != nil || selOrder):
		return false
	case from.Skip != nil && (s.Skip != nil || s.Distinct || selAggs || selGroup || selJoin || s.Where != nil || selOrder):
		return false
	case from.Distinct && (s.Take != nil || s.Skip != nil || !selNameMap || selGroup || selAggs || (selOrder && !isTopLevel) || selJoin):
		return false
	case fromAggs && (s.Take != nil || s.Skip != nil || s.Distinct || selAggs || selGroup || selJoin || s.Where != nil):
		return false
	}
	return true
}
