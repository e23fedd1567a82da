package optimize

import (
	"github.com/leapstack-labs/leapquery/pkg/core"
)

// RemoveUnusedColumns drops column declarations that nothing outside their
// select reads. DISTINCT selects keep every column, as do sources counted
// with COUNT(*). A singleton outer join whose right side is never read is
// dropped entirely.
func RemoveUnusedColumns(_ *Context, n core.Node) (core.Node, error) {
	r := &unusedColumnRemover{used: make(map[*core.Alias]map[string]struct{})}
	if _, ok := n.(*core.Select); ok {
		// A bare select is its own result; all of its columns are read.
		r.retainAll = true
	}
	return r.Visit(n)
}

type unusedColumnRemover struct {
	used      map[*core.Alias]map[string]struct{}
	retainAll bool
}

func (r *unusedColumnRemover) markUsed(a *core.Alias, name string) {
	names, ok := r.used[a]
	if !ok {
		names = make(map[string]struct{})
		r.used[a] = names
	}
	names[name] = struct{}{}
}

func (r *unusedColumnRemover) isUsed(a *core.Alias, name string) bool {
	_, ok := r.used[a][name]
	return ok
}

func (r *unusedColumnRemover) Visit(n core.Node) (core.Node, error) {
	switch x := n.(type) {
	case *core.Column:
		r.markUsed(x.Alias, x.Name)
		return x, nil
	case *core.Scalar:
		r.markFirst(x.Select)
	case *core.In:
		r.markFirst(x.Select)
	case *core.Aggregate:
		if x.IsCountStar() {
			r.retainAll = true
		}
	case *core.Select:
		return r.visitSelect(x)
	case *core.Projection:
		return r.visitProjection(x)
	case *core.Join:
		return r.visitJoin(x)
	}
	return core.VisitChildren(r, n)
}

func (r *unusedColumnRemover) markFirst(s *core.Select) {
	if s != nil && len(s.Columns) > 0 {
		r.markUsed(s.Alias, s.Columns[0].Name)
	}
}

func (r *unusedColumnRemover) visitSelect(s *core.Select) (core.Node, error) {
	wasRetained := r.retainAll
	r.retainAll = false
	defer func() { r.retainAll = wasRetained }()

	var columns []core.ColumnDeclaration
	dropped := false
	for _, d := range s.Columns {
		if !wasRetained && !s.Distinct && !r.isUsed(s.Alias, d.Name) {
			dropped = true
			continue
		}
		e, err := core.Required(r, d.Expr, "ColumnDeclaration."+d.Name)
		if err != nil {
			return nil, err
		}
		columns = append(columns, core.ColumnDeclaration{Name: d.Name, Expr: e, SQLType: d.SQLType})
	}
	if !dropped && sameExprs(columns, s.Columns) {
		columns = s.Columns
	}

	take, err := core.Optional(r, s.Take)
	if err != nil {
		return nil, err
	}
	skip, err := core.Optional(r, s.Skip)
	if err != nil {
		return nil, err
	}
	groupBy, err := core.VisitList(r, s.GroupBy)
	if err != nil {
		return nil, err
	}
	orderBy, err := core.VisitOrderBy(r, s.OrderBy)
	if err != nil {
		return nil, err
	}
	where, err := core.Optional(r, s.Where)
	if err != nil {
		return nil, err
	}
	from, err := core.Optional(r, s.From)
	if err != nil {
		return nil, err
	}
	delete(r.used, s.Alias)
	return s.Update(columns, from, where, orderBy, groupBy, skip, take), nil
}

func sameExprs(a, b []core.ColumnDeclaration) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Expr != b[i].Expr {
			return false
		}
	}
	return true
}

// visitProjection reads the projector before the select so the select sees
// which of its columns are used.
func (r *unusedColumnRemover) visitProjection(p *core.Projection) (core.Node, error) {
	projector, err := core.Required(r, p.Projector, "Projection.Projector")
	if err != nil {
		return nil, err
	}
	sel, err := core.VisitSelect(r, p.Select, "Projection.Select")
	if err != nil {
		return nil, err
	}
	return p.Update(sel, projector, p.Aggregator), nil
}

func (r *unusedColumnRemover) visitJoin(j *core.Join) (core.Node, error) {
	if j.JoinType == core.SingletonLeftOuter {
		if right, ok := j.Right.(core.Aliased); ok && len(r.used[right.SourceAlias()]) == 0 {
			return core.Required(r, j.Left, "Join.Left")
		}
	}
	cond, err := core.Optional(r, j.Condition)
	if err != nil {
		return nil, err
	}
	right, err := core.Required(r, j.Right, "Join.Right")
	if err != nil {
		return nil, err
	}
	left, err := core.Required(r, j.Left, "Join.Left")
	if err != nil {
		return nil, err
	}
	return j.Update(j.JoinType, left, right, cond), nil
}
