package optimize

import (
	"github.com/leapstack-labs/leapquery/pkg/compare"
	"github.com/leapstack-labs/leapquery/pkg/core"
)

// RemoveRedundantColumns collapses column declarations of one select that
// compute the same expression. The first declaration wins and references to
// the others are redirected to it.
func RemoveRedundantColumns(_ *Context, n core.Node) (core.Node, error) {
	r := &redundantColumnRemover{mapped: make(map[core.ColumnKey]*core.Column)}
	return r.Visit(n)
}

type redundantColumnRemover struct {
	mapped map[core.ColumnKey]*core.Column
}

func (r *redundantColumnRemover) Visit(n core.Node) (core.Node, error) {
	switch x := n.(type) {
	case *core.Column:
		if m, ok := r.mapped[x.Key()]; ok {
			return m, nil
		}
		return x, nil
	case *core.Select:
		s, err := core.VisitSelectChildren(r, x)
		if err != nil {
			return nil, err
		}
		return r.dedupe(s), nil
	}
	return core.VisitChildren(r, n)
}

func (r *redundantColumnRemover) dedupe(s *core.Select) *core.Select {
	var kept []core.ColumnDeclaration
	removed := false
	for _, d := range s.Columns {
		dup := -1
		for i, k := range kept {
			if compare.Equal(d.Expr, k.Expr) {
				dup = i
				break
			}
		}
		if dup < 0 {
			kept = append(kept, d)
			continue
		}
		removed = true
		k := kept[dup]
		r.mapped[core.ColumnKey{Alias: s.Alias, Name: d.Name}] = core.NewColumn(d.Expr.Type(), k.SQLType, s.Alias, k.Name)
	}
	if !removed {
		return s
	}
	return s.SetColumns(kept)
}
