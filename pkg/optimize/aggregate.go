package optimize

import (
	"strconv"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

// RewriteAggregates moves aggregate subqueries that can be computed by a
// grouping select into that select's column list, replacing each subquery
// with a column reference.
func RewriteAggregates(c *Context, n core.Node) (core.Node, error) {
	gathered := make(map[*core.Alias][]*core.AggregateSubquery)
	core.Inspect(n, func(e core.Node) bool {
		if as, ok := e.(*core.AggregateSubquery); ok {
			gathered[as.GroupByAlias] = append(gathered[as.GroupByAlias], as)
		}
		return true
	})
	if len(gathered) == 0 {
		return n, nil
	}
	r := &aggregateRewriter{ctx: c, gathered: gathered, mapped: make(map[*core.AggregateSubquery]core.Node)}
	return r.Visit(n)
}

type aggregateRewriter struct {
	ctx      *Context
	gathered map[*core.Alias][]*core.AggregateSubquery
	mapped   map[*core.AggregateSubquery]core.Node
}

func (r *aggregateRewriter) Visit(n core.Node) (core.Node, error) {
	switch x := n.(type) {
	case *core.Select:
		out, err := core.VisitSelectChildren(r, x)
		if err != nil {
			return nil, err
		}
		aggs := r.gathered[out.Alias]
		if len(aggs) == 0 {
			return out, nil
		}
		cols := append([]core.ColumnDeclaration(nil), out.Columns...)
		for _, as := range aggs {
			name := "agg" + strconv.Itoa(len(cols))
			st := r.ctx.columnType(as)
			cols = append(cols, core.ColumnDeclaration{Name: name, Expr: as.AggregateInGroupSelect, SQLType: st})
			r.mapped[as] = core.NewColumn(as.Type(), st, as.GroupByAlias, name)
		}
		return out.SetColumns(cols), nil
	case *core.AggregateSubquery:
		if col, ok := r.mapped[x]; ok {
			return col, nil
		}
		return r.Visit(x.Subquery)
	}
	return core.VisitChildren(r, n)
}
