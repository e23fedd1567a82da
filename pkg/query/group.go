package query

import (
	"fmt"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/eval"
)

// Grouped is a query partitioned by a key. Select turns each group into
// one result row.
type Grouped struct {
	src   *Query
	keyFn func(Row) core.Node
	key   core.Node
	err   error
}

// GroupBy partitions the rows of q by key.
func (q *Query) GroupBy(key func(Row) core.Node) *Grouped {
	if q.err != nil {
		return &Grouped{err: q.err}
	}
	src := q
	if q.sel.Skip != nil || q.sel.Take != nil || q.sel.Distinct || q.sel.HasGroupBy() {
		if src = q.wrap(); src.err != nil {
			return &Grouped{err: src.err}
		}
	}
	rs := &recorder{}
	k := key(Row{expr: src.proj, rec: rs})
	if err := rs.check(k); err != nil {
		return &Grouped{err: fmt.Errorf("query: GroupBy: %w", err)}
	}
	return &Grouped{src: src, keyFn: key, key: k}
}

// Select projects each group through fn.
func (g *Grouped) Select(fn func(Group) core.Node) *Query {
	if g.err != nil {
		return &Query{err: g.err}
	}
	src := g.src
	ga := core.NewAlias()
	kpc, err := eval.ProjectColumns(src.lang, g.key, nil, ga, src.sel.Alias)
	if err != nil {
		return src.fail("GroupBy", err)
	}
	groupBy := make([]core.Node, len(kpc.Columns))
	for i, c := range kpc.Columns {
		groupBy[i] = c.Expr
	}
	grouping := core.NewSelect(ga, kpc.Columns, src.sel, nil).SetGroupBy(groupBy)

	grp := Group{src: src, keyFn: g.keyFn, alias: ga, key: kpc.Projector, rec: &recorder{}}
	res := fn(grp)
	if err := grp.rec.check(res); err != nil {
		return src.fail("GroupBy", err)
	}
	return (&Query{lang: src.lang}).project(res, grouping, nil, ga)
}

// Group is one partition seen from a grouped Select.
type Group struct {
	src   *Query
	keyFn func(Row) core.Node
	alias *core.Alias
	key   core.Node
	rec   *recorder
}

// Key returns the group key.
func (g Group) Key() core.Node { return g.key }

// KeyField returns a member of a composite key.
func (g Group) KeyField(name string) core.Node {
	return Row{expr: g.key, rec: g.rec}.Field(name)
}

// Count is the number of rows in the group.
func (g Group) Count() core.Node { return g.aggregate(core.AggCount, nil) }

// Sum totals f over the group.
func (g Group) Sum(f func(Row) core.Node) core.Node { return g.aggregate(core.AggSum, f) }

// Min is the least value of f in the group.
func (g Group) Min(f func(Row) core.Node) core.Node { return g.aggregate(core.AggMin, f) }

// Max is the greatest value of f in the group.
func (g Group) Max(f func(Row) core.Node) core.Node { return g.aggregate(core.AggMax, f) }

// Avg is the mean of f over the group.
func (g Group) Avg(f func(Row) core.Node) core.Node { return g.aggregate(core.AggAvg, f) }

// Items is the sequence of rows in the group, read per group.
func (g Group) Items() core.Node {
	basis := g.src.duplicate()
	if basis.err != nil {
		return core.NewConstant(invalid{basis.err}, nil)
	}
	items := basis.project(basis.proj, basis.sel, g.correlation(basis), basis.sel.Alias)
	if items.err != nil {
		return core.NewConstant(invalid{items.err}, nil)
	}
	return core.NewProjection(items.sel, items.proj, nil)
}

// correlation matches rows of basis to this group's key.
func (g Group) correlation(basis *Query) core.Node {
	return keysMatch(g.keyFn(Row{expr: basis.proj, rec: g.rec}), g.key)
}

// aggregate builds an aggregate that the grouping select can compute
// directly, with a correlated subquery as the fallback form.
func (g Group) aggregate(fn core.AggregateFunc, arg func(Row) core.Node) core.Node {
	basis := g.src.duplicate()
	if basis.err != nil {
		return core.NewConstant(invalid{basis.err}, nil)
	}
	var inGroup, inSubquery core.Node
	t := core.IntType
	if arg != nil {
		inGroup = arg(Row{expr: g.src.proj, rec: g.rec})
		inSubquery = arg(Row{expr: basis.proj, rec: g.rec})
		t = inGroup.Type()
	}
	if fn == core.AggAvg {
		t = core.Float64Type
	}
	sub := core.NewSelect(core.NewAlias(), []core.ColumnDeclaration{
		{Name: "c0", Expr: core.NewAggregate(t, fn, inSubquery, false)},
	}, basis.sel, g.correlation(basis))
	return core.NewAggregateSubquery(g.alias, core.NewAggregate(t, fn, inGroup, false), core.NewScalar(t, sub))
}
