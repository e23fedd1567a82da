// Package query builds node-model trees from chained sequence operators.
//
// A Query is a select plus a projector that reads its columns. Every
// operator returns a new Query; the receiver is never modified. Errors are
// carried along the chain and reported by Node or a terminal operator.
//
//	q := query.From(customers).
//		Where(func(c query.Row) core.Node { return query.Eq(c.Field("Name"), query.Local(name)) }).
//		OrderBy(func(c query.Row) core.Node { return c.Field("ID") }).
//		Skip(10).
//		Take(5)
//	root, err := q.Node()
package query

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/eval"
)

// ErrNoOrdering is returned by ThenBy on a query that is not ordered.
var ErrNoOrdering = errors.New("ThenBy requires a preceding OrderBy")

// Query is an immutable sequence expression under construction.
type Query struct {
	lang eval.Language
	sel  *core.Select
	proj core.Node
	err  error
}

// From starts a query over the table of m. The projector builds entity
// values field by field.
func From(m *core.EntityMapping) *Query {
	switch {
	case m == nil:
		return &Query{err: errors.New("query: nil entity mapping")}
	case m.Type == nil:
		return &Query{err: fmt.Errorf("query: mapping for %q has no entity type", m.Table)}
	case len(m.Members) == 0:
		return &Query{err: fmt.Errorf("query: mapping for %q has no members", m.Table)}
	}
	ta, sa := core.NewAlias(), core.NewAlias()
	cols := make([]core.ColumnDeclaration, 0, len(m.Members))
	bindings := make([]core.MemberBinding, 0, len(m.Members))
	for _, mm := range m.Members {
		t := mm.Type
		if t == nil {
			if f, ok := m.Type.FieldByName(mm.Field); ok {
				t = f.Type
			}
		}
		if t == nil {
			t = core.AnyType
		}
		cols = append(cols, core.ColumnDeclaration{Name: mm.Column, Expr: core.NewColumn(t, core.SQLType{}, ta, mm.Column)})
		bindings = append(bindings, core.MemberBinding{Name: mm.Field, Expr: core.NewColumn(t, core.SQLType{}, sa, mm.Column)})
	}
	sel := core.NewSelect(sa, cols, core.NewTable(ta, m), nil)
	return &Query{sel: sel, proj: core.NewEntity(m, core.NewNew(m.Type, bindings...))}
}

// Using sets the language that decides which projector expressions the
// server computes. Without one only columns, aggregates and subqueries
// are read from the server.
func (q *Query) Using(lang eval.Language) *Query {
	c := *q
	c.lang = lang
	return &c
}

// Err returns the first error recorded by the chain.
func (q *Query) Err() error { return q.err }

// Node returns the projection the chain describes.
func (q *Query) Node() (core.Node, error) {
	if q.err != nil {
		return nil, q.err
	}
	return core.NewProjection(q.sel, q.proj, nil), nil
}

// Select replaces the projector with fn applied to each row.
func (q *Query) Select(fn func(Row) core.Node) *Query {
	if q.err != nil {
		return q
	}
	rs := &recorder{}
	expr := fn(Row{expr: q.proj, rec: rs})
	if err := rs.check(expr); err != nil {
		return q.fail("Select", err)
	}
	return q.project(expr, q.sel, nil, q.sel.Alias)
}

// Where keeps the rows for which pred is true.
func (q *Query) Where(pred func(Row) core.Node) *Query {
	if q.err != nil {
		return q
	}
	target := q
	if !q.extendable() {
		if target = q.wrap(); target.err != nil {
			return target
		}
	}
	rs := &recorder{}
	cond := pred(Row{expr: target.proj, rec: rs})
	if err := rs.check(cond); err != nil {
		return q.fail("Where", err)
	}
	if cond.Type() != core.BoolType {
		return q.fail("Where", fmt.Errorf("predicate has type %s, want bool", cond.Type()))
	}
	cond, err := target.inline(cond)
	if err != nil {
		return q.fail("Where", err)
	}
	return target.with(target.sel.SetWhere(core.And(target.sel.Where, cond)))
}

// OrderBy orders rows by key ascending, replacing any earlier ordering.
func (q *Query) OrderBy(key func(Row) core.Node) *Query {
	return q.order("OrderBy", key, core.Ascending, false)
}

// OrderByDesc orders rows by key descending, replacing any earlier ordering.
func (q *Query) OrderByDesc(key func(Row) core.Node) *Query {
	return q.order("OrderByDesc", key, core.Descending, false)
}

// ThenBy adds an ascending tie-breaker to the current ordering.
func (q *Query) ThenBy(key func(Row) core.Node) *Query {
	return q.order("ThenBy", key, core.Ascending, true)
}

// ThenByDesc adds a descending tie-breaker to the current ordering.
func (q *Query) ThenByDesc(key func(Row) core.Node) *Query {
	return q.order("ThenByDesc", key, core.Descending, true)
}

func (q *Query) order(op string, key func(Row) core.Node, dir core.OrderType, then bool) *Query {
	if q.err != nil {
		return q
	}
	target := q
	switch {
	case then && (!q.sel.HasOrderBy() || q.sel.Skip != nil || q.sel.Take != nil):
		return q.fail(op, ErrNoOrdering)
	case !then && (q.sel.Skip != nil || q.sel.Take != nil || q.sel.Distinct || q.sel.HasGroupBy()):
		if target = q.wrap(); target.err != nil {
			return target
		}
	}
	rs := &recorder{}
	k := key(Row{expr: target.proj, rec: rs})
	if err := rs.check(k); err != nil {
		return q.fail(op, err)
	}
	k, err := target.inline(k)
	if err != nil {
		return q.fail(op, err)
	}
	var orderings []core.OrderExpression
	if then {
		orderings = append(orderings, target.sel.OrderBy...)
	}
	orderings = append(orderings, core.OrderExpression{Order: dir, Expr: k})
	return target.with(target.sel.SetOrderBy(orderings).SetReverse(false))
}

// Reverse inverts the order of the rows.
func (q *Query) Reverse() *Query {
	if q.err != nil {
		return q
	}
	target := q
	if q.sel.Skip != nil || q.sel.Take != nil {
		target = q.wrap()
	}
	return target.with(target.sel.SetReverse(!target.sel.Reverse))
}

// Distinct removes duplicate rows.
func (q *Query) Distinct() *Query {
	if q.err != nil {
		return q
	}
	target := q
	if q.sel.Skip != nil || q.sel.Take != nil {
		target = q.wrap()
	}
	return target.with(target.sel.SetDistinct(true))
}

// Skip bypasses the first n rows.
func (q *Query) Skip(n int) *Query {
	if q.err != nil {
		return q
	}
	if n < 0 {
		return q.fail("Skip", fmt.Errorf("negative count %d", n))
	}
	target := q
	if q.sel.Skip != nil || q.sel.Take != nil {
		target = q.wrap()
	}
	return target.with(target.sel.SetSkip(core.NewConstant(n, nil)))
}

// Take keeps at most n rows.
func (q *Query) Take(n int) *Query {
	if q.err != nil {
		return q
	}
	if n < 0 {
		return q.fail("Take", fmt.Errorf("negative count %d", n))
	}
	target := q
	if q.sel.Take != nil {
		target = q.wrap()
	}
	return target.with(target.sel.SetTake(core.NewConstant(n, nil)))
}

// extendable reports whether a predicate or ordering can be added to the
// current select without changing what earlier operators mean.
func (q *Query) extendable() bool {
	s := q.sel
	return s.Skip == nil && s.Take == nil && !s.Distinct && !s.HasGroupBy() && !core.HasAggregates(s)
}

// wrap nests the current select in a new one that re-declares the
// projector's columns.
func (q *Query) wrap() *Query {
	return q.project(q.proj, q.sel, nil, q.sel.Alias)
}

// project builds a select over from whose columns are the server parts of
// expr, read through a new alias.
func (q *Query) project(expr core.Node, from core.Node, where core.Node, aliases ...*core.Alias) *Query {
	na := core.NewAlias()
	pc, err := eval.ProjectColumns(q.lang, expr, nil, na, aliases...)
	if err != nil {
		return q.fail("project", err)
	}
	return &Query{lang: q.lang, sel: core.NewSelect(na, pc.Columns, from, where), proj: pc.Projector}
}

// inline rewrites references to the current select's columns into the
// expressions they declare, so n can be placed inside that select.
func (q *Query) inline(n core.Node) (core.Node, error) {
	return core.Rewrite(n, func(e core.Node) (core.Node, error) {
		c, ok := e.(*core.Column)
		if !ok || c.Alias != q.sel.Alias {
			return e, nil
		}
		d, ok := q.sel.Column(c.Name)
		if !ok {
			return nil, &core.UndefinedColumnError{Alias: c.Alias, Column: c.Name}
		}
		return d.Expr, nil
	})
}

func (q *Query) with(sel *core.Select) *Query {
	return &Query{lang: q.lang, sel: sel, proj: q.proj, err: q.err}
}

func (q *Query) fail(op string, err error) *Query {
	c := *q
	c.err = fmt.Errorf("query: %s: %w", op, err)
	return &c
}
