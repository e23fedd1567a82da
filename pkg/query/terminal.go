package query

import (
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/plan"
)

// Count returns the number of rows.
func (q *Query) Count() (core.Node, error) {
	return q.aggregate("Count", core.AggCount, nil)
}

// Sum totals f over the rows.
func (q *Query) Sum(f func(Row) core.Node) (core.Node, error) {
	return q.aggregate("Sum", core.AggSum, f)
}

// Min returns the least value of f.
func (q *Query) Min(f func(Row) core.Node) (core.Node, error) {
	return q.aggregate("Min", core.AggMin, f)
}

// Max returns the greatest value of f.
func (q *Query) Max(f func(Row) core.Node) (core.Node, error) {
	return q.aggregate("Max", core.AggMax, f)
}

// Avg returns the mean of f.
func (q *Query) Avg(f func(Row) core.Node) (core.Node, error) {
	return q.aggregate("Avg", core.AggAvg, f)
}

// First returns the first row and fails when there is none.
func (q *Query) First() (core.Node, error) { return q.Take(1).reduce(plan.First) }

// FirstOrDefault returns the first row or the zero value.
func (q *Query) FirstOrDefault() (core.Node, error) { return q.Take(1).reduce(plan.FirstOrDefault) }

// Single returns the only row and fails unless there is exactly one.
func (q *Query) Single() (core.Node, error) { return q.Take(2).reduce(plan.Single) }

// SingleOrDefault returns the only row, or the zero value when there is
// none. More than one row is an error.
func (q *Query) SingleOrDefault() (core.Node, error) { return q.Take(2).reduce(plan.SingleOrDefault) }

// Any reports whether there is at least one row.
func (q *Query) Any() (core.Node, error) { return q.Take(1).reduce(plan.Any) }

// All reports whether pred holds for every row.
func (q *Query) All(pred func(Row) core.Node) (core.Node, error) {
	return q.Select(pred).reduce(plan.All)
}

func (q *Query) reduce(aggregator string) (core.Node, error) {
	if q.err != nil {
		return nil, q.err
	}
	return core.NewProjection(q.sel, q.proj, plan.Aggregator(aggregator, q.proj.Type())), nil
}

// aggregate computes fn over the rows in a single-row select.
func (q *Query) aggregate(op string, fn core.AggregateFunc, arg func(Row) core.Node) (core.Node, error) {
	if q.err != nil {
		return nil, q.err
	}
	target := q
	if !q.extendable() {
		if target = q.wrap(); target.err != nil {
			return nil, target.err
		}
	}
	var a core.Node
	t := core.IntType
	if arg != nil {
		rs := &recorder{}
		a = arg(Row{expr: target.proj, rec: rs})
		if err := rs.check(a); err != nil {
			return nil, q.fail(op, err).err
		}
		var err error
		if a, err = target.inline(a); err != nil {
			return nil, q.fail(op, err).err
		}
		t = a.Type()
	}
	if fn == core.AggAvg {
		t = core.Float64Type
	}
	sel := target.sel.
		SetColumns([]core.ColumnDeclaration{{Name: "c0", Expr: core.NewAggregate(t, fn, a, false)}}).
		SetOrderBy(nil).
		SetReverse(false)
	return core.NewProjection(sel, core.NewColumn(t, core.SQLType{}, sel.Alias, "c0"), plan.Aggregator(plan.Single, t)), nil
}
