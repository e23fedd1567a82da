package optimize

import (
	"strconv"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

// RewriteOrderBy moves orderings out of nested selects to the outermost
// select that can hold them. Selects with paging keep their ordering and pass
// a projected copy outward. Grouping and DISTINCT stop propagation.
func RewriteOrderBy(c *Context, n core.Node) (core.Node, error) {
	r := &orderByRewriter{ctx: c, isOuterMostSelect: true}
	return r.Visit(n)
}

type orderByRewriter struct {
	ctx               *Context
	gathered          []core.OrderExpression
	isOuterMostSelect bool
}

func (r *orderByRewriter) Visit(n core.Node) (core.Node, error) {
	switch x := n.(type) {
	case *core.Select:
		return r.visitSelect(x)
	case *core.Join:
		return r.visitJoin(x)
	case *core.Scalar, *core.Exists, *core.In, *core.Projection:
		saved := r.gathered
		r.gathered = nil
		out, err := core.VisitChildren(r, n)
		r.gathered = saved
		return out, err
	}
	return core.VisitChildren(r, n)
}

func (r *orderByRewriter) visitSelect(s *core.Select) (core.Node, error) {
	outerMost := r.isOuterMostSelect
	r.isOuterMostSelect = false
	defer func() { r.isOuterMostSelect = outerMost }()

	s, err := core.VisitSelectChildren(r, s)
	if err != nil {
		return nil, err
	}

	grouped := s.HasGroupBy()
	canHaveOrderBy := outerMost || s.Take != nil || s.Skip != nil
	canReceive := canHaveOrderBy && !grouped && !s.Distinct && !core.HasAggregates(s)

	if s.HasOrderBy() {
		r.prepend(s.OrderBy)
	}
	if s.Reverse {
		r.reverse()
	}

	var orderings []core.OrderExpression
	switch {
	case canReceive:
		orderings = r.gathered
	case canHaveOrderBy:
		orderings = s.OrderBy
	}

	canPassOn := !outerMost && !grouped && !s.Distinct
	columns := s.Columns
	if r.gathered != nil {
		gathered := r.gathered
		r.gathered = nil
		if canPassOn {
			produced := core.DeclaredAliases(s.From)
			var rebound []core.OrderExpression
			columns, rebound = r.rebind(gathered, s.Alias, produced, s.Columns)
			r.prepend(rebound)
		}
	}

	if equivalentOrderings(orderings, s.OrderBy) {
		orderings = s.OrderBy
	}
	if !core.SameOrderings(orderings, s.OrderBy) || !core.SameColumns(columns, s.Columns) || s.Reverse {
		return s.SetColumns(columns).SetOrderBy(orderings).SetReverse(false), nil
	}
	return s, nil
}

func (r *orderByRewriter) visitJoin(j *core.Join) (core.Node, error) {
	left, err := core.Required(r, j.Left, "Join.Left")
	if err != nil {
		return nil, err
	}
	leftOrders := r.gathered
	r.gathered = nil
	right, err := core.Required(r, j.Right, "Join.Right")
	if err != nil {
		return nil, err
	}
	r.prepend(leftOrders)
	cond, err := core.Optional(r, j.Condition)
	if err != nil {
		return nil, err
	}
	return j.Update(j.JoinType, left, right, cond), nil
}

// prepend puts orderings ahead of the gathered list and drops later
// duplicates of the same column.
func (r *orderByRewriter) prepend(orderings []core.OrderExpression) {
	if len(orderings) == 0 {
		return
	}
	all := make([]core.OrderExpression, 0, len(orderings)+len(r.gathered))
	all = append(all, orderings...)
	all = append(all, r.gathered...)

	seen := make(map[core.ColumnKey]struct{}, len(all))
	out := all[:0]
	for _, o := range all {
		if c, ok := o.Expr.(*core.Column); ok {
			if _, dup := seen[c.Key()]; dup {
				continue
			}
			seen[c.Key()] = struct{}{}
		}
		out = append(out, o)
	}
	r.gathered = out
}

func (r *orderByRewriter) reverse() {
	flipped := make([]core.OrderExpression, len(r.gathered))
	for i, o := range r.gathered {
		order := core.Descending
		if o.Order == core.Descending {
			order = core.Ascending
		}
		flipped[i] = core.OrderExpression{Order: order, Expr: o.Expr}
	}
	r.gathered = flipped
}

// rebind expresses orderings through alias, declaring a column for every
// ordering expression the select does not project yet. Column orderings on
// aliases the select's source does not produce are dropped.
func (r *orderByRewriter) rebind(orderings []core.OrderExpression, alias *core.Alias, produced core.AliasSet, existing []core.ColumnDeclaration) ([]core.ColumnDeclaration, []core.OrderExpression) {
	columns := existing
	grown := false
	out := make([]core.OrderExpression, 0, len(orderings))
	for _, o := range orderings {
		col, isColumn := o.Expr.(*core.Column)
		if isColumn && !produced.Has(col.Alias) {
			continue
		}
		found := false
		for _, d := range columns {
			dc, ok := d.Expr.(*core.Column)
			if d.Expr == o.Expr || (isColumn && ok && dc.Key() == col.Key()) {
				out = append(out, core.OrderExpression{Order: o.Order, Expr: core.NewColumn(o.Expr.Type(), d.SQLType, alias, d.Name)})
				found = true
				break
			}
		}
		if found {
			continue
		}
		if !grown {
			columns = append([]core.ColumnDeclaration(nil), columns...)
			grown = true
		}
		base := "c" + strconv.Itoa(len(columns))
		st := r.ctx.columnType(o.Expr)
		if isColumn {
			base = col.Name
			st = col.SQLType
		}
		name := core.AvailableColumnName(columns, base)
		columns = append(columns, core.ColumnDeclaration{Name: name, Expr: o.Expr, SQLType: st})
		out = append(out, core.OrderExpression{Order: o.Order, Expr: core.NewColumn(o.Expr.Type(), st, alias, name)})
	}
	return columns, out
}

// equivalentOrderings treats freshly built column references to the same
// alias and name as equal.
func equivalentOrderings(a, b []core.OrderExpression) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Order != b[i].Order {
			return false
		}
		if a[i].Expr == b[i].Expr {
			continue
		}
		ca, ok1 := a[i].Expr.(*core.Column)
		cb, ok2 := b[i].Expr.(*core.Column)
		if !ok1 || !ok2 || ca.Key() != cb.Key() {
			return false
		}
	}
	return true
}
