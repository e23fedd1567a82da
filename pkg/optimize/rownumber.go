package optimize

import (
	"github.com/leapstack-labs/leapquery/pkg/compare"
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/eval"
)

// RowNumberColumn names the column that carries ROW_NUMBER() for paging.
const RowNumberColumn = "_rownum"

// RewriteSkipToRowNumber expresses SKIP as a filter over ROW_NUMBER() for
// dialects without an offset clause. TAKE becomes the upper bound of the
// same filter.
func RewriteSkipToRowNumber(c *Context, n core.Node) (core.Node, error) {
	return core.Rewrite(n, func(e core.Node) (core.Node, error) {
		s, ok := e.(*core.Select)
		if !ok || s.Skip == nil {
			return e, nil
		}
		return rewriteSkip(c, s)
	})
}

func rewriteSkip(c *Context, s *core.Select) (core.Node, error) {
	var lang core.TypeSystem
	if c != nil && c.Language != nil {
		lang = c.Language
	}

	sel := s.SetSkip(nil).SetTake(nil)
	orderBy := s.OrderBy
	if s.Distinct || s.HasGroupBy() {
		sel = sel.AddRedundantSelect(lang, core.NewAlias())
		var err error
		if sel, orderBy, err = rebindThrough(sel, s.OrderBy); err != nil {
			return nil, err
		}
	}

	rnType := c.columnType(core.NewRowNumber(nil))
	sel = sel.AddColumn(core.ColumnDeclaration{Name: RowNumberColumn, Expr: core.NewRowNumber(orderBy), SQLType: rnType})
	sel = sel.AddRedundantSelect(lang, core.NewAlias()).RemoveColumn(RowNumberColumn)

	inner := sel.From.(*core.Select)
	rn := core.NewColumn(core.Int64Type, rnType, inner.Alias, RowNumberColumn)

	var filter core.Node
	if s.Take != nil {
		lower, err := eval.Evaluate(core.NewBinary(core.OpAdd, s.Skip, core.NewConstant(1, nil)))
		if err != nil {
			return nil, err
		}
		upper, err := eval.Evaluate(core.NewBinary(core.OpAdd, s.Skip, s.Take))
		if err != nil {
			return nil, err
		}
		filter = core.NewBetween(rn, lower, upper)
	} else {
		filter = core.NewBinary(core.OpGt, rn, s.Skip)
	}
	return sel.SetWhere(core.And(sel.Where, filter)), nil
}

// rebindThrough expresses orderings of the select below sel through its
// alias. DISTINCT selects must already project every ordering.
func rebindThrough(sel *core.Select, orderBy []core.OrderExpression) (*core.Select, []core.OrderExpression, error) {
	inner := sel.From.(*core.Select)
	out := make([]core.OrderExpression, 0, len(orderBy))
	for _, o := range orderBy {
		name := ""
		for _, d := range inner.Columns {
			if compare.Equal(d.Expr, o.Expr) {
				name = d.Name
				break
			}
		}
		if name == "" {
			if inner.Distinct {
				return nil, nil, core.Unsupported(o.Expr, "ordering of a DISTINCT page must be selected")
			}
			name = core.AvailableColumnName(inner.Columns, "c0")
			inner = inner.AddColumn(core.ColumnDeclaration{Name: name, Expr: o.Expr})
		}
		out = append(out, core.OrderExpression{Order: o.Order, Expr: core.NewColumn(o.Expr.Type(), core.SQLType{}, inner.Alias, name)})
	}
	return sel.SetFrom(inner), out, nil
}
