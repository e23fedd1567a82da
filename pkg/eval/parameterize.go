package eval

import (
	"reflect"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

// Parameterize replaces constants that will be sent to the server with
// named values recorded in cctx. Equal values share one parameter. Slices
// become variables. Nil, boolean and numeric literals stay inline, and
// projector expressions computed on the client are left alone.
func Parameterize(cctx *core.CompilationContext, n core.Node) (core.Node, error) {
	return (&parameterizer{ctx: cctx}).Visit(n)
}

type parameterizer struct {
	ctx   *core.CompilationContext
	inSQL int
}

func (p *parameterizer) Visit(n core.Node) (core.Node, error) {
	switch x := n.(type) {
	case nil:
		return nil, nil
	case *core.Projection:
		p.inSQL++
		sel, err := core.VisitSelect(p, x.Select, "Projection.Select")
		p.inSQL--
		if err != nil {
			return nil, err
		}
		// Nested projections in the projector carry their own selects.
		proj, err := core.Required(p, x.Projector, "Projection.Projector")
		if err != nil {
			return nil, err
		}
		return x.Update(sel, proj, x.Aggregator), nil
	case *core.Select:
		p.inSQL++
		defer func() { p.inSQL-- }()
		return core.VisitSelectChildren(p, x)
	case *core.NamedValue:
		return x, nil
	case *core.Constant:
		if p.inSQL == 0 {
			return x, nil
		}
		return p.parameter(x), nil
	}
	return core.VisitChildren(p, n)
}

func (p *parameterizer) parameter(c *core.Constant) core.Node {
	if c.IsNull() || inlineLiteral(c.Type()) {
		return c
	}
	if IsVariableType(c.Type()) {
		v := p.ctx.AddVariable(c.Value)
		var st core.SQLType
		if p.ctx.Language != nil {
			st = p.ctx.Language.ColumnType(c.Type().Elem())
		}
		return core.NewNamedValue(v.Name, st, c)
	}
	e := p.ctx.AddParameter(c.Value, c.Type())
	return core.NewNamedValue(e.Name, e.SQLType, c)
}

// inlineLiteral reports whether constants of type t are written as SQL
// literals instead of parameters.
func inlineLiteral(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// IsVariableType reports whether values of type t bind as a multi-value
// variable. Byte slices are single values.
func IsVariableType(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8
}
