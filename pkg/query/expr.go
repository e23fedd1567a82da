package query

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

// Row is the element a query operator's function receives. Field reads a
// member of the current projector.
type Row struct {
	expr core.Node
	rec  *recorder
}

// Node returns the whole element.
func (r Row) Node() core.Node { return r.expr }

// Field returns the named member of the element.
func (r Row) Field(name string) core.Node {
	if r.expr == nil {
		r.rec.fail(fmt.Errorf("no element to read %q from", name))
		return core.NewConstant(nil, nil)
	}
	if n, ok := unwrapEntity(r.expr).(*core.New); ok {
		if b, ok := n.Binding(name); ok {
			return b
		}
	}
	t := r.expr.Type()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct {
		if f, ok := t.FieldByName(name); ok {
			return core.NewMember(r.expr, name, f.Type)
		}
	}
	r.rec.fail(fmt.Errorf("%s has no field %q", r.expr.Type(), name))
	return core.NewConstant(nil, nil)
}

// Sub returns the named member as a row, for projectors that nest values.
func (r Row) Sub(name string) Row {
	return Row{expr: r.Field(name), rec: r.rec}
}

func unwrapEntity(n core.Node) core.Node {
	if e, ok := n.(*core.Entity); ok {
		return e.Expr
	}
	return n
}

// recorder keeps the first error raised while an operator function runs.
type recorder struct {
	err error
}

func (r *recorder) fail(err error) {
	if r != nil && r.err == nil {
		r.err = err
	}
}

// invalid marks a place where a helper could not build a node.
type invalid struct {
	err error
}

// check returns the recorded error or the first invalid marker in the
// given nodes.
func (r *recorder) check(nodes ...core.Node) error {
	if r.err != nil {
		return r.err
	}
	var err error
	for _, n := range nodes {
		if n == nil {
			continue
		}
		core.Inspect(n, func(e core.Node) bool {
			if c, ok := e.(*core.Constant); ok {
				if bad, ok := c.Value.(invalid); ok && err == nil {
					err = bad.err
				}
			}
			return err == nil
		})
	}
	return err
}

// Local wraps a value captured from the caller. It becomes a parameter
// when it reaches SQL.
func Local(v any) core.Node { return core.NewConstant(v, nil) }

// Eq is a == b.
func Eq(a, b core.Node) core.Node { return core.NewBinary(core.OpEq, a, b) }

// Ne is a != b.
func Ne(a, b core.Node) core.Node { return core.NewBinary(core.OpNe, a, b) }

// Lt is a < b.
func Lt(a, b core.Node) core.Node { return core.NewBinary(core.OpLt, a, b) }

// Le is a <= b.
func Le(a, b core.Node) core.Node { return core.NewBinary(core.OpLe, a, b) }

// Gt is a > b.
func Gt(a, b core.Node) core.Node { return core.NewBinary(core.OpGt, a, b) }

// Ge is a >= b.
func Ge(a, b core.Node) core.Node { return core.NewBinary(core.OpGe, a, b) }

// Add is a + b.
func Add(a, b core.Node) core.Node { return core.NewBinary(core.OpAdd, a, b) }

// Sub is a - b.
func Sub(a, b core.Node) core.Node { return core.NewBinary(core.OpSub, a, b) }

// Mul is a * b.
func Mul(a, b core.Node) core.Node { return core.NewBinary(core.OpMul, a, b) }

// Div is a / b.
func Div(a, b core.Node) core.Node { return core.NewBinary(core.OpDiv, a, b) }

// Coalesce is a when a is not null, else b.
func Coalesce(a, b core.Node) core.Node { return core.NewBinary(core.OpCoalesce, a, b) }

// And is the conjunction of terms.
func And(terms ...core.Node) core.Node {
	if len(terms) == 0 {
		return core.NewConstant(true, nil)
	}
	return core.JoinConjunction(terms)
}

// Or is the disjunction of terms.
func Or(terms ...core.Node) core.Node {
	if len(terms) == 0 {
		return core.NewConstant(false, nil)
	}
	out := terms[0]
	for _, t := range terms[1:] {
		out = core.NewBinary(core.OpOr, out, t)
	}
	return out
}

// Not negates a predicate.
func Not(n core.Node) core.Node { return core.Not(n) }

// IsNull tests n against NULL.
func IsNull(n core.Node) core.Node { return core.NewIsNull(n) }

// Between tests lower <= n <= upper.
func Between(n, lower, upper core.Node) core.Node { return core.NewBetween(n, lower, upper) }

// Call is a well-known method such as "strings.HasPrefix" that dialects
// translate and the evaluator can run locally.
func Call(method string, t reflect.Type, object core.Node, args ...core.Node) core.Node {
	return core.NewCall(method, t, object, args...)
}

// Func calls a Go function. It is only ever evaluated locally.
func Func(fn any, args ...core.Node) core.Node {
	if ft := reflect.TypeOf(fn); ft == nil || ft.Kind() != reflect.Func {
		return core.NewConstant(invalid{fmt.Errorf("Func: %T is not a function", fn)}, nil)
	}
	return core.NewInvoke(fn, args...)
}

// Contains tests expr for membership in set: a slice or array value of
// the caller, or a Query projecting a single column.
func Contains(set any, expr core.Node) core.Node {
	if sub, ok := set.(*Query); ok {
		return containsQuery(sub, expr)
	}
	v := reflect.ValueOf(set)
	if !v.IsValid() || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
		return core.NewConstant(invalid{fmt.Errorf("Contains: %T is not a slice", set)}, nil)
	}
	return core.NewInValues(expr, []core.Node{core.NewConstant(set, nil)})
}

func containsQuery(sub *Query, expr core.Node) core.Node {
	if sub.err != nil {
		return core.NewConstant(invalid{sub.err}, nil)
	}
	if _, ok := sub.proj.(*core.Column); !ok {
		sub = sub.project(sub.proj, sub.sel, nil, sub.sel.Alias)
		if sub.err != nil {
			return core.NewConstant(invalid{sub.err}, nil)
		}
	}
	if len(sub.sel.Columns) != 1 {
		return core.NewConstant(invalid{errors.New("Contains: subquery must select one column")}, nil)
	}
	return core.NewInSelect(expr, sub.sel)
}
