// Package eval folds closed subexpressions into constants, turns SQL-side
// constants into named parameters and decides which projector expressions
// are computed by the server.
package eval

import (
	"reflect"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

// Candidates is the set of nodes nominated for local evaluation.
type Candidates map[core.Node]struct{}

// Has reports whether n was nominated.
func (c Candidates) Has(n core.Node) bool {
	_, ok := c[n]
	return ok
}

// Nominate walks n bottom-up and returns every subexpression that can be
// evaluated without server data: all of its children are candidates and it
// does not reference a row source.
func Nominate(n core.Node) Candidates {
	v := &nominator{candidates: Candidates{}}
	_, _ = v.Visit(n)
	return v.candidates
}

type nominator struct {
	candidates Candidates
	blocked    bool
}

func (v *nominator) Visit(n core.Node) (core.Node, error) {
	if n == nil {
		return nil, nil
	}
	saved := v.blocked
	v.blocked = false
	if _, err := core.VisitChildren(v, n); err != nil {
		// Unknown kinds cannot be evaluated; the formatter reports them.
		v.blocked = true
	}
	if !v.blocked {
		if canEvaluate(n) {
			v.candidates[n] = struct{}{}
		} else {
			v.blocked = true
		}
	}
	v.blocked = v.blocked || saved
	return n, nil
}

// canEvaluate reports whether n itself is locally evaluable, assuming its
// children are.
func canEvaluate(n core.Node) bool {
	switch x := n.(type) {
	case *core.Constant, *core.Binary, *core.Unary, *core.Conditional, *core.New:
		return true
	case *core.Member:
		return x.Expr != nil && hasMember(x.Expr.Type(), x.Name)
	case *core.Call:
		if x.Object != nil {
			return hasMethod(x.Object.Type(), methodName(x.Method))
		}
		_, ok := lookupFunc(x.Method)
		return ok
	case *core.Invoke:
		return x.Fn != nil && reflect.TypeOf(x.Fn).Kind() == reflect.Func
	}
	return false
}

func hasMember(t reflect.Type, name string) bool {
	if t == nil {
		return false
	}
	if hasMethod(t, name) {
		return true
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return false
	}
	_, ok := t.FieldByName(name)
	return ok
}

func hasMethod(t reflect.Type, name string) bool {
	if t == nil {
		return false
	}
	if _, ok := t.MethodByName(name); ok {
		return true
	}
	if t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface {
		_, ok := reflect.PointerTo(t).MethodByName(name)
		return ok
	}
	return false
}
