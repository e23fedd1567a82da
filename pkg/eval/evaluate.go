package eval

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

// Evaluate replaces every maximal locally evaluable subexpression of n with
// a Constant holding its value. Each candidate is interpreted once.
func Evaluate(n core.Node) (core.Node, error) {
	candidates := Nominate(n)
	if len(candidates) == 0 {
		return n, nil
	}
	return (&evaluator{candidates: candidates}).Visit(n)
}

type evaluator struct {
	candidates Candidates
}

func (e *evaluator) Visit(n core.Node) (core.Node, error) {
	if n == nil {
		return nil, nil
	}
	if !e.candidates.Has(n) {
		return core.VisitChildren(e, n)
	}
	if c, ok := n.(*core.Constant); ok {
		return c, nil
	}
	v, err := Value(n)
	if err != nil {
		return nil, err
	}
	return core.NewConstant(v, n.Type()), nil
}

// Value interprets a closed expression and returns its value.
func Value(n core.Node) (any, error) {
	rv, err := Interpret(n, nil)
	if err != nil {
		return nil, err
	}
	if !rv.IsValid() {
		return nil, nil
	}
	return rv.Interface(), nil
}

// Resolver supplies the value of a node the interpreter cannot compute on
// its own, such as a row column or a nested query. ok is false when the
// resolver leaves n to the interpreter.
type Resolver func(n core.Node) (v reflect.Value, ok bool, err error)

// Interpret evaluates n. resolve, when not nil, is consulted for every node
// before the built-in rules, so open expressions can be evaluated once
// their free references are bound.
func Interpret(n core.Node, resolve Resolver) (v reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluating %T: %v", n, r)
		}
	}()
	return (&interpreter{resolve: resolve}).value(n)
}

type interpreter struct {
	resolve Resolver
}

func (in *interpreter) value(n core.Node) (reflect.Value, error) {
	if in.resolve != nil {
		v, ok, err := in.resolve(n)
		if err != nil {
			return reflect.Value{}, err
		}
		if ok {
			return v, nil
		}
	}
	switch x := n.(type) {
	case *core.Constant:
		return constantValue(x), nil
	case *core.Member:
		return in.memberValue(x)
	case *core.Call:
		return in.callValue(x)
	case *core.Invoke:
		args, err := in.values(x.Args)
		if err != nil {
			return reflect.Value{}, err
		}
		return invoke(reflect.ValueOf(x.Fn), args, x.Type())
	case *core.Binary:
		return in.binaryValue(x)
	case *core.Unary:
		return in.unaryValue(x)
	case *core.Conditional:
		test, err := in.value(x.Test)
		if err != nil {
			return reflect.Value{}, err
		}
		if test.Kind() != reflect.Bool {
			return reflect.Value{}, fmt.Errorf("conditional test has type %s, want bool", test.Type())
		}
		if test.Bool() {
			return in.value(x.IfTrue)
		}
		return in.value(x.IfFalse)
	case *core.New:
		return in.newValue(x)
	case *core.Entity:
		return in.value(x.Expr)
	case *core.NamedValue:
		return in.value(x.Value)
	}
	return reflect.Value{}, core.Unsupported(n, "not locally evaluable")
}

func (in *interpreter) values(nodes []core.Node) ([]reflect.Value, error) {
	out := make([]reflect.Value, len(nodes))
	for i, a := range nodes {
		v, err := in.value(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func constantValue(c *core.Constant) reflect.Value {
	if c.Value == nil {
		return reflect.Zero(c.Type())
	}
	rv := reflect.ValueOf(c.Value)
	if t := c.Type(); t != rv.Type() && t.Kind() != reflect.Interface && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t)
	}
	return rv
}

func (in *interpreter) memberValue(m *core.Member) (reflect.Value, error) {
	obj, err := in.value(m.Expr)
	if err != nil {
		return reflect.Value{}, err
	}
	if meth := methodOf(obj, m.Name); meth.IsValid() {
		return invoke(meth, nil, m.Type())
	}
	for obj.Kind() == reflect.Pointer || obj.Kind() == reflect.Interface {
		if obj.IsNil() {
			return reflect.Value{}, fmt.Errorf("member %s of nil %s", m.Name, obj.Type())
		}
		obj = obj.Elem()
	}
	if obj.Kind() != reflect.Struct {
		return reflect.Value{}, &core.UnsupportedError{Kind: core.KindMember, Name: m.Name, Reason: "not a struct field"}
	}
	f := obj.FieldByName(m.Name)
	if !f.IsValid() {
		return reflect.Value{}, &core.UnsupportedError{Kind: core.KindMember, Name: m.Name, Reason: "no such field on " + obj.Type().String()}
	}
	return f, nil
}

// methodOf finds a method on v or on a pointer to a copy of v.
func methodOf(v reflect.Value, name string) reflect.Value {
	if !v.IsValid() {
		return reflect.Value{}
	}
	if m := v.MethodByName(name); m.IsValid() {
		return m
	}
	if v.Kind() != reflect.Pointer && v.Kind() != reflect.Interface {
		p := reflect.New(v.Type())
		p.Elem().Set(v)
		return p.MethodByName(name)
	}
	return reflect.Value{}
}

func methodName(method string) string {
	if i := strings.LastIndexByte(method, '.'); i >= 0 {
		return method[i+1:]
	}
	return method
}

func (in *interpreter) callValue(c *core.Call) (reflect.Value, error) {
	args, err := in.values(c.Args)
	if err != nil {
		return reflect.Value{}, err
	}
	if c.Object != nil {
		obj, err := in.value(c.Object)
		if err != nil {
			return reflect.Value{}, err
		}
		meth := methodOf(obj, methodName(c.Method))
		if !meth.IsValid() {
			return reflect.Value{}, &core.UnsupportedError{Kind: core.KindCall, Name: c.Method, Reason: "no such method"}
		}
		return invoke(meth, args, c.Type())
	}
	if c.Method == "len" {
		if len(args) != 1 {
			return reflect.Value{}, fmt.Errorf("len takes 1 argument, got %d", len(args))
		}
		switch args[0].Kind() {
		case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
			return reflect.ValueOf(args[0].Len()), nil
		}
		return reflect.Value{}, fmt.Errorf("len of %s", args[0].Type())
	}
	fn, ok := lookupFunc(c.Method)
	if !ok {
		return reflect.Value{}, &core.UnsupportedError{Kind: core.KindCall, Name: c.Method, Reason: "no local implementation"}
	}
	return invoke(reflect.ValueOf(fn), args, c.Type())
}

// invoke calls fn, converting arguments to the declared parameter types.
func invoke(fn reflect.Value, args []reflect.Value, want reflect.Type) (reflect.Value, error) {
	ft := fn.Type()
	if ft.IsVariadic() {
		if len(args) < ft.NumIn()-1 {
			return reflect.Value{}, fmt.Errorf("calling %s: want at least %d arguments, got %d", ft, ft.NumIn()-1, len(args))
		}
	} else if len(args) != ft.NumIn() {
		return reflect.Value{}, fmt.Errorf("calling %s: want %d arguments, got %d", ft, ft.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		var pt reflect.Type
		if ft.IsVariadic() && i >= ft.NumIn()-1 {
			pt = ft.In(ft.NumIn() - 1).Elem()
		} else {
			pt = ft.In(i)
		}
		conv, err := convert(a, pt)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("calling %s: argument %d: %w", ft, i, err)
		}
		in[i] = conv
	}
	out := fn.Call(in)
	if len(out) == 0 {
		return reflect.Value{}, nil
	}
	// A trailing error result fails the evaluation.
	if last := out[len(out)-1]; len(out) > 1 && last.Type().Implements(errorType) && !last.IsNil() {
		return reflect.Value{}, last.Interface().(error)
	}
	if want != nil && want.Kind() != reflect.Interface && out[0].Type() != want && out[0].Type().ConvertibleTo(want) {
		return out[0].Convert(want), nil
	}
	return out[0], nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func convert(v reflect.Value, t reflect.Type) (reflect.Value, error) {
	if !v.IsValid() {
		return reflect.Zero(t), nil
	}
	switch {
	case v.Type() == t:
		return v, nil
	case v.Type().AssignableTo(t):
		return v, nil
	case v.Type().ConvertibleTo(t):
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", v.Type(), t)
}

func (in *interpreter) newValue(n *core.New) (reflect.Value, error) {
	t := n.Type()
	ptr := t.Kind() == reflect.Pointer
	st := t
	if ptr {
		st = t.Elem()
	}
	if st.Kind() != reflect.Struct {
		return reflect.Value{}, &core.UnsupportedError{Kind: core.KindNew, Name: t.String(), Reason: "not a struct type"}
	}
	out := reflect.New(st)
	for _, b := range n.Bindings {
		f := out.Elem().FieldByName(b.Name)
		if !f.IsValid() || !f.CanSet() {
			return reflect.Value{}, &core.UnsupportedError{Kind: core.KindNew, Name: b.Name, Reason: "no settable field on " + st.String()}
		}
		v, err := in.value(b.Expr)
		if err != nil {
			return reflect.Value{}, err
		}
		conv, err := convert(v, f.Type())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("field %s: %w", b.Name, err)
		}
		f.Set(conv)
	}
	if ptr {
		return out, nil
	}
	return out.Elem(), nil
}
