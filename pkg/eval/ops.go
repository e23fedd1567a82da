package eval

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

var errDivideByZero = errors.New("integer divide by zero")

func (in *interpreter) binaryValue(b *core.Binary) (reflect.Value, error) {
	left, err := in.value(b.Left)
	if err != nil {
		return reflect.Value{}, err
	}
	switch b.Op {
	case core.OpAnd, core.OpOr:
		if left.Kind() != reflect.Bool {
			return reflect.Value{}, fmt.Errorf("%s operand has type %s, want bool", b.Op, left.Type())
		}
		if left.Bool() == (b.Op == core.OpOr) {
			return reflect.ValueOf(left.Bool()), nil
		}
		right, err := in.value(b.Right)
		if err != nil {
			return reflect.Value{}, err
		}
		if right.Kind() != reflect.Bool {
			return reflect.Value{}, fmt.Errorf("%s operand has type %s, want bool", b.Op, right.Type())
		}
		return reflect.ValueOf(right.Bool()), nil
	case core.OpCoalesce:
		if !isNil(left) {
			if left.Kind() == reflect.Pointer && b.Type().Kind() != reflect.Pointer {
				return left.Elem(), nil
			}
			return left, nil
		}
		return in.value(b.Right)
	}

	right, err := in.value(b.Right)
	if err != nil {
		return reflect.Value{}, err
	}
	if right.IsValid() && left.IsValid() && right.Type() != left.Type() && right.Type().ConvertibleTo(left.Type()) {
		right = right.Convert(left.Type())
	}
	if b.Op == core.OpEq || b.Op == core.OpNe {
		eq, err := equalValues(left, right)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(eq == (b.Op == core.OpEq)), nil
	}
	if b.Op.IsComparison() {
		c, err := compareValues(left, right)
		if err != nil {
			return reflect.Value{}, err
		}
		var r bool
		switch b.Op {
		case core.OpLt:
			r = c < 0
		case core.OpLe:
			r = c <= 0
		case core.OpGt:
			r = c > 0
		case core.OpGe:
			r = c >= 0
		}
		return reflect.ValueOf(r), nil
	}
	return arithmetic(b.Op, left, right)
}

func isNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func equalValues(l, r reflect.Value) (bool, error) {
	if isNil(l) || isNil(r) {
		return isNil(l) == isNil(r), nil
	}
	if l.Type() != r.Type() {
		return false, fmt.Errorf("cannot compare %s with %s", l.Type(), r.Type())
	}
	if !l.Comparable() {
		return reflect.DeepEqual(l.Interface(), r.Interface()), nil
	}
	return l.Equal(r), nil
}

// compareValues orders two values of the same ordered kind.
func compareValues(l, r reflect.Value) (int, error) {
	if !l.IsValid() || !r.IsValid() || l.Type() != r.Type() {
		return 0, fmt.Errorf("cannot order %s and %s", typeName(l), typeName(r))
	}
	switch {
	case l.CanInt():
		return cmp3(l.Int() < r.Int(), l.Int() > r.Int()), nil
	case l.CanUint():
		return cmp3(l.Uint() < r.Uint(), l.Uint() > r.Uint()), nil
	case l.CanFloat():
		return cmp3(l.Float() < r.Float(), l.Float() > r.Float()), nil
	case l.Kind() == reflect.String:
		return strings.Compare(l.String(), r.String()), nil
	}
	// time.Time and friends order through Before/After.
	before, after := methodOf(l, "Before"), methodOf(l, "After")
	if before.IsValid() && after.IsValid() && before.Type().NumIn() == 1 && before.Type().In(0) == r.Type() {
		b := before.Call([]reflect.Value{r})[0].Bool()
		a := after.Call([]reflect.Value{r})[0].Bool()
		return cmp3(b, a), nil
	}
	return 0, fmt.Errorf("values of type %s are not ordered", l.Type())
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func typeName(v reflect.Value) string {
	if !v.IsValid() {
		return "nil"
	}
	return v.Type().String()
}

func arithmetic(op core.BinaryOp, l, r reflect.Value) (reflect.Value, error) {
	if !l.IsValid() || !r.IsValid() || l.Type() != r.Type() {
		return reflect.Value{}, fmt.Errorf("operator %s on %s and %s", op, typeName(l), typeName(r))
	}
	out := reflect.New(l.Type()).Elem()
	switch {
	case l.CanInt():
		a, b := l.Int(), r.Int()
		if (op == core.OpDiv || op == core.OpMod) && b == 0 {
			return reflect.Value{}, errDivideByZero
		}
		out.SetInt(intOp(op, a, b))
	case l.CanUint():
		a, b := l.Uint(), r.Uint()
		if (op == core.OpDiv || op == core.OpMod) && b == 0 {
			return reflect.Value{}, errDivideByZero
		}
		out.SetUint(uint64(intOp(op, int64(a), int64(b))))
	case l.CanFloat():
		a, b := l.Float(), r.Float()
		switch op {
		case core.OpAdd:
			out.SetFloat(a + b)
		case core.OpSub:
			out.SetFloat(a - b)
		case core.OpMul:
			out.SetFloat(a * b)
		case core.OpDiv:
			out.SetFloat(a / b)
		case core.OpMod:
			out.SetFloat(math.Mod(a, b))
		}
	case l.Kind() == reflect.String && op == core.OpAdd:
		out.SetString(l.String() + r.String())
	default:
		return reflect.Value{}, fmt.Errorf("operator %s on %s", op, l.Type())
	}
	return out, nil
}

func intOp(op core.BinaryOp, a, b int64) int64 {
	switch op {
	case core.OpAdd:
		return a + b
	case core.OpSub:
		return a - b
	case core.OpMul:
		return a * b
	case core.OpDiv:
		return a / b
	case core.OpMod:
		return a % b
	}
	return 0
}

func (in *interpreter) unaryValue(u *core.Unary) (reflect.Value, error) {
	v, err := in.value(u.Operand)
	if err != nil {
		return reflect.Value{}, err
	}
	switch u.Op {
	case core.OpNot:
		if v.Kind() != reflect.Bool {
			return reflect.Value{}, fmt.Errorf("NOT operand has type %s, want bool", typeName(v))
		}
		return reflect.ValueOf(!v.Bool()), nil
	case core.OpNegate:
		out := reflect.New(v.Type()).Elem()
		switch {
		case v.CanInt():
			out.SetInt(-v.Int())
		case v.CanFloat():
			out.SetFloat(-v.Float())
		default:
			return reflect.Value{}, fmt.Errorf("negating %s", v.Type())
		}
		return out, nil
	case core.OpConvert:
		t := u.Type()
		if t.Kind() == reflect.Interface {
			return v, nil
		}
		if !v.IsValid() {
			return reflect.Zero(t), nil
		}
		if v.Kind() == reflect.Pointer && t.Kind() != reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, fmt.Errorf("converting nil %s to %s", v.Type(), t)
			}
			v = v.Elem()
		}
		return convert(v, t)
	}
	return reflect.Value{}, &core.UnsupportedError{Kind: core.KindUnary, Reason: fmt.Sprintf("operator %d", u.Op)}
}
