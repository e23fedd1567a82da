package core

import (
	"reflect"
)

// Node is the base interface for every node in the model.
// Nodes are immutable: rewrites build new nodes and never mutate in place.
type Node interface {
	// Kind returns the node-kind tag.
	Kind() Kind
	// Type returns the host-level result type of the node.
	Type() reflect.Type
}

// Well-known result types.
var (
	BoolType     = reflect.TypeOf(false)
	IntType      = reflect.TypeOf(int(0))
	Int64Type    = reflect.TypeOf(int64(0))
	Float64Type  = reflect.TypeOf(float64(0))
	StringType   = reflect.TypeOf("")
	AnyType      = reflect.TypeOf((*any)(nil)).Elem()
	SequenceType = reflect.TypeOf([]any(nil))
	VoidType     = reflect.TypeOf(struct{}{})
)

// ---------- Host-level expressions ----------

// Constant is a literal value.
type Constant struct {
	Value any
	typ   reflect.Type
}

// NewConstant creates a constant. A nil t uses the dynamic type of v.
func NewConstant(v any, t reflect.Type) *Constant {
	if t == nil {
		if v == nil {
			t = AnyType
		} else {
			t = reflect.TypeOf(v)
		}
	}
	return &Constant{Value: v, typ: t}
}

// Kind implements Node.
func (c *Constant) Kind() Kind { return KindConstant }

// Type implements Node.
func (c *Constant) Type() reflect.Type { return c.typ }

// IsNull reports whether the constant is a nil literal.
func (c *Constant) IsNull() bool {
	if c.Value == nil {
		return true
	}
	rv := reflect.ValueOf(c.Value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

// Parameter is a lambda parameter. Parameters compare by identity.
type Parameter struct {
	Name string
	typ  reflect.Type
}

// NewParameter creates a lambda parameter.
func NewParameter(name string, t reflect.Type) *Parameter {
	return &Parameter{Name: name, typ: t}
}

// Kind implements Node.
func (p *Parameter) Kind() Kind { return KindParameter }

// Type implements Node.
func (p *Parameter) Type() reflect.Type { return p.typ }

// Lambda is a function over parameters, used for aggregators and batch operations.
type Lambda struct {
	Params []*Parameter
	Body   Node
}

// NewLambda creates a lambda.
func NewLambda(body Node, params ...*Parameter) *Lambda {
	return &Lambda{Params: params, Body: body}
}

// Kind implements Node.
func (l *Lambda) Kind() Kind { return KindLambda }

// Type returns the body type.
func (l *Lambda) Type() reflect.Type { return l.Body.Type() }

// Update returns l if body is unchanged.
func (l *Lambda) Update(body Node) *Lambda {
	if body == l.Body {
		return l
	}
	return &Lambda{Params: l.Params, Body: body}
}

// Member is a field access.
type Member struct {
	Expr Node
	Name string
	typ  reflect.Type
}

// NewMember creates a field access.
func NewMember(expr Node, name string, t reflect.Type) *Member {
	return &Member{Expr: expr, Name: name, typ: t}
}

// Kind implements Node.
func (m *Member) Kind() Kind { return KindMember }

// Type implements Node.
func (m *Member) Type() reflect.Type { return m.typ }

// Update returns m if expr is unchanged.
func (m *Member) Update(expr Node) *Member {
	if expr == m.Expr {
		return m
	}
	return &Member{Expr: expr, Name: m.Name, typ: m.typ}
}

// Call is a well-known method call such as "strings.Contains" or "math.Abs".
// Dialects translate calls by Method; the evaluator runs them locally when
// every argument is closed.
type Call struct {
	Method string
	Object Node
	Args   []Node
	typ    reflect.Type
}

// NewCall creates a well-known method call.
func NewCall(method string, t reflect.Type, object Node, args ...Node) *Call {
	return &Call{Method: method, Object: object, Args: args, typ: t}
}

// Kind implements Node.
func (c *Call) Kind() Kind { return KindCall }

// Type implements Node.
func (c *Call) Type() reflect.Type { return c.typ }

// Update returns c if object and args are unchanged.
func (c *Call) Update(object Node, args []Node) *Call {
	if object == c.Object && sameNodes(args, c.Args) {
		return c
	}
	return &Call{Method: c.Method, Object: object, Args: args, typ: c.typ}
}

// Invoke calls an arbitrary Go function. It can only be evaluated locally.
type Invoke struct {
	Fn   any
	Args []Node
	typ  reflect.Type
}

// NewInvoke creates a local function invocation. The result type is the
// first return type of fn.
func NewInvoke(fn any, args ...Node) *Invoke {
	ft := reflect.TypeOf(fn)
	t := AnyType
	if ft != nil && ft.Kind() == reflect.Func && ft.NumOut() > 0 {
		t = ft.Out(0)
	}
	return &Invoke{Fn: fn, Args: args, typ: t}
}

// Kind implements Node.
func (i *Invoke) Kind() Kind { return KindInvoke }

// Type implements Node.
func (i *Invoke) Type() reflect.Type { return i.typ }

// Update returns i if args are unchanged.
func (i *Invoke) Update(args []Node) *Invoke {
	if sameNodes(args, i.Args) {
		return i
	}
	return &Invoke{Fn: i.Fn, Args: args, typ: i.typ}
}

// BinaryOp is a binary operator.
type BinaryOp int

// Binary operators.
const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpCoalesce
)

var binaryOpNames = [...]string{"+", "-", "*", "/", "%", "AND", "OR", "=", "<>", "<", "<=", ">", ">=", "??"}

// String returns the operator symbol.
func (op BinaryOp) String() string {
	if int(op) < len(binaryOpNames) {
		return binaryOpNames[op]
	}
	return "?"
}

// IsComparison reports whether op yields a boolean from two operands.
func (op BinaryOp) IsComparison() bool {
	return op >= OpEq && op <= OpGe
}

// IsLogical reports whether op is AND or OR.
func (op BinaryOp) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// Binary is a binary operation.
type Binary struct {
	Op    BinaryOp
	Left  Node
	Right Node
	typ   reflect.Type
}

// NewBinary creates a binary operation. Comparisons and logical operators
// are bool-typed; arithmetic takes the left operand type.
func NewBinary(op BinaryOp, left, right Node) *Binary {
	t := left.Type()
	if op.IsComparison() || op.IsLogical() {
		t = BoolType
	} else if op == OpCoalesce {
		t = right.Type()
	}
	return &Binary{Op: op, Left: left, Right: right, typ: t}
}

// Kind implements Node.
func (b *Binary) Kind() Kind { return KindBinary }

// Type implements Node.
func (b *Binary) Type() reflect.Type { return b.typ }

// Update returns b if both operands are unchanged.
func (b *Binary) Update(left, right Node) *Binary {
	if left == b.Left && right == b.Right {
		return b
	}
	return &Binary{Op: b.Op, Left: left, Right: right, typ: b.typ}
}

// UnaryOp is a unary operator.
type UnaryOp int

// Unary operators.
const (
	OpNot UnaryOp = iota
	OpNegate
	OpConvert
)

// Unary is a unary operation. OpConvert changes the result type only.
type Unary struct {
	Op      UnaryOp
	Operand Node
	typ     reflect.Type
}

// NewUnary creates a unary operation.
func NewUnary(op UnaryOp, operand Node, t reflect.Type) *Unary {
	if t == nil {
		t = operand.Type()
	}
	return &Unary{Op: op, Operand: operand, typ: t}
}

// Not negates a predicate.
func Not(operand Node) *Unary {
	return &Unary{Op: OpNot, Operand: operand, typ: BoolType}
}

// Kind implements Node.
func (u *Unary) Kind() Kind { return KindUnary }

// Type implements Node.
func (u *Unary) Type() reflect.Type { return u.typ }

// Update returns u if the operand is unchanged.
func (u *Unary) Update(operand Node) *Unary {
	if operand == u.Operand {
		return u
	}
	return &Unary{Op: u.Op, Operand: operand, typ: u.typ}
}

// Conditional is a ternary expression.
type Conditional struct {
	Test    Node
	IfTrue  Node
	IfFalse Node
}

// NewConditional creates a conditional.
func NewConditional(test, ifTrue, ifFalse Node) *Conditional {
	return &Conditional{Test: test, IfTrue: ifTrue, IfFalse: ifFalse}
}

// Kind implements Node.
func (c *Conditional) Kind() Kind { return KindConditional }

// Type implements Node.
func (c *Conditional) Type() reflect.Type { return c.IfTrue.Type() }

// Update returns c if all parts are unchanged.
func (c *Conditional) Update(test, ifTrue, ifFalse Node) *Conditional {
	if test == c.Test && ifTrue == c.IfTrue && ifFalse == c.IfFalse {
		return c
	}
	return &Conditional{Test: test, IfTrue: ifTrue, IfFalse: ifFalse}
}

// MemberBinding assigns one field of a constructed value.
type MemberBinding struct {
	Name string
	Expr Node
}

// New constructs a struct value. Entity rows and anonymous projections both
// use it.
type New struct {
	Bindings []MemberBinding
	typ      reflect.Type
}

// NewNew creates a struct construction of type t.
func NewNew(t reflect.Type, bindings ...MemberBinding) *New {
	return &New{Bindings: bindings, typ: t}
}

// Kind implements Node.
func (n *New) Kind() Kind { return KindNew }

// Type implements Node.
func (n *New) Type() reflect.Type { return n.typ }

// Binding returns the expression bound to name.
func (n *New) Binding(name string) (Node, bool) {
	for _, b := range n.Bindings {
		if b.Name == name {
			return b.Expr, true
		}
	}
	return nil, false
}

// Names returns the bound member names in declaration order.
func (n *New) Names() []string {
	names := make([]string, len(n.Bindings))
	for i, b := range n.Bindings {
		names[i] = b.Name
	}
	return names
}

// Update returns n if every binding expression is unchanged.
func (n *New) Update(bindings []MemberBinding) *New {
	if len(bindings) == len(n.Bindings) {
		same := true
		for i := range bindings {
			if bindings[i].Name != n.Bindings[i].Name || bindings[i].Expr != n.Bindings[i].Expr {
				same = false
				break
			}
		}
		if same {
			return n
		}
	}
	return &New{Bindings: bindings, typ: n.typ}
}

func sameNodes(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
