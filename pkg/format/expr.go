package format

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
	"github.com/leapstack-labs/leapquery/pkg/eval"
)

// precedenceAtom binds tighter than any operator and never needs parentheses.
const precedenceAtom = dialect.PrecedenceUnary + 1

var timeType = reflect.TypeOf(time.Time{})

// formatValue writes n where the grammar expects a value.
func (p *Printer) formatValue(n core.Node) error {
	return p.formatOperand(n, dialect.PrecedenceNone)
}

// formatPredicate writes n where the grammar expects a search condition.
func (p *Printer) formatPredicate(n core.Node) error {
	return p.formatPredicateOperand(n, dialect.PrecedenceNone)
}

// formatOperand writes n in value position, parenthesized when it binds
// looser than prec. Conditions become CASE WHEN when the dialect has no
// boolean values.
func (p *Printer) formatOperand(n core.Node, prec int) error {
	n = unwrap(n)
	if p.isPredicate(n) && !p.dialect.SupportsBooleanValues() {
		p.write("CASE WHEN ")
		if err := p.formatPredicate(n); err != nil {
			return err
		}
		p.write(" THEN 1 ELSE 0 END")
		return nil
	}
	return p.parenthesize(n, prec)
}

// formatPredicateOperand writes n in condition position. Boolean values
// are compared against 1 when the dialect has no boolean values.
func (p *Printer) formatPredicateOperand(n core.Node, prec int) error {
	n = unwrap(n)
	if p.isPredicate(n) {
		return p.parenthesize(n, prec)
	}
	if c, ok := n.(*core.Constant); ok {
		if b, ok := c.Value.(bool); ok {
			p.writeBoolCondition(b, prec)
			return nil
		}
	}
	if p.dialect.SupportsBooleanValues() {
		return p.parenthesize(n, prec)
	}
	open := dialect.PrecedenceComparison < prec
	if open {
		p.write("(")
	}
	if err := p.formatOperand(n, dialect.PrecedenceComparison+1); err != nil {
		return err
	}
	p.write(" = 1")
	if open {
		p.write(")")
	}
	return nil
}

func (p *Printer) writeBoolCondition(b bool, prec int) {
	if p.dialect.SupportsBooleanValues() {
		p.write(boolKeyword(b))
		return
	}
	cond := "1 = 0"
	if b {
		cond = "1 = 1"
	}
	if dialect.PrecedenceComparison < prec {
		cond = "(" + cond + ")"
	}
	p.write(cond)
}

func boolKeyword(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (p *Printer) parenthesize(n core.Node, prec int) error {
	if p.precedence(n) < prec {
		p.write("(")
		if err := p.formatExpr(n); err != nil {
			return err
		}
		p.write(")")
		return nil
	}
	return p.formatExpr(n)
}

// unwrap strips nodes that have no SQL spelling of their own.
func unwrap(n core.Node) core.Node {
	for {
		switch x := n.(type) {
		case *core.OuterJoined:
			n = x.Expr
		case *core.Unary:
			if x.Op != core.OpConvert {
				return n
			}
			n = x.Operand
		case *core.AggregateSubquery:
			n = x.Subquery
		default:
			return n
		}
	}
}

// isPredicate reports whether n is a search condition rather than a value.
func (p *Printer) isPredicate(n core.Node) bool {
	switch x := unwrap(n).(type) {
	case *core.Binary:
		return x.Op.IsLogical() || x.Op.IsComparison()
	case *core.Unary:
		return x.Op == core.OpNot
	case *core.IsNull, *core.Between, *core.In, *core.Exists:
		return true
	case *core.Call:
		h, ok := p.dialect.CallHandler(x.Method)
		return ok && h.Predicate
	}
	return false
}

func (p *Printer) precedence(n core.Node) int {
	switch x := n.(type) {
	case *core.Binary:
		if def, ok := p.dialect.Operator(x.Op); ok {
			return def.Precedence
		}
	case *core.Unary:
		if x.Op == core.OpNot {
			return dialect.PrecedenceNot
		}
		return dialect.PrecedenceUnary
	case *core.IsNull, *core.Between, *core.In:
		return dialect.PrecedenceComparison
	case *core.Call:
		if p.isPredicate(x) {
			return dialect.PrecedenceComparison
		}
	}
	return precedenceAtom
}

func (p *Printer) formatExpr(n core.Node) error {
	switch x := n.(type) {
	case *core.Constant:
		return p.formatConstant(x)
	case *core.Column:
		p.write(p.aliasName(x.Alias))
		p.write(".")
		p.ident(x.Name)
		return nil
	case *core.NamedValue:
		if eval.IsVariableType(x.Type()) {
			return core.Unsupported(x, "a multi-value variable can only appear in an IN list")
		}
		p.bind(core.Binding{Name: x.Name})
		return nil
	case *core.Variable:
		p.write("@" + x.Name)
		return nil
	case *core.Binary:
		return p.formatBinary(x)
	case *core.Unary:
		return p.formatUnary(x)
	case *core.Conditional:
		return p.formatConditional(x)
	case *core.IsNull:
		if err := p.formatOperand(x.Expr, dialect.PrecedenceComparison+1); err != nil {
			return err
		}
		p.write(" IS NULL")
		return nil
	case *core.Between:
		return p.formatBetween(x)
	case *core.In:
		return p.formatIn(x)
	case *core.Exists:
		p.keyword("EXISTS")
		p.space()
		return p.formatSubquery(x.Select)
	case *core.Scalar:
		return p.formatSubquery(x.Select)
	case *core.Aggregate:
		return p.formatAggregate(x)
	case *core.RowNumber:
		return p.formatRowNumber(x)
	case *core.Function:
		return p.formatFunction(x.Name, x.Args)
	case *core.Call:
		return p.formatCall(x)
	case *core.Member:
		return p.formatMember(x)
	case *core.OuterJoined, *core.AggregateSubquery:
		return p.formatValue(x)
	}
	return core.Unsupported(n, "no SQL form")
}

func (p *Printer) formatConstant(c *core.Constant) error {
	if c.IsNull() {
		p.keyword("NULL")
		return nil
	}
	rv := reflect.ValueOf(c.Value)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Type() == timeType {
		p.write(quoteString(rv.Interface().(time.Time).Format("2006-01-02 15:04:05.999999999")))
		return nil
	}
	switch rv.Kind() {
	case reflect.Bool:
		if p.dialect.SupportsBooleanValues() {
			p.write(boolKeyword(rv.Bool()))
		} else if rv.Bool() {
			p.write("1")
		} else {
			p.write("0")
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		p.write(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		p.write(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		p.write(strconv.FormatFloat(rv.Float(), 'g', -1, 64))
	case reflect.String:
		p.write(quoteString(rv.String()))
	default:
		return core.Unsupported(c, "no literal form for "+rv.Type().String())
	}
	return nil
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (p *Printer) formatBinary(b *core.Binary) error {
	if b.Op == core.OpCoalesce {
		return p.formatFunction("COALESCE", []core.Node{b.Left, b.Right})
	}
	if b.Op == core.OpEq || b.Op == core.OpNe {
		if operand, ok := nullComparison(b); ok {
			if err := p.formatOperand(operand, dialect.PrecedenceComparison+1); err != nil {
				return err
			}
			if b.Op == core.OpEq {
				p.write(" IS NULL")
			} else {
				p.write(" IS NOT NULL")
			}
			return nil
		}
	}

	def, ok := p.dialect.Operator(b.Op)
	if !ok {
		return core.Unsupported(b, "no operator "+b.Op.String())
	}
	if b.Op.IsLogical() {
		if err := p.formatPredicateOperand(b.Left, def.Precedence); err != nil {
			return err
		}
		p.space()
		p.keyword(def.Symbol)
		p.space()
		return p.formatPredicateOperand(b.Right, def.Precedence)
	}

	symbol := def.Symbol
	if b.Op == core.OpAdd && isString(b.Left.Type()) {
		symbol = p.dialect.ConcatOperator()
	}
	left := def.Precedence
	if b.Op.IsComparison() {
		left++
	}
	if err := p.formatOperand(b.Left, left); err != nil {
		return err
	}
	p.write(" " + symbol + " ")
	return p.formatOperand(b.Right, def.Precedence+1)
}

// nullComparison returns the non-null side of a comparison against a null
// literal.
func nullComparison(b *core.Binary) (core.Node, bool) {
	if c, ok := unwrap(b.Right).(*core.Constant); ok && c.IsNull() {
		return b.Left, true
	}
	if c, ok := unwrap(b.Left).(*core.Constant); ok && c.IsNull() {
		return b.Right, true
	}
	return nil, false
}

func isString(t reflect.Type) bool {
	if t == nil {
		return false
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.String
}

func (p *Printer) formatUnary(u *core.Unary) error {
	switch u.Op {
	case core.OpNot:
		if isNull, ok := unwrap(u.Operand).(*core.IsNull); ok {
			if err := p.formatOperand(isNull.Expr, dialect.PrecedenceComparison+1); err != nil {
				return err
			}
			p.write(" IS NOT NULL")
			return nil
		}
		p.keyword("NOT")
		p.space()
		return p.formatPredicateOperand(u.Operand, precedenceAtom)
	case core.OpNegate:
		p.write("-")
		return p.formatOperand(u.Operand, dialect.PrecedenceUnary)
	}
	return p.formatValue(u.Operand)
}

func (p *Printer) formatConditional(c *core.Conditional) error {
	p.keyword("CASE WHEN")
	p.space()
	if err := p.formatPredicate(c.Test); err != nil {
		return err
	}
	p.write(" THEN ")
	if err := p.formatValue(c.IfTrue); err != nil {
		return err
	}
	p.write(" ELSE ")
	if err := p.formatValue(c.IfFalse); err != nil {
		return err
	}
	p.write(" END")
	return nil
}

func (p *Printer) formatBetween(b *core.Between) error {
	if err := p.formatOperand(b.Expr, dialect.PrecedenceComparison+1); err != nil {
		return err
	}
	p.write(" BETWEEN ")
	if err := p.formatOperand(b.Lower, dialect.PrecedenceAddition); err != nil {
		return err
	}
	p.write(" AND ")
	return p.formatOperand(b.Upper, dialect.PrecedenceAddition)
}

func (p *Printer) formatIn(in *core.In) error {
	if in.Select != nil {
		if err := p.formatOperand(in.Expr, dialect.PrecedenceComparison+1); err != nil {
			return err
		}
		p.write(" IN ")
		return p.formatSubquery(in.Select)
	}
	if len(in.Values) == 1 {
		if nv, ok := in.Values[0].(*core.NamedValue); ok && eval.IsVariableType(nv.Type()) {
			return p.formatInVariable(in.Expr, nv)
		}
	}

	values := expandValues(in.Values)
	if len(values) == 0 {
		p.write("1 = 0")
		return nil
	}
	if err := p.formatOperand(in.Expr, dialect.PrecedenceComparison+1); err != nil {
		return err
	}
	p.write(" IN (")
	err := p.formatList(len(values), func(i int) error { return p.formatValue(values[i]) }, ", ", false)
	if err != nil {
		return err
	}
	p.write(")")
	return nil
}

// expandValues splices inline slice constants into the IN list.
func expandValues(values []core.Node) []core.Node {
	var out []core.Node
	for _, v := range values {
		c, ok := v.(*core.Constant)
		if !ok || !eval.IsVariableType(c.Type()) {
			out = append(out, v)
			continue
		}
		rv := reflect.ValueOf(c.Value)
		for i := 0; i < rv.Len(); i++ {
			out = append(out, core.NewConstant(rv.Index(i).Interface(), c.Type().Elem()))
		}
	}
	return out
}

// formatInVariable binds a multi-value variable either as one array
// argument or as one placeholder per element.
func (p *Printer) formatInVariable(expr core.Node, nv *core.NamedValue) error {
	if p.dialect.SupportsArrayParameters() {
		if err := p.formatOperand(expr, dialect.PrecedenceComparison+1); err != nil {
			return err
		}
		p.write(" = ANY(")
		p.bind(core.Binding{Name: nv.Name, Variable: true, Element: -1})
		p.write(")")
		return nil
	}

	c, ok := nv.Value.(*core.Constant)
	if !ok {
		return &core.InvariantError{Op: "format.In", Detail: "variable " + nv.Name + " has no value"}
	}
	count := 0
	if !c.IsNull() {
		count = reflect.ValueOf(c.Value).Len()
	}
	if count == 0 {
		p.write("1 = 0")
		return nil
	}
	if err := p.formatOperand(expr, dialect.PrecedenceComparison+1); err != nil {
		return err
	}
	p.write(" IN (")
	for i := 0; i < count; i++ {
		if i > 0 {
			p.write(", ")
		}
		p.bind(core.Binding{Name: nv.Name, Variable: true, Element: i})
	}
	p.write(")")
	return nil
}

func (p *Printer) formatAggregate(a *core.Aggregate) error {
	p.keyword(a.Func.String())
	p.write("(")
	switch {
	case a.Argument == nil:
		p.write("*")
	default:
		if a.Distinct {
			p.keyword("DISTINCT")
			p.space()
		}
		if err := p.formatValue(a.Argument); err != nil {
			return err
		}
	}
	p.write(")")
	return nil
}

func (p *Printer) formatRowNumber(r *core.RowNumber) error {
	p.write("ROW_NUMBER() OVER (ORDER BY ")
	if len(r.OrderBy) == 0 {
		p.write("(SELECT 1)")
	}
	err := p.formatList(len(r.OrderBy), func(i int) error { return p.formatOrderExpression(r.OrderBy[i]) }, ", ", false)
	if err != nil {
		return err
	}
	p.write(")")
	return nil
}

func (p *Printer) formatFunction(name string, args []core.Node) error {
	p.write(name + "(")
	err := p.formatList(len(args), func(i int) error { return p.formatValue(args[i]) }, ", ", false)
	if err != nil {
		return err
	}
	p.write(")")
	return nil
}

func (p *Printer) formatCall(c *core.Call) error {
	h, ok := p.dialect.CallHandler(c.Method)
	if !ok {
		return &core.UnsupportedError{Kind: core.KindCall, Name: c.Method, Reason: "no translation in dialect " + p.dialect.Name}
	}
	args := c.Args
	if c.Object != nil {
		args = append([]core.Node{c.Object}, c.Args...)
	}
	return h.Format(p, args)
}

func (p *Printer) formatMember(m *core.Member) error {
	if m.Expr != nil {
		if h, ok := p.dialect.MemberHandler(m.Expr.Type(), m.Name); ok {
			return h.Format(p, m.Expr)
		}
	}
	return &core.UnsupportedError{Kind: core.KindMember, Name: m.Name, Reason: "no translation in dialect " + p.dialect.Name}
}

// bind writes the placeholder for b and records the binding. Positional
// "?" placeholders bind once per occurrence; numbered and named styles
// reuse one placeholder per distinct value.
func (p *Printer) bind(b core.Binding) {
	key := b.Name
	if b.Variable && b.Element >= 0 {
		key = b.Name + "_" + strconv.Itoa(b.Element)
	}
	if p.dialect.Placeholder == core.PlaceholderQuestion {
		p.bindings = append(p.bindings, b)
		p.write(p.dialect.FormatPlaceholder(len(p.bindings), key))
		return
	}
	index, ok := p.positions[key]
	if !ok {
		p.bindings = append(p.bindings, b)
		index = len(p.bindings)
		p.positions[key] = index
	}
	p.write(p.dialect.FormatPlaceholder(index, key))
}
