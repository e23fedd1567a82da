package core

import "fmt"

// Visitor rewrites one node. Returning the same node signals "unchanged";
// returning nil signals "nothing", which is only legal for optional slots.
type Visitor interface {
	Visit(n Node) (Node, error)
}

// VisitorFunc adapts a function to Visitor.
type VisitorFunc func(Node) (Node, error)

// Visit implements Visitor.
func (f VisitorFunc) Visit(n Node) (Node, error) { return f(n) }

// VisitChildren visits every child of n with v and rebuilds n through its
// Update constructor, so n itself is returned when no child changed.
func VisitChildren(v Visitor, n Node) (Node, error) {
	switch x := n.(type) {
	case nil:
		return nil, nil
	case *Constant, *Parameter, *Column, *Table, *Variable:
		return n, nil
	case *Lambda:
		body, err := Required(v, x.Body, "Lambda.Body")
		if err != nil {
			return nil, err
		}
		return x.Update(body), nil
	case *Member:
		expr, err := Optional(v, x.Expr)
		if err != nil {
			return nil, err
		}
		return x.Update(expr), nil
	case *Call:
		obj, err := Optional(v, x.Object)
		if err != nil {
			return nil, err
		}
		args, err := VisitList(v, x.Args)
		if err != nil {
			return nil, err
		}
		return x.Update(obj, args), nil
	case *Invoke:
		args, err := VisitList(v, x.Args)
		if err != nil {
			return nil, err
		}
		return x.Update(args), nil
	case *Binary:
		left, err := Required(v, x.Left, "Binary.Left")
		if err != nil {
			return nil, err
		}
		right, err := Required(v, x.Right, "Binary.Right")
		if err != nil {
			return nil, err
		}
		return x.Update(left, right), nil
	case *Unary:
		operand, err := Required(v, x.Operand, "Unary.Operand")
		if err != nil {
			return nil, err
		}
		return x.Update(operand), nil
	case *Conditional:
		parts, err := visitAll(v, "Conditional", x.Test, x.IfTrue, x.IfFalse)
		if err != nil {
			return nil, err
		}
		return x.Update(parts[0], parts[1], parts[2]), nil
	case *New:
		var bindings []MemberBinding
		for i, b := range x.Bindings {
			e, err := Required(v, b.Expr, "New."+b.Name)
			if err != nil {
				return nil, err
			}
			if e != b.Expr && bindings == nil {
				bindings = make([]MemberBinding, i, len(x.Bindings))
				copy(bindings, x.Bindings[:i])
			}
			if bindings != nil {
				bindings = append(bindings, MemberBinding{Name: b.Name, Expr: e})
			}
		}
		if bindings == nil {
			return x, nil
		}
		return x.Update(bindings), nil
	case *Select:
		return VisitSelectChildren(v, x)
	case *Join:
		left, err := Required(v, x.Left, "Join.Left")
		if err != nil {
			return nil, err
		}
		right, err := Required(v, x.Right, "Join.Right")
		if err != nil {
			return nil, err
		}
		cond, err := Optional(v, x.Condition)
		if err != nil {
			return nil, err
		}
		return x.Update(x.JoinType, left, right, cond), nil
	case *Projection:
		sel, err := VisitSelect(v, x.Select, "Projection.Select")
		if err != nil {
			return nil, err
		}
		proj, err := Required(v, x.Projector, "Projection.Projector")
		if err != nil {
			return nil, err
		}
		agg, err := visitLambda(v, x.Aggregator)
		if err != nil {
			return nil, err
		}
		return x.Update(sel, proj, agg), nil
	case *Aggregate:
		arg, err := Optional(v, x.Argument)
		if err != nil {
			return nil, err
		}
		return x.Update(arg), nil
	case *AggregateSubquery:
		inGroup, err := Required(v, x.AggregateInGroupSelect, "AggregateSubquery.AggregateInGroupSelect")
		if err != nil {
			return nil, err
		}
		sub, err := Required(v, x.Subquery, "AggregateSubquery.Subquery")
		if err != nil {
			return nil, err
		}
		scalar, ok := sub.(*Scalar)
		if !ok {
			return nil, &InvariantError{Op: "AggregateSubquery.Subquery", Detail: fmt.Sprintf("expected *Scalar, got %T", sub)}
		}
		return x.Update(inGroup, scalar), nil
	case *Scalar:
		sel, err := VisitSelect(v, x.Select, "Scalar.Select")
		if err != nil {
			return nil, err
		}
		return x.Update(sel), nil
	case *Exists:
		sel, err := VisitSelect(v, x.Select, "Exists.Select")
		if err != nil {
			return nil, err
		}
		return x.Update(sel), nil
	case *In:
		expr, err := Required(v, x.Expr, "In.Expr")
		if err != nil {
			return nil, err
		}
		var sel *Select
		if x.Select != nil {
			if sel, err = VisitSelect(v, x.Select, "In.Select"); err != nil {
				return nil, err
			}
		}
		values, err := VisitList(v, x.Values)
		if err != nil {
			return nil, err
		}
		return x.Update(expr, sel, values), nil
	case *Grouping:
		key, err := Required(v, x.Key, "Grouping.Key")
		if err != nil {
			return nil, err
		}
		elems, err := Required(v, x.Elements, "Grouping.Elements")
		if err != nil {
			return nil, err
		}
		return x.Update(key, elems), nil
	case *IsNull:
		expr, err := Required(v, x.Expr, "IsNull.Expr")
		if err != nil {
			return nil, err
		}
		return x.Update(expr), nil
	case *Between:
		parts, err := visitAll(v, "Between", x.Expr, x.Lower, x.Upper)
		if err != nil {
			return nil, err
		}
		return x.Update(parts[0], parts[1], parts[2]), nil
	case *RowNumber:
		orderBy, err := VisitOrderBy(v, x.OrderBy)
		if err != nil {
			return nil, err
		}
		return x.Update(orderBy), nil
	case *NamedValue:
		value, err := Required(v, x.Value, "NamedValue.Value")
		if err != nil {
			return nil, err
		}
		return x.Update(value), nil
	case *OuterJoined:
		test, err := Required(v, x.Test, "OuterJoined.Test")
		if err != nil {
			return nil, err
		}
		expr, err := Required(v, x.Expr, "OuterJoined.Expr")
		if err != nil {
			return nil, err
		}
		return x.Update(test, expr), nil
	case *Batch:
		input, err := Required(v, x.Input, "Batch.Input")
		if err != nil {
			return nil, err
		}
		op, err := visitLambda(v, x.Operation)
		if err != nil {
			return nil, err
		}
		size, err := Optional(v, x.BatchSize)
		if err != nil {
			return nil, err
		}
		stream, err := Optional(v, x.Stream)
		if err != nil {
			return nil, err
		}
		return x.Update(input, op, size, stream), nil
	case *Function:
		args, err := VisitList(v, x.Args)
		if err != nil {
			return nil, err
		}
		return x.Update(args), nil
	case *Entity:
		expr, err := Required(v, x.Expr, "Entity.Expr")
		if err != nil {
			return nil, err
		}
		return x.Update(expr), nil
	case *Block:
		cmds, err := VisitList(v, x.Commands)
		if err != nil {
			return nil, err
		}
		return x.Update(cmds), nil
	case *If:
		check, err := Required(v, x.Check, "If.Check")
		if err != nil {
			return nil, err
		}
		ifTrue, err := Required(v, x.IfTrue, "If.IfTrue")
		if err != nil {
			return nil, err
		}
		ifFalse, err := Optional(v, x.IfFalse)
		if err != nil {
			return nil, err
		}
		return x.Update(check, ifTrue, ifFalse), nil
	case *Declaration:
		var vars []VariableDeclaration
		for i, d := range x.Variables {
			e, err := Required(v, d.Expr, "Declaration."+d.Name)
			if err != nil {
				return nil, err
			}
			if e != d.Expr && vars == nil {
				vars = make([]VariableDeclaration, i, len(x.Variables))
				copy(vars, x.Variables[:i])
			}
			if vars != nil {
				vars = append(vars, VariableDeclaration{Name: d.Name, SQLType: d.SQLType, Expr: e})
			}
		}
		if vars == nil {
			vars = x.Variables
		}
		var src *Select
		if x.Source != nil {
			var err error
			if src, err = VisitSelect(v, x.Source, "Declaration.Source"); err != nil {
				return nil, err
			}
		}
		return x.Update(vars, src), nil
	default:
		return nil, Unsupported(n, "no traversal rule")
	}
}

// VisitSelectChildren visits the parts of a select in source-first order:
// from, where, order by, group by, skip, take, then columns.
func VisitSelectChildren(v Visitor, s *Select) (*Select, error) {
	from, err := Optional(v, s.From)
	if err != nil {
		return nil, err
	}
	where, err := Optional(v, s.Where)
	if err != nil {
		return nil, err
	}
	orderBy, err := VisitOrderBy(v, s.OrderBy)
	if err != nil {
		return nil, err
	}
	groupBy, err := VisitList(v, s.GroupBy)
	if err != nil {
		return nil, err
	}
	skip, err := Optional(v, s.Skip)
	if err != nil {
		return nil, err
	}
	take, err := Optional(v, s.Take)
	if err != nil {
		return nil, err
	}
	columns, err := VisitColumns(v, s.Columns)
	if err != nil {
		return nil, err
	}
	return s.Update(columns, from, where, orderBy, groupBy, skip, take), nil
}

// Optional visits n; a nil n or a nil result is allowed.
func Optional(v Visitor, n Node) (Node, error) {
	if n == nil {
		return nil, nil
	}
	return v.Visit(n)
}

// Required visits n and fails with an InvariantError if a non-nil n
// produced nothing.
func Required(v Visitor, n Node, op string) (Node, error) {
	if n == nil {
		return nil, nil
	}
	out, err := v.Visit(n)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, &InvariantError{Op: op, Detail: fmt.Sprintf("visiting %s produced nothing", n.Kind())}
	}
	return out, nil
}

// VisitSelect visits a select-typed slot and checks the result is still a select.
func VisitSelect(v Visitor, s *Select, op string) (*Select, error) {
	if s == nil {
		return nil, nil
	}
	out, err := Required(v, s, op)
	if err != nil {
		return nil, err
	}
	sel, ok := out.(*Select)
	if !ok {
		return nil, &InvariantError{Op: op, Detail: fmt.Sprintf("expected *Select, got %T", out)}
	}
	return sel, nil
}

// VisitList visits every element and returns the original slice when no
// element changed. Nil results are dropped.
func VisitList(v Visitor, list []Node) ([]Node, error) {
	var out []Node
	for i, n := range list {
		e, err := v.Visit(n)
		if err != nil {
			return nil, err
		}
		if e != n && out == nil {
			out = make([]Node, i, len(list))
			copy(out, list[:i])
		}
		if out != nil && e != nil {
			out = append(out, e)
		}
	}
	if out == nil {
		return list, nil
	}
	return out, nil
}

// VisitColumns visits column declaration expressions.
func VisitColumns(v Visitor, cols []ColumnDeclaration) ([]ColumnDeclaration, error) {
	var out []ColumnDeclaration
	for i, c := range cols {
		e, err := Required(v, c.Expr, "ColumnDeclaration."+c.Name)
		if err != nil {
			return nil, err
		}
		if e != c.Expr && out == nil {
			out = make([]ColumnDeclaration, i, len(cols))
			copy(out, cols[:i])
		}
		if out != nil {
			out = append(out, ColumnDeclaration{Name: c.Name, Expr: e, SQLType: c.SQLType})
		}
	}
	if out == nil {
		return cols, nil
	}
	return out, nil
}

// VisitOrderBy visits ordering expressions.
func VisitOrderBy(v Visitor, orderBy []OrderExpression) ([]OrderExpression, error) {
	var out []OrderExpression
	for i, o := range orderBy {
		e, err := Required(v, o.Expr, "OrderExpression")
		if err != nil {
			return nil, err
		}
		if e != o.Expr && out == nil {
			out = make([]OrderExpression, i, len(orderBy))
			copy(out, orderBy[:i])
		}
		if out != nil {
			out = append(out, OrderExpression{Order: o.Order, Expr: e})
		}
	}
	if out == nil {
		return orderBy, nil
	}
	return out, nil
}

func visitLambda(v Visitor, l *Lambda) (*Lambda, error) {
	if l == nil {
		return nil, nil
	}
	out, err := Required(v, l, "Lambda")
	if err != nil {
		return nil, err
	}
	lam, ok := out.(*Lambda)
	if !ok {
		return nil, &InvariantError{Op: "Lambda", Detail: fmt.Sprintf("expected *Lambda, got %T", out)}
	}
	return lam, nil
}

func visitAll(v Visitor, op string, nodes ...Node) ([]Node, error) {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		e, err := Required(v, n, op)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// Rewrite applies f bottom-up: children first, then the rebuilt parent.
func Rewrite(n Node, f func(Node) (Node, error)) (Node, error) {
	return postorder(f).Visit(n)
}

type postorder func(Node) (Node, error)

func (f postorder) Visit(n Node) (Node, error) {
	if n == nil {
		return nil, nil
	}
	out, err := VisitChildren(f, n)
	if err != nil {
		return nil, err
	}
	return f(out)
}

// Inspect walks n depth-first, calling f before descending. Returning
// false from f skips the node's children.
func Inspect(n Node, f func(Node) bool) {
	_, _ = inspector(f).Visit(n)
}

type inspector func(Node) bool

func (f inspector) Visit(n Node) (Node, error) {
	if n == nil {
		return nil, nil
	}
	if f(n) {
		if _, err := VisitChildren(f, n); err != nil {
			return n, err
		}
	}
	return n, nil
}
