package optimize

import (
	"reflect"
	"sort"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

// RewriteComparisons decomposes equality between entities and constructed
// values into per-member comparisons. Entities compare by primary key. An
// outer-joined entity compared with nil becomes a NULL test on its marker.
func RewriteComparisons(_ *Context, n core.Node) (core.Node, error) {
	return comparisonRewriter{}.Visit(n)
}

type comparisonRewriter struct{}

func (r comparisonRewriter) Visit(n core.Node) (core.Node, error) {
	if b, ok := n.(*core.Binary); ok && (b.Op == core.OpEq || b.Op == core.OpNe) {
		out, err := r.compare(b)
		if err != nil {
			return nil, err
		}
		if out != b {
			return r.Visit(out)
		}
	}
	return core.VisitChildren(r, n)
}

func (r comparisonRewriter) compare(b *core.Binary) (core.Node, error) {
	e1, e2 := skipConvert(b.Left), skipConvert(b.Right)
	oj1, _ := e1.(*core.OuterJoined)
	oj2, _ := e2.(*core.OuterJoined)
	negate := b.Op == core.OpNe

	if oj1 != nil && isNullConstant(e2) {
		return makeIsNull(oj1.Test, negate), nil
	}
	if oj2 != nil && isNullConstant(e1) {
		return makeIsNull(oj2.Test, negate), nil
	}

	if ent := entityOf(e1); ent != nil {
		return makeMemberPredicate(e1, e2, primaryKeyNames(ent), negate)
	}
	if ent := entityOf(e2); ent != nil {
		return makeMemberPredicate(e1, e2, primaryKeyNames(ent), negate)
	}

	dm1, dm2 := definedMembers(e1), definedMembers(e2)
	switch {
	case dm1 == nil && dm2 == nil:
		return b, nil
	case dm1 != nil && dm2 != nil:
		if !sameNameSet(dm1, dm2) {
			l, r := sortedCopy(dm1), sortedCopy(dm2)
			return nil, &core.AmbiguousComparisonError{Left: l, Right: r}
		}
		return makeMemberPredicate(e1, e2, dm1, negate)
	case dm1 != nil:
		return makeMemberPredicate(e1, e2, dm1, negate)
	default:
		return makeMemberPredicate(e1, e2, dm2, negate)
	}
}

func skipConvert(n core.Node) core.Node {
	for {
		u, ok := n.(*core.Unary)
		if !ok || u.Op != core.OpConvert {
			return n
		}
		n = u.Operand
	}
}

func isNullConstant(n core.Node) bool {
	c, ok := n.(*core.Constant)
	return ok && c.IsNull()
}

func makeIsNull(test core.Node, negate bool) core.Node {
	var out core.Node = core.NewIsNull(test)
	if negate {
		out = core.Not(out)
	}
	return out
}

func entityOf(n core.Node) *core.Entity {
	if oj, ok := n.(*core.OuterJoined); ok {
		n = oj.Expr
	}
	e, _ := n.(*core.Entity)
	return e
}

func primaryKeyNames(e *core.Entity) []string {
	keys := e.Mapping.PrimaryKeys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.Field
	}
	return names
}

// definedMembers returns the member names of a constructed value, or nil.
func definedMembers(n core.Node) []string {
	if nw, ok := n.(*core.New); ok {
		return nw.Names()
	}
	return nil
}

func sameNameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}

func sortedCopy(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

func makeMemberPredicate(e1, e2 core.Node, members []string, negate bool) (core.Node, error) {
	if len(members) == 0 {
		return nil, &core.UnsupportedError{Kind: core.KindEntity, Name: e1.Type().String(), Reason: "no primary key to compare"}
	}
	terms := make([]core.Node, 0, len(members))
	for _, m := range members {
		l, err := bindMember(e1, m)
		if err != nil {
			return nil, err
		}
		r, err := bindMember(e2, m)
		if err != nil {
			return nil, err
		}
		terms = append(terms, core.NewBinary(core.OpEq, l, r))
	}
	pred := core.JoinConjunction(terms)
	if negate {
		pred = core.Not(pred)
	}
	return pred, nil
}

// bindMember resolves member name of n without leaving a member access on a
// relational expression behind.
func bindMember(n core.Node, name string) (core.Node, error) {
	switch x := skipConvert(n).(type) {
	case *core.Entity:
		return bindMember(x.Expr, name)
	case *core.OuterJoined:
		return bindMember(x.Expr, name)
	case *core.New:
		if e, ok := x.Binding(name); ok {
			return e, nil
		}
	case *core.Constant:
		return constantMember(x, name)
	}
	t := fieldType(n.Type(), name)
	if t == nil {
		return nil, &core.UnsupportedError{Kind: core.KindMember, Name: name, Reason: "no such member on " + n.Type().String()}
	}
	return core.NewMember(n, name, t), nil
}

func constantMember(c *core.Constant, name string) (core.Node, error) {
	t := fieldType(c.Type(), name)
	if t == nil {
		return nil, &core.UnsupportedError{Kind: core.KindMember, Name: name, Reason: "no such member on " + c.Type().String()}
	}
	if c.IsNull() {
		return core.NewConstant(nil, t), nil
	}
	v := reflect.ValueOf(c.Value)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	return core.NewConstant(v.FieldByName(name).Interface(), t), nil
}

func fieldType(t reflect.Type, name string) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	f, ok := t.FieldByName(name)
	if !ok {
		return nil
	}
	return f.Type
}
