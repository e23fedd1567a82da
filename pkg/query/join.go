package query

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

// Join pairs rows of q and inner whose keys are equal and projects each
// pair through result.
func (q *Query) Join(inner *Query, outerKey, innerKey func(Row) core.Node, result func(outer, inner Row) core.Node) *Query {
	return q.join("Join", core.InnerJoin, inner, keysEqual(outerKey, innerKey), result)
}

// LeftJoin is Join that keeps unmatched rows of q. Fields of a missing
// inner row read as zero values.
func (q *Query) LeftJoin(inner *Query, outerKey, innerKey func(Row) core.Node, result func(outer, inner Row) core.Node) *Query {
	return q.join("LeftJoin", core.LeftOuter, inner, keysEqual(outerKey, innerKey), result)
}

// CrossJoin pairs every row of q with every row of inner.
func (q *Query) CrossJoin(inner *Query, result func(outer, inner Row) core.Node) *Query {
	return q.join("CrossJoin", core.CrossJoin, inner, nil, result)
}

// SelectMany pairs each row of q with the rows of the query collection
// builds for it. The collection may refer to the outer row.
func (q *Query) SelectMany(collection func(Row) *Query, result func(outer, inner Row) core.Node) *Query {
	if q.err != nil {
		return q
	}
	rs := &recorder{}
	inner := collection(Row{expr: q.proj, rec: rs})
	if rs.err != nil {
		return q.fail("SelectMany", rs.err)
	}
	return q.join("SelectMany", core.CrossApply, inner, nil, result)
}

func keysEqual(outerKey, innerKey func(Row) core.Node) func(o, i Row) core.Node {
	return func(o, i Row) core.Node {
		return equal(outerKey(o), innerKey(i))
	}
}

// equal compares two keys. Composite keys built with core.New compare
// member by member.
func equal(a, b core.Node) core.Node {
	return compareKeys(a, b, Eq)
}

// keysMatch is equal with NULL members matching each other, the way
// GROUP BY puts NULL keys in one group.
func keysMatch(a, b core.Node) core.Node {
	return compareKeys(a, b, nullsEqual)
}

func compareKeys(a, b core.Node, cmp func(a, b core.Node) core.Node) core.Node {
	na, aok := unwrapEntity(a).(*core.New)
	nb, bok := unwrapEntity(b).(*core.New)
	if !aok || !bok {
		return cmp(a, b)
	}
	var terms []core.Node
	for _, name := range na.Names() {
		l, _ := na.Binding(name)
		r, ok := nb.Binding(name)
		if !ok {
			return core.NewConstant(invalid{fmt.Errorf("key member %q missing on one side", name)}, nil)
		}
		terms = append(terms, cmp(l, r))
	}
	return And(terms...)
}

func nullsEqual(a, b core.Node) core.Node {
	if !nullable(a.Type()) && !nullable(b.Type()) {
		return Eq(a, b)
	}
	return Or(Eq(a, b), And(IsNull(a), IsNull(b)))
}

func nullable(t reflect.Type) bool {
	if t == nil {
		return true
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return true
	}
	return false
}

func (q *Query) join(op string, jt core.JoinType, inner *Query, cond func(o, i Row) core.Node, result func(outer, inner Row) core.Node) *Query {
	switch {
	case q.err != nil:
		return q
	case inner == nil:
		return q.fail(op, errors.New("nil inner query"))
	case inner.err != nil:
		return q.fail(op, inner.err)
	}
	if core.DeclaredAliases(inner.sel).Intersects(aliasesOf(q.sel)) {
		if inner = inner.duplicate(); inner.err != nil {
			return q.fail(op, inner.err)
		}
	}
	rs := &recorder{}
	o, i := Row{expr: q.proj, rec: rs}, Row{expr: inner.proj, rec: rs}
	var on core.Node
	if cond != nil {
		on = cond(o, i)
	}
	res := result(o, i)
	if err := rs.check(on, res); err != nil {
		return q.fail(op, err)
	}
	if on != nil && on.Type() != core.BoolType {
		return q.fail(op, fmt.Errorf("join condition has type %s, want bool", on.Type()))
	}
	return q.project(res, core.NewJoin(jt, q.sel, inner.sel, on), nil, q.sel.Alias, inner.sel.Alias)
}

// aliasesOf returns every alias declared anywhere under n.
func aliasesOf(n core.Node) core.AliasSet {
	set := core.AliasSet{}
	core.Inspect(n, func(e core.Node) bool {
		if a, ok := e.(core.Aliased); ok {
			set[a.SourceAlias()] = struct{}{}
		}
		return true
	})
	return set
}

// duplicate returns a copy of q whose sources carry fresh aliases, so it
// can appear next to q in one statement.
func (q *Query) duplicate() *Query {
	fresh := make(map[*core.Alias]*core.Alias)
	for a := range aliasesOf(q.sel) {
		fresh[a] = core.NewAlias()
	}
	remap := func(e core.Node) (core.Node, error) {
		switch x := e.(type) {
		case *core.Table:
			if a, ok := fresh[x.Alias]; ok {
				c := *x
				c.Alias = a
				return &c, nil
			}
		case *core.Select:
			if a, ok := fresh[x.Alias]; ok {
				c := *x
				c.Alias = a
				return &c, nil
			}
		case *core.Column:
			if a, ok := fresh[x.Alias]; ok {
				return core.NewColumn(x.Type(), x.SQLType, a, x.Name), nil
			}
		}
		return e, nil
	}
	sel, err := core.Rewrite(q.sel, remap)
	if err != nil {
		return q.fail("duplicate", err)
	}
	proj, err := core.Rewrite(q.proj, remap)
	if err != nil {
		return q.fail("duplicate", err)
	}
	return &Query{lang: q.lang, sel: sel.(*core.Select), proj: proj}
}
