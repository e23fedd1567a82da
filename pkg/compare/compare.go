// Package compare decides structural equality of node trees up to alias and
// lambda-parameter renaming, and computes a matching structural hash.
package compare

import (
	"reflect"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

// Option configures a comparison.
type Option func(*comparer)

// IgnoreValues compares named values by name only, so two translations that
// differ only in parameter values compare equal.
func IgnoreValues() Option {
	return func(c *comparer) { c.ignoreValues = true }
}

type (
	paramScope = core.ScopedDictionary[*core.Parameter, *core.Parameter]
	aliasScope = core.ScopedDictionary[*core.Alias, *core.Alias]
)

type comparer struct {
	params       *paramScope
	aliases      *aliasScope
	ignoreValues bool
}

// Equal reports whether a and b are structurally equal.
func Equal(a, b core.Node, opts ...Option) bool {
	return EqualScoped(a, b, nil, nil, opts...)
}

// EqualScoped compares a and b with pre-established parameter and alias
// correspondences (a-side to b-side). Either scope may be nil.
func EqualScoped(a, b core.Node, params *paramScope, aliases *aliasScope, opts ...Option) bool {
	c := &comparer{params: params, aliases: aliases}
	for _, o := range opts {
		o(c)
	}
	return c.compare(a, b)
}

func (c *comparer) compare(a, b core.Node) bool {
	if a == b && c.aliases == nil && c.params == nil {
		return true
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() || a.Type() != b.Type() {
		return false
	}

	switch x := a.(type) {
	case *core.Constant:
		return reflect.DeepEqual(x.Value, b.(*core.Constant).Value)
	case *core.Parameter:
		return c.mapParam(x) == b
	case *core.Lambda:
		return c.compareLambda(x, b.(*core.Lambda))
	case *core.Member:
		y := b.(*core.Member)
		return x.Name == y.Name && c.compare(x.Expr, y.Expr)
	case *core.Call:
		y := b.(*core.Call)
		return x.Method == y.Method && c.compare(x.Object, y.Object) && c.compareList(x.Args, y.Args)
	case *core.Invoke:
		y := b.(*core.Invoke)
		return reflect.ValueOf(x.Fn).Pointer() == reflect.ValueOf(y.Fn).Pointer() && c.compareList(x.Args, y.Args)
	case *core.Binary:
		y := b.(*core.Binary)
		return x.Op == y.Op && c.compare(x.Left, y.Left) && c.compare(x.Right, y.Right)
	case *core.Unary:
		y := b.(*core.Unary)
		return x.Op == y.Op && c.compare(x.Operand, y.Operand)
	case *core.Conditional:
		y := b.(*core.Conditional)
		return c.compare(x.Test, y.Test) && c.compare(x.IfTrue, y.IfTrue) && c.compare(x.IfFalse, y.IfFalse)
	case *core.New:
		return c.compareNew(x, b.(*core.New))
	case *core.Table:
		y := b.(*core.Table)
		return x.Name == y.Name && x.Schema == y.Schema
	case *core.Column:
		y := b.(*core.Column)
		return x.Name == y.Name && c.mapAlias(x.Alias) == y.Alias
	case *core.Select:
		return c.compareSelect(x, b.(*core.Select))
	case *core.Projection:
		return c.compareProjection(x, b.(*core.Projection))
	case *core.Join:
		return c.compareJoin(x, b.(*core.Join))
	case *core.Aggregate:
		y := b.(*core.Aggregate)
		return x.Func == y.Func && x.Distinct == y.Distinct && c.compare(x.Argument, y.Argument)
	case *core.AggregateSubquery:
		y := b.(*core.AggregateSubquery)
		return c.mapAlias(x.GroupByAlias) == y.GroupByAlias &&
			c.compare(x.AggregateInGroupSelect, y.AggregateInGroupSelect) &&
			c.compare(x.Subquery, y.Subquery)
	case *core.Scalar:
		return c.compareSelectNode(x.Select, b.(*core.Scalar).Select)
	case *core.Exists:
		return c.compareSelectNode(x.Select, b.(*core.Exists).Select)
	case *core.In:
		y := b.(*core.In)
		return c.compare(x.Expr, y.Expr) && c.compareSelectNode(x.Select, y.Select) && c.compareList(x.Values, y.Values)
	case *core.Grouping:
		y := b.(*core.Grouping)
		return c.compare(x.Key, y.Key) && c.compare(x.Elements, y.Elements)
	case *core.IsNull:
		return c.compare(x.Expr, b.(*core.IsNull).Expr)
	case *core.Between:
		y := b.(*core.Between)
		return c.compare(x.Expr, y.Expr) && c.compare(x.Lower, y.Lower) && c.compare(x.Upper, y.Upper)
	case *core.RowNumber:
		return c.compareOrderBy(x.OrderBy, b.(*core.RowNumber).OrderBy)
	case *core.NamedValue:
		y := b.(*core.NamedValue)
		if x.Name != y.Name {
			return false
		}
		return c.ignoreValues || c.compare(x.Value, y.Value)
	case *core.OuterJoined:
		y := b.(*core.OuterJoined)
		return c.compare(x.Test, y.Test) && c.compare(x.Expr, y.Expr)
	case *core.Batch:
		y := b.(*core.Batch)
		return c.compare(x.Input, y.Input) && c.compare(x.Operation, y.Operation) &&
			c.compare(x.BatchSize, y.BatchSize) && c.compare(x.Stream, y.Stream)
	case *core.Function:
		y := b.(*core.Function)
		return x.Name == y.Name && c.compareList(x.Args, y.Args)
	case *core.Entity:
		y := b.(*core.Entity)
		return x.Mapping == y.Mapping && c.compare(x.Expr, y.Expr)
	case *core.Block:
		return c.compareList(x.Commands, b.(*core.Block).Commands)
	case *core.If:
		y := b.(*core.If)
		return c.compare(x.Check, y.Check) && c.compare(x.IfTrue, y.IfTrue) && c.compare(x.IfFalse, y.IfFalse)
	case *core.Declaration:
		return c.compareDeclaration(x, b.(*core.Declaration))
	case *core.Variable:
		return x.Name == b.(*core.Variable).Name
	}
	return false
}

func (c *comparer) mapParam(p *core.Parameter) *core.Parameter {
	if c.params != nil {
		if m, ok := c.params.Get(p); ok {
			return m
		}
	}
	return p
}

func (c *comparer) mapAlias(a *core.Alias) *core.Alias {
	if c.aliases != nil {
		if m, ok := c.aliases.Get(a); ok {
			return m
		}
	}
	return a
}

// withAliases runs fn with a new alias frame mapping as[i] to bs[i].
func (c *comparer) withAliases(as, bs []*core.Alias, fn func() bool) bool {
	if len(as) != len(bs) {
		return false
	}
	saved := c.aliases
	c.aliases = core.NewScopedDictionary(saved)
	for i := range as {
		c.aliases.Add(as[i], bs[i])
	}
	defer func() { c.aliases = saved }()
	return fn()
}

func (c *comparer) compareList(a, b []core.Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !c.compare(a[i], b[i]) {
			return false
		}
	}
	return true
}

func (c *comparer) compareOrderBy(a, b []core.OrderExpression) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Order != b[i].Order || !c.compare(a[i].Expr, b[i].Expr) {
			return false
		}
	}
	return true
}

func (c *comparer) compareColumns(a, b []core.ColumnDeclaration) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || !c.compare(a[i].Expr, b[i].Expr) {
			return false
		}
	}
	return true
}

func (c *comparer) compareLambda(a, b *core.Lambda) bool {
	if len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if a.Params[i].Type() != b.Params[i].Type() {
			return false
		}
	}
	saved := c.params
	c.params = core.NewScopedDictionary(saved)
	for i := range a.Params {
		c.params.Add(a.Params[i], b.Params[i])
	}
	defer func() { c.params = saved }()
	return c.compare(a.Body, b.Body)
}

func (c *comparer) compareNew(a, b *core.New) bool {
	if len(a.Bindings) != len(b.Bindings) {
		return false
	}
	for i := range a.Bindings {
		if a.Bindings[i].Name != b.Bindings[i].Name || !c.compare(a.Bindings[i].Expr, b.Bindings[i].Expr) {
			return false
		}
	}
	return true
}

func (c *comparer) compareSelectNode(a, b *core.Select) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return c.compareSelect(a, b)
}

// compareSelect compares the source first, then everything that can refer
// to it under the mapping of the source's declared aliases.
func (c *comparer) compareSelect(a, b *core.Select) bool {
	if !c.compare(a.From, b.From) {
		return false
	}
	if a.Distinct != b.Distinct || a.Reverse != b.Reverse {
		return false
	}
	return c.withAliases(core.DeclaredAliasList(a.From), core.DeclaredAliasList(b.From), func() bool {
		return c.compare(a.Where, b.Where) &&
			c.compareOrderBy(a.OrderBy, b.OrderBy) &&
			c.compareList(a.GroupBy, b.GroupBy) &&
			c.compare(a.Skip, b.Skip) &&
			c.compare(a.Take, b.Take) &&
			c.compareColumns(a.Columns, b.Columns)
	})
}

func (c *comparer) compareProjection(a, b *core.Projection) bool {
	if !c.compareSelect(a.Select, b.Select) {
		return false
	}
	return c.withAliases([]*core.Alias{a.Select.Alias}, []*core.Alias{b.Select.Alias}, func() bool {
		return c.compare(a.Projector, b.Projector) && c.compareAggregator(a.Aggregator, b.Aggregator)
	})
}

func (c *comparer) compareAggregator(a, b *core.Lambda) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return c.compareLambda(a, b)
}

func (c *comparer) compareJoin(a, b *core.Join) bool {
	if a.JoinType != b.JoinType || !c.compare(a.Left, b.Left) {
		return false
	}
	// the right side of an apply may refer to the left
	return c.withAliases(core.DeclaredAliasList(a.Left), core.DeclaredAliasList(b.Left), func() bool {
		if !c.compare(a.Right, b.Right) {
			return false
		}
		return c.withAliases(core.DeclaredAliasList(a.Right), core.DeclaredAliasList(b.Right), func() bool {
			return c.compare(a.Condition, b.Condition)
		})
	})
}

func (c *comparer) compareDeclaration(a, b *core.Declaration) bool {
	if len(a.Variables) != len(b.Variables) {
		return false
	}
	if !c.compareSelectNode(a.Source, b.Source) {
		return false
	}
	var as, bs []*core.Alias
	if a.Source != nil {
		as, bs = core.DeclaredAliasList(a.Source.From), core.DeclaredAliasList(b.Source.From)
	}
	return c.withAliases(as, bs, func() bool {
		for i := range a.Variables {
			av, bv := a.Variables[i], b.Variables[i]
			if av.Name != bv.Name || av.SQLType != bv.SQLType || !c.compare(av.Expr, bv.Expr) {
				return false
			}
		}
		return true
	})
}
