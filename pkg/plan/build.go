package plan

import (
	"reflect"
	"strconv"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
	"github.com/leapstack-labs/leapquery/pkg/format"
)

// Build compiles root for the dialect of cctx. root is normally a
// *core.Projection; command roots (Block, If, Declaration) become one batch
// when the dialect runs multiple commands at once and a sequence of
// commands otherwise. Any other expression is read as a single value.
func Build(cctx *core.CompilationContext, root core.Node) (*Plan, error) {
	if cctx == nil {
		return nil, &core.InvariantError{Op: "plan.Build", Detail: "no compilation context"}
	}
	d, ok := cctx.Language.(*dialect.Dialect)
	if !ok || d == nil {
		return nil, dialect.ErrDialectRequired
	}
	b := &builder{
		cctx:      cctx,
		dialect:   d,
		params:    make(map[string]core.QueryParameter),
		cacheable: true,
	}
	for _, e := range cctx.Parameters() {
		b.params[e.Name] = core.QueryParameter{Name: e.Name, Type: e.Type, SQLType: e.SQLType, Value: e.Value}
	}

	st, t, err := b.root(root)
	if err != nil {
		return nil, err
	}
	params, vars := contextValues(cctx)
	return &Plan{
		Type:      t,
		root:      st,
		commands:  b.commands,
		params:    params,
		vars:      vars,
		cacheable: b.cacheable,
	}, nil
}

type builder struct {
	cctx    *core.CompilationContext
	dialect *dialect.Dialect
	// params describes every name a command may bind: translation
	// parameters plus the correlated and declared names the builder adds.
	params    map[string]core.QueryParameter
	commands  []*core.QueryCommand
	cacheable bool
	outer     int
	// readers are the projections enclosing the one being compiled.
	readers []*reader
}

func (b *builder) root(n core.Node) (step, reflect.Type, error) {
	switch x := n.(type) {
	case *core.Projection:
		st, err := b.projection(x)
		if err != nil {
			return nil, nil, err
		}
		return st, x.Type(), nil
	case *core.Block, *core.If, *core.Declaration:
		if b.dialect.SupportsMultiCommands() {
			return b.batch(n)
		}
		return b.sequence(n)
	case *core.Select:
		return nil, nil, &core.InvariantError{Op: "plan.Build", Detail: "select has no projection"}
	case nil:
		return nil, nil, &core.InvariantError{Op: "plan.Build", Detail: "nothing to build"}
	}
	return b.scalar(n)
}

// command formats n and records the parameters and variables it binds.
func (b *builder) command(n core.Node) (*core.QueryCommand, error) {
	res, err := format.Format(b.dialect, n)
	if err != nil {
		return nil, err
	}
	cmd := &core.QueryCommand{CommandText: res.Text, Bindings: res.Bindings, Named: res.Named}
	seen := make(map[core.Binding]bool)
	for _, bd := range res.Bindings {
		if bd.Variable && bd.Element >= 0 {
			b.cacheable = false
		}
		key := core.Binding{Name: bd.Name, Variable: bd.Variable}
		if seen[key] {
			continue
		}
		seen[key] = true
		if bd.Variable {
			v, ok := b.cctx.Variable(bd.Name)
			if !ok {
				return nil, &core.InvariantError{Op: "plan.Build", Detail: "command binds unknown variable " + bd.Name}
			}
			cmd.Variables = append(cmd.Variables, core.QueryVariable{Name: v.Name, Values: v.Values, Array: v.Array})
			continue
		}
		p, ok := b.params[bd.Name]
		if !ok {
			return nil, &core.InvariantError{Op: "plan.Build", Detail: "command binds unknown parameter " + bd.Name}
		}
		cmd.Parameters = append(cmd.Parameters, p)
	}
	b.commands = append(b.commands, cmd)
	return cmd, nil
}

func (b *builder) projection(p *core.Projection) (*queryStep, error) {
	outer, sel, err := b.correlate(p.Select)
	if err != nil {
		return nil, err
	}
	cmd, err := b.command(sel)
	if err != nil {
		return nil, err
	}
	read, err := b.reader(p, sel)
	if err != nil {
		return nil, err
	}
	return &queryStep{cmd: cmd, read: read, outer: outer}, nil
}

// correlate replaces references to enclosing rows with named values that
// are bound per outer row.
func (b *builder) correlate(sel *core.Select) ([]outerRef, *core.Select, error) {
	if len(b.readers) == 0 {
		return nil, sel, nil
	}
	var refs []outerRef
	names := make(map[core.ColumnKey]string)
	out, err := core.Rewrite(sel, func(n core.Node) (core.Node, error) {
		c, ok := n.(*core.Column)
		if !ok {
			return n, nil
		}
		r := b.enclosing(c.Alias)
		if r == nil {
			return n, nil
		}
		name, seen := names[c.Key()]
		if !seen {
			ord, ok := r.ordinals[c.Name]
			if !ok {
				return nil, &core.UndefinedColumnError{Alias: c.Alias, Column: c.Name}
			}
			name = "o" + strconv.Itoa(b.outer)
			b.outer++
			names[c.Key()] = name
			refs = append(refs, outerRef{name: name, alias: c.Alias, ordinal: ord})
			b.params[name] = core.QueryParameter{Name: name, Type: c.Type(), SQLType: c.SQLType}
		}
		return core.NewNamedValue(name, c.SQLType, core.NewConstant(nil, c.Type())), nil
	})
	if err != nil {
		return nil, nil, err
	}
	return refs, out.(*core.Select), nil
}

func (b *builder) enclosing(a *core.Alias) *reader {
	for i := len(b.readers) - 1; i >= 0; i-- {
		if b.readers[i].alias == a {
			return b.readers[i]
		}
	}
	return nil
}

func (b *builder) reader(p *core.Projection, sel *core.Select) (*reader, error) {
	r := &reader{
		alias:     sel.Alias,
		types:     make([]reflect.Type, len(sel.Columns)),
		ordinals:  make(map[string]int, len(sel.Columns)),
		projector: p.Projector,
		elem:      p.Projector.Type(),
		nested:    make(map[*core.Projection]step),
	}
	for i, c := range sel.Columns {
		r.types[i] = c.Expr.Type()
		r.ordinals[c.Name] = i
	}
	agg, err := compileAggregator(p)
	if err != nil {
		return nil, err
	}
	r.aggregate = agg

	b.readers = append(b.readers, r)
	defer func() { b.readers = b.readers[:len(b.readers)-1] }()

	// Check column references and compile nested projections, which run
	// once per row of this one.
	var nested []*core.Projection
	var undefined error
	core.Inspect(p.Projector, func(n core.Node) bool {
		switch x := n.(type) {
		case *core.Projection:
			nested = append(nested, x)
			return false
		case *core.Column:
			if o := b.enclosing(x.Alias); o == nil || !hasOrdinal(o, x.Name) {
				if undefined == nil {
					undefined = &core.UndefinedColumnError{Alias: x.Alias, Column: x.Name}
				}
			}
		}
		return true
	})
	if undefined != nil {
		return nil, undefined
	}
	for _, np := range nested {
		st, err := b.projection(np)
		if err != nil {
			return nil, err
		}
		r.nested[np] = st
	}
	return r, nil
}

func hasOrdinal(r *reader, name string) bool {
	_, ok := r.ordinals[name]
	return ok
}

// scalar runs n as a single-value command.
func (b *builder) scalar(n core.Node) (step, reflect.Type, error) {
	node, declared, err := b.bindDeclared(n)
	if err != nil {
		return nil, nil, err
	}
	cmd, err := b.command(node)
	if err != nil {
		return nil, nil, err
	}
	return &queryStep{cmd: cmd, read: scalarReader(n.Type()), declared: declared}, n.Type(), nil
}

// batch formats a command tree as one multi-statement command. Its rows
// come from the command that produces the tree's result.
func (b *builder) batch(n core.Node) (step, reflect.Type, error) {
	result, err := resultOf(n)
	if err != nil {
		return nil, nil, err
	}
	tree, err := commandTree(n)
	if err != nil {
		return nil, nil, err
	}
	cmd, err := b.command(tree)
	if err != nil {
		return nil, nil, err
	}
	st := &queryStep{cmd: cmd}
	switch r := result.(type) {
	case nil:
		return st, core.VoidType, nil
	case *core.Projection:
		if hasNestedProjection(r.Projector) {
			return nil, nil, core.Unsupported(r, "nested projections cannot run inside a command batch")
		}
		st.read, err = b.reader(r, r.Select)
		if err != nil {
			return nil, nil, err
		}
		return st, r.Type(), nil
	}
	st.read = scalarReader(result.Type())
	return st, result.Type(), nil
}

// resultOf returns the command whose rows a batch returns, or nil when
// the batch returns none.
func resultOf(n core.Node) (core.Node, error) {
	switch x := n.(type) {
	case *core.Block:
		if len(x.Commands) == 0 {
			return nil, nil
		}
		return resultOf(x.Commands[len(x.Commands)-1])
	case *core.If:
		t, err := resultOf(x.IfTrue)
		if err != nil || x.IfFalse == nil {
			return t, err
		}
		f, err := resultOf(x.IfFalse)
		if err != nil {
			return nil, err
		}
		if !sameShape(t, f) {
			return nil, core.Unsupported(x, "branches return different row shapes")
		}
		return t, nil
	case *core.Declaration:
		return nil, nil
	}
	return n, nil
}

func sameShape(a, b core.Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	pa, aok := a.(*core.Projection)
	pb, bok := b.(*core.Projection)
	if aok != bok {
		return false
	}
	if !aok {
		return a.Type() == b.Type()
	}
	if pa.Type() != pb.Type() || len(pa.Select.Columns) != len(pb.Select.Columns) {
		return false
	}
	for i, c := range pa.Select.Columns {
		if c.Name != pb.Select.Columns[i].Name {
			return false
		}
	}
	return true
}

// commandTree replaces projections in command position with their selects.
func commandTree(n core.Node) (core.Node, error) {
	switch x := n.(type) {
	case *core.Projection:
		return x.Select, nil
	case *core.Block:
		cmds := make([]core.Node, len(x.Commands))
		for i, c := range x.Commands {
			out, err := commandTree(c)
			if err != nil {
				return nil, err
			}
			cmds[i] = out
		}
		return x.Update(cmds), nil
	case *core.If:
		t, err := commandTree(x.IfTrue)
		if err != nil {
			return nil, err
		}
		var f core.Node
		if x.IfFalse != nil {
			if f, err = commandTree(x.IfFalse); err != nil {
				return nil, err
			}
		}
		return x.Update(x.Check, t, f), nil
	}
	return n, nil
}

func hasNestedProjection(n core.Node) bool {
	found := false
	core.Inspect(n, func(n core.Node) bool {
		if _, ok := n.(*core.Projection); ok {
			found = true
		}
		return !found
	})
	return found
}

// sequence compiles a command tree into commands run one at a time.
// Declared variables travel between them as parameters.
func (b *builder) sequence(n core.Node) (step, reflect.Type, error) {
	switch x := n.(type) {
	case *core.Block:
		seq := &blockStep{}
		t := core.VoidType
		for _, c := range x.Commands {
			st, ct, err := b.sequence(c)
			if err != nil {
				return nil, nil, err
			}
			seq.steps = append(seq.steps, st)
			t = ct
		}
		return seq, t, nil
	case *core.If:
		node, declared, err := b.bindDeclared(x.Check)
		if err != nil {
			return nil, nil, err
		}
		cmd, err := b.command(node)
		if err != nil {
			return nil, nil, err
		}
		st := &ifStep{check: &queryStep{cmd: cmd, read: scalarReader(core.AnyType), declared: declared}}
		var t reflect.Type
		if st.ifTrue, t, err = b.sequence(x.IfTrue); err != nil {
			return nil, nil, err
		}
		if x.IfFalse != nil {
			var ft reflect.Type
			if st.ifFalse, ft, err = b.sequence(x.IfFalse); err != nil {
				return nil, nil, err
			}
			if ft != t {
				return nil, nil, core.Unsupported(x, "branches return different types")
			}
		}
		return st, t, nil
	case *core.Declaration:
		return b.declaration(x)
	case *core.Projection:
		node, declared, err := b.bindDeclared(x)
		if err != nil {
			return nil, nil, err
		}
		st, err := b.projection(node.(*core.Projection))
		if err != nil {
			return nil, nil, err
		}
		st.declared = declared
		return st, x.Type(), nil
	}
	return b.scalar(n)
}

func (b *builder) declaration(d *core.Declaration) (step, reflect.Type, error) {
	decls := make([]core.ColumnDeclaration, len(d.Variables))
	st := &declareStep{names: make([]string, len(d.Variables)), types: make([]reflect.Type, len(d.Variables))}
	for i, v := range d.Variables {
		if v.Expr == nil {
			return nil, nil, core.Unsupported(d, "variable "+v.Name+" has no initial value")
		}
		decls[i] = core.ColumnDeclaration{Name: v.Name, Expr: v.Expr, SQLType: v.SQLType}
		st.names[i] = declaredName(v.Name)
		st.types[i] = v.Expr.Type()
	}
	var sel *core.Select
	if d.Source != nil {
		sel = d.Source.SetColumns(decls)
	} else {
		sel = core.NewSelect(core.NewAlias(), decls, nil, nil)
	}
	node, declared, err := b.bindDeclared(sel)
	if err != nil {
		return nil, nil, err
	}
	cmd, err := b.command(node)
	if err != nil {
		return nil, nil, err
	}
	st.query = &queryStep{cmd: cmd, declared: declared}
	return st, core.VoidType, nil
}

func declaredName(name string) string { return "d_" + name }

// bindDeclared replaces variable references with named values filled
// from earlier declarations at run time.
func (b *builder) bindDeclared(n core.Node) (core.Node, []string, error) {
	var names []string
	seen := make(map[string]bool)
	out, err := core.Rewrite(n, func(n core.Node) (core.Node, error) {
		v, ok := n.(*core.Variable)
		if !ok {
			return n, nil
		}
		name := declaredName(v.Name)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
			b.params[name] = core.QueryParameter{Name: name, Type: v.Type(), SQLType: v.SQLType}
		}
		return core.NewNamedValue(name, v.SQLType, core.NewConstant(nil, v.Type())), nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, names, nil
}
