package eval

import (
	"strconv"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

// Placement says where a projector subexpression is computed.
type Placement int

const (
	// Local expressions are computed by the projector after rows are read.
	Local Placement = iota
	// MayBeColumn expressions are computed by the server when the dialect
	// can express them.
	MayBeColumn
	// MustBeColumn expressions only exist on the server.
	MustBeColumn
)

// Language decides which host expressions a dialect can compute.
// *dialect.Dialect implements it.
type Language interface {
	core.TypeSystem
	CanBeColumn(n core.Node) bool
}

// Classify returns the placement of n on its own, ignoring its children.
func Classify(lang Language, n core.Node) Placement {
	switch n.(type) {
	case *core.Column, *core.Scalar, *core.Exists, *core.Aggregate,
		*core.AggregateSubquery, *core.RowNumber:
		return MustBeColumn
	}
	if lang != nil && lang.CanBeColumn(n) {
		return MayBeColumn
	}
	return Local
}

// ProjectedColumns is the result of ProjectColumns.
type ProjectedColumns struct {
	// Projector reads the declared columns through the new alias.
	Projector core.Node
	Columns   []core.ColumnDeclaration
}

// ProjectColumns moves every server-side subexpression of projector into a
// column list for a select with alias newAlias. Columns of existingAliases
// are re-declared once each, keeping existing declarations; other server
// expressions are declared as c0, c1 and so on. Column references to other
// aliases are left in place, since they belong to an outer scope.
func ProjectColumns(lang Language, projector core.Node, existing []core.ColumnDeclaration, newAlias *core.Alias, existingAliases ...*core.Alias) (*ProjectedColumns, error) {
	aliases := core.AliasSet{}
	for _, a := range existingAliases {
		aliases[a] = struct{}{}
	}
	nom := &columnNominator{lang: lang, aliases: aliases, candidates: Candidates{}}
	_, _ = nom.Visit(projector)

	p := &columnProjector{
		lang:       lang,
		candidates: nom.candidates,
		newAlias:   newAlias,
		columns:    append([]core.ColumnDeclaration(nil), existing...),
		mapped:     make(map[core.ColumnKey]*core.Column),
	}
	out, err := p.Visit(projector)
	if err != nil {
		return nil, err
	}
	return &ProjectedColumns{Projector: out, Columns: p.columns}, nil
}

type columnNominator struct {
	lang       Language
	aliases    core.AliasSet
	candidates Candidates
	blocked    bool
	inSelect   int
}

func (v *columnNominator) Visit(n core.Node) (core.Node, error) {
	if n == nil {
		return nil, nil
	}
	switch n.(type) {
	case *core.Scalar, *core.Exists, *core.AggregateSubquery:
		// Subqueries are projected whole. Their own columns stay inside.
		if v.inSelect == 0 {
			v.candidates[n] = struct{}{}
			return n, nil
		}
	case *core.Select:
		v.inSelect++
		_, err := core.VisitChildren(v, n)
		v.inSelect--
		return n, err
	}

	saved := v.blocked
	v.blocked = false
	if _, err := core.VisitChildren(v, n); err != nil {
		v.blocked = true
	}
	if _, ok := n.(*core.Constant); ok {
		// A constant never moves alone but does not keep its parent local.
		v.blocked = saved
		return n, nil
	}
	if !v.blocked {
		if v.canBeColumn(n) {
			v.candidates[n] = struct{}{}
		} else {
			v.blocked = true
		}
	}
	v.blocked = v.blocked || saved
	return n, nil
}

func (v *columnNominator) canBeColumn(n core.Node) bool {
	if c, ok := n.(*core.Column); ok {
		return v.aliases.Has(c.Alias)
	}
	if v.inSelect > 0 {
		// Inside a correlated select only outer column references move.
		return false
	}
	return Classify(v.lang, n) != Local
}

type columnProjector struct {
	lang       Language
	candidates Candidates
	newAlias   *core.Alias
	columns    []core.ColumnDeclaration
	mapped     map[core.ColumnKey]*core.Column
	next       int
}

func (p *columnProjector) Visit(n core.Node) (core.Node, error) {
	if n == nil {
		return nil, nil
	}
	if !p.candidates.Has(n) {
		return core.VisitChildren(p, n)
	}
	if c, ok := n.(*core.Column); ok {
		return p.column(c), nil
	}
	name := p.nextName()
	st := p.columnType(n)
	p.columns = append(p.columns, core.ColumnDeclaration{Name: name, Expr: n, SQLType: st})
	return core.NewColumn(n.Type(), st, p.newAlias, name), nil
}

func (p *columnProjector) column(c *core.Column) *core.Column {
	if m, ok := p.mapped[c.Key()]; ok {
		return m
	}
	for _, d := range p.columns {
		if e, ok := d.Expr.(*core.Column); ok && e.Alias == c.Alias && e.Name == c.Name {
			m := core.NewColumn(c.Type(), c.SQLType, p.newAlias, d.Name)
			p.mapped[c.Key()] = m
			return m
		}
	}
	name := core.AvailableColumnName(p.columns, c.Name)
	p.columns = append(p.columns, core.ColumnDeclaration{Name: name, Expr: c, SQLType: c.SQLType})
	m := core.NewColumn(c.Type(), c.SQLType, p.newAlias, name)
	p.mapped[c.Key()] = m
	return m
}

func (p *columnProjector) nextName() string {
	for {
		name := "c" + strconv.Itoa(p.next)
		p.next++
		if _, taken := findColumn(p.columns, name); !taken {
			return name
		}
	}
}

func (p *columnProjector) columnType(n core.Node) core.SQLType {
	if p.lang == nil {
		return core.SQLType{}
	}
	return p.lang.ColumnType(n.Type())
}

func findColumn(cols []core.ColumnDeclaration, name string) (core.ColumnDeclaration, bool) {
	for _, c := range cols {
		if c.Name == name {
			return c, true
		}
	}
	return core.ColumnDeclaration{}, false
}
