package format

import (
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

func (p *Printer) formatCommand(n core.Node) error {
	switch x := n.(type) {
	case *core.Select:
		return p.formatSelect(x)
	case *core.Block:
		if err := p.requireMultiCommands(x); err != nil {
			return err
		}
		for i, c := range x.Commands {
			if i > 0 {
				p.joinLine()
				p.write(";")
				p.writeln()
			}
			if err := p.formatCommand(c); err != nil {
				return err
			}
		}
		return nil
	case *core.If:
		return p.formatIf(x)
	case *core.Declaration:
		return p.formatDeclaration(x)
	}
	// A bare expression becomes a single-row select.
	p.keyword("SELECT")
	p.space()
	if err := p.formatValue(n); err != nil {
		return err
	}
	p.writeln()
	return nil
}

func (p *Printer) requireMultiCommands(n core.Node) error {
	if !p.dialect.SupportsMultiCommands() {
		return core.Unsupported(n, "dialect "+p.dialect.Name+" runs one command at a time")
	}
	return nil
}

func (p *Printer) formatSelect(s *core.Select) error {
	if s.Reverse {
		return &core.InvariantError{Op: "format.Select", Detail: "reverse ordering was not resolved"}
	}

	// SELECT [DISTINCT] [TOP (n)]
	p.keyword("SELECT")
	if s.Distinct {
		p.space()
		p.keyword("DISTINCT")
	}
	if p.dialect.Paging == core.PagingRowNumber && s.Take != nil {
		p.space()
		p.keyword("TOP")
		p.write(" (")
		if err := p.formatValue(s.Take); err != nil {
			return err
		}
		p.write(")")
	}
	p.writeln()

	// Columns
	p.indent()
	if len(s.Columns) == 0 {
		p.write("NULL AS tmp")
	}
	err := p.formatList(len(s.Columns), func(i int) error {
		return p.formatColumnDeclaration(s.Columns[i])
	}, ",", true)
	if err != nil {
		return err
	}
	p.writeln()
	p.dedent()

	return p.formatSelectClauses(s)
}

// formatSelectClauses writes everything after the column list.
func (p *Printer) formatSelectClauses(s *core.Select) error {
	// FROM
	if s.From != nil {
		p.keyword("FROM")
		p.space()
		if err := p.formatSource(s.From); err != nil {
			return err
		}
		p.writeln()
	}

	if s.Where != nil {
		p.keyword("WHERE")
		p.writeln()
		p.indent()
		if err := p.formatPredicate(s.Where); err != nil {
			return err
		}
		p.dedent()
		p.writeln()
	}

	if len(s.GroupBy) > 0 {
		p.keyword("GROUP BY")
		p.writeln()
		p.indent()
		err := p.formatList(len(s.GroupBy), func(i int) error { return p.formatValue(s.GroupBy[i]) }, ",", true)
		if err != nil {
			return err
		}
		p.dedent()
		p.writeln()
	}

	if len(s.OrderBy) > 0 {
		p.keyword("ORDER BY")
		p.writeln()
		p.indent()
		err := p.formatList(len(s.OrderBy), func(i int) error { return p.formatOrderExpression(s.OrderBy[i]) }, ",", true)
		if err != nil {
			return err
		}
		p.dedent()
		p.writeln()
	}

	return p.formatPaging(s)
}

func (p *Printer) formatColumnDeclaration(decl core.ColumnDeclaration) error {
	if err := p.formatValue(decl.Expr); err != nil {
		return err
	}
	if c, ok := decl.Expr.(*core.Column); ok && c.Name == decl.Name {
		return nil
	}
	p.space()
	p.keyword("AS")
	p.space()
	p.ident(decl.Name)
	return nil
}

func (p *Printer) formatOrderExpression(o core.OrderExpression) error {
	if err := p.formatValue(o.Expr); err != nil {
		return err
	}
	if o.Order == core.Descending {
		p.space()
		p.keyword("DESC")
	}
	return nil
}

func (p *Printer) formatPaging(s *core.Select) error {
	switch p.dialect.Paging {
	case core.PagingRowNumber:
		if s.Skip != nil {
			return &core.InvariantError{Op: "format.Select", Detail: "skip must be rewritten to ROW_NUMBER before formatting"}
		}
	case core.PagingOffsetFetch:
		if s.Skip != nil {
			p.keyword("OFFSET")
			p.space()
			if err := p.formatValue(s.Skip); err != nil {
				return err
			}
			p.write(" ROWS")
			p.writeln()
		}
		if s.Take != nil {
			p.keyword("FETCH")
			p.space()
			if s.Skip != nil {
				p.keyword("NEXT")
			} else {
				p.keyword("FIRST")
			}
			p.space()
			if err := p.formatValue(s.Take); err != nil {
				return err
			}
			p.write(" ROWS ONLY")
			p.writeln()
		}
	default: // PagingLimitOffset
		switch {
		case s.Take != nil:
			p.keyword("LIMIT")
			p.space()
			if err := p.formatValue(s.Take); err != nil {
				return err
			}
			p.writeln()
		case s.Skip != nil && p.dialect.OffsetWithoutLimit() != "":
			p.keyword("LIMIT")
			p.space()
			p.write(p.dialect.OffsetWithoutLimit())
			p.writeln()
		}
		if s.Skip != nil {
			p.keyword("OFFSET")
			p.space()
			if err := p.formatValue(s.Skip); err != nil {
				return err
			}
			p.writeln()
		}
	}
	return nil
}

// formatSource writes a FROM item: a table, a derived table or a join tree.
func (p *Printer) formatSource(n core.Node) error {
	switch x := n.(type) {
	case *core.Table:
		if x.Schema != "" {
			p.ident(x.Schema)
			p.write(".")
		}
		p.ident(x.Name)
		p.formatSourceAlias(x.Alias)
		return nil
	case *core.Select:
		if err := p.formatSubquery(x); err != nil {
			return err
		}
		p.formatSourceAlias(x.Alias)
		return nil
	case *core.Join:
		return p.formatJoin(x)
	}
	return core.Unsupported(n, "not a row source")
}

func (p *Printer) formatSourceAlias(a *core.Alias) {
	p.space()
	p.keyword("AS")
	p.space()
	p.write(p.aliasName(a))
}

func (p *Printer) formatSubquery(s *core.Select) error {
	p.write("(")
	p.writeln()
	p.indent()
	if err := p.formatSelect(s); err != nil {
		return err
	}
	p.dedent()
	p.write(")")
	return nil
}

func (p *Printer) formatJoin(join *core.Join) error {
	kw, ok := p.dialect.JoinKeyword(join.JoinType)
	if !ok {
		return &core.UnsupportedError{
			Kind:   core.KindJoin,
			Name:   join.JoinType.String(),
			Reason: "dialect " + p.dialect.Name + " cannot express this join",
		}
	}

	if err := p.formatSource(join.Left); err != nil {
		return err
	}
	p.writeln()
	p.keyword(kw)
	p.space()
	if err := p.formatSource(join.Right); err != nil {
		return err
	}

	cond := join.Condition
	if cond == nil && needsOn(join.JoinType, kw) {
		cond = core.NewConstant(true, nil)
	}
	if cond == nil {
		return nil
	}
	// ON condition (indented)
	p.writeln()
	p.indent()
	p.keyword("ON")
	p.space()
	err := p.formatPredicate(cond)
	p.dedent()
	return err
}

// needsOn reports whether a join spelling requires an ON clause even when
// the join has no condition.
func needsOn(jt core.JoinType, kw string) bool {
	switch jt {
	case core.InnerJoin, core.LeftOuter, core.SingletonLeftOuter:
		return true
	case core.OuterApply:
		return strings.HasSuffix(kw, "LATERAL")
	}
	return false
}

func (p *Printer) formatIf(x *core.If) error {
	if err := p.requireMultiCommands(x); err != nil {
		return err
	}
	p.keyword("IF")
	p.space()
	if err := p.formatPredicate(x.Check); err != nil {
		return err
	}
	p.writeln()
	if err := p.formatBeginEnd(x.IfTrue); err != nil {
		return err
	}
	if x.IfFalse == nil {
		return nil
	}
	p.keyword("ELSE")
	p.writeln()
	return p.formatBeginEnd(x.IfFalse)
}

func (p *Printer) formatBeginEnd(n core.Node) error {
	p.keyword("BEGIN")
	p.writeln()
	p.indent()
	if err := p.formatCommand(n); err != nil {
		return err
	}
	p.dedent()
	p.keyword("END")
	p.writeln()
	return nil
}

func (p *Printer) formatDeclaration(d *core.Declaration) error {
	if err := p.requireMultiCommands(d); err != nil {
		return err
	}
	for i, v := range d.Variables {
		if i > 0 {
			p.write(";")
			p.writeln()
		}
		p.keyword("DECLARE")
		p.space()
		p.write("@" + v.Name)
		p.space()
		p.write(p.dialect.TypeName(v.SQLType))
		if d.Source == nil && v.Expr != nil {
			p.write(" = ")
			if err := p.formatValue(v.Expr); err != nil {
				return err
			}
		}
	}
	if d.Source == nil {
		p.writeln()
		return nil
	}

	// SELECT @a = expr, ... over the source's clauses
	p.write(";")
	p.writeln()
	p.keyword("SELECT")
	p.writeln()
	p.indent()
	err := p.formatList(len(d.Variables), func(i int) error {
		p.write("@" + d.Variables[i].Name + " = ")
		return p.formatValue(d.Variables[i].Expr)
	}, ",", true)
	if err != nil {
		return err
	}
	p.writeln()
	p.dedent()
	return p.formatSelectClauses(d.Source)
}
