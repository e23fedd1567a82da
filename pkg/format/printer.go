// Package format renders optimized node trees as dialect-specific command
// text with an ordered list of placeholder bindings.
package format

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
)

const indentSize = 2

// Printer handles SQL formatting with proper indentation and style.
type Printer struct {
	dialect     *dialect.Dialect
	output      *bytes.Buffer
	depth       int
	atLineStart bool

	aliases  map[*core.Alias]string
	bindings []core.Binding
	// positions maps a bound name to its 1-based placeholder index for
	// dialects that reuse one placeholder per distinct value.
	positions map[string]int
}

var _ dialect.Writer = (*Printer)(nil)

func newPrinter(d *dialect.Dialect) *Printer {
	return &Printer{
		dialect:     d,
		output:      &bytes.Buffer{},
		atLineStart: true,
		aliases:     make(map[*core.Alias]string),
		positions:   make(map[string]int),
	}
}

// String returns the formatted output.
func (p *Printer) String() string {
	return strings.TrimRight(p.output.String(), "\n ")
}

// Write implements dialect.Writer.
func (p *Printer) Write(s string) { p.write(s) }

// WriteExpr implements dialect.Writer.
func (p *Printer) WriteExpr(n core.Node) error {
	return p.formatOperand(n, dialect.PrecedenceUnary)
}

// Dialect implements dialect.Writer.
func (p *Printer) Dialect() *dialect.Dialect { return p.dialect }

func (p *Printer) write(s string) {
	if p.atLineStart && len(s) > 0 && s[0] != '\n' {
		p.writeIndent()
	}
	p.output.WriteString(s)
	p.atLineStart = false
}

func (p *Printer) writeln() {
	p.output.WriteByte('\n')
	p.atLineStart = true
}

// joinLine drops a trailing newline so a terminator lands on the last line.
func (p *Printer) joinLine() {
	if n := p.output.Len(); n > 0 && p.output.Bytes()[n-1] == '\n' {
		p.output.Truncate(n - 1)
		p.atLineStart = false
	}
}

func (p *Printer) writeIndent() {
	for i := 0; i < p.depth*indentSize; i++ {
		p.output.WriteByte(' ')
	}
	p.atLineStart = false
}

func (p *Printer) keyword(s string) {
	p.write(strings.ToUpper(s))
}

func (p *Printer) indent() {
	p.depth++
}

func (p *Printer) dedent() {
	if p.depth > 0 {
		p.depth--
	}
}

func (p *Printer) space() {
	p.output.WriteByte(' ')
}

// ident writes a quoted-if-needed identifier.
func (p *Printer) ident(name string) {
	p.write(p.dialect.QuoteIdentifierIfNeeded(name))
}

// aliasName returns the printed name of an alias. Names are handed out in
// the order aliases are first written, so equal shapes print identically.
func (p *Printer) aliasName(a *core.Alias) string {
	if name, ok := p.aliases[a]; ok {
		return name
	}
	name := "t" + strconv.Itoa(len(p.aliases))
	p.aliases[a] = name
	return name
}

// formatList prints a list of items with separators.
// count is the number of items, format is called for each index,
// sep is the separator string, multiline adds newlines after separators.
func (p *Printer) formatList(count int, format func(i int) error, sep string, multiline bool) error {
	for i := 0; i < count; i++ {
		if err := format(i); err != nil {
			return err
		}
		if i < count-1 {
			p.write(sep)
			if multiline {
				p.writeln()
			}
		}
	}
	return nil
}
