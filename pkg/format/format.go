package format

import (
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
)

// Result is a formatted command.
type Result struct {
	Text string
	// Bindings lists the parameter or variable element behind each
	// placeholder, in placeholder order.
	Bindings []core.Binding
	// Named reports whether placeholders bind by name.
	Named bool
}

// Format renders n for dialect d. n is a select, a projection (its select
// is formatted) or a command.
func Format(d *dialect.Dialect, n core.Node) (*Result, error) {
	if d == nil {
		return nil, dialect.ErrDialectRequired
	}
	if proj, ok := n.(*core.Projection); ok {
		n = proj.Select
	}
	p := newPrinter(d)
	if err := p.formatCommand(n); err != nil {
		return nil, err
	}
	return &Result{
		Text:     p.String(),
		Bindings: p.bindings,
		Named:    d.Placeholder == core.PlaceholderNamed,
	}, nil
}
