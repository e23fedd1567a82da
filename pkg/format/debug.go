package format

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

// Debug renders n as an indented tree, one node per line. Aliases are
// numbered in the order they are first seen.
func Debug(n core.Node) string {
	d := &dumper{output: &bytes.Buffer{}, aliases: make(map[*core.Alias]string)}
	if _, err := d.Visit(n); err != nil {
		fmt.Fprintf(d.output, "!error: %v\n", err)
	}
	return strings.TrimRight(d.output.String(), "\n")
}

type dumper struct {
	output  *bytes.Buffer
	depth   int
	aliases map[*core.Alias]string
}

func (d *dumper) Visit(n core.Node) (core.Node, error) {
	if n == nil {
		return nil, nil
	}
	d.output.WriteString(strings.Repeat(" ", d.depth*indentSize))
	d.output.WriteString(d.label(n))
	d.output.WriteByte('\n')

	d.depth++
	defer func() { d.depth-- }()
	return core.VisitChildren(d, n)
}

func (d *dumper) alias(a *core.Alias) string {
	if name, ok := d.aliases[a]; ok {
		return name
	}
	name := "a" + strconv.Itoa(len(d.aliases))
	d.aliases[a] = name
	return name
}

func (d *dumper) label(n core.Node) string {
	kind := n.Kind().String()
	switch x := n.(type) {
	case *core.Select:
		names := make([]string, len(x.Columns))
		for i, c := range x.Columns {
			names[i] = c.Name
		}
		var flags []string
		if x.Distinct {
			flags = append(flags, "distinct")
		}
		if x.Reverse {
			flags = append(flags, "reverse")
		}
		if len(x.OrderBy) > 0 {
			flags = append(flags, "ordered")
		}
		label := fmt.Sprintf("%s %s [%s]", kind, d.alias(x.Alias), strings.Join(names, " "))
		if len(flags) > 0 {
			label += " " + strings.Join(flags, ",")
		}
		return label
	case *core.Table:
		return fmt.Sprintf("%s %s %s", kind, d.alias(x.Alias), x.Name)
	case *core.Column:
		return fmt.Sprintf("%s %s.%s", kind, d.alias(x.Alias), x.Name)
	case *core.Join:
		return kind + " " + x.JoinType.String()
	case *core.Binary:
		return kind + " " + x.Op.String()
	case *core.Constant:
		return fmt.Sprintf("%s %v", kind, x.Value)
	case *core.NamedValue:
		return kind + " " + x.Name
	case *core.Aggregate:
		return kind + " " + x.Func.String()
	case *core.AggregateSubquery:
		return kind + " group=" + d.alias(x.GroupByAlias)
	case *core.Call:
		return kind + " " + x.Method
	case *core.Member:
		return kind + " " + x.Name
	case *core.Function:
		return kind + " " + x.Name
	case *core.Variable:
		return kind + " @" + x.Name
	case *core.New:
		return kind + " " + x.Type().String()
	}
	return kind
}
