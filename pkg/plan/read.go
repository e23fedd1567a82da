package plan

import (
	"context"
	"fmt"
	"reflect"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/eval"
)

// reader materializes the rows of one select through a projector.
type reader struct {
	alias     *core.Alias
	types     []reflect.Type
	ordinals  map[string]int
	projector core.Node
	elem      reflect.Type
	nested    map[*core.Projection]step
	aggregate func(seq reflect.Value) (reflect.Value, error)
}

// scalarReader reads the first column of a single-row result.
func scalarReader(t reflect.Type) *reader {
	alias := core.NewAlias()
	return &reader{
		alias:     alias,
		types:     []reflect.Type{t},
		ordinals:  map[string]int{"value": 0},
		projector: core.NewColumn(t, core.SQLType{}, alias, "value"),
		elem:      t,
		nested:    map[*core.Projection]step{},
		aggregate: func(seq reflect.Value) (reflect.Value, error) { return firstOrDefault(seq, t) },
	}
}

func (r *reader) read(ctx context.Context, rn *runner, rows core.Rows, parent *rowScope) (reflect.Value, error) {
	var scanned []row
	for rows.Next() {
		values, err := scanRow(rows, r.types)
		if err != nil {
			return reflect.Value{}, err
		}
		scanned = append(scanned, values)
	}
	if err := rows.Err(); err != nil {
		return reflect.Value{}, err
	}
	// Nested projections query per row; the cursor must not hold a
	// connection while they run.
	if err := rows.Close(); err != nil {
		return reflect.Value{}, err
	}

	seq := reflect.MakeSlice(reflect.SliceOf(r.elem), 0, len(scanned))
	for _, values := range scanned {
		scope := &rowScope{reader: r, row: values, parent: parent}
		v, err := eval.Interpret(r.projector, scope.resolver(ctx, rn))
		if err != nil {
			return reflect.Value{}, fmt.Errorf("projecting row %d: %w", seq.Len(), err)
		}
		el, err := fit(v, r.elem)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("projecting row %d: %w", seq.Len(), err)
		}
		seq = reflect.Append(seq, el)
	}
	if r.aggregate == nil {
		return seq, nil
	}
	return r.aggregate(seq)
}

// fit converts a projected value to the element type of the result.
func fit(v reflect.Value, t reflect.Type) (reflect.Value, error) {
	switch {
	case !v.IsValid():
		return reflect.Zero(t), nil
	case v.Type() == t, v.Type().AssignableTo(t):
		return v, nil
	case v.Type().ConvertibleTo(t):
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", v.Type(), t)
}

// row is one scanned result row.
type row []reflect.Value

func (r row) value(i int) any {
	v := r[i]
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface()
}

// scanRow scans one row into values of the given column types. Every
// destination is nullable, so NULL reads as the zero value of a
// non-pointer column.
func scanRow(rows core.Rows, types []reflect.Type) (row, error) {
	dests := make([]any, len(types))
	holders := make([]reflect.Value, len(types))
	for i, t := range types {
		h := reflect.New(nullable(t))
		holders[i] = h
		dests[i] = h.Interface()
	}
	if err := rows.Scan(dests...); err != nil {
		return nil, fmt.Errorf("scanning row: %w", err)
	}
	out := make(row, len(types))
	for i, t := range types {
		v := holders[i].Elem()
		switch t.Kind() {
		case reflect.Pointer:
		case reflect.Interface:
			if !v.IsNil() {
				v = v.Elem()
			}
		default:
			if v.IsNil() {
				v = reflect.Zero(t)
			} else {
				v = v.Elem()
			}
		}
		out[i] = v
	}
	return out, nil
}

func nullable(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
		return t
	}
	return reflect.PointerTo(t)
}

// rowScope is the row being projected plus the rows enclosing it.
type rowScope struct {
	reader *reader
	row    row
	parent *rowScope
}

func (s *rowScope) find(alias *core.Alias) row {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.reader.alias == alias {
			return sc.row
		}
	}
	return nil
}

func (s *rowScope) resolver(ctx context.Context, rn *runner) eval.Resolver {
	return func(n core.Node) (reflect.Value, bool, error) {
		switch x := n.(type) {
		case *core.Column:
			for sc := s; sc != nil; sc = sc.parent {
				if sc.reader.alias != x.Alias {
					continue
				}
				i, ok := sc.reader.ordinals[x.Name]
				if !ok {
					break
				}
				return sc.row[i], true, nil
			}
			return reflect.Value{}, false, &core.UndefinedColumnError{Alias: x.Alias, Column: x.Name}
		case *core.Projection:
			st, ok := s.reader.nested[x]
			if !ok {
				return reflect.Value{}, false, &core.InvariantError{Op: "plan.Run", Detail: "nested projection was not compiled"}
			}
			v, err := st.run(ctx, rn, s)
			return v, true, err
		}
		return reflect.Value{}, false, nil
	}
}

// Sequence aggregators a projection may apply to its rows.
const (
	First           = "First"
	FirstOrDefault  = "FirstOrDefault"
	Single          = "Single"
	SingleOrDefault = "SingleOrDefault"
	Any             = "Any"
	All             = "All"
)

type aggregatorFunc func(seq reflect.Value, t reflect.Type) (reflect.Value, error)

var aggregators = map[string]aggregatorFunc{
	First: func(seq reflect.Value, _ reflect.Type) (reflect.Value, error) {
		if seq.Len() == 0 {
			return reflect.Value{}, ErrNoElements
		}
		return seq.Index(0), nil
	},
	FirstOrDefault: firstOrDefault,
	Single: func(seq reflect.Value, _ reflect.Type) (reflect.Value, error) {
		switch seq.Len() {
		case 0:
			return reflect.Value{}, ErrNoElements
		case 1:
			return seq.Index(0), nil
		}
		return reflect.Value{}, ErrMultipleElements
	},
	SingleOrDefault: func(seq reflect.Value, t reflect.Type) (reflect.Value, error) {
		if seq.Len() > 1 {
			return reflect.Value{}, ErrMultipleElements
		}
		return firstOrDefault(seq, t)
	},
	Any: func(seq reflect.Value, _ reflect.Type) (reflect.Value, error) {
		return reflect.ValueOf(seq.Len() > 0), nil
	},
	All: func(seq reflect.Value, _ reflect.Type) (reflect.Value, error) {
		for i := 0; i < seq.Len(); i++ {
			el := seq.Index(i)
			if el.Kind() == reflect.Interface {
				el = el.Elem()
			}
			if el.Kind() != reflect.Bool {
				return reflect.Value{}, fmt.Errorf("All over %s, want bool", seq.Type().Elem())
			}
			if !el.Bool() {
				return reflect.ValueOf(false), nil
			}
		}
		return reflect.ValueOf(true), nil
	},
}

func firstOrDefault(seq reflect.Value, t reflect.Type) (reflect.Value, error) {
	if seq.Len() == 0 {
		return reflect.Zero(t), nil
	}
	return seq.Index(0), nil
}

// Aggregator returns the lambda a projection uses to apply the named
// sequence aggregator to rows of type elem.
func Aggregator(name string, elem reflect.Type) *core.Lambda {
	seq := core.NewParameter("rows", reflect.SliceOf(elem))
	t := elem
	if name == Any || name == All {
		t = core.BoolType
	}
	return core.NewLambda(core.NewCall(name, t, nil, seq), seq)
}

// compileAggregator turns a projection's aggregator lambda into a function
// over the projected sequence.
func compileAggregator(p *core.Projection) (func(reflect.Value) (reflect.Value, error), error) {
	l := p.Aggregator
	if l == nil {
		return nil, nil
	}
	call, ok := l.Body.(*core.Call)
	if !ok || call.Object != nil || len(l.Params) != 1 || len(call.Args) != 1 || call.Args[0] != core.Node(l.Params[0]) {
		return nil, core.Unsupported(l, "an aggregator applies one sequence operator to its parameter")
	}
	fn, ok := aggregators[call.Method]
	if !ok {
		return nil, &core.UnsupportedError{Kind: core.KindCall, Name: call.Method, Reason: "unknown sequence aggregator"}
	}
	t := l.Type()
	return func(seq reflect.Value) (reflect.Value, error) { return fn(seq, t) }, nil
}
