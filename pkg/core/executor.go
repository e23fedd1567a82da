package core

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
)

// ParameterDirection is the binding direction of a command parameter.
// Translated commands only read, so every parameter is an input.
type ParameterDirection int

// DirectionInput binds a value into the command.
const DirectionInput ParameterDirection = 0

// QueryParameter is one named parameter of a command.
type QueryParameter struct {
	Name      string
	Type      reflect.Type
	SQLType   SQLType
	Direction ParameterDirection
	Value     any
}

// QueryVariable is a multi-value literal, such as an IN list bound as one
// collection.
type QueryVariable struct {
	Name   string
	Values []any
	// Array is the original slice, bound as a single argument by dialects
	// that accept array parameters.
	Array any
}

// Binding records which parameter or variable element fills one placeholder
// position of the command text.
type Binding struct {
	Name     string
	Variable bool
	// Element is the index into an expanded variable, or -1 when the whole
	// variable is bound as one array argument.
	Element int
}

// QueryCommand is the formatted command handed to an executor.
type QueryCommand struct {
	CommandText string
	Parameters  []QueryParameter
	Variables   []QueryVariable
	Bindings    []Binding
	// Named reports whether placeholders are bound by name (@p0) rather
	// than by position.
	Named bool
}

// Parameter returns the parameter with the given name.
func (c *QueryCommand) Parameter(name string) (QueryParameter, bool) {
	for _, p := range c.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return QueryParameter{}, false
}

// Variable returns the variable with the given name.
func (c *QueryCommand) Variable(name string) (QueryVariable, bool) {
	for _, v := range c.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return QueryVariable{}, false
}

// Args returns driver arguments in placeholder order.
func (c *QueryCommand) Args() ([]any, error) {
	args := make([]any, 0, len(c.Bindings))
	for _, b := range c.Bindings {
		var (
			v    any
			name = b.Name
		)
		if b.Variable {
			qv, ok := c.Variable(b.Name)
			if !ok {
				return nil, fmt.Errorf("command binds unknown variable %q", b.Name)
			}
			if b.Element < 0 {
				v = qv.Array
			} else {
				if b.Element >= len(qv.Values) {
					return nil, fmt.Errorf("variable %q has no element %d", b.Name, b.Element)
				}
				v = qv.Values[b.Element]
				name = b.Name + "_" + strconv.Itoa(b.Element)
			}
		} else {
			p, ok := c.Parameter(b.Name)
			if !ok {
				return nil, fmt.Errorf("command binds unknown parameter %q", b.Name)
			}
			v = p.Value
		}
		if c.Named {
			args = append(args, sql.Named(name, v))
		} else {
			args = append(args, v)
		}
	}
	return args, nil
}

// WithValues returns a copy of c whose parameter and variable values are
// taken from the given tables. Names missing from the tables keep their
// current value.
func (c *QueryCommand) WithValues(params map[string]any, vars map[string]QueryVariable) *QueryCommand {
	out := *c
	out.Parameters = make([]QueryParameter, len(c.Parameters))
	for i, p := range c.Parameters {
		if v, ok := params[p.Name]; ok {
			p.Value = v
		}
		out.Parameters[i] = p
	}
	out.Variables = make([]QueryVariable, len(c.Variables))
	for i, qv := range c.Variables {
		if v, ok := vars[qv.Name]; ok {
			qv.Values, qv.Array = v.Values, v.Array
		}
		out.Variables[i] = qv
	}
	return &out
}

// Rows is a forward-only result cursor. *sql.Rows satisfies it.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Executor runs formatted commands. Implementations live outside the core
// (see pkg/executor).
type Executor interface {
	// Query runs a command that returns rows.
	Query(ctx context.Context, cmd *QueryCommand) (Rows, error)
	// Exec runs a command that returns no rows and reports rows affected.
	Exec(ctx context.Context, cmd *QueryCommand) (int64, error)
}
