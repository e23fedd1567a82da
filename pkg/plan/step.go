package plan

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

type step interface {
	run(ctx context.Context, rn *runner, scope *rowScope) (reflect.Value, error)
}

// outerRef binds a correlated parameter to a column of an enclosing row.
type outerRef struct {
	name    string
	alias   *core.Alias
	ordinal int
}

// queryStep runs one command and reads its rows. A step without a reader
// runs the command for its side effects.
type queryStep struct {
	cmd      *core.QueryCommand
	read     *reader
	outer    []outerRef
	declared []string
}

func (s *queryStep) command(rn *runner, scope *rowScope) (*core.QueryCommand, error) {
	params := rn.params
	if len(s.outer) > 0 || len(s.declared) > 0 {
		params = maps.Clone(rn.params)
		if params == nil {
			params = make(map[string]any)
		}
		for _, o := range s.outer {
			row := scope.find(o.alias)
			if row == nil {
				return nil, &core.InvariantError{Op: "plan.Run", Detail: "correlated parameter " + o.name + " has no enclosing row"}
			}
			params[o.name] = row.value(o.ordinal)
		}
		for _, name := range s.declared {
			params[name] = rn.declared[name]
		}
	}
	return s.cmd.WithValues(params, rn.vars), nil
}

func (s *queryStep) run(ctx context.Context, rn *runner, scope *rowScope) (reflect.Value, error) {
	cmd, err := s.command(rn, scope)
	if err != nil {
		return reflect.Value{}, err
	}
	if s.read == nil {
		if _, err := rn.exec.Exec(ctx, cmd); err != nil {
			return reflect.Value{}, fmt.Errorf("exec: %w", err)
		}
		return reflect.Value{}, nil
	}
	rows, err := rn.exec.Query(ctx, cmd)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return s.read.read(ctx, rn, rows, scope)
}

// blockStep runs commands in order and yields the last result.
type blockStep struct {
	steps []step
}

func (s *blockStep) run(ctx context.Context, rn *runner, scope *rowScope) (reflect.Value, error) {
	var last reflect.Value
	for _, st := range s.steps {
		v, err := st.run(ctx, rn, scope)
		if err != nil {
			return reflect.Value{}, err
		}
		last = v
	}
	return last, nil
}

// ifStep evaluates its check on the server, then runs one branch.
type ifStep struct {
	check   *queryStep
	ifTrue  step
	ifFalse step
}

func (s *ifStep) run(ctx context.Context, rn *runner, scope *rowScope) (reflect.Value, error) {
	v, err := s.check.run(ctx, rn, scope)
	if err != nil {
		return reflect.Value{}, err
	}
	ok, err := truthy(v)
	if err != nil {
		return reflect.Value{}, err
	}
	switch {
	case ok:
		return s.ifTrue.run(ctx, rn, scope)
	case s.ifFalse != nil:
		return s.ifFalse.run(ctx, rn, scope)
	}
	return reflect.Value{}, nil
}

// truthy reads a check result. Dialects without boolean values return 1 or 0.
func truthy(v reflect.Value) (bool, error) {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.IsNil() {
			return false, nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return false, nil
	}
	switch {
	case v.Kind() == reflect.Bool:
		return v.Bool(), nil
	case v.CanInt():
		return v.Int() != 0, nil
	case v.CanUint():
		return v.Uint() != 0, nil
	case v.Kind() == reflect.String:
		return strconv.ParseBool(strings.TrimSpace(v.String()))
	case v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8:
		return strconv.ParseBool(strings.TrimSpace(string(v.Bytes())))
	}
	return false, fmt.Errorf("check returned %s, want a boolean", v.Type())
}

// declareStep captures the first row of its query into declared values.
type declareStep struct {
	query *queryStep
	names []string
	types []reflect.Type
}

func (s *declareStep) run(ctx context.Context, rn *runner, scope *rowScope) (reflect.Value, error) {
	cmd, err := s.query.command(rn, scope)
	if err != nil {
		return reflect.Value{}, err
	}
	rows, err := rn.exec.Query(ctx, cmd)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	for _, name := range s.names {
		rn.declared[name] = nil
	}
	if rows.Next() {
		row, err := scanRow(rows, s.types)
		if err != nil {
			return reflect.Value{}, err
		}
		for i, name := range s.names {
			rn.declared[name] = row.value(i)
		}
	}
	return reflect.Value{}, rows.Err()
}
