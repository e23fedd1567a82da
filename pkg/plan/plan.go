// Package plan compiles optimized node trees into executable plans: the
// formatted commands plus the readers that turn result rows back into
// values. Nothing executes at build time.
package plan

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

var (
	// ErrExecutorRequired is returned when a plan is run without an executor.
	ErrExecutorRequired = errors.New("executor is required")
	// ErrNoElements is returned by First and Single over an empty result.
	ErrNoElements = errors.New("sequence contains no elements")
	// ErrMultipleElements is returned by Single and SingleOrDefault over a
	// result with more than one row.
	ErrMultipleElements = errors.New("sequence contains more than one element")
)

// Plan is a compiled translation. A Plan is immutable and safe for
// concurrent use; Rebind derives a plan carrying other parameter values.
type Plan struct {
	// Type is the type of the value Run produces.
	Type reflect.Type

	root      step
	commands  []*core.QueryCommand
	params    map[string]any
	vars      map[string]core.QueryVariable
	cacheable bool
}

// Commands returns the plan's commands in build order, with the plan's
// parameter values bound. Correlated and sequential commands carry
// placeholder values until they run.
func (p *Plan) Commands() []*core.QueryCommand {
	out := make([]*core.QueryCommand, len(p.commands))
	for i, c := range p.commands {
		out[i] = c.WithValues(p.params, p.vars)
	}
	return out
}

// Cacheable reports whether the command text is independent of parameter
// values. Lists expanded into one placeholder per element are not.
func (p *Plan) Cacheable() bool { return p.cacheable }

// Rebind returns a copy of p that binds the parameters and variables
// recorded in cctx.
func (p *Plan) Rebind(cctx *core.CompilationContext) *Plan {
	out := *p
	out.params, out.vars = contextValues(cctx)
	return &out
}

// Run executes the plan and returns its result.
func (p *Plan) Run(ctx context.Context, exec core.Executor) (any, error) {
	if exec == nil {
		return nil, ErrExecutorRequired
	}
	rn := &runner{exec: exec, params: p.params, vars: p.vars, declared: make(map[string]any)}
	v, err := p.root.run(ctx, rn, nil)
	if err != nil {
		return nil, err
	}
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

// Execute runs p and returns its result as a T.
func Execute[T any](ctx context.Context, p *Plan, exec core.Executor) (T, error) {
	var zero T
	v, err := p.Run(ctx, exec)
	if err != nil || v == nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("plan produces %s, not %s", p.Type, reflect.TypeFor[T]())
	}
	return out, nil
}

func contextValues(cctx *core.CompilationContext) (map[string]any, map[string]core.QueryVariable) {
	params := make(map[string]any)
	vars := make(map[string]core.QueryVariable)
	if cctx == nil {
		return params, vars
	}
	for _, e := range cctx.Parameters() {
		params[e.Name] = e.Value
	}
	for _, e := range cctx.Variables() {
		vars[e.Name] = core.QueryVariable{Name: e.Name, Values: e.Values, Array: e.Array}
	}
	return params, vars
}

// runner is the state of one Run.
type runner struct {
	exec   core.Executor
	params map[string]any
	vars   map[string]core.QueryVariable
	// declared holds values captured by sequential declarations, keyed
	// by their parameter name.
	declared map[string]any
}
