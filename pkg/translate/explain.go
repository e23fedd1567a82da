package translate

import (
	"context"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/format"
	"github.com/leapstack-labs/leapquery/pkg/optimize"
)

// Explanation is a translation together with how it was reached.
type Explanation struct {
	*Result
	// Evaluated is the tree after partial evaluation, before optimization.
	Evaluated core.Node
	// Steps lists every pass application in order.
	Steps []optimize.Step
}

// Explain translates root and records each optimizer step.
func (t *Translator) Explain(ctx context.Context, root core.Node) (*Explanation, error) {
	ex := &Explanation{}
	trace := func(s optimize.Step) { ex.Steps = append(ex.Steps, s) }
	res, err := t.translate(ctx, root, t.newPipeline(trace), &ex.Evaluated)
	if err != nil {
		return nil, err
	}
	ex.Result = res
	return ex, nil
}

// Changed returns the steps that rewrote the tree.
func (e *Explanation) Changed() []optimize.Step {
	var out []optimize.Step
	for _, s := range e.Steps {
		if s.Changed {
			out = append(out, s)
		}
	}
	return out
}

// Iterations returns the number of optimizer rounds run.
func (e *Explanation) Iterations() int {
	if len(e.Steps) == 0 {
		return 0
	}
	return e.Steps[len(e.Steps)-1].Iteration
}

// Dump renders the optimized tree.
func (e *Explanation) Dump() string { return format.Debug(e.Tree) }
