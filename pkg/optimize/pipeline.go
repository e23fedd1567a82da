// Package optimize rewrites relational trees into simpler equivalent trees.
//
// The optimizer is an explicit, ordered list of passes driven by one loop.
// Every pass returns its input unchanged (same pointer) when it has nothing
// to do, so the loop stops as soon as a full round changes nothing.
package optimize

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

// DefaultMaxIterations bounds the fixed-point loop.
const DefaultMaxIterations = 16

// Context is shared by the passes of one optimization run.
type Context struct {
	// Language supplies column types for declarations the passes create.
	// It may be nil.
	Language core.Language
}

func (c *Context) columnType(n core.Node) core.SQLType {
	if c == nil || c.Language == nil {
		return core.SQLType{}
	}
	return c.Language.ColumnType(n.Type())
}

// Pass is one tree-to-tree rewrite.
type Pass struct {
	Name  string
	Apply func(c *Context, n core.Node) (core.Node, error)
}

// Step describes one pass application for tracing.
type Step struct {
	Iteration int
	Pass      string
	Changed   bool
	Tree      core.Node
}

// Config configures a Pipeline.
type Config struct {
	Language core.Language
	// Paging selects the dialect's paging style. PagingRowNumber enables
	// the row-number pass.
	Paging        core.PagingStyle
	MaxIterations int
	Logger        *slog.Logger
	// Trace, when set, observes every pass application.
	Trace func(Step)
}

// Passes returns the fixed pass order for a paging style.
func Passes(paging core.PagingStyle) []Pass {
	passes := []Pass{
		{Name: "comparison", Apply: RewriteComparisons},
		{Name: "aggregate", Apply: RewriteAggregates},
		{Name: "cross-apply", Apply: RewriteCrossApply},
		{Name: "cross-join", Apply: RewriteCrossJoins},
		{Name: "order-by", Apply: RewriteOrderBy},
		{Name: "redundant-subquery", Apply: RemoveRedundantSubqueries},
		{Name: "redundant-column", Apply: RemoveRedundantColumns},
		{Name: "redundant-join", Apply: RemoveRedundantJoins},
		{Name: "unused-column", Apply: RemoveUnusedColumns},
	}
	if paging == core.PagingRowNumber {
		passes = append(passes, Pass{Name: "row-number", Apply: RewriteSkipToRowNumber})
	}
	return passes
}

// Pipeline runs passes until the tree stops changing.
type Pipeline struct {
	passes []Pass
	cfg    Config
	logger *slog.Logger
}

// NewPipeline creates a pipeline with the default passes for cfg.Paging.
func NewPipeline(cfg Config) *Pipeline {
	return NewPipelineWithPasses(cfg, Passes(cfg.Paging))
}

// NewPipelineWithPasses creates a pipeline with an explicit pass list.
func NewPipelineWithPasses(cfg Config, passes []Pass) *Pipeline {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{passes: passes, cfg: cfg, logger: logger}
}

// Passes returns the pass names in order.
func (p *Pipeline) Passes() []string {
	names := make([]string, len(p.passes))
	for i, pass := range p.passes {
		names[i] = pass.Name
	}
	return names
}

// Optimize applies the passes until a full round leaves the tree unchanged.
func (p *Pipeline) Optimize(n core.Node) (core.Node, error) {
	c := &Context{Language: p.cfg.Language}
	for iter := 1; iter <= p.cfg.MaxIterations; iter++ {
		changed := false
		for _, pass := range p.passes {
			out, err := pass.Apply(c, n)
			if err != nil {
				return nil, fmt.Errorf("optimize %s: %w", pass.Name, err)
			}
			if out == nil {
				return nil, &core.InvariantError{Op: "optimize " + pass.Name, Detail: "pass produced nothing"}
			}
			step := out != n
			if step {
				changed = true
				n = out
			}
			if p.cfg.Trace != nil {
				p.cfg.Trace(Step{Iteration: iter, Pass: pass.Name, Changed: step, Tree: n})
			}
		}
		p.logger.Debug("optimizer round", "iteration", iter, "changed", changed)
		if !changed {
			return n, nil
		}
	}
	return nil, &core.InvariantError{
		Op:     "optimize",
		Detail: fmt.Sprintf("no fixed point after %d iterations", p.cfg.MaxIterations),
	}
}
