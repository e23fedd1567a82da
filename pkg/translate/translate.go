// Package translate turns query trees into executable plans.
//
// A Translator runs the whole pipeline for one dialect:
//
//  1. partial evaluation of locally computable subtrees
//  2. the optimizer passes, to a fixed point
//  3. parameterization of the remaining constants
//  4. plan lookup in the cache, building the plan on a miss
//
// Translators are safe for concurrent use.
package translate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapquery/pkg/compare"
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
	"github.com/leapstack-labs/leapquery/pkg/eval"
	"github.com/leapstack-labs/leapquery/pkg/optimize"
	"github.com/leapstack-labs/leapquery/pkg/plan"
)

// Config configures a Translator.
type Config struct {
	// Dialect is required.
	Dialect *dialect.Dialect
	// Cache shares plans between translations. Nil builds every plan.
	Cache *plan.Cache
	// MaxIterations bounds the optimizer loop. Zero uses the default.
	MaxIterations int
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Translator compiles query trees for one dialect.
type Translator struct {
	dialect  *dialect.Dialect
	cache    *plan.Cache
	maxIter  int
	logger   *slog.Logger
	pipeline *optimize.Pipeline
}

// Result is one translation.
type Result struct {
	// ID identifies the translation in logs.
	ID uuid.UUID
	// Dialect is the dialect name.
	Dialect string
	// Tree is the optimized, parameterized tree the plan was built from.
	Tree core.Node
	// ShapeHash is the structural hash of Tree, ignoring parameter values.
	ShapeHash uint64
	// Plan executes the translation.
	Plan *plan.Plan
	// Commands are the plan's commands with this translation's values bound.
	Commands []*core.QueryCommand
	// CacheHit reports whether the plan came from the cache.
	CacheHit bool
}

// New creates a translator.
func New(cfg Config) (*Translator, error) {
	if cfg.Dialect == nil {
		return nil, dialect.ErrDialectRequired
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	t := &Translator{
		dialect: cfg.Dialect,
		cache:   cfg.Cache,
		maxIter: cfg.MaxIterations,
		logger:  logger,
	}
	t.pipeline = t.newPipeline(nil)
	return t, nil
}

// Dialect returns the translator's dialect.
func (t *Translator) Dialect() *dialect.Dialect { return t.dialect }

// Cache returns the plan cache, or nil.
func (t *Translator) Cache() *plan.Cache { return t.cache }

func (t *Translator) newPipeline(trace func(optimize.Step)) *optimize.Pipeline {
	return optimize.NewPipeline(optimize.Config{
		Language:      t.dialect,
		Paging:        t.dialect.Paging,
		MaxIterations: t.maxIter,
		Logger:        t.logger,
		Trace:         trace,
	})
}

// Translate compiles root. root is normally the *core.Projection a
// query.Query produces.
func (t *Translator) Translate(ctx context.Context, root core.Node) (*Result, error) {
	return t.translate(ctx, root, t.pipeline, nil)
}

func (t *Translator) translate(ctx context.Context, root core.Node, pipeline *optimize.Pipeline, evaluated *core.Node) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if root == nil {
		return nil, &core.InvariantError{Op: "translate", Detail: "no query"}
	}
	id := uuid.New()
	logger := t.logger.With(slog.String("translation", id.String()), slog.String("dialect", t.dialect.Name))

	n, err := eval.Evaluate(root)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	if evaluated != nil {
		*evaluated = n
	}
	n, err = pipeline.Optimize(n)
	if err != nil {
		return nil, err
	}
	cctx := core.NewCompilationContext(t.dialect)
	tree, err := eval.Parameterize(cctx, n)
	if err != nil {
		return nil, fmt.Errorf("parameterize: %w", err)
	}

	build := func() (*plan.Plan, error) { return plan.Build(cctx, tree) }
	var (
		p   *plan.Plan
		hit bool
	)
	if t.cache != nil {
		p, hit, err = t.cache.Get(cctx, tree, build)
	} else {
		p, err = build()
	}
	if err != nil {
		return nil, fmt.Errorf("build plan: %w", err)
	}

	res := &Result{
		ID:        id,
		Dialect:   t.dialect.Name,
		Tree:      tree,
		ShapeHash: compare.Hash(tree, compare.IgnoreValues()),
		Plan:      p,
		Commands:  p.Commands(),
		CacheHit:  hit,
	}
	length := 0
	for _, c := range res.Commands {
		length += len(c.CommandText)
	}
	logger.Debug("translated",
		slog.Bool("cache_hit", hit),
		slog.Bool("cached", t.cache != nil),
		slog.Int("commands", len(res.Commands)),
		slog.Int("command_length", length),
		slog.Int("parameters", len(cctx.Parameters())))
	return res, nil
}

// Query translates root and runs it, returning the rows as T values.
// root must produce a sequence of T.
func Query[T any](ctx context.Context, t *Translator, exec core.Executor, root core.Node) ([]T, error) {
	res, err := t.Translate(ctx, root)
	if err != nil {
		return nil, err
	}
	return plan.Execute[[]T](ctx, res.Plan, exec)
}

// Single translates root and runs it, returning its single value: an
// aggregate, or the row chosen by First, Single and their OrDefault forms.
func Single[T any](ctx context.Context, t *Translator, exec core.Executor, root core.Node) (T, error) {
	res, err := t.Translate(ctx, root)
	if err != nil {
		var zero T
		return zero, err
	}
	return plan.Execute[T](ctx, res.Plan, exec)
}

// Run translates root and runs it against exec. The value has the
// dynamic type of the plan's result, for callers that build entity types
// at run time.
func (t *Translator) Run(ctx context.Context, exec core.Executor, root core.Node) (*Result, any, error) {
	res, err := t.Translate(ctx, root)
	if err != nil {
		return nil, nil, err
	}
	v, err := res.Plan.Run(ctx, exec)
	if err != nil {
		return res, nil, err
	}
	return res, v, nil
}
