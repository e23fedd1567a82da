package plan

import (
	"sync/atomic"
	"testing"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
	"github.com/leapstack-labs/leapquery/pkg/dialects/postgres"
	"github.com/leapstack-labs/leapquery/pkg/dialects/sqlite"
	"github.com/leapstack-labs/leapquery/pkg/eval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

// translation parameterizes root and returns what a translator hands the
// cache: the context, the tree and a build function counting its calls.
func translation(t *testing.T, d *dialect.Dialect, root core.Node, builds *atomic.Int64) (*core.CompilationContext, core.Node, func() (*Plan, error)) {
	t.Helper()
	cctx := core.NewCompilationContext(d)
	tree, err := eval.Parameterize(cctx, root)
	require.NoError(t, err)
	return cctx, tree, func() (*Plan, error) {
		builds.Add(1)
		return Build(cctx, tree)
	}
}

func TestCache_HitRebindsValues(t *testing.T) {
	var builds atomic.Int64
	c := NewCache(8)

	cctx, tree, build := translation(t, postgres.Postgres, customerQuery("ann"), &builds)
	first, hit, err := c.Get(cctx, tree, build)
	require.NoError(t, err)
	assert.False(t, hit)

	cctx, tree, build = translation(t, postgres.Postgres, customerQuery("bob"), &builds)
	second, hit, err := c.Get(cctx, tree, build)
	require.NoError(t, err)
	assert.True(t, hit)

	assert.Equal(t, int64(1), builds.Load())
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, first.Commands()[0].CommandText, second.Commands()[0].CommandText)
	assert.Equal(t, "ann", first.Commands()[0].Parameters[0].Value)
	assert.Equal(t, "bob", second.Commands()[0].Parameters[0].Value)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCache_DifferentShapes(t *testing.T) {
	var builds atomic.Int64
	c := NewCache(8)

	for _, root := range []core.Node{customerQuery("ann"), countQuery(Single), countQuery(First)} {
		cctx, tree, build := translation(t, postgres.Postgres, root, &builds)
		_, hit, err := c.Get(cctx, tree, build)
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, int64(3), builds.Load())
	assert.Equal(t, 3, c.Len())
}

func TestCache_SkipsExpandedVariables(t *testing.T) {
	var builds atomic.Int64
	c := NewCache(8)
	inQuery := func(ids []int) core.Node {
		ta, sa := core.NewAlias(), core.NewAlias()
		sel := core.NewSelect(sa, []core.ColumnDeclaration{decl(col(core.IntType, ta, "id"))},
			core.NewTable(ta, customers),
			core.NewInValues(col(core.IntType, ta, "id"), []core.Node{core.NewConstant(ids, nil)}))
		return core.NewProjection(sel, col(core.IntType, sa, "id"), nil)
	}

	cctx, tree, build := translation(t, sqlite.SQLite, inQuery([]int{1, 2}), &builds)
	p, hit, err := c.Get(cctx, tree, build)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Contains(t, p.Commands()[0].CommandText, "IN (?, ?)")

	cctx, tree, build = translation(t, sqlite.SQLite, inQuery([]int{1, 2, 3}), &builds)
	p, hit, err = c.Get(cctx, tree, build)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Contains(t, p.Commands()[0].CommandText, "IN (?, ?, ?)")

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(2), builds.Load())
}

func TestCache_Bounded(t *testing.T) {
	var builds atomic.Int64
	c := NewCache(1)

	cctx, tree, build := translation(t, postgres.Postgres, countQuery(Single), &builds)
	_, _, err := c.Get(cctx, tree, build)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		cctx, tree, build = translation(t, postgres.Postgres, countQuery(Any), &builds)
		p, hit, err := c.Get(cctx, tree, build)
		require.NoError(t, err)
		assert.False(t, hit)
		assert.NotNil(t, p)
	}
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(3), builds.Load())

	// The stored plan keeps serving.
	cctx, tree, build = translation(t, postgres.Postgres, countQuery(Single), &builds)
	_, hit, err := c.Get(cctx, tree, build)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestCache_ConcurrentBuildsCollapse(t *testing.T) {
	defer goleak.VerifyNone(t)

	var builds atomic.Int64
	c := NewCache(8)

	type job struct {
		cctx  *core.CompilationContext
		tree  core.Node
		build func() (*Plan, error)
	}
	jobs := make([]job, 32)
	for i := range jobs {
		cctx, tree, build := translation(t, postgres.Postgres, customerQuery("ann"), &builds)
		jobs[i] = job{cctx: cctx, tree: tree, build: build}
	}

	texts := make([]string, len(jobs))
	var g errgroup.Group
	for i, j := range jobs {
		g.Go(func() error {
			p, _, err := c.Get(j.cctx, j.tree, j.build)
			if err != nil {
				return err
			}
			texts[i] = p.Commands()[0].CommandText
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(1), builds.Load())
	assert.Equal(t, 1, c.Len())
	for _, text := range texts {
		assert.Equal(t, texts[0], text)
	}
	hits, misses := c.Stats()
	assert.Equal(t, int64(len(jobs)), hits+misses)
}
