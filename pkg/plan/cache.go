package plan

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/leapstack-labs/leapquery/pkg/compare"
	"github.com/leapstack-labs/leapquery/pkg/core"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxEntries bounds a cache created with a non-positive size.
const DefaultMaxEntries = 1024

// Cache shares plans between translations whose parameterized trees are
// equal up to parameter values. Reads are lock-free. Concurrent misses for
// one shape build the plan once. A full cache keeps serving but stops
// inserting.
type Cache struct {
	buckets sync.Map // uint64 -> *bucket
	flight  singleflight.Group
	max     int64
	size    atomic.Int64
	hits    atomic.Int64
	misses  atomic.Int64
}

type bucket struct {
	entries atomic.Pointer[[]*entry]
}

type entry struct {
	tree core.Node
	plan *Plan
}

// NewCache creates a cache holding at most maxEntries plans.
func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{max: int64(maxEntries)}
}

// Get returns the plan for tree, calling build on a miss. tree is the
// parameterized tree the plan is built from; the returned plan binds the
// values recorded in cctx. hit reports whether the plan came from the cache.
func (c *Cache) Get(cctx *core.CompilationContext, tree core.Node, build func() (*Plan, error)) (p *Plan, hit bool, err error) {
	key := compare.Hash(tree, compare.IgnoreValues())
	if e := c.lookup(key, tree); e != nil {
		c.hits.Add(1)
		return e.plan.Rebind(cctx), true, nil
	}

	v, err, shared := c.flight.Do(strconv.FormatUint(key, 16), func() (any, error) {
		if e := c.lookup(key, tree); e != nil {
			return e, nil
		}
		p, err := build()
		if err != nil {
			return nil, err
		}
		return c.insert(key, &entry{tree: tree, plan: p}), nil
	})
	if shared && (err != nil || !sameTree(v.(*entry).tree, tree)) {
		// Another shape with the same hash won the flight.
		p, err := build()
		if err != nil {
			return nil, false, err
		}
		c.misses.Add(1)
		return c.insert(key, &entry{tree: tree, plan: p}).plan.Rebind(cctx), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	c.misses.Add(1)
	return v.(*entry).plan.Rebind(cctx), false, nil
}

func sameTree(a, b core.Node) bool {
	return a == b || compare.Equal(a, b, compare.IgnoreValues())
}

func (c *Cache) lookup(key uint64, tree core.Node) *entry {
	v, ok := c.buckets.Load(key)
	if !ok {
		return nil
	}
	for _, e := range *v.(*bucket).entries.Load() {
		if sameTree(e.tree, tree) {
			return e
		}
	}
	return nil
}

// insert adds e unless an equal entry exists, in which case that entry is
// returned. Plans that are not cacheable, and any plan once the cache is
// full, are returned without being stored.
func (c *Cache) insert(key uint64, e *entry) *entry {
	if !e.plan.Cacheable() {
		return e
	}
	v, _ := c.buckets.LoadOrStore(key, newBucket())
	b := v.(*bucket)
	for {
		old := b.entries.Load()
		for _, o := range *old {
			if sameTree(o.tree, e.tree) {
				return o
			}
		}
		if c.size.Add(1) > c.max {
			c.size.Add(-1)
			return e
		}
		next := make([]*entry, len(*old), len(*old)+1)
		copy(next, *old)
		next = append(next, e)
		if b.entries.CompareAndSwap(old, &next) {
			return e
		}
		c.size.Add(-1)
	}
}

func newBucket() *bucket {
	b := &bucket{}
	empty := []*entry{}
	b.entries.Store(&empty)
	return b
}

// Len returns the number of cached plans.
func (c *Cache) Len() int { return int(c.size.Load()) }

// Stats returns the hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
