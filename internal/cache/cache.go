// Package cache is an in-process read-through cache grouped by namespace.
// Mutations clear a whole namespace; there is no per-key invalidation and no
// de-duplication of concurrent computes.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"energytrack/internal/obs"
)

// DefaultMaxEntries bounds each namespace when no explicit size is given.
const DefaultMaxEntries = 1024

type entry struct {
	value any
	expAt time.Time
}

// namespace is one LRU plus the generation it was last cleared at. A compute
// only stores its result if the generation did not move while it ran.
type namespace struct {
	gen     uint64
	entries *expirable.LRU[string, *entry]
}

// Cache holds values by (namespace, key) with a TTL. Thread-safe.
type Cache struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu     sync.Mutex
	spaces map[string]*namespace
}

// Option customises a Cache.
type Option func(*Cache)

// WithMaxEntries caps the number of entries kept per namespace.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// New returns a cache with the given TTL. If ttl <= 0 every lookup computes.
func New(ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		ttl:        ttl,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		spaces:     make(map[string]*namespace),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// space returns the namespace, creating it on first use. Callers hold c.mu.
func (c *Cache) space(name string) *namespace {
	ns, ok := c.spaces[name]
	if !ok {
		ns = &namespace{entries: expirable.NewLRU[string, *entry](c.maxEntries, nil, c.ttl)}
		c.spaces[name] = ns
	}
	return ns
}

func (c *Cache) enabled() bool { return c != nil && c.ttl > 0 }

// get returns the cached value and the namespace generation it was read at.
func (c *Cache) get(name, key string) (any, uint64, bool) {
	if !c.enabled() {
		return nil, 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ns := c.space(name)
	e, ok := ns.entries.Get(key)
	if !ok || e == nil {
		return nil, ns.gen, false
	}
	if c.now().After(e.expAt) {
		ns.entries.Remove(key)
		return nil, ns.gen, false
	}
	return e.value, ns.gen, true
}

// set stores value unless the namespace was invalidated after gen was read.
func (c *Cache) set(name, key string, value any, gen uint64) bool {
	if !c.enabled() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ns := c.space(name)
	if ns.gen != gen {
		return false
	}
	ns.entries.Add(key, &entry{value: value, expAt: c.now().Add(c.ttl)})
	return true
}

// InvalidateNamespace drops every entry in namespace. Computes already in
// flight for that namespace will not store their results.
func (c *Cache) InvalidateNamespace(name string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	ns := c.space(name)
	ns.gen++
	ns.entries.Purge()
	c.mu.Unlock()
	obs.CacheInvalidationsTotal.WithLabelValues(name).Inc()
}

// Len reports the number of entries held in namespace, expired ones that
// have not been swept yet included.
func (c *Cache) Len(name string) int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ns, ok := c.spaces[name]
	if !ok {
		return 0
	}
	return ns.entries.Len()
}

// LookupOrCompute returns the cached value for (namespace, key) or calls
// compute and stores its result. Errors are returned as-is and never cached.
func LookupOrCompute[T any](ctx context.Context, c *Cache, namespace, key string, compute func(context.Context) (T, error)) (T, error) {
	v, gen, ok := c.get(namespace, key)
	if ok {
		if typed, ok := v.(T); ok {
			obs.CacheHitsTotal.WithLabelValues(namespace).Inc()
			return typed, nil
		}
	}
	obs.CacheMissesTotal.WithLabelValues(namespace).Inc()

	value, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.set(namespace, key, value, gen)
	return value, nil
}
