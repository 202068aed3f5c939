package lang

import (
	"sync"
	"sync/atomic"

	"github.com/zeebo/xxh3"
)

// Cache holds compiled templates, script units and memoized results.
//
// A Cache is safe for concurrent use. Each key is built at most once:
// concurrent first requests for the same key wait for a single build and
// all observe its outcome. Results are memoized per compiled template and
// [Fingerprint]. Nothing is evicted.
type Cache struct {
	units   sync.Map // unitKey -> *entry[*Template]
	scripts sync.Map // string -> *entry[*scriptUnit]

	mu   sync.Mutex
	memo map[memoKey]any

	compiles atomic.Int64
	renders  atomic.Int64
	hits     atomic.Int64
	misses   atomic.Int64
}

// Stats is a snapshot of [Cache] activity.
type Stats struct {
	// Compiles counts template and script compilations.
	Compiles int64
	// Renders counts template executions.
	Renders int64
	// Hits counts results served from the memo.
	Hits int64
	// Misses counts memo lookups that required a render.
	Misses int64
	// Entries is the number of memoized results.
	Entries int
}

// NewCache returns an empty Cache.
func NewCache() *Cache { return &Cache{memo: make(map[memoKey]any)} }

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	n := len(c.memo)
	c.mu.Unlock()

	return Stats{
		Compiles: c.compiles.Load(),
		Renders:  c.renders.Load(),
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Entries:  n,
	}
}

type unitKey struct {
	mode Mode
	file bool
	id   xxh3.Uint128
}

func sourceKey(mode Mode, src string) unitKey {
	return unitKey{mode: mode, id: xxh3.HashString128(src)}
}

func fileKey(mode Mode, path string) unitKey {
	return unitKey{mode: mode, file: true, id: xxh3.HashString128(path)}
}

type memoKey struct {
	unit *Template
	fp   Fingerprint
}

// entry is a lazily built cache value.
type entry[T any] struct {
	once sync.Once
	val  T
	err  error
}

// load returns the value stored under key in m, building it with build on
// first use. The boolean result reports whether the value already existed.
func load[T any](m *sync.Map, key any, build func() (T, error)) (T, bool, error) {
	v, hit := m.LoadOrStore(key, new(entry[T]))
	e := v.(*entry[T])

	e.once.Do(func() { e.val, e.err = build() })

	return e.val, hit, e.err
}

func (c *Cache) template(key unitKey, build func() (*Template, error)) (*Template, bool, error) {
	return load(&c.units, key, func() (*Template, error) {
		c.compiles.Add(1)

		return build()
	})
}

func (c *Cache) script(key string, build func() (*scriptUnit, error)) (*scriptUnit, bool, error) {
	return load(&c.scripts, key, func() (*scriptUnit, error) {
		c.compiles.Add(1)

		return build()
	})
}

func (c *Cache) lookup(k memoKey) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.memo[k]

	return v, ok
}

func (c *Cache) store(k memoKey, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.memo == nil {
		c.memo = make(map[memoKey]any)
	}

	c.memo[k] = v
}

// Reset discards memoized results and zeroes the counters. Compiled units
// are kept.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.memo = make(map[memoKey]any)
	c.mu.Unlock()

	c.compiles.Store(0)
	c.renders.Store(0)
	c.hits.Store(0)
	c.misses.Store(0)
}
