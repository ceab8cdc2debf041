// Package querycache holds query results keyed by endpoint and arguments and
// evicts them by tag when a mutation succeeds.
package querycache

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultKeepUnused is how long an entry without subscribers survives Prune.
const DefaultKeepUnused = 60 * time.Second

// Loader fetches a value and reports the tags it provides.
type Loader func(ctx context.Context) (value any, provides []Tag, err error)

// Observer receives cache events.
type Observer interface {
	CacheHit(key string)
	CacheMiss(key string)
	CacheInvalidated(keys []string)
}

// Entry is a read-only view of one cached result.
type Entry struct {
	Key         string
	Loaded      bool
	Tags        []Tag
	FetchedAt   time.Time
	Subscribers int
}

type entry struct {
	loaded      bool
	value       any
	tags        []Tag
	fetchedAt   time.Time
	subscribers int
}

// flight tracks one running load and the tags invalidated while it ran.
type flight struct {
	stale       bool
	invalidated []Tag
}

// Cache stores query results. The zero value is not usable; call New.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	generation uint64
	epoch      uint64
	group      singleflight.Group
	inflight   map[*flight]struct{}
	keepUnused time.Duration
	now        func() time.Time
	observer   Observer
}

// Option configures a Cache.
type Option func(*Cache)

// WithKeepUnused overrides DefaultKeepUnused.
func WithKeepUnused(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.keepUnused = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observer = o }
}

// New constructs an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]*entry),
		inflight:   make(map[*flight]struct{}),
		keepUnused: DefaultKeepUnused,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the cached value for key or runs load. Concurrent Fetch
// calls for the same key share one load. A caller whose ctx ends early gets
// ctx.Err() while the shared load carries on for the others.
func (c *Cache) Fetch(ctx context.Context, key string, load Loader) (any, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && e.loaded {
		value := e.value
		c.mu.Unlock()
		c.hit(key)
		return value, nil
	}
	generation, epoch := c.generation, c.epoch
	c.mu.Unlock()
	c.miss(key)

	ch := c.group.DoChan(flightKey(key, generation, epoch), func() (any, error) {
		f := c.begin(epoch)
		// Detached from the first caller so one cancellation does not fail
		// everyone sharing the load.
		value, tags, err := load(context.WithoutCancel(ctx))
		c.store(key, generation, f, value, tags, err)
		if err != nil {
			return nil, err
		}
		return value, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// Refresh drops key and loads it again.
func (c *Cache) Refresh(ctx context.Context, key string, load Loader) (any, error) {
	c.mu.Lock()
	c.dropLocked(key)
	generation, epoch := c.generation, c.epoch
	c.mu.Unlock()
	c.group.Forget(flightKey(key, generation, epoch))
	return c.Fetch(ctx, key, load)
}

// begin registers a running load. An Invalidate between the caller's miss
// and this point has tags the load cannot see, so its result is not kept.
func (c *Cache) begin(epoch uint64) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := &flight{stale: c.epoch != epoch}
	c.inflight[f] = struct{}{}
	return f
}

// store caches a finished load unless a Reset, or an Invalidate matching the
// loaded tags, ran while it was in flight. Waiting callers still get the value.
func (c *Cache) store(key string, generation uint64, f *flight, value any, tags []Tag, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, f)
	if err != nil || generation != c.generation {
		return
	}
	if f.stale || matchesAny(f.invalidated, tags) {
		return
	}
	subscribers := 0
	if prev, ok := c.entries[key]; ok {
		subscribers = prev.subscribers
	}
	c.entries[key] = &entry{
		loaded:      true,
		value:       value,
		tags:        sortedTags(tags),
		fetchedAt:   c.now(),
		subscribers: subscribers,
	}
}

// Subscribe marks key as in use until the returned release func is called.
// Subscribing to a key that is not cached yet is allowed.
func (c *Cache) Subscribe(key string) (release func()) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{fetchedAt: c.now()}
		c.entries[key] = e
	}
	e.subscribers++
	generation := c.generation
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			// Reset already dropped the subscription.
			if generation != c.generation {
				return
			}
			if cur, ok := c.entries[key]; ok && cur.subscribers > 0 {
				cur.subscribers--
			}
		})
	}
}

// KeepUnused returns the keep-unused window.
func (c *Cache) KeepUnused() time.Duration { return c.keepUnused }

// Prune removes entries that have no subscribers and are older than the
// keep-unused window. It returns the removed keys, sorted.
func (c *Cache) Prune() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now().Add(-c.keepUnused)
	var removed []string
	for key, e := range c.entries {
		if e.subscribers == 0 && !e.fetchedAt.After(cutoff) {
			delete(c.entries, key)
			removed = append(removed, key)
		}
	}
	sort.Strings(removed)
	return removed
}

// Plan returns, sorted, the keys Invalidate(tags...) would evict. It does not
// change the cache.
func (c *Cache) Plan(tags ...Tag) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.planLocked(tags)
}

func (c *Cache) planLocked(tags []Tag) []string {
	var keys []string
	for key, e := range c.entries {
		if !e.loaded {
			continue
		}
		if matchesAny(tags, e.tags) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Invalidate evicts every entry providing a tag matched by tags and returns
// the evicted keys, sorted. Subscribed entries lose their value but keep the
// subscription so the next Fetch reloads them.
func (c *Cache) Invalidate(tags ...Tag) []string {
	c.mu.Lock()
	keys := c.planLocked(tags)
	for _, key := range keys {
		c.dropLocked(key)
	}
	// Running loads report their tags only when they finish. Each one keeps
	// the tags to check against, and callers from now on start a fresh load.
	for f := range c.inflight {
		f.invalidated = append(f.invalidated, tags...)
	}
	c.epoch++
	c.mu.Unlock()
	if len(keys) > 0 && c.observer != nil {
		c.observer.CacheInvalidated(keys)
	}
	return keys
}

// Graph returns the current tag to keys mapping.
func (c *Cache) Graph() map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	graph := make(map[string][]string)
	for key, e := range c.entries {
		for _, tag := range e.tags {
			graph[tag.String()] = append(graph[tag.String()], key)
		}
	}
	for tag := range graph {
		sort.Strings(graph[tag])
	}
	return graph
}

// Entries lists cached entries sorted by key.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, 0, len(c.entries))
	for key, e := range c.entries {
		out = append(out, Entry{
			Key:         key,
			Loaded:      e.loaded,
			Tags:        append([]Tag(nil), e.tags...),
			FetchedAt:   e.fetchedAt,
			Subscribers: e.subscribers,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Reset drops every entry. Loads in flight when Reset runs are discarded.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.generation++
	c.mu.Unlock()
}

// dropLocked removes the value of key, keeping a placeholder when the key
// still has subscribers.
func (c *Cache) dropLocked(key string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	if e.subscribers > 0 {
		c.entries[key] = &entry{fetchedAt: c.now(), subscribers: e.subscribers}
		return
	}
	delete(c.entries, key)
}

// flightKey scopes in-flight loads to a cache generation and invalidation
// epoch so a load started before Reset or Invalidate is never shared with
// callers after it.
func flightKey(key string, generation, epoch uint64) string {
	return strconv.FormatUint(generation, 10) + "." + strconv.FormatUint(epoch, 10) + "|" + key
}

func (c *Cache) hit(key string) {
	if c.observer != nil {
		c.observer.CacheHit(key)
	}
}

func (c *Cache) miss(key string) {
	if c.observer != nil {
		c.observer.CacheMiss(key)
	}
}

func matchesAny(invalidating, provided []Tag) bool {
	for _, inv := range invalidating {
		for _, p := range provided {
			if inv.Matches(p) {
				return true
			}
		}
	}
	return false
}
