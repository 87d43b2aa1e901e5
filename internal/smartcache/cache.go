package smartcache

import (
	"sync"
	"time"

	"upsell/pkg/clock"
)

// Tag names an entity kind a derived value reads
type Tag string

const (
	TagRooms          Tag = "rooms"
	TagExtras         Tag = "extras"
	TagCustomizations Tag = "customizations"
	TagTotals         Tag = "totals"
	TagCounts         Tag = "counts"
)

// Entry is a memoized derived value
type Entry struct {
	Value        any
	Timestamp    time.Time
	Dependencies []Tag
	TTL          time.Duration
}

func (e Entry) expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.Timestamp) >= e.TTL
}

// Graph records which tags are derived from which. Invalidating a source
// tag also invalidates everything derived from it, transitively.
type Graph struct {
	dependents map[Tag][]Tag
}

// NewGraph creates an empty dependency graph
func NewGraph() *Graph {
	return &Graph{dependents: make(map[Tag][]Tag)}
}

// DefaultGraph is the selection graph: customizations feed rooms, and
// rooms and extras both feed totals and counts.
func DefaultGraph() *Graph {
	g := NewGraph()
	g.Derive(TagRooms, TagCustomizations)
	g.Derive(TagTotals, TagRooms, TagExtras)
	g.Derive(TagCounts, TagRooms, TagExtras)
	return g
}

// Derive declares that derived is computed from sources
func (g *Graph) Derive(derived Tag, sources ...Tag) {
	for _, src := range sources {
		g.dependents[src] = append(g.dependents[src], derived)
	}
}

// Reach returns tag plus every tag derived from it
func (g *Graph) Reach(tag Tag) map[Tag]struct{} {
	seen := map[Tag]struct{}{tag: {}}
	stack := []Tag{tag}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range g.dependents[cur] {
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			stack = append(stack, next)
		}
	}
	return seen
}

// Stats reports cache effectiveness
type Stats struct {
	Hits      int `json:"hits"`
	Misses    int `json:"misses"`
	Evictions int `json:"evictions"`
	Size      int `json:"size"`
}

// Cache is a TTL and dependency-aware memoization cache for derived values
type Cache struct {
	mu         sync.Mutex
	clock      clock.Clock
	graph      *Graph
	defaultTTL time.Duration
	entries    map[string]Entry
	stats      Stats
}

// New creates a cache. A nil graph uses DefaultGraph.
func New(clk clock.Clock, graph *Graph, defaultTTL time.Duration) *Cache {
	if clk == nil {
		clk = clock.Real()
	}
	if graph == nil {
		graph = DefaultGraph()
	}
	return &Cache{
		clock:      clk,
		graph:      graph,
		defaultTTL: defaultTTL,
		entries:    make(map[string]Entry),
	}
}

// Get returns a live entry's value. Expired entries are evicted.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if entry.expired(c.clock.Now()) {
		delete(c.entries, key)
		c.stats.Evictions++
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return entry.Value, true
}

// Set stores value under key. A zero ttl uses the cache default.
func (c *Cache) Set(key string, value any, deps []Tag, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = Entry{
		Value:        value,
		Timestamp:    c.clock.Now(),
		Dependencies: append([]Tag(nil), deps...),
		TTL:          ttl,
	}
}

// Invalidate evicts every entry whose dependencies intersect the tags
// reachable from the given tags. Returns the number of evicted entries.
func (c *Cache) Invalidate(tags ...Tag) int {
	dirty := make(map[Tag]struct{})
	for _, tag := range tags {
		for reached := range c.graph.Reach(tag) {
			dirty[reached] = struct{}{}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for key, entry := range c.entries {
		for _, dep := range entry.Dependencies {
			if _, ok := dirty[dep]; ok {
				delete(c.entries, key)
				evicted++
				break
			}
		}
	}
	c.stats.Evictions += evicted
	return evicted
}

// Clear drops every entry
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Evictions += len(c.entries)
	c.entries = make(map[string]Entry)
}

// Stats returns a copy of the counters
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = len(c.entries)
	return s
}

// GetOrCompute returns the cached value for key or computes and stores it
func GetOrCompute[T any](c *Cache, key string, deps []Tag, ttl time.Duration, compute func() T) T {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed
		}
	}
	value := compute()
	c.Set(key, value, deps, ttl)
	return value
}
