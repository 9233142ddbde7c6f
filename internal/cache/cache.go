// Package cache holds in-flight and finished related-files computations,
// keyed by workspace and file, with throttled age-based eviction.
package cache

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"relfiles/internal/metrics"
)

const (
	// DefaultMaxAge is how long an entry stays eligible before a sweep removes it.
	DefaultMaxAge = 5 * time.Minute
	// DefaultSweepInterval is the minimum time between two real sweeps.
	DefaultSweepInterval = time.Minute
)

// Entry is one cached computation. CreatedAt never changes after insertion.
type Entry struct {
	Computation *Future
	CreatedAt   time.Time
}

// Cache maps workspace -> file -> entry. Every method is safe for concurrent
// use and none of them waits on a computation.
type Cache struct {
	maxAge        time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger

	mu        sync.Mutex
	store     map[string]map[string]*Entry
	lastSweep time.Time
	swept     bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithMaxAge sets the entry max age. Non-positive values are ignored.
func WithMaxAge(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.maxAge = d
		}
	}
}

// WithSweepInterval sets the sweep throttle. Non-positive values are ignored.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// WithLogger sets the logger used for sweep reports.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		maxAge:        DefaultMaxAge,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		logger:        slog.New(slog.DiscardHandler),
		store:         make(map[string]map[string]*Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the computation stored for (workspace, file). It never checks
// age and never mutates the cache.
func (c *Cache) Get(workspace, file string) (*Future, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookup(workspace, file)
	if !ok {
		return nil, false
	}
	return e.Computation, true
}

// Entry returns a copy of the entry stored for (workspace, file).
func (c *Cache) Entry(workspace, file string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookup(workspace, file)
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Set stores fut for (workspace, file), replacing any existing entry. A
// replaced computation keeps running; its result is simply unreachable.
func (c *Cache) Set(workspace, file string, fut *Future) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insert(workspace, file, fut)
}

// GetOrStart returns the stored computation for (workspace, file), or calls
// start and stores its result when there is none. The lookup and insert are
// one atomic step, so concurrent callers share a single computation.
// start runs under the cache lock and must not block.
func (c *Cache) GetOrStart(workspace, file string, start func() *Future) (fut *Future, hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.lookup(workspace, file); ok {
		metrics.CacheHits.Inc()
		return e.Computation, true
	}
	metrics.CacheMisses.Inc()
	fut = start()
	c.insert(workspace, file, fut)
	return fut, false
}

// Delete removes the entry for (workspace, file). An emptied workspace map
// is removed too. Reports whether an entry existed.
func (c *Cache) Delete(workspace, file string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	files, ok := c.store[workspace]
	if !ok {
		return false
	}
	if _, ok := files[file]; !ok {
		return false
	}
	delete(files, file)
	if len(files) == 0 {
		delete(c.store, workspace)
	}
	metrics.CacheEntries.Dec()
	return true
}

// DeleteWorkspace removes every entry of workspace and returns how many.
func (c *Cache) DeleteWorkspace(workspace string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.store[workspace])
	delete(c.store, workspace)
	metrics.CacheEntries.Sub(float64(n))
	return n
}

// Clear drops every entry and returns how many there were.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.countLocked()
	c.store = make(map[string]map[string]*Entry)
	metrics.CacheEntries.Sub(float64(n))
	return n
}

// ClearExpired removes entries older than the max age, and workspace maps
// left empty. It scans at most once per sweep interval; calls in between are
// no-ops returning 0. The first call always scans.
func (c *Cache) ClearExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.swept && now.Sub(c.lastSweep) < c.sweepInterval {
		return 0
	}
	c.swept = true
	c.lastSweep = now

	evicted := 0
	for ws, files := range c.store {
		for file, e := range files {
			if now.Sub(e.CreatedAt) > c.maxAge {
				delete(files, file)
				evicted++
			}
		}
		if len(files) == 0 {
			delete(c.store, ws)
		}
	}

	if evicted > 0 {
		metrics.CacheEvictions.Add(float64(evicted))
		metrics.CacheEntries.Sub(float64(evicted))
		c.logger.Info("Evicted expired related-files entries",
			"evicted", evicted,
			"remaining", c.countLocked(),
		)
	}
	return evicted
}

// Len returns the number of entries across all workspaces.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.countLocked()
}

// Workspaces returns the workspaces holding at least one entry, sorted.
func (c *Cache) Workspaces() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.store))
	for ws := range c.store {
		out = append(out, ws)
	}
	sort.Strings(out)
	return out
}

func (c *Cache) lookup(workspace, file string) (*Entry, bool) {
	files, ok := c.store[workspace]
	if !ok {
		return nil, false
	}
	e, ok := files[file]
	return e, ok
}

func (c *Cache) insert(workspace, file string, fut *Future) {
	files, ok := c.store[workspace]
	if !ok {
		files = make(map[string]*Entry)
		c.store[workspace] = files
	}
	if _, exists := files[file]; !exists {
		metrics.CacheEntries.Inc()
	}
	files[file] = &Entry{Computation: fut, CreatedAt: c.now()}
}

func (c *Cache) countLocked() int {
	n := 0
	for _, files := range c.store {
		n += len(files)
	}
	return n
}
