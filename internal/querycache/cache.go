// Package querycache is a keyed, time-indexed cache of query results with
// staleness and garbage-collection windows. It supports optimistic writes:
// a fetch that lands after a newer write, or after Cancel, never replaces
// that write.
package querycache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultStaleTime = 0
	DefaultGCTime    = 5 * time.Minute
)

// ErrFetchCancelled is returned to waiters of a fetch stopped by Cancel
// when there is no cached value to fall back to.
var ErrFetchCancelled = errors.New("fetch cancelled")

// Key identifies a query, e.g. Key{"artwork", "42"}.
type Key []interface{}

func (k Key) String() string {
	parts := make([]string, len(k))
	for i, p := range k {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, "\x1f")
}

// FetchFunc loads a fresh value. ctx is cancelled by Cache.Cancel.
type FetchFunc func(ctx context.Context) (interface{}, error)

type entry struct {
	value      interface{}
	updatedAt  time.Time
	accessedAt time.Time
	version    uint64
	staleTime  time.Duration
	invalid    bool
}

// inflight is one shared fetch. startVersion is the entry version seen by
// the caller that started it, taken under the same lock as its staleness
// check.
type inflight struct {
	id           uint64
	ctx          context.Context
	cancel       context.CancelFunc
	startVersion uint64
	cancelled    bool

	finished bool
	val      interface{}
	err      error
}

type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	inflight map[string]*inflight
	group    singleflight.Group
	seq      uint64

	staleTime time.Duration
	gcTime    time.Duration
	now       func() time.Time
	log       *logrus.Entry

	fetchSeq    uint64
	// beforeShare runs between registering a fetch and handing it to the
	// singleflight group. Tests use it to interleave writes.
	beforeShare func(key Key)
}

type Option func(*Cache)

// WithStaleTime sets the default freshness window for Fetch.
func WithStaleTime(d time.Duration) Option {
	return func(c *Cache) { c.staleTime = d }
}

// WithGCTime sets how long an untouched entry survives GC.
func WithGCTime(d time.Duration) Option {
	return func(c *Cache) { c.gcTime = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithLogger(log *logrus.Entry) Option {
	return func(c *Cache) { c.log = log }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries:   make(map[string]*entry),
		inflight:  make(map[string]*inflight),
		staleTime: DefaultStaleTime,
		gcTime:    DefaultGCTime,
		now:       time.Now,
		log:       logrus.WithField("component", "querycache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key.
func (c *Cache) Get(key Key) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return nil, false
	}
	e.accessedAt = c.now()
	return e.value, true
}

// UpdatedAt returns when the entry was last written.
func (c *Cache) UpdatedAt(key Key) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return time.Time{}, false
	}
	return e.updatedAt, true
}

// Set overwrites the value for key. Values are treated as immutable
// snapshots: store a fresh copy, never mutate one after handing it over.
func (c *Cache) Set(key Key, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key.String(), value, 0)
}

// Update atomically replaces the value for key with fn's result. fn sees the
// latest snapshot; returning false leaves the entry untouched.
func (c *Cache) Update(key Key, fn func(old interface{}, ok bool) (interface{}, bool)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key.String()
	var (
		old interface{}
		ok  bool
	)
	if e, found := c.entries[k]; found {
		old, ok = e.value, true
	}
	next, write := fn(old, ok)
	if !write {
		return false
	}
	c.setLocked(k, next, 0)
	return true
}

// Remove drops the entry for key.
func (c *Cache) Remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key.String())
}

// IsStale reports whether key is missing or older than its stale time.
func (c *Cache) IsStale(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	return !ok || c.staleLocked(e)
}

// Invalidate marks the entry stale so the next Fetch reloads it.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key.String()]; ok {
		e.invalid = true
	}
}

// Cancel stops the outstanding fetch for key, if any. Call it before an
// optimistic write so an older read cannot land on top of it.
func (c *Cache) Cancel(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.inflight[key.String()]
	if !ok {
		return false
	}
	f.cancelled = true
	f.cancel()
	c.log.WithField("key", key).Debug("Cancelled outstanding fetch")
	return true
}

// Fetching reports whether a fetch for key is outstanding.
func (c *Cache) Fetching(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[key.String()]
	return ok
}

type fetchOptions struct {
	staleTime *time.Duration
}

type FetchOption func(*fetchOptions)

// StaleTime overrides the cache-wide freshness window for one query.
func StaleTime(d time.Duration) FetchOption {
	return func(o *fetchOptions) { o.staleTime = &d }
}

// Fetch returns the cached value while it is fresh, otherwise runs fn and
// caches its result. Concurrent fetches of one key share a single call of fn.
// If a write to key happens while fn runs, the write wins and is returned.
func (c *Cache) Fetch(ctx context.Context, key Key, fn FetchFunc, opts ...FetchOption) (interface{}, error) {
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}

	k := key.String()

	c.mu.Lock()
	staleTime := c.staleTime
	if o.staleTime != nil {
		staleTime = *o.staleTime
	}
	if e, ok := c.entries[k]; ok {
		e.staleTime = staleTime
		if !c.staleLocked(e) {
			e.accessedAt = c.now()
			v := e.value
			c.mu.Unlock()
			return v, nil
		}
	}
	f, ok := c.inflight[k]
	if !ok {
		fetchCtx, cancel := context.WithCancel(context.Background())
		c.fetchSeq++
		f = &inflight{
			id:           c.fetchSeq,
			ctx:          fetchCtx,
			cancel:       cancel,
			startVersion: c.versionLocked(k),
		}
		c.inflight[k] = f
	}
	c.mu.Unlock()

	if c.beforeShare != nil {
		c.beforeShare(key)
	}

	ch := c.group.DoChan(k+"#"+strconv.FormatUint(f.id, 10), func() (interface{}, error) {
		return c.run(k, f, fn, staleTime)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// run executes one shared fetch. It is detached from any single caller's
// context; only Cancel stops it. A caller that reaches the group after the
// fetch finished gets the recorded outcome instead of a second call of fn.
func (c *Cache) run(k string, f *inflight, fn FetchFunc, staleTime time.Duration) (interface{}, error) {
	c.mu.Lock()
	if f.finished {
		v, err := f.val, f.err
		c.mu.Unlock()
		return v, err
	}
	c.mu.Unlock()

	defer f.cancel()
	v, err := fn(f.ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	v, err = c.landLocked(k, f, v, err, staleTime)
	f.finished, f.val, f.err = true, v, err
	return v, err
}

func (c *Cache) landLocked(k string, f *inflight, v interface{}, err error, staleTime time.Duration) (interface{}, error) {
	if c.inflight[k] == f {
		delete(c.inflight, k)
	}

	newer := c.versionLocked(k) != f.startVersion
	if f.cancelled || newer {
		// keep whatever was written while we were away
		if e, ok := c.entries[k]; ok {
			return e.value, nil
		}
		if f.cancelled {
			return nil, ErrFetchCancelled
		}
	}
	if err != nil {
		return nil, err
	}

	c.setLocked(k, v, staleTime)
	return v, nil
}

// GC removes entries not read or written within the gc window.
func (c *Cache) GC() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.gcTime)
	removed := 0
	for k, e := range c.entries {
		if _, busy := c.inflight[k]; busy {
			continue
		}
		if e.accessedAt.Before(cutoff) {
			delete(c.entries, k)
			removed++
		}
	}
	if removed > 0 {
		c.log.WithField("removed", removed).Debug("Collected unused cache entries")
	}
	return removed
}

// Run collects garbage every interval until ctx is done.
func (c *Cache) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.GC()
		}
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) setLocked(k string, value interface{}, staleTime time.Duration) {
	now := c.now()
	c.seq++
	e, ok := c.entries[k]
	if !ok {
		e = &entry{staleTime: c.staleTime}
		c.entries[k] = e
	}
	if staleTime > 0 {
		e.staleTime = staleTime
	}
	e.value = value
	e.updatedAt = now
	e.accessedAt = now
	e.version = c.seq
	e.invalid = false
}

func (c *Cache) versionLocked(k string) uint64 {
	if e, ok := c.entries[k]; ok {
		return e.version
	}
	return 0
}

func (c *Cache) staleLocked(e *entry) bool {
	if e.invalid {
		return true
	}
	return !c.now().Before(e.updatedAt.Add(e.staleTime))
}
