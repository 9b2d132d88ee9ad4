// Package engine implements the bounded, write-expiring key/value store that
// backs every named cache.
//
// An Engine holds at most MaxSize live entries. Recency is tracked with a
// doubly linked list (front is most recently used) so both eviction and
// promotion are O(1). An entry is readable while
//
//	now - writtenAt < ExpireAfterWrite
//
// Expired entries are dropped lazily on access, while trimming for capacity,
// and by an optional background sweep.
package engine

import (
	"container/list"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrInvalidConfig = errors.New("engine: invalid config")

type entry struct {
	key     string
	value   any
	written int64 // unix nanos
}

// Engine is safe for concurrent use.
type Engine struct {
	name       string
	listenPath string
	maxSize    int
	expire     time.Duration
	now        func() time.Time

	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List

	stats counters

	ticker    *time.Ticker
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type Option func(*Engine)

// WithListenPath records the path used for out-of-band invalidation signals.
// The engine only stores it.
func WithListenPath(path string) Option {
	return func(e *Engine) { e.listenPath = path }
}

// WithClock replaces time.Now. Used by tests to drive expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithSweepInterval starts a background goroutine that removes expired
// entries every d. Zero disables the sweep (expiry stays lazy).
func WithSweepInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.ticker = time.NewTicker(d)
		}
	}
}

// New builds an engine. expire == 0 makes every entry expire immediately,
// matching a zero expire-after-write duration.
func New(name string, maxSize int, expire time.Duration, opts ...Option) (*Engine, error) {
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidConfig)
	case maxSize <= 0:
		return nil, fmt.Errorf("%w: max size must be > 0, got %d", ErrInvalidConfig, maxSize)
	case expire < 0:
		return nil, fmt.Errorf("%w: expire after write must be >= 0, got %s", ErrInvalidConfig, expire)
	}

	e := &Engine{
		name:    name,
		maxSize: maxSize,
		expire:  expire,
		now:     time.Now,
		items:   make(map[string]*list.Element, maxSize),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.ticker != nil {
		e.stopCh = make(chan struct{})
		e.wg.Add(1)
		go e.sweepLoop()
	}
	return e, nil
}

func (e *Engine) Name() string                    { return e.name }
func (e *Engine) ListenPath() string              { return e.listenPath }
func (e *Engine) MaxSize() int                    { return e.maxSize }
func (e *Engine) ExpireAfterWrite() time.Duration { return e.expire }

// Get returns the live value for key. Expired entries are purged and
// reported as a miss.
func (e *Engine) Get(key string) (any, bool) {
	e.stats.requests.Add(1)
	now := e.now().UnixNano()

	e.mu.Lock()
	el, ok := e.items[key]
	if !ok {
		e.mu.Unlock()
		e.stats.misses.Add(1)
		return nil, false
	}
	ent := el.Value.(*entry)
	if e.expired(ent, now) {
		e.removeElement(el)
		e.mu.Unlock()
		e.stats.evictions.Add(1)
		e.stats.misses.Add(1)
		return nil, false
	}
	e.order.MoveToFront(el)
	v := ent.value
	e.mu.Unlock()

	e.stats.hits.Add(1)
	return v, true
}

// Put stores value under key, resetting its write time. When the engine is
// full the least recently used entries are evicted first.
func (e *Engine) Put(key string, value any) {
	now := e.now().UnixNano()

	e.mu.Lock()
	defer e.mu.Unlock()

	if el, ok := e.items[key]; ok {
		ent := el.Value.(*entry)
		ent.value = value
		ent.written = now
		e.order.MoveToFront(el)
		return
	}

	for e.order.Len() >= e.maxSize {
		e.evictOldest()
	}
	el := e.order.PushFront(&entry{key: key, value: value, written: now})
	e.items[key] = el
	e.stats.size.Store(int64(e.order.Len()))
}

// Remove deletes key. Missing keys are ignored.
func (e *Engine) Remove(key string) {
	e.mu.Lock()
	if el, ok := e.items[key]; ok {
		e.removeElement(el)
	}
	e.mu.Unlock()
}

// Purge drops every entry. Counters are kept.
func (e *Engine) Purge() {
	e.mu.Lock()
	e.items = make(map[string]*list.Element, e.maxSize)
	e.order.Init()
	e.stats.size.Store(0)
	e.mu.Unlock()
}

// Len reports the number of stored entries, including expired entries that
// have not been swept yet. It never exceeds MaxSize.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.order.Len()
}

// Stats returns a snapshot of the counters. Counters are read without the
// engine lock, so a snapshot taken during heavy traffic may be off by a few
// in-flight operations.
func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

// Sweep removes every expired entry and returns how many were dropped.
func (e *Engine) Sweep() int {
	now := e.now().UnixNano()
	removed := 0

	e.mu.Lock()
	for el := e.order.Back(); el != nil; {
		prev := el.Prev()
		if e.expired(el.Value.(*entry), now) {
			e.removeElement(el)
			removed++
		}
		el = prev
	}
	e.mu.Unlock()

	if removed > 0 {
		e.stats.evictions.Add(int64(removed))
	}
	return removed
}

// Close stops the background sweep. The engine stays usable.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		if e.stopCh == nil {
			return
		}
		close(e.stopCh)
		e.ticker.Stop()
		e.wg.Wait()
	})
}

func (e *Engine) sweepLoop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ticker.C:
			e.Sweep()
		case <-e.stopCh:
			return
		}
	}
}

func (e *Engine) expired(ent *entry, now int64) bool {
	return now-ent.written >= int64(e.expire)
}

// evictOldest must be called with mu held.
func (e *Engine) evictOldest() {
	el := e.order.Back()
	if el == nil {
		return
	}
	e.removeElement(el)
	e.stats.evictions.Add(1)
}

// removeElement must be called with mu held.
func (e *Engine) removeElement(el *list.Element) {
	e.order.Remove(el)
	delete(e.items, el.Value.(*entry).key)
	e.stats.size.Store(int64(e.order.Len()))
}
