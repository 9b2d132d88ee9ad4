package autocache

import (
	"fmt"
	"sort"
	"sync"

	c "github.com/unkn0wn-root/autocache/codec"
)

// Manager is a named collection of independently configured caches.
// It owns the caches registered through it.
type Manager struct {
	name  string
	sink  MetricsSink
	log   Logger
	codec c.Codec

	mu     sync.RWMutex
	caches map[string]Cache
}

type ManagerOption func(*Manager)

// WithMetrics sets the sink used for caches registered with Options.Monitor.
func WithMetrics(sink MetricsSink) ManagerOption {
	return func(m *Manager) { m.sink = sink }
}

// WithLogger sets the logger handed to caches that do not carry their own.
func WithLogger(l Logger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

// WithCodec sets the codec handed to caches that do not carry their own.
func WithCodec(cd c.Codec) ManagerOption {
	return func(m *Manager) { m.codec = cd }
}

func NewManager(name string, opts ...ManagerOption) *Manager {
	m := &Manager{
		name:   coalesce(name, DefaultManager),
		caches: make(map[string]Cache),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = coalesce[Logger](m.log, NopLogger{})
	return m
}

func (m *Manager) Name() string { return m.name }

// Register builds a cache from opts and adds it under opts.Name.
func (m *Manager) Register(opts Options) (Cache, error) {
	if opts.Logger == nil {
		opts.Logger = m.log
	}
	if opts.Codec == nil {
		opts.Codec = m.codec
	}
	base, err := newCache(opts)
	if err != nil {
		return nil, &RegisterError{Manager: m.name, Cache: opts.Name, Err: err}
	}

	var c Cache = base
	if opts.Monitor && m.sink != nil {
		c = NewMonitor(base, m.sink, opts.Logger)
	}
	if err := m.Add(c); err != nil {
		base.eng.Close()
		return nil, err
	}
	m.log.Info("cache registered", Fields{
		"manager":          m.name,
		"cache":            opts.Name,
		"maxSize":          c.MaxSize(),
		"expireAfterWrite": c.ExpireAfterWrite().String(),
		"monitored":        c != Cache(base),
	})
	return c, nil
}

// Add registers a prebuilt cache. Names must be unique within a manager.
func (m *Manager) Add(c Cache) error {
	name := c.Name()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.caches[name]; dup {
		return &RegisterError{Manager: m.name, Cache: name, Err: ErrCacheExists}
	}
	m.caches[name] = c
	return nil
}

// Cache returns the cache registered under name.
func (m *Manager) Cache(name string) (Cache, bool) {
	m.mu.RLock()
	c, ok := m.caches[name]
	m.mu.RUnlock()
	return c, ok
}

// Names returns the registered cache names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.caches))
	for n := range m.caches {
		names = append(names, n)
	}
	m.mu.RUnlock()
	sort.Strings(names)
	return names
}

// GetValue reads key from the named cache. Unknown caches read as absent.
func (m *Manager) GetValue(cacheName string, key any) (any, bool) {
	c, ok := m.Cache(cacheName)
	if !ok {
		return nil, false
	}
	return c.GetValue(key)
}

// AddValue writes key into the named cache. Unknown caches are ignored.
func (m *Manager) AddValue(cacheName string, key, value any) {
	if c, ok := m.Cache(cacheName); ok {
		c.AddValue(key, value)
	}
}

// RemoveKey drops key from the named cache. Unknown caches are ignored.
func (m *Manager) RemoveKey(cacheName string, key any) {
	if c, ok := m.Cache(cacheName); ok {
		c.RemoveKey(key)
	}
}

// CacheStats returns CacheStat for every registered cache keyed by name.
func (m *Manager) CacheStats() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.caches))
	for n, c := range m.caches {
		out[n] = c.CacheStat()
	}
	return out
}

// Close stops background sweeps of every cache.
func (m *Manager) Close() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.caches {
		c.Engine().Close()
	}
}

// Registry maps manager names to managers. It is filled at startup and read
// concurrently afterwards.
type Registry struct {
	mu       sync.RWMutex
	managers map[string]*Manager
}

func NewRegistry(managers ...*Manager) (*Registry, error) {
	r := &Registry{managers: make(map[string]*Manager, len(managers))}
	for _, m := range managers {
		if err := r.Add(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Add(m *Manager) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.managers[m.Name()]; dup {
		return &RegisterError{Manager: m.Name(), Err: ErrManagerExists}
	}
	r.managers[m.Name()] = m
	return nil
}

// Manager looks up a manager by name.
func (r *Registry) Manager(name string) (*Manager, bool) {
	r.mu.RLock()
	m, ok := r.managers[name]
	r.mu.RUnlock()
	return m, ok
}

// Cache resolves a cache by manager and cache name.
func (r *Registry) Cache(manager, name string) (Cache, error) {
	m, ok := r.Manager(manager)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownManager, manager)
	}
	c, ok := m.Cache(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q in manager %q", ErrUnknownCache, name, manager)
	}
	return c, nil
}

// Managers returns every registered manager sorted by name.
func (r *Registry) Managers() []*Manager {
	r.mu.RLock()
	out := make([]*Manager, 0, len(r.managers))
	for _, m := range r.managers {
		out = append(out, m)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (r *Registry) Close() {
	for _, m := range r.Managers() {
		m.Close()
	}
}
