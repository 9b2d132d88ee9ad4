package aside

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/unkn0wn-root/autocache"
	"github.com/unkn0wn-root/autocache/internal/util"
)

// Proceed runs the wrapped computation with the call arguments.
type Proceed func(ctx context.Context, args []any) (any, error)

type keyKind int

const (
	keyScalar keyKind = iota
	keyCollection
	keyMap
)

// call is a resolved caching attempt.
type call struct {
	d     Descriptor
	cache autocache.Cache
	key   any
	kind  keyKind
}

// Interceptor applies descriptors against a registry. It is safe for
// concurrent use.
type Interceptor struct {
	reg      *autocache.Registry
	log      autocache.Logger
	disabled atomic.Bool
}

type Option func(*Interceptor)

func WithLogger(l autocache.Logger) Option {
	return func(ic *Interceptor) {
		if l != nil {
			ic.log = l
		}
	}
}

// WithDisabled starts the interceptor with caching switched off.
func WithDisabled(disabled bool) Option {
	return func(ic *Interceptor) { ic.disabled.Store(disabled) }
}

func New(reg *autocache.Registry, opts ...Option) *Interceptor {
	ic := &Interceptor{reg: reg, log: autocache.NopLogger{}}
	for _, opt := range opts {
		opt(ic)
	}
	return ic
}

// SetDisabled switches caching off (every call passes through) or back on.
func (ic *Interceptor) SetDisabled(disabled bool) { ic.disabled.Store(disabled) }

func (ic *Interceptor) Disabled() bool { return ic.disabled.Load() }

// Around serves the call from the cache when possible and otherwise runs
// proceed exactly once, storing its result for scalar keys.
func (ic *Interceptor) Around(ctx context.Context, d Descriptor, args []any, proceed Proceed) (any, error) {
	c := ic.resolve(d, args)
	if c != nil {
		if v, ok := ic.lookup(c); ok {
			ic.log.Debug("served from cache", autocache.Fields{"cache": d.CacheName, "key": c.key})
			return v, nil
		}
	}

	result, err := proceed(ctx, args)
	if err != nil {
		return result, err
	}
	if c != nil {
		ic.populate(c, result)
	}
	return result, nil
}

func (ic *Interceptor) resolve(d Descriptor, args []any) (c *call) {
	if ic.Disabled() || !d.Valid() || ic.reg == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			ic.log.Error("cache resolve panicked", autocache.Fields{"cache": d.CacheName, "panic": fmt.Sprint(r)})
			c = nil
		}
	}()

	cache, err := ic.reg.Cache(d.CacheManager, d.CacheName)
	if err != nil {
		ic.log.Warn("cache lookup skipped", autocache.Fields{"manager": d.CacheManager, "cache": d.CacheName, "err": err})
		return nil
	}
	if d.KeyIndex >= len(args) {
		return nil
	}
	key := args[d.KeyIndex]
	if key == nil {
		return nil
	}
	return &call{d: d, cache: cache, key: key, kind: kindOf(key)}
}

func kindOf(key any) keyKind {
	t := reflect.TypeOf(key)
	switch t.Kind() {
	case reflect.Slice:
		if t == bytesType {
			return keyScalar
		}
		return keyCollection
	case reflect.Array:
		return keyCollection
	case reflect.Map:
		return keyMap
	}
	return keyScalar
}

func (ic *Interceptor) lookup(c *call) (v any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ic.log.Error("cache lookup panicked", autocache.Fields{"cache": c.d.CacheName, "key": c.key, "panic": fmt.Sprint(r)})
			v, ok = nil, false
		}
	}()

	switch c.kind {
	case keyScalar:
		return c.cache.GetValue(c.key)
	case keyCollection:
		return ic.lookupBatch(c)
	}
	return nil, false
}

// lookupBatch is all-or-nothing: one missing key makes the whole batch a miss.
func (ic *Interceptor) lookupBatch(c *call) (any, bool) {
	if c.d.Shape != List && c.d.Shape != Set {
		return nil, false
	}
	keys := reflect.ValueOf(c.key)
	n := keys.Len()
	seen := make(map[string]struct{}, n)
	values := make([]any, 0, n)
	for i := 0; i < n; i++ {
		k := keys.Index(i).Interface()
		ks, ok := util.KeyString(k)
		if !ok {
			return nil, false
		}
		if _, dup := seen[ks]; dup {
			continue
		}
		seen[ks] = struct{}{}

		v, ok := c.cache.GetValue(k)
		if !ok {
			return nil, false
		}
		values = append(values, v)
	}

	out, ok := assemble(c.d.Shape, c.d.Elem, values)
	if !ok {
		ic.log.Warn("batch result shape mismatch", autocache.Fields{"cache": c.d.CacheName, "shape": c.d.Shape.String(), "size": n})
		return nil, false
	}
	ic.log.Debug("batch served from cache", autocache.Fields{"cache": c.d.CacheName, "size": n})
	return out, true
}

func (ic *Interceptor) populate(c *call, result any) {
	if c.kind != keyScalar {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			ic.log.Error("cache populate panicked", autocache.Fields{"cache": c.d.CacheName, "key": c.key, "panic": fmt.Sprint(r)})
		}
	}()
	c.cache.AddValue(c.key, result)
}
