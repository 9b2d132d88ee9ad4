package autocache

import (
	"time"

	c "github.com/unkn0wn-root/autocache/codec"
	"github.com/unkn0wn-root/autocache/engine"
)

const (
	// DefaultManager is the manager name used when a call site does not name one.
	DefaultManager = "autocache"

	DefaultMaxSize          = 100
	DefaultMaxSizeExtreme   = 5000
	DefaultExpireAfterWrite = time.Second
)

// Cache is the read/write contract shared by the base cache and every
// decorator. Keys of any type are stored under their canonical string form
// (strings as-is, numbers via strconv, Stringers via String).
//
// Reads never fail: a missing, expired or undecodable entry is reported as
// absent. Batch reads return only the keys that were found.
type Cache interface {
	Name() string
	ListenPath() string
	MaxSize() int
	ExpireAfterWrite() time.Duration
	Engine() *engine.Engine
	// CacheStat renders name, raw counters, estimated size and hit rate.
	CacheStat() string

	GetValue(key any) (any, bool)
	GetValues(keys []any) map[any]any
	// GetValueAndFormat decodes the stored value into out, which must be a
	// non-nil pointer.
	GetValueAndFormat(key any, out any) bool
	// GetValuesAndFormat decodes every found value into a fresh newOut()
	// target; keys that fail to decode are omitted.
	GetValuesAndFormat(keys []any, newOut func() any) map[any]any

	AddValue(key, value any)
	// AddValues returns the number of entries written; nil keys and nil
	// values are skipped.
	AddValues(values map[any]any) int
	// AddValueAndFormat stores value encoded with the cache codec.
	AddValueAndFormat(key, value any) error

	RemoveKey(key any)
}

// Options configure a single named cache.
// Only Name is required; others have sensible defaults.
type Options struct {
	Name             string
	ListenPath       string        // optional out-of-band invalidation signal path
	MaxSize          int           // 0 => DefaultMaxSize
	ExpireAfterWrite time.Duration // 0 => DefaultExpireAfterWrite
	SweepInterval    time.Duration // 0 => lazy expiry only
	Monitor          bool          // wrap with the manager's metrics sink, if any

	Codec  c.Codec // nil => JSON
	Logger Logger  // nil => NopLogger
}

// New builds an unmonitored cache from opts. Use NewMonitor to add metrics.
func New(opts Options) (Cache, error) {
	return newCache(opts)
}
