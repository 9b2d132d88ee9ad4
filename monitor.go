package autocache

import "fmt"

// MetricName is the metric every monitored cache reports under.
const MetricName = "autocache_monitor"

// Kinds reported by Monitor.
const (
	KindRequest = "request"
	KindHit     = "hit"
	KindMiss    = "miss"
	KindRemove  = "remove"
)

// Tags identify a counter series.
type Tags struct {
	Name string // cache name
	Kind string // one of the Kind* constants
}

// MetricsSink receives counter increments. Implementations should be cheap
// and non-blocking; Monitor calls them on every read.
type MetricsSink interface {
	EmitCount(value int64, metric string, tags Tags)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) EmitCount(int64, string, Tags) {}

// Monitor counts requests, hits, misses and removals of the wrapped cache.
// Writes are not counted. A failing sink never changes what a call returns.
type Monitor struct {
	Decorator
	sink MetricsSink
	log  Logger
}

var _ Cache = (*Monitor)(nil)

// NewMonitor wraps c. A nil sink disables emission; a nil logger is a NopLogger.
func NewMonitor(c Cache, sink MetricsSink, logger Logger) *Monitor {
	return &Monitor{
		Decorator: Decorator{Cache: c},
		sink:      coalesce[MetricsSink](sink, NopSink{}),
		log:       coalesce[Logger](logger, NopLogger{}),
	}
}

func (m *Monitor) GetValue(key any) (any, bool) {
	v, ok := m.Cache.GetValue(key)
	m.single(ok)
	return v, ok
}

func (m *Monitor) GetValues(keys []any) map[any]any {
	out := m.Cache.GetValues(keys)
	m.batch(len(keys), len(out))
	return out
}

func (m *Monitor) GetValueAndFormat(key any, out any) bool {
	ok := m.Cache.GetValueAndFormat(key, out)
	m.single(ok)
	return ok
}

func (m *Monitor) GetValuesAndFormat(keys []any, newOut func() any) map[any]any {
	out := m.Cache.GetValuesAndFormat(keys, newOut)
	m.batch(len(keys), len(out))
	return out
}

func (m *Monitor) RemoveKey(key any) {
	m.Cache.RemoveKey(key)
	m.log.Debug("cache key removed", Fields{"cache": m.Name(), "key": key})
	m.emit(1, KindRemove)
}

func (m *Monitor) single(hit bool) {
	h := int64(0)
	if hit {
		h = 1
	}
	m.counts(1, h)
}

func (m *Monitor) batch(requested, found int) {
	if requested == 0 {
		return
	}
	m.counts(int64(requested), int64(found))
}

func (m *Monitor) counts(request, hit int64) {
	m.emit(request, KindRequest)
	m.emit(hit, KindHit)
	m.emit(request-hit, KindMiss)
}

func (m *Monitor) emit(value int64, kind string) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("metrics sink panicked", Fields{"cache": m.Name(), "kind": kind, "panic": fmt.Sprint(r)})
		}
	}()
	m.sink.EmitCount(value, MetricName, Tags{Name: m.Name(), Kind: kind})
}
