// Package prometheus exports monitored cache counters as a Prometheus
// counter vector labelled by cache name and kind.
package prometheus

import (
	"strings"

	pc "github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/autocache"
)

// Sink is an autocache.MetricsSink backed by one CounterVec per metric name.
type Sink struct {
	counters *pc.CounterVec
}

var _ autocache.MetricsSink = (*Sink)(nil)

// New creates the counter vector and registers it with reg.
// namespace may be empty.
func New(reg pc.Registerer, namespace string) (*Sink, error) {
	cv := pc.NewCounterVec(pc.CounterOpts{
		Namespace: namespace,
		Name:      autocache.MetricName + "_total",
		Help:      "Local cache requests, hits, misses and removals per cache.",
	}, []string{"name", "kind"})

	if err := reg.Register(cv); err != nil {
		return nil, err
	}
	return &Sink{counters: cv}, nil
}

// MustNew is like New but panics when registration fails.
func MustNew(reg pc.Registerer, namespace string) *Sink {
	s, err := New(reg, namespace)
	if err != nil {
		panic(err)
	}
	return s
}

// EmitCount adds value to the series for tags. Negative values are dropped
// since counters cannot go down. metric is ignored: every kind shares the
// one vector.
func (s *Sink) EmitCount(value int64, _ string, tags autocache.Tags) {
	if value < 0 {
		return
	}
	s.counters.WithLabelValues(tags.Name, strings.ToLower(tags.Kind)).Add(float64(value))
}

// Counter exposes the vector, e.g. for tests or custom collectors.
func (s *Sink) Counter() *pc.CounterVec { return s.counters }
