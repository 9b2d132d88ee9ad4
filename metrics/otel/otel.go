// Package otel reports monitored cache counters through an OpenTelemetry
// Int64Counter with cache.name and cache.kind attributes.
package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/unkn0wn-root/autocache"
)

const instrumentationName = "github.com/unkn0wn-root/autocache"

type Sink struct {
	counter metric.Int64Counter
}

var _ autocache.MetricsSink = (*Sink)(nil)

type Option func(*config)

type config struct {
	provider metric.MeterProvider
}

// WithMeterProvider sets the MeterProvider. Defaults to otel.GetMeterProvider().
func WithMeterProvider(p metric.MeterProvider) Option {
	return func(c *config) { c.provider = p }
}

func New(opts ...Option) (*Sink, error) {
	cfg := &config{provider: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(cfg)
	}
	meter := cfg.provider.Meter(instrumentationName)
	counter, err := meter.Int64Counter(
		"autocache.monitor",
		metric.WithDescription("Local cache requests, hits, misses and removals per cache"),
	)
	if err != nil {
		return nil, err
	}
	return &Sink{counter: counter}, nil
}

func (s *Sink) EmitCount(value int64, metricName string, tags autocache.Tags) {
	if value < 0 {
		return
	}
	s.counter.Add(context.Background(), value, metric.WithAttributes(
		attribute.String("metric", metricName),
		attribute.String("cache.name", tags.Name),
		attribute.String("cache.kind", tags.Kind),
	))
}
