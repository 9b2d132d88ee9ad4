// Package async moves metric emission off the read path. Emits are queued
// to a fixed pool of workers; when the queue is full the sample is dropped.
//
//	prom := prometheus.MustNew(reg, "app")
//	sink := async.New(prom, 1, 1000) // 1 worker; queue 1000 samples
//	defer sink.Close()
//
//	mgr := autocache.NewManager("app", autocache.WithMetrics(sink))
package async

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/autocache"
)

type sample struct {
	value  int64
	metric string
	tags   autocache.Tags
}

type Sink struct {
	inner   autocache.MetricsSink
	q       chan sample
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
}

var _ autocache.MetricsSink = (*Sink)(nil)

func New(inner autocache.MetricsSink, workers, qlen int) *Sink {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	s := &Sink{inner: inner, q: make(chan sample, qlen)}
	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer s.wg.Done()
			for e := range s.q {
				s.inner.EmitCount(e.value, e.metric, e.tags)
			}
		}()
	}
	return s
}

// Close stops accepting samples and waits for the queue to drain.
func (s *Sink) Close() {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.q)
		s.wg.Wait()
	})
}

// Dropped reports how many samples were discarded on a full or closed queue.
func (s *Sink) Dropped() uint64 { return s.dropped.Load() }

func (s *Sink) EmitCount(value int64, metric string, tags autocache.Tags) {
	if s.closed.Load() {
		s.dropped.Add(1)
		return
	}
	defer func() {
		// send on a queue closed between the check and the select
		if recover() != nil {
			s.dropped.Add(1)
		}
	}()
	select {
	case s.q <- sample{value: value, metric: metric, tags: tags}:
	default: // drop
		s.dropped.Add(1)
	}
}
