package engine

import (
	"fmt"
	"sync/atomic"
)

// Stats is a point-in-time view of an engine's counters. All counters are
// monotonic since the engine was created except EstimatedSize.
type Stats struct {
	RequestCount  int64
	HitCount      int64
	MissCount     int64
	EvictionCount int64
	EstimatedSize int64
}

// HitRate is HitCount / RequestCount, or 0 before the first request.
func (s Stats) HitRate() float64 {
	if s.RequestCount == 0 {
		return 0
	}
	return float64(s.HitCount) / float64(s.RequestCount)
}

func (s Stats) String() string {
	return fmt.Sprintf("Stats{requestCount=%d, hitCount=%d, missCount=%d, evictionCount=%d}",
		s.RequestCount, s.HitCount, s.MissCount, s.EvictionCount)
}

type counters struct {
	requests  atomic.Int64
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	size      atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		RequestCount:  c.requests.Load(),
		HitCount:      c.hits.Load(),
		MissCount:     c.misses.Load(),
		EvictionCount: c.evictions.Load(),
		EstimatedSize: c.size.Load(),
	}
}
