// Package slog writes monitored cache counters to a *slog.Logger, sampled
// per kind so hot caches do not flood the log.
package slog

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/autocache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	RequestEvery uint64
	HitEvery     uint64
	MissEvery    uint64
	RemoveEvery  uint64
	// Level for every record. Defaults to slog.LevelDebug.
	Level slog.Level
}

type Sink struct {
	l    *slog.Logger
	opts Options

	requestCtr atomic.Uint64
	hitCtr     atomic.Uint64
	missCtr    atomic.Uint64
	removeCtr  atomic.Uint64
}

var _ autocache.MetricsSink = (*Sink)(nil)

func New(l *slog.Logger, opts Options) *Sink {
	return &Sink{l: l, opts: opts}
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (s *Sink) sampled(kind string) bool {
	switch kind {
	case autocache.KindRequest:
		return sample(s.opts.RequestEvery, &s.requestCtr)
	case autocache.KindHit:
		return sample(s.opts.HitEvery, &s.hitCtr)
	case autocache.KindMiss:
		return sample(s.opts.MissEvery, &s.missCtr)
	case autocache.KindRemove:
		return sample(s.opts.RemoveEvery, &s.removeCtr)
	}
	return true
}

func (s *Sink) EmitCount(value int64, metric string, tags autocache.Tags) {
	if s.l == nil || !s.sampled(tags.Kind) {
		return
	}
	s.l.Log(context.Background(), s.opts.Level, metric,
		"name", tags.Name,
		"kind", tags.Kind,
		"value", value)
}
