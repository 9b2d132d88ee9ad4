package aside

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/autocache"
)

type user struct {
	ID   int
	Name string
}

type counter struct{ n atomic.Int32 }

func (c *counter) proceed(result any, err error) Proceed {
	return func(_ context.Context, _ []any) (any, error) {
		c.n.Add(1)
		return result, err
	}
}

func (c *counter) calls() int { return int(c.n.Load()) }

func newFixture(t *testing.T, opts ...Option) (*Interceptor, autocache.Cache) {
	t.Helper()
	m := autocache.NewManager(autocache.DefaultManager)
	cc, err := m.Register(autocache.Options{Name: "user", MaxSize: 64, ExpireAfterWrite: time.Minute})
	require.NoError(t, err)
	reg, err := autocache.NewRegistry(m)
	require.NoError(t, err)
	t.Cleanup(reg.Close)
	return New(reg, opts...), cc
}

func TestDescriptorValid(t *testing.T) {
	require.True(t, For("user", 0).Valid())
	require.False(t, For("", 0).Valid())
	require.False(t, For("user", -1).Valid())
	require.False(t, Descriptor{CacheName: "user", KeyIndex: 0}.Valid())
}

func TestScalarMissThenHit(t *testing.T) {
	ic, cc := newFixture(t)
	ctx := context.Background()
	var cnt counter
	d := For("user", 0)

	v, err := ic.Around(ctx, d, []any{7}, cnt.proceed(user{ID: 7}, nil))
	require.NoError(t, err)
	require.Equal(t, user{ID: 7}, v)
	require.Equal(t, 1, cnt.calls())

	stored, ok := cc.GetValue(7)
	require.True(t, ok)
	require.Equal(t, user{ID: 7}, stored)

	v, err = ic.Around(ctx, d, []any{7}, cnt.proceed(user{ID: -1}, nil))
	require.NoError(t, err)
	require.Equal(t, user{ID: 7}, v)
	require.Equal(t, 1, cnt.calls(), "hit must not call the function")
}

func TestInvalidDescriptorPassesThrough(t *testing.T) {
	ic, cc := newFixture(t)
	ctx := context.Background()

	cases := []Descriptor{
		{CacheManager: autocache.DefaultManager, CacheName: "user", KeyIndex: -1},
		{CacheManager: autocache.DefaultManager, CacheName: "", KeyIndex: 0},
		{CacheManager: "", CacheName: "user", KeyIndex: 0},
		{CacheManager: "missing", CacheName: "user", KeyIndex: 0},
		{CacheManager: autocache.DefaultManager, CacheName: "missing", KeyIndex: 0},
		{CacheManager: autocache.DefaultManager, CacheName: "user", KeyIndex: 3},
	}
	for _, d := range cases {
		var cnt counter
		for i := 0; i < 2; i++ {
			v, err := ic.Around(ctx, d, []any{"k"}, cnt.proceed("fresh", nil))
			require.NoError(t, err)
			require.Equal(t, "fresh", v)
		}
		require.Equal(t, 2, cnt.calls(), "%+v", d)
	}
	require.Equal(t, 0, cc.Engine().Len())
}

func TestNilKeySkipsCaching(t *testing.T) {
	ic, cc := newFixture(t)
	var cnt counter
	_, err := ic.Around(context.Background(), For("user", 0), []any{nil}, cnt.proceed("v", nil))
	require.NoError(t, err)
	require.Equal(t, 1, cnt.calls())
	require.Equal(t, 0, cc.Engine().Len())
}

func TestProceedErrorPropagates(t *testing.T) {
	ic, cc := newFixture(t)
	boom := errors.New("boom")
	var cnt counter

	_, err := ic.Around(context.Background(), For("user", 0), []any{1}, cnt.proceed("partial", boom))
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, cnt.calls())
	_, ok := cc.GetValue(1)
	require.False(t, ok, "failed calls are not cached")
}

func TestDisabled(t *testing.T) {
	ic, cc := newFixture(t, WithDisabled(true))
	cc.AddValue(1, "cached")
	var cnt counter

	v, err := ic.Around(context.Background(), For("user", 0), []any{1}, cnt.proceed("fresh", nil))
	require.NoError(t, err)
	require.Equal(t, "fresh", v)
	require.True(t, ic.Disabled())

	ic.SetDisabled(false)
	v, err = ic.Around(context.Background(), For("user", 0), []any{1}, cnt.proceed("fresh", nil))
	require.NoError(t, err)
	require.Equal(t, "cached", v)
	require.Equal(t, 1, cnt.calls())
}

func TestMapKeyNeverCached(t *testing.T) {
	ic, cc := newFixture(t)
	var cnt counter
	key := map[string]int{"a": 1}
	d := For("user", 0)

	for i := 0; i < 2; i++ {
		_, err := ic.Around(context.Background(), d, []any{key}, cnt.proceed("v", nil))
		require.NoError(t, err)
	}
	require.Equal(t, 2, cnt.calls())
	require.Equal(t, 0, cc.Engine().Len())
}

func TestBatchAllOrNothing(t *testing.T) {
	ic, cc := newFixture(t)
	cc.AddValues(map[any]any{"a": 1, "b": 2})
	d := For("user", 0).AsList(nil)
	var cnt counter

	v, err := ic.Around(context.Background(), d, []any{[]string{"a", "b", "c"}}, cnt.proceed("computed", nil))
	require.NoError(t, err)
	require.Equal(t, "computed", v, "partial batch is a miss")
	require.Equal(t, 1, cnt.calls())

	_, ok := cc.GetValue("[a b c]")
	require.False(t, ok, "batch results are never written back")
	require.Equal(t, 2, cc.Engine().Len())
}

func TestBatchHitList(t *testing.T) {
	ic, cc := newFixture(t)
	cc.AddValues(map[any]any{1: user{ID: 1}, 2: user{ID: 2}})
	var cnt counter

	d := For("user", 0).AsList(reflect.TypeFor[user]())
	v, err := ic.Around(context.Background(), d, []any{[]int{2, 1, 2}}, cnt.proceed(nil, nil))
	require.NoError(t, err)
	require.Equal(t, 0, cnt.calls())
	require.Equal(t, []user{{ID: 2}, {ID: 1}}, v, "deduplicated, first-seen order")

	untyped := For("user", 0).AsList(nil)
	v, err = ic.Around(context.Background(), untyped, []any{[2]int{1, 2}}, cnt.proceed(nil, nil))
	require.NoError(t, err)
	require.Equal(t, []any{user{ID: 1}, user{ID: 2}}, v)
}

func TestBatchHitSet(t *testing.T) {
	ic, cc := newFixture(t)
	cc.AddValues(map[any]any{"a": "x", "b": "y", "c": "x"})
	var cnt counter

	d := For("user", 0).AsSet(reflect.TypeFor[string]())
	v, err := ic.Around(context.Background(), d, []any{[]string{"a", "b", "c"}}, cnt.proceed(nil, nil))
	require.NoError(t, err)
	require.Equal(t, 0, cnt.calls())
	require.Equal(t, map[string]struct{}{"x": {}, "y": {}}, v)
}

func TestBatchShapeMismatchIsMiss(t *testing.T) {
	ic, cc := newFixture(t)
	cc.AddValues(map[any]any{"a": 1, "b": []int{2}})

	cases := []Descriptor{
		For("user", 0),                                   // scalar shape
		For("user", 0).AsList(reflect.TypeFor[string]()), // wrong element type
		For("user", 0).AsSet(nil),                        // []int is not hashable
	}
	for _, d := range cases {
		var cnt counter
		v, err := ic.Around(context.Background(), d, []any{[]string{"a", "b"}}, cnt.proceed("computed", nil))
		require.NoError(t, err)
		require.Equal(t, "computed", v, "shape %s", d.Shape)
		require.Equal(t, 1, cnt.calls())
	}
}

func TestBatchEmptyCollectionHits(t *testing.T) {
	ic, _ := newFixture(t)
	var cnt counter
	v, err := ic.Around(context.Background(), For("user", 0).AsList(nil), []any{[]int{}}, cnt.proceed("computed", nil))
	require.NoError(t, err)
	require.Equal(t, []any{}, v)
	require.Equal(t, 0, cnt.calls())
}

type explodingCache struct{ autocache.Decorator }

func (explodingCache) GetValue(any) (any, bool) { panic("lookup exploded") }
func (explodingCache) AddValue(any, any)        { panic("store exploded") }

func TestFailOpenOnCacheFaults(t *testing.T) {
	m := autocache.NewManager("broken")
	base, err := autocache.New(autocache.Options{Name: "user"})
	require.NoError(t, err)
	require.NoError(t, m.Add(explodingCache{autocache.Decorator{Cache: base}}))
	reg, err := autocache.NewRegistry(m)
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	ic := New(reg)
	d := Descriptor{CacheManager: "broken", CacheName: "user", KeyIndex: 0}
	var cnt counter
	v, err := ic.Around(context.Background(), d, []any{1}, cnt.proceed("fresh", nil))
	require.NoError(t, err)
	require.Equal(t, "fresh", v)
	require.Equal(t, 1, cnt.calls())
}

func TestMonitoredCacheCountsOnlyReads(t *testing.T) {
	sink := &countSink{}
	m := autocache.NewManager(autocache.DefaultManager, autocache.WithMetrics(sink))
	_, err := m.Register(autocache.Options{Name: "user", ExpireAfterWrite: time.Minute, Monitor: true})
	require.NoError(t, err)
	reg, err := autocache.NewRegistry(m)
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	ic := New(reg)
	var cnt counter
	for i := 0; i < 3; i++ {
		_, err := ic.Around(context.Background(), For("user", 0), []any{"k"}, cnt.proceed("v", nil))
		require.NoError(t, err)
	}
	require.Equal(t, 1, cnt.calls())

	kinds := sink.kinds()
	require.Equal(t, []string{"hit", "miss", "request"}, kinds)
	require.EqualValues(t, 3, sink.total("request"))
	require.EqualValues(t, 2, sink.total("hit"))
	require.EqualValues(t, 1, sink.total("miss"))
}

type countSink struct {
	byKind map[string]int64
}

func (s *countSink) EmitCount(v int64, _ string, tags autocache.Tags) {
	if s.byKind == nil {
		s.byKind = make(map[string]int64)
	}
	s.byKind[tags.Kind] += v
}

func (s *countSink) total(kind string) int64 { return s.byKind[kind] }

func (s *countSink) kinds() []string {
	out := make([]string, 0, len(s.byKind))
	for k := range s.byKind {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
