package autocache

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	c "github.com/unkn0wn-root/autocache/codec"
)

type user struct {
	ID   string `json:"id" msgpack:"id"`
	Name string `json:"name" msgpack:"name"`
}

type recLogger struct {
	NopLogger
	warns []string
}

func (l *recLogger) Warn(msg string, _ Fields) { l.warns = append(l.warns, msg) }

func newTestCache(t *testing.T, optsOpt func(*Options)) Cache {
	t.Helper()
	opts := Options{Name: "user", MaxSize: 16, ExpireAfterWrite: time.Minute}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	cc, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(cc.Engine().Close)
	return cc
}

func TestNewDefaults(t *testing.T) {
	cc, err := New(Options{Name: "d", ListenPath: "/tmp/d.signal"})
	require.NoError(t, err)
	require.Equal(t, "d", cc.Name())
	require.Equal(t, "/tmp/d.signal", cc.ListenPath())
	require.Equal(t, DefaultMaxSize, cc.MaxSize())
	require.Equal(t, DefaultExpireAfterWrite, cc.ExpireAfterWrite())

	_, err = New(Options{})
	require.Error(t, err)
	_, err = New(Options{Name: "neg", MaxSize: -1})
	require.Error(t, err)
}

func TestGetValueUsesCanonicalKey(t *testing.T) {
	cc := newTestCache(t, nil)

	cc.AddValue(42, "answer")
	v, ok := cc.GetValue("42")
	require.True(t, ok)
	require.Equal(t, "answer", v)

	v, ok = cc.GetValue(int64(42))
	require.True(t, ok)
	require.Equal(t, "answer", v)

	_, ok = cc.GetValue("nonexistent")
	require.False(t, ok)
	_, ok = cc.GetValue(nil)
	require.False(t, ok)
}

func TestAddValueSkipsNil(t *testing.T) {
	cc := newTestCache(t, nil)

	cc.AddValue(nil, "x")
	cc.AddValue("k", nil)
	var p *user
	cc.AddValue("typed-nil", p)
	require.Equal(t, 0, cc.Engine().Len())
}

func TestAddValuesCountsWritten(t *testing.T) {
	cc := newTestCache(t, nil)

	n := cc.AddValues(map[any]any{"a": 1, "b": nil})
	require.Equal(t, 1, n)

	n = cc.AddValues(map[any]any{"c": 3, 4: "four", nil: "skip"})
	require.Equal(t, 2, n)
	require.Equal(t, 0, cc.AddValues(nil))
}

func TestGetValuesPartial(t *testing.T) {
	cc := newTestCache(t, nil)
	cc.AddValues(map[any]any{"a": 1, "b": 2})

	got := cc.GetValues([]any{"a", "b", "c", []int{1}})
	require.Equal(t, map[any]any{"a": 1, "b": 2}, got)

	typed := ValuesOf(cc, []string{"a", "z"})
	require.Equal(t, map[string]any{"a": 1}, typed)
}

func TestRemoveKey(t *testing.T) {
	cc := newTestCache(t, nil)
	cc.AddValue("a", 1)
	cc.RemoveKey("a")
	cc.RemoveKey("missing")
	cc.RemoveKey(nil)
	_, ok := cc.GetValue("a")
	require.False(t, ok)
}

func TestGetValueAndFormat(t *testing.T) {
	cc := newTestCache(t, nil)

	// same type: copied as-is
	cc.AddValue("u1", user{ID: "1", Name: "Ada"})
	var u user
	require.True(t, cc.GetValueAndFormat("u1", &u))
	require.Equal(t, user{ID: "1", Name: "Ada"}, u)

	// encoded payload: decoded with the codec
	cc.AddValue("u2", `{"id":"2","name":"Grace"}`)
	u = user{}
	require.True(t, cc.GetValueAndFormat("u2", &u))
	require.Equal(t, "Grace", u.Name)

	// different type: converted through the codec
	cc.AddValue("u3", map[string]string{"id": "3", "name": "Linus"})
	got, ok := ValueAs[user](cc, "u3")
	require.True(t, ok)
	require.Equal(t, user{ID: "3", Name: "Linus"}, got)

	_, ok = ValueAs[user](cc, "missing")
	require.False(t, ok)
}

func TestGetValueAndFormatFailureIsAbsent(t *testing.T) {
	log := &recLogger{}
	cc := newTestCache(t, func(o *Options) { o.Logger = log })

	cc.AddValue("bad", "not json")
	var u user
	require.False(t, cc.GetValueAndFormat("bad", &u))
	require.False(t, cc.GetValueAndFormat("bad", nil))
	require.False(t, cc.GetValueAndFormat("bad", u))
	require.Len(t, log.warns, 3)
}

func TestGetValuesAndFormatOmitsFailures(t *testing.T) {
	cc := newTestCache(t, nil)
	cc.AddValue("1", `{"id":"1","name":"a"}`)
	cc.AddValue("2", "garbage")
	cc.AddValue("3", user{ID: "3", Name: "c"})

	got := ValuesAs[string, user](cc, []string{"1", "2", "3", "4"})
	require.Equal(t, map[string]user{
		"1": {ID: "1", Name: "a"},
		"3": {ID: "3", Name: "c"},
	}, got)

	require.Empty(t, cc.GetValuesAndFormat([]any{"1"}, nil))
}

func TestAddValueAndFormatRoundTrip(t *testing.T) {
	cc := newTestCache(t, func(o *Options) { o.Codec = c.Msgpack{} })

	require.NoError(t, cc.AddValueAndFormat("u", user{ID: "9", Name: "Ken"}))
	raw, ok := cc.GetValue("u")
	require.True(t, ok)
	require.IsType(t, []byte(nil), raw)

	got, ok := ValueAs[user](cc, "u")
	require.True(t, ok)
	require.Equal(t, user{ID: "9", Name: "Ken"}, got)

	require.NoError(t, cc.AddValueAndFormat("nil", nil))

	jc := newTestCache(t, nil)
	require.Error(t, jc.AddValueAndFormat("f", func() {}))
}

func TestAddValueAndFormatBytesAndAny(t *testing.T) {
	for name, cd := range map[string]c.Codec{"json": c.JSON{}, "msgpack": c.Msgpack{}} {
		t.Run(name, func(t *testing.T) {
			cc := newTestCache(t, func(o *Options) { o.Codec = cd })

			require.NoError(t, cc.AddValueAndFormat("b", []byte("hi")))
			var b []byte
			require.True(t, cc.GetValueAndFormat("b", &b))
			require.Equal(t, []byte("hi"), b)

			require.NoError(t, cc.AddValueAndFormat("s", "hello"))
			var a any
			require.True(t, cc.GetValueAndFormat("s", &a))
			require.Equal(t, "hello", a)

			got := cc.GetValuesAndFormat([]any{"b", "missing"}, func() any { return new([]byte) })
			require.Len(t, got, 1)
			require.Equal(t, []byte("hi"), *got["b"].(*[]byte))
		})
	}
}

func TestAddValueAndFormatIntoAny(t *testing.T) {
	cc := newTestCache(t, nil)
	require.NoError(t, cc.AddValueAndFormat("u", user{ID: "7", Name: "Ann"}))

	var a any
	require.True(t, cc.GetValueAndFormat("u", &a))
	require.Equal(t, map[string]any{"id": "7", "name": "Ann"}, a)

	raw, ok := cc.GetValue("u")
	require.True(t, ok)
	require.Equal(t, []byte(`{"id":"7","name":"Ann"}`), raw)
}

func TestCacheStat(t *testing.T) {
	cc := newTestCache(t, nil)
	require.Equal(t,
		"cacheName:(user), stat:(Stats{requestCount=0, hitCount=0, missCount=0, evictionCount=0}), estimatedSize:(0), hitRate:(0.00%)",
		cc.CacheStat())

	cc.AddValue("a", 1)
	for i := 0; i < 2; i++ {
		_, _ = cc.GetValue("a")
	}
	_, _ = cc.GetValue("b")

	stat := cc.CacheStat()
	require.True(t, strings.HasSuffix(stat, "hitRate:(66.67%)"), stat)
	require.Contains(t, stat, "requestCount=3")
	require.Contains(t, stat, "estimatedSize:(1)")
}

func TestStatsIntegrity(t *testing.T) {
	cc := newTestCache(t, nil)
	for i := 0; i < 10; i += 2 {
		cc.AddValue(i, i)
	}
	const lookups = 20
	hits := 0
	for i := 0; i < lookups; i++ {
		if _, ok := cc.GetValue(i % 10); ok {
			hits++
		}
	}
	s := cc.Engine().Stats()
	require.EqualValues(t, lookups, s.RequestCount)
	require.EqualValues(t, hits, s.HitCount)
	require.Contains(t, cc.CacheStat(), fmt.Sprintf("hitRate:(%.2f%%)", float64(hits)/lookups*100))
}

func TestMaxSizeScenario(t *testing.T) {
	cc := newTestCache(t, func(o *Options) { o.MaxSize = 2; o.ExpireAfterWrite = 60 * time.Second })

	cc.AddValue("x", 1)
	cc.AddValue("y", 2)
	cc.AddValue("z", 3)

	_, okX := cc.GetValue("x")
	_, okY := cc.GetValue("y")
	_, okZ := cc.GetValue("z")
	require.True(t, okZ)
	require.True(t, okX != okY)
	require.Equal(t, 2, cc.Engine().Len())
}
