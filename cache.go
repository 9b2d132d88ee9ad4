package autocache

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	c "github.com/unkn0wn-root/autocache/codec"
	"github.com/unkn0wn-root/autocache/engine"
	"github.com/unkn0wn-root/autocache/internal/util"
)

const statFormat = "cacheName:(%s), stat:(%s), estimatedSize:(%d), hitRate:(%.2f%%)"

var errBadTarget = errors.New("autocache: format target must be a non-nil pointer")

// encoded marks a payload written by AddValueAndFormat. Formatted reads always
// decode it; plain reads see it as []byte.
type encoded []byte

type cache struct {
	eng   *engine.Engine
	codec c.Codec
	log   Logger
}

var _ Cache = (*cache)(nil)

func newCache(opts Options) (*cache, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("autocache: cache name is required")
	}

	eopts := []engine.Option{engine.WithListenPath(opts.ListenPath)}
	if opts.SweepInterval > 0 {
		eopts = append(eopts, engine.WithSweepInterval(opts.SweepInterval))
	}
	eng, err := engine.New(
		opts.Name,
		coalesce(opts.MaxSize, DefaultMaxSize),
		coalesce(opts.ExpireAfterWrite, DefaultExpireAfterWrite),
		eopts...,
	)
	if err != nil {
		return nil, fmt.Errorf("autocache: cache %q: %w", opts.Name, err)
	}

	return &cache{
		eng:   eng,
		codec: coalesce[c.Codec](opts.Codec, c.JSON{}),
		log:   coalesce[Logger](opts.Logger, NopLogger{}),
	}, nil
}

func (c *cache) Name() string                    { return c.eng.Name() }
func (c *cache) ListenPath() string              { return c.eng.ListenPath() }
func (c *cache) MaxSize() int                    { return c.eng.MaxSize() }
func (c *cache) ExpireAfterWrite() time.Duration { return c.eng.ExpireAfterWrite() }
func (c *cache) Engine() *engine.Engine          { return c.eng }

func (c *cache) CacheStat() string {
	s := c.eng.Stats()
	return fmt.Sprintf(statFormat, c.Name(), s, s.EstimatedSize, s.HitRate()*100)
}

func (c *cache) GetValue(key any) (any, bool) {
	v, ok := c.get(key)
	if enc, isEnc := v.(encoded); isEnc {
		return []byte(enc), ok
	}
	return v, ok
}

func (c *cache) get(key any) (any, bool) {
	k, ok := util.KeyString(key)
	if !ok {
		return nil, false
	}
	return c.eng.Get(k)
}

func (c *cache) GetValues(keys []any) map[any]any {
	out := make(map[any]any, len(keys))
	for _, key := range keys {
		if !util.Hashable(key) {
			continue
		}
		if v, ok := c.GetValue(key); ok {
			out[key] = v
		}
	}
	return out
}

func (c *cache) GetValueAndFormat(key any, out any) bool {
	raw, ok := c.get(key)
	if !ok {
		return false
	}
	if err := c.format(raw, out); err != nil {
		c.log.Warn("format cached value failed", Fields{"cache": c.Name(), "key": key, "type": fmt.Sprintf("%T", out), "err": err})
		return false
	}
	return true
}

func (c *cache) GetValuesAndFormat(keys []any, newOut func() any) map[any]any {
	out := make(map[any]any, len(keys))
	if newOut == nil {
		return out
	}
	for _, key := range keys {
		if !util.Hashable(key) {
			continue
		}
		raw, ok := c.get(key)
		if !ok {
			continue
		}
		target := newOut()
		if err := c.format(raw, target); err != nil {
			c.log.Warn("format cached value failed", Fields{"cache": c.Name(), "key": key, "type": fmt.Sprintf("%T", target), "err": err})
			continue
		}
		out[key] = target
	}
	return out
}

func (c *cache) AddValue(key, value any) {
	if util.IsNil(value) {
		return
	}
	k, ok := util.KeyString(key)
	if !ok {
		return
	}
	c.eng.Put(k, value)
}

func (c *cache) AddValues(values map[any]any) int {
	n := 0
	for key, value := range values {
		if util.IsNil(value) {
			continue
		}
		k, ok := util.KeyString(key)
		if !ok {
			continue
		}
		c.eng.Put(k, value)
		n++
	}
	return n
}

func (c *cache) AddValueAndFormat(key, value any) error {
	if util.IsNil(value) {
		return nil
	}
	k, ok := util.KeyString(key)
	if !ok {
		return nil
	}
	b, err := c.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("autocache: encode %q in %s: %w", k, c.Name(), err)
	}
	c.eng.Put(k, encoded(b))
	return nil
}

func (c *cache) RemoveKey(key any) {
	k, ok := util.KeyString(key)
	if !ok {
		return
	}
	c.eng.Remove(k)
}

// format decodes payloads written by AddValueAndFormat, copies raw into out
// when the types line up, decodes []byte and string payloads directly, and
// otherwise converts through the codec (encode then decode).
func (c *cache) format(raw, out any) error {
	dst := reflect.ValueOf(out)
	if dst.Kind() != reflect.Pointer || dst.IsNil() {
		return errBadTarget
	}
	if enc, ok := raw.(encoded); ok {
		return c.codec.Unmarshal(enc, out)
	}
	elem := dst.Elem()
	if rv := reflect.ValueOf(raw); rv.IsValid() && rv.Type().AssignableTo(elem.Type()) {
		elem.Set(rv)
		return nil
	}

	var payload []byte
	switch v := raw.(type) {
	case []byte:
		payload = v
	case string:
		payload = []byte(v)
	default:
		b, err := c.codec.Marshal(v)
		if err != nil {
			return err
		}
		payload = b
	}
	return c.codec.Unmarshal(payload, out)
}
