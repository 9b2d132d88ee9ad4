package aside

import (
	"context"
	"reflect"

	"github.com/unkn0wn-root/autocache"
)

// Wrap1 returns fn with read-through caching applied according to d.
// When d leaves Shape unset, slice results are assembled as List and
// map[T]struct{} results as Set.
//
//	getUser := aside.Wrap1(ic, aside.For("user", 0), repo.GetUser)
//	u, err := getUser(ctx, 42)
func Wrap1[A, R any](ic *Interceptor, d Descriptor, fn func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	d = d.inferResult(reflect.TypeFor[R]())
	return func(ctx context.Context, a A) (R, error) {
		return invoke(ctx, ic, d, []any{a}, func(ctx context.Context) (R, error) { return fn(ctx, a) })
	}
}

// Wrap2 is Wrap1 for two-argument functions; d.KeyIndex selects 0 or 1.
func Wrap2[A, B, R any](ic *Interceptor, d Descriptor, fn func(context.Context, A, B) (R, error)) func(context.Context, A, B) (R, error) {
	d = d.inferResult(reflect.TypeFor[R]())
	return func(ctx context.Context, a A, b B) (R, error) {
		return invoke(ctx, ic, d, []any{a, b}, func(ctx context.Context) (R, error) { return fn(ctx, a, b) })
	}
}

func invoke[R any](ctx context.Context, ic *Interceptor, d Descriptor, args []any, fn func(context.Context) (R, error)) (R, error) {
	var (
		res    R
		called bool
	)
	v, err := ic.Around(ctx, d, args, func(ctx context.Context, _ []any) (any, error) {
		called = true
		var ferr error
		res, ferr = fn(ctx)
		return res, ferr
	})
	if called {
		return res, err
	}
	if r, ok := as[R](v); ok {
		return r, nil
	}
	// a cached value of the wrong type is a miss
	ic.log.Warn("cached value has unexpected type", autocache.Fields{"cache": d.CacheName, "want": reflect.TypeFor[R]().String()})
	return fn(ctx)
}

func as[R any](v any) (R, bool) {
	if r, ok := v.(R); ok {
		return r, true
	}
	var zero R
	rv := reflect.ValueOf(v)
	rt := reflect.TypeFor[R]()
	if !rv.IsValid() || !rv.Type().ConvertibleTo(rt) || rv.Kind() != rt.Kind() {
		return zero, false
	}
	return rv.Convert(rt).Interface().(R), true
}
