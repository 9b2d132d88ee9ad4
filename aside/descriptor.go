// Package aside implements read-through caching of function results.
//
// A Descriptor names the cache a call site reads from and which argument
// holds the key. Interceptor.Around then runs the cache-aside protocol:
//
//	resolve descriptor -> look up key -> hit: return cached value
//	                                  -> miss: call the function, store its result
//
// When the key argument is a slice or array, every distinct element is looked
// up and the call is a hit only if all of them are cached; the cached values
// are returned as a list or set according to Descriptor.Shape. Results of
// batch calls are never written back. Map keys are never cached.
//
// Caching is fail-open: a fault anywhere in lookup or store costs at most an
// extra call of the function. Errors returned by the function itself are
// passed through untouched.
package aside

import (
	"reflect"

	"github.com/unkn0wn-root/autocache"
)

// Shape is the container a batch hit is returned in.
type Shape int

const (
	// Scalar results cannot be assembled from several cached values; a batch
	// lookup against a Scalar descriptor is always a miss.
	Scalar Shape = iota
	// List returns the values in first-seen key order.
	List
	// Set returns the values as map[T]struct{}.
	Set
)

func (s Shape) String() string {
	switch s {
	case List:
		return "list"
	case Set:
		return "set"
	default:
		return "scalar"
	}
}

// Descriptor is the per call site caching declaration.
type Descriptor struct {
	CacheManager string
	CacheName    string
	// KeyIndex is the position of the key in the call arguments; -1 disables caching.
	KeyIndex int
	Shape    Shape
	// Elem is the element type of List and Set results. Nil means any.
	Elem reflect.Type
}

// For returns a descriptor on the default manager.
func For(cacheName string, keyIndex int) Descriptor {
	return Descriptor{
		CacheManager: autocache.DefaultManager,
		CacheName:    cacheName,
		KeyIndex:     keyIndex,
	}
}

// Valid reports whether the descriptor enables caching.
func (d Descriptor) Valid() bool {
	return d.CacheManager != "" && d.CacheName != "" && d.KeyIndex >= 0
}

// AsList returns a copy of d that assembles batch hits as []elem.
func (d Descriptor) AsList(elem reflect.Type) Descriptor {
	d.Shape, d.Elem = List, elem
	return d
}

// AsSet returns a copy of d that assembles batch hits as map[elem]struct{}.
func (d Descriptor) AsSet(elem reflect.Type) Descriptor {
	d.Shape, d.Elem = Set, elem
	return d
}

var (
	anyType   = reflect.TypeOf((*any)(nil)).Elem()
	emptyType = reflect.TypeOf(struct{}{})
	bytesType = reflect.TypeOf([]byte(nil))
)

// inferResult fills Shape and Elem from the declared result type when the
// descriptor does not set them.
func (d Descriptor) inferResult(r reflect.Type) Descriptor {
	if r == nil {
		return d
	}
	switch {
	case r.Kind() == reflect.Slice && r != bytesType:
		if d.Shape == Scalar {
			d.Shape = List
		}
		if d.Shape == List && d.Elem == nil {
			d.Elem = r.Elem()
		}
	case r.Kind() == reflect.Map && r.Elem() == emptyType:
		if d.Shape == Scalar {
			d.Shape = Set
		}
		if d.Shape == Set && d.Elem == nil {
			d.Elem = r.Key()
		}
	}
	return d
}

// assemble builds the batch result for shape from values. ok is false when
// the shape cannot hold the values.
func assemble(shape Shape, elem reflect.Type, values []any) (any, bool) {
	if elem == nil {
		elem = anyType
	}
	switch shape {
	case List:
		if elem == anyType {
			return values, true
		}
		out := reflect.MakeSlice(reflect.SliceOf(elem), 0, len(values))
		for _, v := range values {
			rv, ok := assignable(v, elem)
			if !ok {
				return nil, false
			}
			out = reflect.Append(out, rv)
		}
		return out.Interface(), true
	case Set:
		if !elem.Comparable() {
			return nil, false
		}
		out := reflect.MakeMapWithSize(reflect.MapOf(elem, emptyType), len(values))
		present := reflect.ValueOf(struct{}{})
		for _, v := range values {
			rv, ok := assignable(v, elem)
			if !ok || !rv.Comparable() {
				return nil, false
			}
			out.SetMapIndex(rv, present)
		}
		return out.Interface(), true
	}
	return nil, false
}

func assignable(v any, t reflect.Type) (reflect.Value, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || !rv.Type().AssignableTo(t) {
		return reflect.Value{}, false
	}
	return rv, true
}
