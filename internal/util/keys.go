package util

import (
	"fmt"
	"reflect"
	"strconv"
)

// KeyString returns the canonical storage form of a cache key: strings as-is,
// numbers and bools in their strconv form, Stringers via String, anything
// else via fmt. ok is false for a nil key.
func KeyString(key any) (s string, ok bool) {
	switch k := key.(type) {
	case nil:
		return "", false
	case string:
		return k, true
	case []byte:
		return string(k), true
	case int:
		return strconv.Itoa(k), true
	case int8:
		return strconv.FormatInt(int64(k), 10), true
	case int16:
		return strconv.FormatInt(int64(k), 10), true
	case int32:
		return strconv.FormatInt(int64(k), 10), true
	case int64:
		return strconv.FormatInt(k, 10), true
	case uint:
		return strconv.FormatUint(uint64(k), 10), true
	case uint8:
		return strconv.FormatUint(uint64(k), 10), true
	case uint16:
		return strconv.FormatUint(uint64(k), 10), true
	case uint32:
		return strconv.FormatUint(uint64(k), 10), true
	case uint64:
		return strconv.FormatUint(k, 10), true
	case float32:
		return strconv.FormatFloat(float64(k), 'g', -1, 32), true
	case float64:
		return strconv.FormatFloat(k, 'g', -1, 64), true
	case bool:
		return strconv.FormatBool(k), true
	case fmt.Stringer:
		if IsNil(key) {
			return "", false
		}
		return k.String(), true
	}
	if IsNil(key) {
		return "", false
	}
	return fmt.Sprint(key), true
}

// Hashable reports whether key can be used as a Go map key without panicking.
func Hashable(key any) bool {
	if key == nil {
		return false
	}
	return reflect.ValueOf(key).Comparable()
}

// IsNil reports whether v is nil or a typed nil pointer, map, slice, func or chan.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
