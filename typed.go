package autocache

// ValueAs reads key from c and formats it as T.
func ValueAs[T any](c Cache, key any) (T, bool) {
	var v T
	if !c.GetValueAndFormat(key, &v) {
		var zero T
		return zero, false
	}
	return v, true
}

// ValuesOf is GetValues with typed keys.
func ValuesOf[K comparable](c Cache, keys []K) map[K]any {
	found := c.GetValues(anyKeys(keys))
	out := make(map[K]any, len(found))
	for k, v := range found {
		if kk, ok := k.(K); ok {
			out[kk] = v
		}
	}
	return out
}

// ValuesAs is GetValuesAndFormat with typed keys and values.
func ValuesAs[K comparable, T any](c Cache, keys []K) map[K]T {
	found := c.GetValuesAndFormat(anyKeys(keys), func() any { return new(T) })
	out := make(map[K]T, len(found))
	for k, v := range found {
		kk, ok := k.(K)
		if !ok {
			continue
		}
		if p, ok := v.(*T); ok {
			out[kk] = *p
		}
	}
	return out
}

func anyKeys[K comparable](keys []K) []any {
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}
