package autocache

// Decorator forwards every Cache call to the wrapped cache. Embed it and
// override only the methods a layer cares about.
type Decorator struct {
	Cache
}

// Unwrap returns the wrapped cache.
func (d Decorator) Unwrap() Cache { return d.Cache }
