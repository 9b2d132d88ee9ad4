// Package autocache implements named, bounded, in-process caches with
// expire-after-write semantics, grouped under managers and looked up by name.
// Reads never fail: anything that cannot be served is reported as absent.
//
// Components:
//   - engine.Engine: bounded LRU store with write expiry and hit/miss/eviction counters.
//   - Cache: key-type agnostic facade (canonical string keys) with formatted reads
//     through a codec.Codec (JSON, msgpack, CBOR, protobuf, zstd).
//   - Monitor: decorator reporting request/hit/miss/remove counts to a MetricsSink.
//   - Manager, Registry: name -> cache lookup, filled at startup.
//   - aside: cache-aside interceptor deriving lookup keys from call arguments.
//
// Keys:
//
//	"42"      - int 42, uint8(42) and "42" share one entry
//	"true"    - bools
//	String()  - fmt.Stringer implementations
//
// Cache-aside pattern:
//
//	ic := aside.New(reg)
//	get := aside.Wrap1(ic, aside.For("user", 0), loadUser)
//	u, err := get(ctx, 42) // loadUser runs only on a miss
package autocache
