// Package codec converts cached values to and from bytes for the formatted
// accessors (GetValueAndFormat and friends).
package codec

// Codec encodes values to []byte and decodes []byte into a caller supplied
// pointer, like encoding/json.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(b []byte, out any) error
}
