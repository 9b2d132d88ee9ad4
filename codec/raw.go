package codec

import "fmt"

// Raw passes byte and string payloads through unchanged. Unmarshal accepts
// *[]byte or *string. Useful when the cached values are already encoded.
type Raw struct{}

var _ Codec = Raw{}

func (Raw) Marshal(v any) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	}
	return nil, fmt.Errorf("raw codec: unsupported value %T", v)
}

func (Raw) Unmarshal(b []byte, out any) error {
	switch t := out.(type) {
	case *[]byte:
		*t = append((*t)[:0], b...)
	case *string:
		*t = string(b)
	default:
		return fmt.Errorf("raw codec: unsupported target %T", out)
	}
	return nil
}
