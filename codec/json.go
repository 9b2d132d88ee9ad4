package codec

import "encoding/json"

type JSON struct{}

var _ Codec = JSON{}

func (JSON) Marshal(v any) ([]byte, error)     { return json.Marshal(v) }
func (JSON) Unmarshal(b []byte, out any) error { return json.Unmarshal(b, out) }
