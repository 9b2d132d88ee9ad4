package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Protobuf handles proto.Message values only. Unmarshal expects out to be a
// non-nil message, e.g. &mypb.User{}.
type Protobuf struct {
	MarshalOpts   proto.MarshalOptions
	UnmarshalOpts proto.UnmarshalOptions
}

var _ Codec = Protobuf{}

func (c Protobuf) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("protobuf codec: %T is not a proto.Message", v)
	}
	return c.MarshalOpts.Marshal(m)
}

func (c Protobuf) Unmarshal(b []byte, out any) error {
	m, ok := out.(proto.Message)
	if !ok {
		return fmt.Errorf("protobuf codec: %T is not a proto.Message", out)
	}
	return c.UnmarshalOpts.Unmarshal(b, m)
}
