package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Zstd compresses the output of Inner. Useful for large formatted values
// kept in a size-bounded cache. Construct with NewZstd; the encoder and
// decoder are safe for concurrent use via EncodeAll/DecodeAll.
type Zstd struct {
	Inner Codec
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

var _ Codec = (*Zstd)(nil)

// NewZstd wraps inner. level follows zstd's numeric levels (1 fastest .. 22).
func NewZstd(inner Codec, level int) (*Zstd, error) {
	if inner == nil {
		return nil, fmt.Errorf("zstd codec: inner codec is required")
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("zstd codec: encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("zstd codec: decoder: %w", err)
	}
	return &Zstd{Inner: inner, enc: enc, dec: dec}, nil
}

func (c *Zstd) Marshal(v any) ([]byte, error) {
	b, err := c.Inner.Marshal(v)
	if err != nil {
		return nil, err
	}
	return c.enc.EncodeAll(b, make([]byte, 0, len(b))), nil
}

func (c *Zstd) Unmarshal(b []byte, out any) error {
	plain, err := c.dec.DecodeAll(b, nil)
	if err != nil {
		return fmt.Errorf("zstd codec: %w", err)
	}
	return c.Inner.Unmarshal(plain, out)
}

// Close releases the decoder's goroutines.
func (c *Zstd) Close() {
	c.dec.Close()
	_ = c.enc.Close()
}
