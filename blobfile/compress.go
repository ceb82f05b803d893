package blobfile

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compression identifies how a quilt is compressed before erasure coding.
type Compression uint8

const (
	CompressNone Compression = 0
	CompressZstd Compression = 1
)

// MaxPayloadSize bounds decompressed quilts.
const MaxPayloadSize = 256 << 20

// ParseCompression maps a config name to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressNone, nil
	case "zstd":
		return CompressZstd, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedCompression, name)
	}
}

func (c Compression) String() string {
	switch c {
	case CompressNone:
		return "none"
	case CompressZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// Compress compresses data using the specified scheme.
func Compress(data []byte, scheme Compression) ([]byte, error) {
	switch scheme {
	case CompressNone:
		return data, nil
	case CompressZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("blobfile: zstd writer: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, ErrUnsupportedCompression
	}
}

// Decompress reverses Compress.
func Decompress(data []byte, scheme Compression) ([]byte, error) {
	switch scheme {
	case CompressNone:
		return data, nil
	case CompressZstd:
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxPayloadSize))
		if err != nil {
			return nil, fmt.Errorf("blobfile: zstd reader: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("blobfile: zstd decode: %w", err)
		}
		return out, nil
	default:
		return nil, ErrUnsupportedCompression
	}
}
