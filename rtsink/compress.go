package rtsink

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// compression selects the stream wrapper of a table file.
type compression uint8

const (
	compressNone compression = iota

	// zstd at the default level. Sample tables are repetitive text and
	// shrink well.
	compressZstd

	// lz4 frames for long runs where write speed matters more than size.
	compressLZ4
)

func (c compression) String() string {
	switch c {
	case compressNone:
		return "none"
	case compressZstd:
		return "zstd"
	case compressLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// wrap returns a writer that compresses into w. Closing it flushes the
// compressor but leaves w open.
func (c compression) wrap(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case compressNone:
		return nopCloser{w}, nil
	case compressZstd:
		encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		return encoder, nil
	case compressLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported compression: %s", c)
	}
}

// decompress is the inverse of wrap, used to read tables back.
func (c compression) decompress(r io.Reader) (io.Reader, func(), error) {
	switch c {
	case compressNone:
		return r, func() {}, nil
	case compressZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd decoder: %w", err)
		}
		return decoder, decoder.Close, nil
	case compressLZ4:
		return lz4.NewReader(r), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported compression: %s", c)
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
