package persistence

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/vecache/vectorstore"
)

// ErrUnknownCompression is returned for an unrecognized compression name or value.
var ErrUnknownCompression = errors.New("unknown compression")

// Compression selects the stream compression wrapped around an encoded
// buffer. The encoded bytes inside the stream are the plain layout.
type Compression uint8

const (
	// CompressionNone writes the plain layout.
	CompressionNone Compression = iota
	// CompressionLZ4 uses the LZ4 frame format (fast, moderate ratio).
	CompressionLZ4
	// CompressionZstd uses Zstandard (slower, better ratio).
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}

// Extension returns the file name suffix for c, including the dot.
func (c Compression) Extension() string {
	switch c {
	case CompressionLZ4:
		return ".lz4"
	case CompressionZstd:
		return ".zst"
	default:
		return ""
	}
}

// ParseCompression parses "none", "lz4" or "zstd" (case-insensitive).
// The empty string means none.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd", "zst":
		return CompressionZstd, nil
	default:
		return CompressionNone, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

// NewWriter wraps w. Close must be called to flush the stream; it does not
// close w.
func (c Compression) NewWriter(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		return enc, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}
}

// NewReader wraps r. Close releases decoder resources; it does not close r.
func (c Compression) NewReader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zstdReadCloser{dec}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}
}

// EncodeCompressed writes v through compression c.
func EncodeCompressed(w io.Writer, v vectorstore.View, c Compression) error {
	cw, err := c.NewWriter(w)
	if err != nil {
		return err
	}
	if err := Encode(cw, v); err != nil {
		_ = cw.Close()
		return err
	}
	return cw.Close()
}

// DecodeCompressed reads a buffer written by EncodeCompressed.
func DecodeCompressed(r io.Reader, c Compression) (*vectorstore.Buffer, error) {
	cr, err := c.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer cr.Close()

	return Decode(cr)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

type zstdReadCloser struct {
	*zstd.Decoder
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}
