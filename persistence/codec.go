package persistence

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"

	"github.com/hupe1980/vecache/internal/mem"
	"github.com/hupe1980/vecache/vectorstore"
)

// HeaderSize is the size of the fixed header in bytes.
const HeaderSize = 16

// chunkBytes bounds every read and conversion buffer. Decoding never
// allocates more than one chunk ahead of the bytes actually received.
const chunkBytes = 256 * 1024

var (
	// ErrTruncatedFile is returned when the input ends before the extents
	// declared by the header.
	ErrTruncatedFile = errors.New("truncated file")

	// ErrCorruptHeader is returned when the header cannot describe a valid
	// buffer: dim == 0 with n > 0, or extents that overflow.
	ErrCorruptHeader = errors.New("corrupt header")
)

// Header is the fixed file header.
type Header struct {
	Dim   uint64
	Count uint64
}

// Validate checks the header and returns the total encoded size.
func (h Header) Validate() (int64, error) {
	if h.Dim == 0 && h.Count > 0 {
		return 0, fmt.Errorf("%w: dim 0 with %d vectors", ErrCorruptHeader, h.Count)
	}

	// rowBytes = 4*dim + 8; total = 16 + count*rowBytes.
	hiDim, dimBytes := bits.Mul64(h.Dim, 4)
	rowBytes, carry := bits.Add64(dimBytes, 8, 0)
	hiRows, body := bits.Mul64(h.Count, rowBytes)
	total, carry2 := bits.Add64(body, HeaderSize, 0)
	if hiDim != 0 || carry != 0 || hiRows != 0 || carry2 != 0 || total > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d vectors of dim %d overflow", ErrCorruptHeader, h.Count, h.Dim)
	}
	if h.Dim > math.MaxInt32 {
		return 0, fmt.Errorf("%w: dim %d too large", ErrCorruptHeader, h.Dim)
	}
	return int64(total), nil
}

// EncodedSize returns the size in bytes of n vectors of dimension dim.
func EncodedSize(dim, n int) int64 {
	return HeaderSize + 4*int64(dim)*int64(n) + 8*int64(n)
}

// Encode writes v in the binary layout. The output depends only on the
// dimension, the key order and the vector bits, so equal buffers encode to
// identical bytes.
func Encode(w io.Writer, v vectorstore.View) error {
	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(v.Dim))
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(v.Len()))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	if nativeLittleEndian {
		if _, err := w.Write(float32Bytes(v.Flat)); err != nil {
			return err
		}
		_, err := w.Write(uint64Bytes(v.Keys))
		return err
	}

	scratch := make([]byte, chunkBytes)
	for lo := 0; lo < len(v.Flat); lo += chunkBytes / 4 {
		part := v.Flat[lo:min(lo+chunkBytes/4, len(v.Flat))]
		putFloat32s(scratch, part)
		if _, err := w.Write(scratch[:len(part)*4]); err != nil {
			return err
		}
	}
	for lo := 0; lo < len(v.Keys); lo += chunkBytes / 8 {
		part := v.Keys[lo:min(lo+chunkBytes/8, len(v.Keys))]
		putUint64s(scratch, part)
		if _, err := w.Write(scratch[:len(part)*8]); err != nil {
			return err
		}
	}
	return nil
}

// Marshal returns the encoding of v.
func Marshal(v vectorstore.View) []byte {
	var buf bytes.Buffer
	buf.Grow(int(EncodedSize(v.Dim, v.Len())))
	_ = Encode(&buf, v) // bytes.Buffer writes do not fail
	return buf.Bytes()
}

// ReadHeader reads and validates the fixed header.
func ReadHeader(r io.Reader) (Header, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Header{}, truncated(err, "header")
	}

	h := Header{
		Dim:   binary.LittleEndian.Uint64(hdr[0:8]),
		Count: binary.LittleEndian.Uint64(hdr[8:16]),
	}
	if _, err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// Decode reads one encoded buffer from r. It consumes exactly the declared
// extents; bytes after them are left unread.
func Decode(r io.Reader) (*vectorstore.Buffer, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	dim := int(h.Dim)
	n := int(h.Count)

	flat, err := readFloat32s(r, dim*n)
	if err != nil {
		return nil, err
	}
	keys, err := readUint64s(r, n)
	if err != nil {
		return nil, err
	}

	return vectorstore.FromRaw(dim, flat, keys)
}

// Unmarshal decodes data. Trailing bytes after the declared extents are
// ignored.
func Unmarshal(data []byte) (*vectorstore.Buffer, error) {
	h, err := ReadHeader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	total, _ := h.Validate()
	if int64(len(data)) < total {
		return nil, fmt.Errorf("%w: header declares %d bytes, have %d", ErrTruncatedFile, total, len(data))
	}

	dim := int(h.Dim)
	n := int(h.Count)
	body := data[HeaderSize:]

	flat := mem.AllocAlignedFloat32(dim * n)
	getFloat32s(flat, body[:4*dim*n])
	keys := make([]uint64, n)
	getUint64s(keys, body[4*dim*n:4*dim*n+8*n])

	return vectorstore.FromRaw(dim, flat, keys)
}

func readFloat32s(r io.Reader, count int) ([]float32, error) {
	if count == 0 {
		return nil, nil
	}

	const step = chunkBytes / 4
	out := mem.GrowFloat32(nil, min(count, step))
	chunk := make([]byte, min(count, step)*4)

	for len(out) < count {
		m := min(count-len(out), step)
		if _, err := io.ReadFull(r, chunk[:m*4]); err != nil {
			return nil, truncated(err, "vector data")
		}
		out = mem.GrowFloat32(out, m)
		start := len(out)
		out = out[:start+m]
		getFloat32s(out[start:], chunk[:m*4])
	}
	return out, nil
}

func readUint64s(r io.Reader, count int) ([]uint64, error) {
	if count == 0 {
		return nil, nil
	}

	const step = chunkBytes / 8
	out := make([]uint64, 0, min(count, step))
	chunk := make([]byte, min(count, step)*8)

	for len(out) < count {
		m := min(count-len(out), step)
		if _, err := io.ReadFull(r, chunk[:m*8]); err != nil {
			return nil, truncated(err, "keys")
		}
		start := len(out)
		out = append(out, make([]uint64, m)...)
		getUint64s(out[start:], chunk[:m*8])
	}
	return out, nil
}

// truncated maps a short read onto ErrTruncatedFile and passes other I/O
// errors through.
func truncated(err error, section string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: short %s", ErrTruncatedFile, section)
	}
	return err
}
