// Package binfmt holds the little-endian byte builders and decoders used by
// the on-disk node and set formats.
package binfmt

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

func ensureCapacity(buf []byte, minCap int) []byte {
	c := cap(buf)
	if minCap > c {
		if c < 16 {
			c = 16
		}
		for minCap > c {
			c <<= 1
		}
		old := buf
		buf = make([]byte, len(old), c)
		copy(buf, old)
	}
	return buf
}

// Grow extends buf by n bytes and returns the offset of the new region.
func Grow(buf []byte, n int) (int, []byte) {
	off := len(buf)
	newLen := off + n
	buf = ensureCapacity(buf, newLen)
	return off, buf[:newLen]
}

func AppendRaw(buf []byte, chunk []byte) []byte {
	off, buf := Grow(buf, len(chunk))
	copy(buf[off:], chunk)
	return buf
}

func AppendByte(buf []byte, v byte) []byte {
	off, buf := Grow(buf, 1)
	buf[off] = v
	return buf
}

func AppendBool(buf []byte, v bool) []byte {
	if v {
		return AppendByte(buf, 1)
	}
	return AppendByte(buf, 0)
}

func AppendUint32(buf []byte, v uint32) []byte {
	off, buf := Grow(buf, 4)
	binary.LittleEndian.PutUint32(buf[off:], v)
	return buf
}

func AppendUint64(buf []byte, v uint64) []byte {
	off, buf := Grow(buf, 8)
	binary.LittleEndian.PutUint64(buf[off:], v)
	return buf
}

// AppendInt32 appends a non-negative int as a uint32, panicking on overflow.
func AppendInt32(buf []byte, v int) []byte {
	if v < 0 || uint64(v) > math.MaxUint32 {
		panic("value does not fit into uint32")
	}
	return AppendUint32(buf, uint32(v))
}

// Builder is an io.Writer over a growing byte slice.
type Builder struct {
	Buf []byte
}

var _ io.Writer = (*Builder)(nil)

func (bb *Builder) Write(b []byte) (int, error) {
	bb.Buf = AppendRaw(bb.Buf, b)
	return len(b), nil
}

func (bb *Builder) WriteByte(v byte) error {
	bb.Buf = AppendByte(bb.Buf, v)
	return nil
}

func (bb *Builder) Reset() {
	bb.Buf = bb.Buf[:0]
}

// Decoder reads fixed-width little-endian fields from an in-memory buffer.
type Decoder struct {
	Orig []byte
	Buf  []byte
}

func MakeDecoder(buf []byte) Decoder {
	return Decoder{buf, buf}
}

func (d *Decoder) Off() int {
	return len(d.Orig) - len(d.Buf)
}

func (d *Decoder) Remaining() int {
	return len(d.Buf)
}

func (d *Decoder) Raw(n int) ([]byte, error) {
	if n < 0 || len(d.Buf) < n {
		return nil, Errorf(d.Orig, d.Off(), io.ErrUnexpectedEOF, "not enough data: %d bytes remaining, %d wanted", len(d.Buf), n)
	}
	v := d.Buf[:n]
	d.Buf = d.Buf[n:]
	return v, nil
}

func (d *Decoder) Byte() (byte, error) {
	b, err := d.Raw(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) Uint32() (uint32, error) {
	b, err := d.Raw(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Decoder) Uint64() (uint64, error) {
	b, err := d.Raw(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Reader reads fixed-width little-endian fields from a stream, tracking the
// offset for error reporting. A clean end of stream before the first byte of
// a field is reported as io.EOF; a partial field as io.ErrUnexpectedEOF.
type Reader struct {
	r   io.Reader
	off int64
	tmp [8]byte
}

// NewReader wraps r, reusing r itself when it already is a *Reader.
func NewReader(r io.Reader) *Reader {
	if br, ok := r.(*Reader); ok {
		return br
	}
	return &Reader{r: r}
}

func (r *Reader) Offset() int64 {
	return r.off
}

// Read implements io.Reader so a Reader can be handed to nested decoders
// without losing offset tracking.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.off += int64(n)
	return n, err
}

// ReadFull fills p, converting a short read into a DataError.
func (r *Reader) ReadFull(p []byte) error {
	n, err := io.ReadFull(r.r, p)
	r.off += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return io.EOF
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.ErrUnexpectedEOF
		}
		return Errorf(p[:n], int(r.off), err, "short read: got %d of %d bytes", n, len(p))
	}
	return nil
}

// NotEOF converts io.EOF into io.ErrUnexpectedEOF for fields that cannot
// legitimately start a new record.
func NotEOF(err error) error {
	if err == io.EOF {
		return Errorf(nil, 0, io.ErrUnexpectedEOF, "unexpected end of stream")
	}
	return err
}

func (r *Reader) Byte() (byte, error) {
	if err := r.ReadFull(r.tmp[:1]); err != nil {
		return 0, err
	}
	return r.tmp[0], nil
}

func (r *Reader) Uint32() (uint32, error) {
	if err := r.ReadFull(r.tmp[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(r.tmp[:4]), nil
}

func (r *Reader) Uint64() (uint64, error) {
	if err := r.ReadFull(r.tmp[:8]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(r.tmp[:8]), nil
}
