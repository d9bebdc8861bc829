package set

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andreyvit/trie/internal/binfmt"
)

const (
	headerSize      = 1 + 4 + 4 + 4
	directReadLimit = 1 << 20
)

// BinarySize returns the number of bytes AppendBinary writes.
func (s Set) BinarySize() int {
	return headerSize + len(s.data)
}

// AppendBinary appends the self-describing binary body of s.
func (s Set) AppendBinary(buf []byte) []byte {
	buf = binfmt.AppendByte(buf, byte(s.Layout()))
	buf = binfmt.AppendInt32(buf, s.card)
	buf = binfmt.AppendUint32(buf, s.rng)
	buf = binfmt.AppendInt32(buf, len(s.data))
	return binfmt.AppendRaw(buf, s.data)
}

// Read decodes a set body from r, copying it into memory from alloc. A
// clean end of stream before the first byte yields io.EOF; anything else
// that is truncated or inconsistent yields a *binfmt.DataError.
func Read(r io.Reader, alloc Allocator, tid int) (Set, error) {
	br := binfmt.NewReader(r)
	off := int(br.Offset())

	var hdr [headerSize]byte
	if err := br.ReadFull(hdr[:]); err != nil {
		return Set{}, err
	}
	d := binfmt.MakeDecoder(hdr[:])
	c, card, rng, size, err := decodeHeader(&d, off)
	if err != nil {
		return Set{}, err
	}

	var data []byte
	if size <= directReadLimit {
		data = allocBytes(alloc, tid, size)
		if err := br.ReadFull(data); err != nil {
			return Set{}, binfmt.NotEOF(err)
		}
	} else {
		// stage large bodies so a corrupt size cannot reserve arena memory
		// the stream does not actually hold
		var bb bytes.Buffer
		if _, err := io.CopyN(&bb, br, int64(size)); err != nil {
			return Set{}, binfmt.Errorf(nil, int(br.Offset()), io.ErrUnexpectedEOF, "short set body: got %d of %d bytes", bb.Len(), size)
		}
		data = allocBytes(alloc, tid, size)
		copy(data, bb.Bytes())
	}
	return finish(c, card, rng, data, off)
}

// Decode parses a set body at the start of buf and returns the number of
// bytes consumed. With a nil alloc the returned set aliases buf, so buf must
// stay unmodified for as long as the set is in use.
func Decode(buf []byte, alloc Allocator, tid int) (Set, int, error) {
	d := binfmt.MakeDecoder(buf)
	c, card, rng, size, err := decodeHeader(&d, 0)
	if err != nil {
		return Set{}, d.Off(), err
	}
	body, err := d.Raw(size)
	if err != nil {
		return Set{}, d.Off(), err
	}
	data := body
	if alloc != nil {
		data = allocBytes(alloc, tid, size)
		copy(data, body)
	}
	s, err := finish(c, card, rng, data, 0)
	return s, d.Off(), err
}

func decodeHeader(d *binfmt.Decoder, off int) (c Codec, card int, rng uint32, size int, err error) {
	tag, err := d.Byte()
	if err != nil {
		return nil, 0, 0, 0, err
	}
	ucard, err := d.Uint32()
	if err != nil {
		return nil, 0, 0, 0, err
	}
	rng, err = d.Uint32()
	if err != nil {
		return nil, 0, 0, 0, err
	}
	usize, err := d.Uint32()
	if err != nil {
		return nil, 0, 0, 0, err
	}

	c, err = CodecFor(Layout(tag))
	if err != nil {
		return nil, 0, 0, 0, binfmt.Errorf(nil, off, err, "invalid set header")
	}
	if rng > 0 && ucard > rng {
		return nil, 0, 0, 0, binfmt.Errorf(nil, off, ErrCorrupt, "invalid set header: cardinality %d exceeds range %d", ucard, rng)
	}
	if ucard > 0 && rng == 0 {
		return nil, 0, 0, 0, binfmt.Errorf(nil, off, ErrCorrupt, "invalid set header: cardinality %d with zero range", ucard)
	}
	if uint64(usize) > uint64(c.MaxSize(int(ucard), rng)) {
		return nil, 0, 0, 0, binfmt.Errorf(nil, off, ErrCorrupt, "invalid set header: %v body of %d bytes for cardinality %d, range %d", c.Layout(), usize, ucard, rng)
	}
	return c, int(ucard), rng, int(usize), nil
}

func finish(c Codec, card int, rng uint32, data []byte, off int) (Set, error) {
	if err := c.Validate(data, card, rng); err != nil {
		return Set{}, binfmt.Errorf(data, off, err, "invalid set body")
	}
	return Set{layout: c.Layout(), card: card, rng: rng, data: data}, nil
}

// Equal reports whether a and b hold the same values under the same layout.
func Equal(a, b Set) bool {
	return a.Layout() == b.Layout() && a.card == b.card && a.rng == b.rng && bytes.Equal(a.data, b.data)
}

// MustOf is Of that panics on invalid input; for tests and literals.
func MustOf(layout Layout, values ...uint32) Set {
	s, err := Of(layout, values...)
	if err != nil {
		panic(fmt.Errorf("set.MustOf(%v, %v): %w", layout, values, err))
	}
	return s
}
