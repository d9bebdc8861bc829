package set

import (
	"encoding/binary"
	"math/bits"
)

// Intersection output policy: the result is a Bitset only when both inputs
// are Bitsets (a word-wise AND stays at least as dense as its inputs' common
// span); any intersection involving a UInteger input is written as UInteger,
// since it can hold no more values than that sparser input.

// gallopRatio is the size skew above which array intersection switches from
// a linear merge to searching the larger side.
const gallopRatio = 32

// IntersectLayout returns the layout IntersectInto produces for a and b.
func IntersectLayout(a, b Set) Layout {
	if a.Layout() == Bitset && b.Layout() == Bitset {
		return Bitset
	}
	return UInteger
}

// IntersectBound returns the buffer size IntersectInto needs for a and b.
func IntersectBound(a, b Set) int {
	if IntersectLayout(a, b) == Bitset {
		return bitsetSize(min(viewBitset(a.data).n, viewBitset(b.data).n))
	}
	return 4 * min(a.card, b.card)
}

// IntersectInto writes the sorted intersection of a and b into dst, which
// must hold at least IntersectBound(a, b) bytes, and returns the bytes
// written, the result cardinality and its layout.
func IntersectInto(dst []byte, a, b Set) (n int, card int, layout Layout) {
	la, lb := a.Layout(), b.Layout()
	switch {
	case la == UInteger && lb == UInteger:
		card = intersectArrayArray(dst, a, b)
		return 4 * card, card, UInteger
	case la == UInteger && lb == Bitset:
		card = intersectArrayBitmap(dst, a, b)
		return 4 * card, card, UInteger
	case la == Bitset && lb == UInteger:
		card = intersectArrayBitmap(dst, b, a)
		return 4 * card, card, UInteger
	default:
		n, card = intersectBitmapBitmap(dst, a, b)
		return n, card, Bitset
	}
}

// Intersect computes a ∩ b into memory from alloc.
func Intersect(alloc Allocator, tid int, a, b Set) Set {
	buf := allocBytes(alloc, tid, IntersectBound(a, b))
	n, card, layout := IntersectInto(buf, a, b)
	rng := min(a.rng, b.rng)
	if card == 0 {
		rng = 0
	}
	return Set{layout: layout, card: card, rng: rng, data: buf[:n]}
}

// IntersectCount returns |a ∩ b| without materializing the result.
func IntersectCount(a, b Set) int {
	if a.Layout() == Bitset && b.Layout() == Bitset {
		va, vb := viewBitset(a.data), viewBitset(b.data)
		lo, hi := max(va.base, vb.base), min(va.base+va.n, vb.base+vb.n)
		var c int
		for w := lo; w < hi; w++ {
			c += bits.OnesCount64(va.word(w-va.base) & vb.word(w-vb.base))
		}
		return c
	}
	small, large := a, b
	if small.card > large.card {
		small, large = large, small
	}
	var c int
	small.ForEach(func(v uint32) {
		if large.Contains(v) {
			c++
		}
	})
	return c
}

func intersectArrayArray(dst []byte, a, b Set) int {
	if a.card > b.card {
		a, b = b, a
	}
	if a.card == 0 {
		return 0
	}
	var n int
	if b.card/a.card >= gallopRatio {
		pos := 0
		for i := 0; i < a.card && pos < b.card; i++ {
			v := at(a.data, i)
			var ok bool
			pos, ok = uintegerCodec.FindFrom(b.data, b.card, pos, v)
			if ok {
				binary.LittleEndian.PutUint32(dst[4*n:], v)
				n++
				pos++
			}
		}
		return n
	}
	for i, j := 0, 0; i < a.card && j < b.card; {
		va, vb := at(a.data, i), at(b.data, j)
		if va < vb {
			i++
		} else if va > vb {
			j++
		} else {
			binary.LittleEndian.PutUint32(dst[4*n:], va)
			n++
			i, j = i+1, j+1
		}
	}
	return n
}

func intersectArrayBitmap(dst []byte, a, b Set) int {
	if a.card == 0 || b.card == 0 {
		return 0
	}
	vb := viewBitset(b.data)
	var n int
	for i := 0; i < a.card; i++ {
		v := at(a.data, i)
		if _, _, ok := vb.locate(v); ok {
			binary.LittleEndian.PutUint32(dst[4*n:], v)
			n++
		}
	}
	return n
}

func intersectBitmapBitmap(dst []byte, a, b Set) (int, int) {
	va, vb := viewBitset(a.data), viewBitset(b.data)
	lo, hi := max(va.base, vb.base), min(va.base+va.n, vb.base+vb.n)
	// trim empty words at both ends so the result stays canonical
	for lo < hi && va.word(lo-va.base)&vb.word(lo-vb.base) == 0 {
		lo++
	}
	for hi > lo && va.word(hi-1-va.base)&vb.word(hi-1-vb.base) == 0 {
		hi--
	}
	if lo >= hi {
		return 0, 0
	}
	words := hi - lo
	size := bitsetSize(words)
	out := dst[:size]
	binary.LittleEndian.PutUint32(out, uint32(lo))
	binary.LittleEndian.PutUint32(out[4:], uint32(words))
	wout := out[bitsetHeaderSize+4*words:]
	var card int
	for w := lo; w < hi; w++ {
		x := va.word(w-va.base) & vb.word(w-vb.base)
		binary.LittleEndian.PutUint64(wout[8*(w-lo):], x)
		card += bits.OnesCount64(x)
	}
	fillRanks(out, words)
	return size, card
}
