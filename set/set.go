/*
Package set implements the compressed value sets stored in trie nodes.

A Set is a layout-tagged view over a byte body: the tag selects the Codec
that owns the bytes, so several physical encodings can coexist in one trie
without the callers knowing which one a node uses.

# Layouts

UInteger: a little-endian uint32 array, searched by binary search.

Bitset: a bitmap over the occupied 64-value words plus a rank table, with
O(1) membership and position lookups.

# Binary body

	layout:u8 cardinality:u32 range:u32 size:u32 body:size

All integers are little-endian. Range is one past the largest representable
value (0 for an empty set).
*/
package set

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/andreyvit/trie/internal/par"
)

// Allocator hands out raw zeroed memory for set bodies. *arena.Pool
// implements it.
type Allocator interface {
	GetNext(tid int, n int) []byte
}

func allocBytes(alloc Allocator, tid int, n int) []byte {
	if alloc == nil {
		return make([]byte, n)
	}
	return alloc.GetNext(tid, n)
}

// Set is an immutable ordered collection of uint32 values. The zero Set is
// an empty UInteger set. The body is owned by whatever arena allocated it.
type Set struct {
	layout Layout
	card   int
	rng    uint32
	data   []byte
}

// Validate checks the Build precondition: values strictly ascending and
// below rng (when rng > 0).
func Validate(values []uint32, rng uint32) error {
	for i, v := range values {
		if i > 0 && v <= values[i-1] {
			return fmt.Errorf("%w: %d follows %d at position %d", ErrUnsorted, v, values[i-1], i)
		}
	}
	if n := len(values); n > 0 {
		last := values[n-1]
		if rng > 0 && last >= rng {
			return fmt.Errorf("%w: %d >= range %d", ErrOutOfRange, last, rng)
		}
		if rng == 0 && last == math.MaxUint32 {
			return fmt.Errorf("%w: %d leaves no room for a range", ErrOutOfRange, last)
		}
	}
	return nil
}

// Build validates values and encodes them with the given layout into memory
// obtained from alloc for worker tid. A zero rng is derived as max + 1.
func Build(alloc Allocator, tid int, layout Layout, values []uint32, rng uint32) (Set, error) {
	if err := Validate(values, rng); err != nil {
		return Set{}, err
	}
	if layout != Auto {
		if _, err := CodecFor(layout); err != nil {
			return Set{}, err
		}
	}
	return BuildUnchecked(alloc, tid, layout, values, rng), nil
}

// BuildUnchecked is Build without validation. Values must be strictly
// ascending and below rng; violating this silently breaks Find.
func BuildUnchecked(alloc Allocator, tid int, layout Layout, values []uint32, rng uint32) Set {
	if rng == 0 && len(values) > 0 {
		rng = values[len(values)-1] + 1
	}
	if layout == Auto {
		layout = Choose(values)
	}
	c := mustCodec(layout)
	buf := allocBytes(alloc, tid, c.Size(values, rng))
	n, layout := c.Build(buf, values, rng)
	return Set{layout: layout, card: len(values), rng: rng, data: buf[:n]}
}

// Of builds a heap-allocated set; handy outside of arena-managed code.
func Of(layout Layout, values ...uint32) (Set, error) {
	return Build(nil, 0, layout, values, 0)
}

func (s Set) Layout() Layout {
	if s.layout == Auto {
		return UInteger
	}
	return s.layout
}

func (s Set) codec() Codec {
	return mustCodec(s.Layout())
}

func (s Set) Cardinality() int { return s.card }

// Range is one past the largest value the set may hold.
func (s Set) Range() uint32 { return s.rng }

func (s Set) IsEmpty() bool { return s.card == 0 }

// Bytes returns the encoded body. It must not be modified.
func (s Set) Bytes() []byte { return s.data }

func (s Set) NumBytes() int { return len(s.data) }

// Density is cardinality / range, or 0 for a zero range.
func (s Set) Density() float64 {
	if s.rng == 0 {
		return 0
	}
	return float64(s.card) / float64(s.rng)
}

// Find returns the position of key in storage order, or (NotFound, false).
func (s Set) Find(key uint32) (int, bool) {
	return s.codec().Find(s.data, s.card, key)
}

// FindFrom is Find restricted to positions >= start; when key is absent it
// returns the position key would be inserted at.
func (s Set) FindFrom(start int, key uint32) (int, bool) {
	return s.codec().FindFrom(s.data, s.card, start, key)
}

func (s Set) Contains(key uint32) bool {
	_, ok := s.Find(key)
	return ok
}

func (s Set) ForEach(f func(v uint32)) {
	s.codec().ForEach(s.data, s.card, f)
}

func (s Set) ForEachIndex(f func(i int, v uint32)) {
	s.codec().ForEachIndex(s.data, s.card, f)
}

func (s Set) ForEachUntil(f func(v uint32) bool) {
	s.codec().ForEachUntil(s.data, s.card, f)
}

func (s Set) ParForEach(f func(tid int, v uint32)) int {
	return s.ParForEachN(par.Workers(), f)
}

func (s Set) ParForEachIndex(f func(tid, i int, v uint32)) int {
	return s.ParForEachIndexN(par.Workers(), f)
}

// ParForEachN is ParForEach with worker ids limited to [0, workers).
func (s Set) ParForEachN(workers int, f func(tid int, v uint32)) int {
	return s.codec().ParForEach(workers, s.data, s.card, f)
}

func (s Set) ParForEachIndexN(workers int, f func(tid, i int, v uint32)) int {
	return s.codec().ParForEachIndex(workers, s.data, s.card, f)
}

// Min returns the smallest value, or false for an empty set.
func (s Set) Min() (uint32, bool) {
	if s.card == 0 {
		return 0, false
	}
	var m uint32
	s.ForEachUntil(func(v uint32) bool {
		m = v
		return true
	})
	return m, true
}

// Max returns the largest value, or false for an empty set.
func (s Set) Max() (uint32, bool) {
	if s.card == 0 {
		return 0, false
	}
	if s.Layout() == Bitset {
		v := viewBitset(s.data)
		w := v.word(v.n - 1)
		return uint32(v.base+v.n-1)<<6 | uint32(63-bits.LeadingZeros64(w)), true
	}
	return at(s.data, s.card-1), true
}

// Values decodes the set into a new slice.
func (s Set) Values() []uint32 {
	r := make([]uint32, 0, s.card)
	s.ForEach(func(v uint32) {
		r = append(r, v)
	})
	return r
}

func (s Set) String() string {
	return fmt.Sprintf("%v{card=%d range=%d bytes=%d}", s.Layout(), s.card, s.rng, len(s.data))
}
