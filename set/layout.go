package set

import (
	"errors"
	"fmt"
)

// Layout identifies the physical encoding of a Set. Layout values are
// persisted, so existing tags must never be renumbered.
type Layout uint8

const (
	// Auto asks the builder to pick the smaller encoding. Never persisted.
	Auto Layout = 0
	// UInteger is a sorted array of little-endian uint32 values.
	UInteger Layout = 1
	// Bitset is a rank-indexed bitmap over the occupied word range.
	Bitset Layout = 2
)

func (l Layout) String() string {
	switch l {
	case Auto:
		return "auto"
	case UInteger:
		return "uinteger"
	case Bitset:
		return "bitset"
	default:
		return fmt.Sprintf("layout(%d)", uint8(l))
	}
}

// NotFound is the position reported by Find for absent keys.
const NotFound = -1

var (
	ErrUnsorted      = errors.New("set: values not strictly ascending")
	ErrOutOfRange    = errors.New("set: value out of range")
	ErrUnknownLayout = errors.New("set: unknown layout")
	ErrCorrupt       = errors.New("set: corrupt set body")
)

// Codec implements one physical encoding. Codecs are stateless; every
// operation receives the encoded bytes and the cardinality recorded in the
// owning Set.
//
// Find and FindFrom require the encoded values to be in ascending order,
// which Build does not create: the caller supplies sorted, duplicate-free
// input.
type Codec interface {
	Layout() Layout

	// Size returns the number of bytes Build needs for values.
	Size(values []uint32, rng uint32) int
	// MaxSize bounds the body size of any valid set with the given
	// cardinality and range; decoders use it to reject absurd lengths.
	MaxSize(card int, rng uint32) int
	// Build encodes values into dst and returns the number of bytes written.
	Build(dst []byte, values []uint32, rng uint32) (int, Layout)
	// Validate checks an encoded body read from untrusted input.
	Validate(data []byte, card int, rng uint32) error

	// Find returns the position of key, or (NotFound, false).
	Find(data []byte, card int, key uint32) (int, bool)
	// FindFrom searches positions >= start and returns the position of key,
	// or, when absent, the position key would occupy (a lower bound).
	FindFrom(data []byte, card int, start int, key uint32) (int, bool)

	ForEach(data []byte, card int, f func(v uint32))
	ForEachIndex(data []byte, card int, f func(i int, v uint32))
	// ForEachUntil stops after the first call that returns true.
	ForEachUntil(data []byte, card int, f func(v uint32) bool)

	// ParForEach and ParForEachIndex visit every element exactly once using
	// up to workers goroutines, passing the worker id to f. They return the
	// number of workers used.
	ParForEach(workers int, data []byte, card int, f func(tid int, v uint32)) int
	ParForEachIndex(workers int, data []byte, card int, f func(tid, i int, v uint32)) int
}

var (
	uintegerCodec Codec = uinteger{}
	bitsetCodec   Codec = bitset{}
)

// CodecFor returns the codec for a persisted layout tag.
func CodecFor(l Layout) (Codec, error) {
	switch l {
	case UInteger:
		return uintegerCodec, nil
	case Bitset:
		return bitsetCodec, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownLayout, l)
	}
}

func mustCodec(l Layout) Codec {
	c, err := CodecFor(l)
	if err != nil {
		panic(err)
	}
	return c
}

// Choose picks the layout with the smaller encoding of sorted values.
func Choose(values []uint32) Layout {
	if len(values) == 0 {
		return UInteger
	}
	if bitsetCodec.Size(values, 0) < uintegerCodec.Size(values, 0) {
		return Bitset
	}
	return UInteger
}
