package set

import (
	"encoding/binary"
	"fmt"

	"github.com/andreyvit/trie/internal/par"
)

// uinteger stores the set as an uncompressed array of uint32 values.
type uinteger struct{}

func (uinteger) Layout() Layout { return UInteger }

func (uinteger) Size(values []uint32, rng uint32) int { return 4 * len(values) }

func (uinteger) MaxSize(card int, rng uint32) int { return 4 * card }

// Build copies values as-is; it neither sorts nor deduplicates.
func (uinteger) Build(dst []byte, values []uint32, rng uint32) (int, Layout) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(dst[4*i:], v)
	}
	return 4 * len(values), UInteger
}

func (uinteger) Validate(data []byte, card int, rng uint32) error {
	if len(data) != 4*card {
		return fmt.Errorf("%w: uinteger body is %d bytes, wanted %d", ErrCorrupt, len(data), 4*card)
	}
	for i := 0; i < card; i++ {
		v := at(data, i)
		if i > 0 && v <= at(data, i-1) {
			return fmt.Errorf("%w: at position %d", ErrUnsorted, i)
		}
		if rng > 0 && v >= rng {
			return fmt.Errorf("%w: %d >= %d", ErrOutOfRange, v, rng)
		}
	}
	return nil
}

func at(data []byte, i int) uint32 {
	return binary.LittleEndian.Uint32(data[4*i:])
}

func (u uinteger) Find(data []byte, card int, key uint32) (int, bool) {
	if len(data) == 0 {
		return NotFound, false
	}
	pos, ok := u.FindFrom(data, card, 0, key)
	if !ok {
		return NotFound, false
	}
	return pos, true
}

func (uinteger) FindFrom(data []byte, card int, start int, key uint32) (int, bool) {
	n := len(data) / 4
	lo, hi := max(start, 0), n
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if at(data, mid) < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, lo < n && at(data, lo) == key
}

func (uinteger) ForEach(data []byte, card int, f func(v uint32)) {
	for i := 0; i < card; i++ {
		f(at(data, i))
	}
}

func (uinteger) ForEachIndex(data []byte, card int, f func(i int, v uint32)) {
	for i := 0; i < card; i++ {
		f(i, at(data, i))
	}
}

func (uinteger) ForEachUntil(data []byte, card int, f func(v uint32) bool) {
	for i := 0; i < card; i++ {
		if f(at(data, i)) {
			break
		}
	}
}

func (uinteger) ParForEach(workers int, data []byte, card int, f func(tid int, v uint32)) int {
	return par.ForRange(workers, card, par.Chunk, func(tid, i int) {
		f(tid, at(data, i))
	})
}

func (uinteger) ParForEachIndex(workers int, data []byte, card int, f func(tid, i int, v uint32)) int {
	return par.ForRange(workers, card, par.Chunk, func(tid, i int) {
		f(tid, i, at(data, i))
	})
}
