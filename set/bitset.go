package set

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/andreyvit/trie/internal/par"
)

// bitset stores the set as a bitmap over the words spanned by its values,
// with a per-word rank table so that position lookups are O(1).
//
// Layout (little-endian):
//
//	base:u32 words:u32 rank:u32*words bits:u64*words
//
// Word i covers values [(base+i)*64, (base+i+1)*64); rank[i] counts the
// members stored in words before i. An empty set has an empty body.
type bitset struct{}

const (
	bitsetHeaderSize = 8
	bitsetWordCost   = 4 + 8
	maxBitsetWords   = 1 << 26

	// bitsetChunkWords is the parallel work unit: 2 words, 128 values.
	bitsetChunkWords = par.Chunk / 64
)

type bitsetView struct {
	base  int
	n     int
	ranks []byte
	words []byte
}

func viewBitset(data []byte) bitsetView {
	if len(data) == 0 {
		return bitsetView{}
	}
	n := int(binary.LittleEndian.Uint32(data[4:]))
	return bitsetView{
		base:  int(binary.LittleEndian.Uint32(data)),
		n:     n,
		ranks: data[bitsetHeaderSize : bitsetHeaderSize+4*n],
		words: data[bitsetHeaderSize+4*n : bitsetHeaderSize+12*n],
	}
}

func (v bitsetView) word(i int) uint64 {
	return binary.LittleEndian.Uint64(v.words[8*i:])
}

func (v bitsetView) rank(i int) int {
	return int(binary.LittleEndian.Uint32(v.ranks[4*i:]))
}

func (v bitsetView) card() int {
	if v.n == 0 {
		return 0
	}
	return v.rank(v.n-1) + bits.OnesCount64(v.word(v.n-1))
}

func (bitset) Layout() Layout { return Bitset }

func bitsetWords(values []uint32) (base, n int) {
	if len(values) == 0 {
		return 0, 0
	}
	base = int(values[0] >> 6)
	return base, int(values[len(values)-1]>>6) - base + 1
}

func bitsetSize(words int) int {
	if words == 0 {
		return 0
	}
	return bitsetHeaderSize + bitsetWordCost*words
}

func (bitset) Size(values []uint32, rng uint32) int {
	_, n := bitsetWords(values)
	return bitsetSize(n)
}

func (bitset) MaxSize(card int, rng uint32) int {
	if card == 0 {
		return 0
	}
	words := maxBitsetWords
	if rng > 0 {
		words = int((uint64(rng) + 63) / 64)
	}
	return bitsetSize(words)
}

func (bitset) Build(dst []byte, values []uint32, rng uint32) (int, Layout) {
	base, n := bitsetWords(values)
	if n == 0 {
		return 0, Bitset
	}
	size := bitsetSize(n)
	dst = dst[:size]
	binary.LittleEndian.PutUint32(dst, uint32(base))
	binary.LittleEndian.PutUint32(dst[4:], uint32(n))
	words := dst[bitsetHeaderSize+4*n:]
	clear(words)
	for _, v := range values {
		w := int(v>>6) - base
		off := 8 * w
		binary.LittleEndian.PutUint64(words[off:], binary.LittleEndian.Uint64(words[off:])|1<<(v&63))
	}
	fillRanks(dst, n)
	return size, Bitset
}

func fillRanks(data []byte, n int) {
	ranks := data[bitsetHeaderSize:]
	words := data[bitsetHeaderSize+4*n:]
	var r uint32
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(ranks[4*i:], r)
		r += uint32(bits.OnesCount64(binary.LittleEndian.Uint64(words[8*i:])))
	}
}

func (bitset) Validate(data []byte, card int, rng uint32) error {
	if len(data) == 0 {
		if card != 0 {
			return fmt.Errorf("%w: empty bitset body for cardinality %d", ErrCorrupt, card)
		}
		return nil
	}
	if len(data) < bitsetHeaderSize {
		return fmt.Errorf("%w: bitset body too short: %d bytes", ErrCorrupt, len(data))
	}
	base := int(binary.LittleEndian.Uint32(data))
	n := int(binary.LittleEndian.Uint32(data[4:]))
	if n == 0 || n > maxBitsetWords || base > maxBitsetWords-n {
		return fmt.Errorf("%w: bitset word span [%d, +%d) invalid", ErrCorrupt, base, n)
	}
	if len(data) != bitsetSize(n) {
		return fmt.Errorf("%w: bitset body is %d bytes, wanted %d", ErrCorrupt, len(data), bitsetSize(n))
	}
	v := viewBitset(data)
	if v.word(0) == 0 || v.word(n-1) == 0 {
		return fmt.Errorf("%w: bitset has untrimmed empty edge words", ErrCorrupt)
	}
	var r int
	for i := 0; i < n; i++ {
		if v.rank(i) != r {
			return fmt.Errorf("%w: bitset rank %d is %d, wanted %d", ErrCorrupt, i, v.rank(i), r)
		}
		r += bits.OnesCount64(v.word(i))
	}
	if r != card {
		return fmt.Errorf("%w: bitset holds %d values, header says %d", ErrCorrupt, r, card)
	}
	maxVal := uint64(base+n-1)*64 + uint64(63-bits.LeadingZeros64(v.word(n-1)))
	if rng > 0 && maxVal >= uint64(rng) {
		return fmt.Errorf("%w: %d >= %d", ErrOutOfRange, maxVal, rng)
	}
	return nil
}

// locate returns the word index of key and the number of members below key.
func (v bitsetView) locate(key uint32) (w int, below int, present bool) {
	w = int(key>>6) - v.base
	if w < 0 {
		return w, 0, false
	}
	if w >= v.n {
		return w, v.card(), false
	}
	word := v.word(w)
	b := key & 63
	return w, v.rank(w) + bits.OnesCount64(word&(1<<b-1)), word&(1<<b) != 0
}

func (bitset) Find(data []byte, card int, key uint32) (int, bool) {
	if len(data) == 0 {
		return NotFound, false
	}
	_, pos, ok := viewBitset(data).locate(key)
	if !ok {
		return NotFound, false
	}
	return pos, true
}

func (bitset) FindFrom(data []byte, card int, start int, key uint32) (int, bool) {
	if len(data) == 0 {
		return 0, false
	}
	_, pos, ok := viewBitset(data).locate(key)
	if pos < start {
		return start, false
	}
	return pos, ok
}

func (v bitsetView) forWord(i int, idx int, f func(i int, x uint32)) int {
	w := v.word(i)
	hi := uint32(v.base+i) << 6
	for w != 0 {
		f(idx, hi|uint32(bits.TrailingZeros64(w)))
		idx++
		w &= w - 1
	}
	return idx
}

func (bitset) ForEach(data []byte, card int, f func(v uint32)) {
	v := viewBitset(data)
	for i := 0; i < v.n; i++ {
		v.forWord(i, 0, func(_ int, x uint32) { f(x) })
	}
}

func (bitset) ForEachIndex(data []byte, card int, f func(i int, v uint32)) {
	v := viewBitset(data)
	idx := 0
	for i := 0; i < v.n; i++ {
		idx = v.forWord(i, idx, f)
	}
}

func (bitset) ForEachUntil(data []byte, card int, f func(v uint32) bool) {
	v := viewBitset(data)
	for i := 0; i < v.n; i++ {
		w := v.word(i)
		hi := uint32(v.base+i) << 6
		for w != 0 {
			if f(hi | uint32(bits.TrailingZeros64(w))) {
				return
			}
			w &= w - 1
		}
	}
}

func (bitset) ParForEach(workers int, data []byte, card int, f func(tid int, v uint32)) int {
	v := viewBitset(data)
	return par.ForRange(workers, v.n, bitsetChunkWords, func(tid, i int) {
		v.forWord(i, 0, func(_ int, x uint32) { f(tid, x) })
	})
}

func (bitset) ParForEachIndex(workers int, data []byte, card int, f func(tid, i int, v uint32)) int {
	v := viewBitset(data)
	return par.ForRange(workers, v.n, bitsetChunkWords, func(tid, i int) {
		v.forWord(i, v.rank(i), func(idx int, x uint32) { f(tid, idx, x) })
	})
}
