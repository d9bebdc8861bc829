package trie

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/andreyvit/trie/arena"
	"github.com/andreyvit/trie/set"
)

type LevelStats struct {
	Blocks   int
	Sparse   int
	Dense    int
	Bitsets  int
	Keys     int
	SetBytes int
	Slots    int
}

type Stats struct {
	Tuples    int
	Levels    []LevelStats
	Allocated int64
}

func (s *Stats) Blocks() int {
	var n int
	for _, l := range s.Levels {
		n += l.Blocks
	}
	return n
}

func (s *Stats) SetBytes() int {
	var n int
	for _, l := range s.Levels {
		n += l.SetBytes
	}
	return n
}

func (s *Stats) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s tuples in %s blocks, %s of sets, %s allocated",
		humanize.Comma(int64(s.Tuples)),
		humanize.Comma(int64(s.Blocks())),
		humanize.IBytes(uint64(s.SetBytes())),
		humanize.IBytes(uint64(s.Allocated)))
	for i, l := range s.Levels {
		fmt.Fprintf(&buf, "\nlevel %d: %s blocks (%d sparse, %d dense, %d bitset), %s keys, %s slots, %s",
			i, humanize.Comma(int64(l.Blocks)), l.Sparse, l.Dense, l.Bitsets,
			humanize.Comma(int64(l.Keys)), humanize.Comma(int64(l.Slots)), humanize.IBytes(uint64(l.SetBytes)))
	}
	return buf.String()
}

func (t *Trie[R]) Stats() Stats {
	st := Stats{
		Tuples:    t.tuples,
		Levels:    make([]LevelStats, t.levels),
		Allocated: t.alloc.Allocated(),
	}
	t.forEachLevel(func(level int, _ *Block[R], children []arena.Ref) {
		ls := &st.Levels[level]
		for _, ref := range children {
			b := t.alloc.Block(ref)
			s := b.Set()
			ls.Blocks++
			if b.IsSparse() {
				ls.Sparse++
			} else {
				ls.Dense++
			}
			if s.Layout() == set.Bitset {
				ls.Bitsets++
			}
			ls.Keys += s.Cardinality()
			ls.SetBytes += s.NumBytes()
			ls.Slots += b.Slots()
		}
	})
	return st
}
