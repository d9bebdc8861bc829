package trie

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/andreyvit/trie/arena"
)

type DumpFlags uint64

const (
	DumpHeaders = DumpFlags(1 << iota)
	DumpStats
	DumpBlocks
	DumpKeys
	DumpTuples

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)

	// dumpKeysLimit caps the keys printed per block.
	dumpKeysLimit = 16
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the trie for debugging.
func (t *Trie[R]) Dump(f DumpFlags) string {
	var buf strings.Builder
	if f.Contains(DumpHeaders) {
		fmt.Fprintln(&buf, dumpSep1)
		fmt.Fprintf(&buf, "trie (%d levels, %s tuples, annotated=%v)\n", t.levels, humanize.Comma(int64(t.tuples)), t.annotated)
	}
	if f.Contains(DumpStats) {
		st := t.Stats()
		fmt.Fprintln(&buf, st.String())
	}
	if f.Contains(DumpBlocks) {
		lastLevel := -1
		t.forEachLevel(func(level int, _ *Block[R], children []arena.Ref) {
			if level != lastLevel {
				fmt.Fprintln(&buf, rpad(fmt.Sprintf("-- level %d ", level), 60, '-'))
				lastLevel = level
			}
			for _, ref := range children {
				t.dumpBlock(&buf, f, ref)
			}
		})
	}
	if f.Contains(DumpTuples) {
		fmt.Fprintln(&buf, dumpSep2)
		var n int
		t.ForEachTuple(func(tuple []uint32, r R) {
			n++
			if t.annotated {
				fmt.Fprintf(&buf, "%d: %v => %v\n", n, tuple, r)
			} else {
				fmt.Fprintf(&buf, "%d: %v\n", n, tuple)
			}
		})
	}
	return buf.String()
}

func (t *Trie[R]) dumpBlock(w *strings.Builder, f DumpFlags, ref arena.Ref) {
	b := t.alloc.Block(ref)
	s := b.Set()
	fmt.Fprintf(w, "%v %v %v slots=%d density=%.4f", ref, b.Addressing(), s, b.Slots(), s.Density())
	if f.Contains(DumpKeys) {
		w.WriteString(" [")
		var i int
		s.ForEachUntil(func(v uint32) bool {
			if i > 0 {
				w.WriteByte(' ')
			}
			if i == dumpKeysLimit {
				fmt.Fprintf(w, "...+%d", s.Cardinality()-i)
				return true
			}
			fmt.Fprintf(w, "%d", v)
			i++
			return false
		})
		w.WriteByte(']')
	}
	w.WriteByte('\n')
}
