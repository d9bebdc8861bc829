package trie

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"

	"github.com/andreyvit/trie/arena"
	"github.com/andreyvit/trie/set"
)

func TestBuild_Basic(t *testing.T) {
	tuples := [][]uint32{
		{1, 1, 5},
		{1, 1, 7},
		{1, 4, 2},
		{3, 0, 0},
		{3, 9, 1000000},
	}
	tr := buildTrie(t, tuples, []string{"a", "b", "c", "d", "e"})

	if tr.Levels() != 3 || tr.Len() != 5 || !tr.Annotated() {
		t.Fatalf("levels=%d len=%d annotated=%v, wanted 3, 5, true", tr.Levels(), tr.Len(), tr.Annotated())
	}
	deepEqual(t, tr.Children(nil).Values(), []uint32{1, 3})
	deepEqual(t, tr.Children([]uint32{1}).Values(), []uint32{1, 4})
	deepEqual(t, tr.Children([]uint32{3, 9}).Values(), []uint32{1000000})
	if !tr.Children([]uint32{2}).IsEmpty() {
		t.Errorf("Children(2) not empty")
	}

	for i, tup := range tuples {
		if !tr.Contains(tup) {
			t.Errorf("Contains(%v) = false", tup)
		}
		if got, ok := tr.Lookup(tup); !ok || got != "abcde"[i:i+1] {
			t.Errorf("Lookup(%v) = (%q, %v), wanted %q", tup, got, ok, "abcde"[i:i+1])
		}
	}
	for _, tup := range [][]uint32{{1, 1, 6}, {2, 0, 0}, {3, 9}, {1, 1, 5, 0}, {}} {
		if tr.Contains(tup) {
			t.Errorf("Contains(%v) = true", tup)
		}
		if _, ok := tr.Lookup(tup); ok {
			t.Errorf("Lookup(%v) found", tup)
		}
	}

	if diff := cmp.Diff(tuples, tr.Tuples()); diff != "" {
		t.Errorf("Tuples mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		tuples [][]uint32
		anns   []int
		err    error
	}{
		{"unsorted", [][]uint32{{2}, {1}}, nil, ErrUnsorted},
		{"duplicate", [][]uint32{{1, 2}, {1, 2}}, nil, ErrUnsorted},
		{"arity", [][]uint32{{1, 2}, {3}}, nil, ErrArity},
		{"empty tuple", [][]uint32{{}}, nil, ErrArity},
		{"annotations", [][]uint32{{1}, {2}}, []int{1}, ErrAnnotations},
		{"reserved value", [][]uint32{{0xFFFFFFFF}}, nil, set.ErrOutOfRange},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(tc.tuples, tc.anns, testOptions())
			if !errors.Is(err, tc.err) {
				t.Fatalf("err = %v, wanted %v", err, tc.err)
			}
		})
	}

	_, err := Build[int]([][]uint32{{1}}, nil, Options{Layout: set.Layout(42)})
	if !errors.Is(err, set.ErrUnknownLayout) {
		t.Fatalf("err = %v, wanted set.ErrUnknownLayout", err)
	}
}

func TestBuild_Empty(t *testing.T) {
	tr := buildTrie[int](t, nil, nil)
	if tr.Levels() != 0 || tr.Len() != 0 || tr.Root() != arena.NoRef {
		t.Fatalf("empty trie: levels=%d len=%d root=%v", tr.Levels(), tr.Len(), tr.Root())
	}
	if it := tr.Iterator(); tr.Contains(nil) || it.Valid() {
		t.Fatalf("empty trie reports content")
	}
	tr.ForEachTuple(func([]uint32, int) { t.Fatalf("ForEachTuple visited a tuple") })
	if tr.Annotated() {
		t.Fatalf("trie without annotations reports Annotated")
	}

	ann := buildTrie(t, nil, []string{})
	if !ann.Annotated() || !ann.Manifest().Annotated {
		t.Fatalf("empty annotated trie: Annotated=%v, manifest %+v", ann.Annotated(), ann.Manifest())
	}
}

func TestBuild_MatchesReference(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tuples := drawTuples(t)
		anns := annotationsFor(tuples)
		opt := Options{
			Workers: rapid.IntRange(1, 8).Draw(t, "workers"),
			Layout:  rapid.SampledFrom([]set.Layout{set.Auto, set.UInteger, set.Bitset}).Draw(t, "layout"),
		}
		tr, err := Build(tuples, anns, opt)
		if err != nil {
			t.Fatal(err)
		}

		var got [][]uint32
		var gotAnns []int64
		tr.ForEachTuple(func(tup []uint32, r int64) {
			got = append(got, append([]uint32(nil), tup...))
			gotAnns = append(gotAnns, r)
		})
		if diff := cmp.Diff(tuples, got, cmp.Comparer(tuplesEqual)); diff != "" {
			t.Fatalf("ForEachTuple mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(anns, gotAnns, cmp.Comparer(int64sEqual)); diff != "" {
			t.Fatalf("annotations mismatch (-want +got):\n%s", diff)
		}

		for i, tup := range tuples {
			if r, ok := tr.Lookup(tup); !ok || r != anns[i] {
				t.Fatalf("Lookup(%v) = (%d, %v), wanted %d", tup, r, ok, anns[i])
			}
		}
		if len(tuples) > 0 {
			next := append([]uint32(nil), tuples[0]...)
			next[len(next)-1]++
			_, want := findTuple(tuples, next)
			if tr.Contains(next) != want {
				t.Fatalf("Contains(%v) = %v, wanted %v", next, !want, want)
			}
		}

		st := tr.Stats()
		if st.Tuples != len(tuples) || len(st.Levels) != tr.Levels() {
			t.Fatalf("Stats = %+v", st)
		}
		if len(tuples) > 0 && st.Levels[len(st.Levels)-1].Keys != len(tuples) {
			t.Fatalf("leaf keys = %d, wanted %d", st.Levels[len(st.Levels)-1].Keys, len(tuples))
		}
		if st.Blocks() != tr.Allocator().Blocks() {
			t.Fatalf("Stats counts %d blocks, allocator holds %d", st.Blocks(), tr.Allocator().Blocks())
		}
		if opt.Layout != set.Auto {
			for _, l := range st.Levels {
				if bitsets := l.Bitsets; (opt.Layout == set.Bitset) != (bitsets == l.Blocks) && l.Blocks > 0 {
					t.Fatalf("layout %v: %d of %d blocks are bitsets", opt.Layout, bitsets, l.Blocks)
				}
			}
		}
	})
}

func findTuple(tuples [][]uint32, tup []uint32) (int, bool) {
	for i, t := range tuples {
		if compareTuples(t, tup) == 0 {
			return i, true
		}
	}
	return -1, false
}

func tuplesEqual(a, b [][]uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) || compareTuples(a[i], b[i]) != 0 {
			return false
		}
	}
	return true
}

func int64sEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestIterator_Descent(t *testing.T) {
	// level 0 is dense (3 keys over range 4), level 1 under key 2 is sparse
	tuples := [][]uint32{{0, 1}, {2, 7}, {2, 90000}, {3, 3}}
	tr := buildTrie(t, tuples, []int{10, 20, 30, 40})

	it := tr.Iterator()
	if !it.Valid() || it.Block().IsSparse() {
		t.Fatalf("root iterator: valid=%v sparse=%v", it.Valid(), it.Block().IsSparse())
	}

	child := it.Get(2)
	if !child.Valid() || it.PointerIndex != 2 || child.PointerIndex != 2 {
		t.Fatalf("Get(2): valid=%v parent index=%d child index=%d, wanted true, 2, 2", child.Valid(), it.PointerIndex, child.PointerIndex)
	}
	if !child.Block().IsSparse() {
		t.Fatalf("level 1 under 2 is %v, wanted sparse", child.Block().Addressing())
	}
	if r, ok := child.Data(90000); !ok || r != 30 {
		t.Fatalf("Data(90000) = (%d, %v), wanted 30", r, ok)
	}
	if _, ok := child.Data(8); ok {
		t.Fatalf("Data(8) found")
	}

	leaf := child.Get(90000)
	if leaf.Valid() {
		t.Fatalf("descending past the leaf level yielded a valid iterator")
	}
	if child.PointerIndex != set.NotFound {
		t.Fatalf("leaf Get index = %d, wanted NotFound", child.PointerIndex)
	}

	missing := it.Get(1)
	deeper := missing.Get(0)
	if missing.Valid() || deeper.Valid() {
		t.Fatalf("absent key yielded a valid iterator")
	}
	if _, ok := missing.Data(0); ok {
		t.Fatalf("invalid iterator returned data")
	}
}

func TestTrie_StatsAndDump(t *testing.T) {
	tr := buildTrie(t, [][]uint32{{1, 2}, {1, 3}, {5, 6}}, []string{"x", "y", "z"})

	st := tr.Stats()
	if st.Blocks() != 3 || st.Levels[0].Keys != 2 || st.Levels[1].Keys != 3 || st.Allocated <= 0 {
		t.Fatalf("Stats = %+v", st)
	}
	if s := st.String(); !strings.Contains(s, "3 tuples in 3 blocks") || !strings.Contains(s, "level 1:") {
		t.Fatalf("Stats.String() = %q", s)
	}

	if !DumpHeaders.Contains(DumpHeaders) || DumpHeaders.Contains(DumpKeys) {
		t.Fatalf("DumpFlags.Contains returned unexpected results")
	}
	out := tr.Dump(DumpAll)
	for _, want := range []string{"trie (2 levels", "-- level 1", "[2 3]", "[1 3] => y", "density=0.3333"} {
		if !strings.Contains(out, want) {
			t.Errorf("Dump output missing %q; got:\n%s", want, out)
		}
	}
}

func TestDump_KeysLimit(t *testing.T) {
	var tuples [][]uint32
	for i := uint32(0); i < 40; i++ {
		tuples = append(tuples, []uint32{i})
	}
	out := buildTrie[int](t, tuples, nil).Dump(DumpKeys | DumpBlocks)
	if !strings.Contains(out, "...+24]") {
		t.Fatalf("Dump did not truncate keys; got:\n%s", out)
	}
}
