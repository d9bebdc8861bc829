package set

import (
	"errors"
	"slices"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"

	"github.com/andreyvit/trie/arena"
)

var layouts = []Layout{UInteger, Bitset}

func TestSet_Scenario(t *testing.T) {
	for _, layout := range layouts {
		t.Run(layout.String(), func(t *testing.T) {
			pool := arena.NewPool(1, arena.Options{})
			s, err := Build(pool, 0, layout, []uint32{1, 3, 7, 9}, 10)
			if err != nil {
				t.Fatal(err)
			}
			if s.Layout() != layout || s.Cardinality() != 4 || s.Range() != 10 {
				t.Fatalf("s = %v, wanted %v with card 4, range 10", s, layout)
			}
			if pos, ok := s.Find(7); !ok || pos != 2 {
				t.Fatalf("Find(7) = (%d, %v), wanted (2, true)", pos, ok)
			}
			if pos, ok := s.Find(4); ok || pos != NotFound {
				t.Fatalf("Find(4) = (%d, %v), wanted (NotFound, false)", pos, ok)
			}

			type pair struct {
				I int
				V uint32
			}
			var got []pair
			s.ForEachIndex(func(i int, v uint32) {
				got = append(got, pair{i, v})
			})
			want := []pair{{0, 1}, {1, 3}, {2, 7}, {3, 9}}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("ForEachIndex mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSet_EmptyShortCircuits(t *testing.T) {
	for _, layout := range layouts {
		s := MustOf(layout)
		if s.NumBytes() != 0 {
			t.Errorf("%v: empty set has %d bytes, wanted 0", layout, s.NumBytes())
		}
		if pos, ok := s.Find(0); ok || pos != NotFound {
			t.Errorf("%v: Find(0) on empty = (%d, %v), wanted (NotFound, false)", layout, pos, ok)
		}
		s.ForEach(func(v uint32) { t.Errorf("%v: ForEach visited %d on empty set", layout, v) })
		if n := s.ParForEach(func(int, uint32) {}); n != 0 {
			t.Errorf("%v: ParForEach on empty used %d workers, wanted 0", layout, n)
		}
	}

	var zero Set
	if zero.Layout() != UInteger || !zero.IsEmpty() || zero.Contains(0) {
		t.Fatalf("zero Set = %v, wanted empty uinteger", zero)
	}
}

func TestBuild_Validation(t *testing.T) {
	tests := []struct {
		name   string
		values []uint32
		rng    uint32
		err    error
	}{
		{"unsorted", []uint32{3, 1}, 0, ErrUnsorted},
		{"duplicate", []uint32{1, 1}, 0, ErrUnsorted},
		{"above range", []uint32{1, 10}, 10, ErrOutOfRange},
		{"max uint32", []uint32{1, 0xFFFFFFFF}, 0, ErrOutOfRange},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(nil, 0, UInteger, tc.values, tc.rng)
			if !errors.Is(err, tc.err) {
				t.Fatalf("err = %v, wanted %v", err, tc.err)
			}
		})
	}

	if _, err := Build(nil, 0, Layout(9), []uint32{1}, 0); !errors.Is(err, ErrUnknownLayout) {
		t.Fatalf("err = %v, wanted ErrUnknownLayout", err)
	}
}

func TestBuildUnchecked_PreservesInputOrder(t *testing.T) {
	s := BuildUnchecked(nil, 0, UInteger, []uint32{5, 2, 9}, 10)
	if diff := cmp.Diff([]uint32{5, 2, 9}, s.Values()); diff != "" {
		t.Fatalf("Values mismatch (-want +got):\n%s", diff)
	}
}

func TestChoose(t *testing.T) {
	if l := Choose([]uint32{1, 1000000}); l != UInteger {
		t.Errorf("Choose(sparse) = %v, wanted uinteger", l)
	}
	dense := make([]uint32, 200)
	for i := range dense {
		dense[i] = uint32(i)
	}
	if l := Choose(dense); l != Bitset {
		t.Errorf("Choose(dense) = %v, wanted bitset", l)
	}
	if s := MustOf(Auto, dense...); s.Layout() != Bitset {
		t.Errorf("MustOf(Auto, dense).Layout() = %v, wanted bitset", s.Layout())
	}
}

func drawValues(t *rapid.T) []uint32 {
	maxVal := rapid.Uint32Range(1, 20000).Draw(t, "maxVal")
	values := rapid.SliceOfNDistinct(rapid.Uint32Range(0, maxVal), 0, 600, rapid.ID[uint32]).Draw(t, "values")
	slices.Sort(values)
	return values
}

func TestSet_FindSortedInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		values := drawValues(t)
		layout := rapid.SampledFrom(layouts).Draw(t, "layout")
		var rng uint32 = 1
		if len(values) > 0 {
			rng = values[len(values)-1] + 1 + rapid.Uint32Range(0, 100).Draw(t, "slack")
		}
		s, err := Build(nil, 0, layout, values, rng)
		if err != nil {
			t.Fatal(err)
		}

		for i, v := range values {
			if pos, ok := s.Find(v); !ok || pos != i {
				t.Fatalf("Find(%d) = (%d, %v), wanted (%d, true)", v, pos, ok, i)
			}
		}
		for k := uint32(0); k < rng; k++ {
			i, present := slices.BinarySearch(values, k)
			pos, ok := s.Find(k)
			if ok != present || (present && pos != i) || (!present && pos != NotFound) {
				t.Fatalf("Find(%d) = (%d, %v), wanted present=%v at %d", k, pos, ok, present, i)
			}
			start := rapid.IntRange(0, len(values)).Draw(t, "start")
			lb := max(start, sort.Search(len(values), func(j int) bool { return values[j] >= k }))
			fpos, fok := s.FindFrom(start, k)
			wantFound := lb < len(values) && values[lb] == k
			if fpos != lb || fok != wantFound {
				t.Fatalf("FindFrom(%d, %d) = (%d, %v), wanted (%d, %v)", start, k, fpos, fok, lb, wantFound)
			}
			if k > 200 {
				break
			}
		}
		if got := s.Values(); !slices.Equal(got, values) {
			t.Fatalf("Values() = %v, wanted %v", got, values)
		}
		lo, okLo := s.Min()
		hi, okHi := s.Max()
		if len(values) == 0 {
			if okLo || okHi {
				t.Fatalf("Min/Max on empty set reported a value")
			}
		} else if lo != values[0] || hi != values[len(values)-1] || !okLo || !okHi {
			t.Fatalf("Min, Max = %d, %d, wanted %d, %d", lo, hi, values[0], values[len(values)-1])
		}
	})
}

func TestSet_ParallelMatchesSequential(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		values := drawValues(t)
		layout := rapid.SampledFrom(layouts).Draw(t, "layout")
		workers := rapid.IntRange(1, 8).Draw(t, "workers")
		s := MustOf(layout, values...)

		var mu sync.Mutex
		var got []uint32
		used := s.ParForEachN(workers, func(tid int, v uint32) {
			if tid < 0 || tid >= workers {
				panic("worker id out of range")
			}
			mu.Lock()
			got = append(got, v)
			mu.Unlock()
		})
		if used > workers {
			t.Fatalf("used %d workers, limit %d", used, workers)
		}
		slices.Sort(got)
		if !slices.Equal(got, values) {
			t.Fatalf("ParForEach visited %v, wanted %v", got, values)
		}

		perTid := make([][]int, workers)
		s.ParForEachIndexN(workers, func(tid, i int, v uint32) {
			if values[i] != v {
				panic("index/value mismatch")
			}
			perTid[tid] = append(perTid[tid], i)
		})
		var idx []int
		for _, p := range perTid {
			idx = append(idx, p...)
		}
		slices.Sort(idx)
		if len(idx) != s.Cardinality() {
			t.Fatalf("ParForEachIndex visited %d positions, wanted %d", len(idx), s.Cardinality())
		}
		for i := range idx {
			if idx[i] != i {
				t.Fatalf("ParForEachIndex positions %v, wanted 0..%d once each", idx, s.Cardinality()-1)
			}
		}
	})
}

func TestSet_ForEachUntil(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		values := drawValues(t)
		if len(values) == 0 {
			return
		}
		layout := rapid.SampledFrom(layouts).Draw(t, "layout")
		k := rapid.IntRange(0, len(values)-1).Draw(t, "k")
		s := MustOf(layout, values...)

		var visited []uint32
		s.ForEachUntil(func(v uint32) bool {
			visited = append(visited, v)
			return v == values[k]
		})
		if !slices.Equal(visited, values[:k+1]) {
			t.Fatalf("ForEachUntil visited %v, wanted %v", visited, values[:k+1])
		}
	})
}

func TestIntersect(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := drawValues(t)
		b := drawValues(t)
		la := rapid.SampledFrom(layouts).Draw(t, "la")
		lb := rapid.SampledFrom(layouts).Draw(t, "lb")
		sa, sb := MustOf(la, a...), MustOf(lb, b...)

		var want []uint32
		for _, v := range a {
			if _, ok := slices.BinarySearch(b, v); ok {
				want = append(want, v)
			}
		}

		pool := arena.NewPool(1, arena.Options{})
		r := Intersect(pool, 0, sa, sb)
		if r.Layout() != IntersectLayout(sa, sb) {
			t.Fatalf("result layout %v, wanted %v", r.Layout(), IntersectLayout(sa, sb))
		}
		if r.Cardinality() != len(want) || !slices.Equal(r.Values(), want) {
			t.Fatalf("Intersect(%v, %v) = %v, wanted %v", la, lb, r.Values(), want)
		}
		if err := mustCodec(r.Layout()).Validate(r.Bytes(), r.Cardinality(), r.Range()); err != nil {
			t.Fatalf("result does not validate: %v", err)
		}
		if c := IntersectCount(sa, sb); c != len(want) {
			t.Fatalf("IntersectCount = %d, wanted %d", c, len(want))
		}
		for i, v := range want {
			if pos, ok := r.Find(v); !ok || pos != i {
				t.Fatalf("result.Find(%d) = (%d, %v), wanted (%d, true)", v, pos, ok, i)
			}
		}
	})
}

func TestIntersect_Gallop(t *testing.T) {
	large := make([]uint32, 0, 10000)
	for i := uint32(0); i < 10000; i++ {
		large = append(large, 3*i)
	}
	small := []uint32{0, 4, 9, 299, 3000, 29997, 40000}
	r := Intersect(nil, 0, MustOf(UInteger, small...), MustOf(UInteger, large...))
	if diff := cmp.Diff([]uint32{0, 9, 3000, 29997}, r.Values()); diff != "" {
		t.Fatalf("Intersect mismatch (-want +got):\n%s", diff)
	}
	if r.Range() != 29998 {
		t.Fatalf("Range = %d, wanted 29998", r.Range())
	}
}
