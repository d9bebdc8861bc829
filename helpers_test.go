package trie

import (
	"log/slog"
	"reflect"
	"slices"

	"pgregory.net/rapid"
)

func init() {
	slog.SetLogLoggerLevel(slog.LevelDebug)
}

// tb is the part of testing.TB that *rapid.T also provides.
type tb interface {
	Helper()
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

func deepEqual[T any](t tb, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func testOptions() Options {
	return Options{Workers: 4, Verbose: true}
}

// sortedTuples sorts and dedups tuples in lexicographic order.
func sortedTuples(tuples [][]uint32) [][]uint32 {
	slices.SortFunc(tuples, compareTuples)
	return slices.CompactFunc(tuples, func(a, b []uint32) bool {
		return compareTuples(a, b) == 0
	})
}

// drawTuples generates a sorted, duplicate-free relation. Narrow domains
// produce dense blocks, wide ones sparse blocks.
func drawTuples(t *rapid.T) [][]uint32 {
	arity := rapid.IntRange(1, 4).Draw(t, "arity")
	domain := rapid.SampledFrom([]uint32{4, 300, 100000}).Draw(t, "domain")
	n := rapid.IntRange(0, 300).Draw(t, "n")
	col := rapid.Uint32Range(0, domain-1)
	tuples := make([][]uint32, n)
	for i := range tuples {
		tuples[i] = rapid.SliceOfN(col, arity, arity).Draw(t, "tuple")
	}
	return sortedTuples(tuples)
}

func annotationsFor(tuples [][]uint32) []int64 {
	anns := make([]int64, len(tuples))
	for i, tup := range tuples {
		var h int64 = 17
		for _, v := range tup {
			h = h*31 + int64(v)
		}
		anns[i] = h
	}
	return anns
}

func buildTrie[R any](t tb, tuples [][]uint32, anns []R) *Trie[R] {
	t.Helper()
	tr, err := Build(tuples, anns, testOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tr
}
