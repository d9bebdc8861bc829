package trie

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/andreyvit/trie/arena"
	"github.com/andreyvit/trie/set"
)

// Build constructs a trie from tuples, which must all have the same arity
// and be in strictly ascending lexicographic order. annotations is either
// nil or holds one payload per tuple, stored on the leaf level.
//
// The first level is built by worker 0; the subtries under its keys are
// built in parallel, each worker allocating from its own partition.
func Build[R any](tuples [][]uint32, annotations []R, opt Options) (*Trie[R], error) {
	start := time.Now()
	t := New[R](opt)
	if t.opt.Layout != set.Auto {
		if _, err := set.CodecFor(t.opt.Layout); err != nil {
			return nil, err
		}
	}
	if err := validateTuples(tuples, annotations); err != nil {
		return nil, err
	}
	t.annotated = annotations != nil
	if len(tuples) == 0 {
		return t, nil
	}

	b := &builder[R]{
		tuples: tuples,
		anns:   annotations,
		arity:  len(tuples[0]),
		layout: t.opt.Layout,
		alloc:  t.alloc,
	}

	vals, groups := b.distinct(0, len(tuples), 0, getValues(), nil)
	s := set.BuildUnchecked(b.alloc, 0, b.layout, vals, 0)
	releaseValues(vals)
	ref, root := b.alloc.NewBlock(0, s)

	var workers int
	if b.arity == 1 {
		b.fillLeaf(0, root, groups)
	} else {
		root.InitPointers(0, b.alloc)
		workers = s.ParForEachIndexN(t.opt.Workers, func(tid, pos int, v uint32) {
			child := b.build(tid, groups[pos], groups[pos+1], 1)
			root.SetBlock(pos, v, child)
		})
	}

	t.root = ref
	t.levels = b.arity
	t.tuples = len(tuples)
	t.debugf("trie built",
		slog.Int("tuples", t.tuples),
		slog.Int("levels", t.levels),
		slog.Int("blocks", t.alloc.Blocks()),
		slog.Int("workers", workers),
		slog.Duration("elapsed", time.Since(start)))
	return t, nil
}

func validateTuples[R any](tuples [][]uint32, annotations []R) error {
	if annotations != nil && len(annotations) != len(tuples) {
		return fmt.Errorf("%w: %d annotations for %d tuples", ErrAnnotations, len(annotations), len(tuples))
	}
	if len(tuples) == 0 {
		return nil
	}
	arity := len(tuples[0])
	if arity == 0 {
		return fmt.Errorf("%w: empty tuple", ErrArity)
	}
	for i, tup := range tuples {
		if len(tup) != arity {
			return fmt.Errorf("%w: tuple %d has %d columns, wanted %d", ErrArity, i, len(tup), arity)
		}
		for _, v := range tup {
			if v == math.MaxUint32 {
				return fmt.Errorf("%w: tuple %d holds reserved value %d", set.ErrOutOfRange, i, v)
			}
		}
		if i > 0 && compareTuples(tuples[i-1], tup) >= 0 {
			return fmt.Errorf("%w: tuple %d %v follows %v", ErrUnsorted, i, tup, tuples[i-1])
		}
	}
	return nil
}

func compareTuples(a, b []uint32) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

type builder[R any] struct {
	tuples [][]uint32
	anns   []R
	arity  int
	layout set.Layout
	alloc  *Allocator[R]
}

// distinct appends the distinct values of column col over tuples[lo:hi] to
// vals, and to groups the index where each value's run starts, followed by
// hi. Tuples are sorted, so equal values are adjacent and ascending.
func (b *builder[R]) distinct(lo, hi, col int, vals []uint32, groups []int) ([]uint32, []int) {
	for i := lo; i < hi; i++ {
		v := b.tuples[i][col]
		if i == lo || v != b.tuples[i-1][col] {
			vals = append(vals, v)
			groups = append(groups, i)
		}
	}
	return vals, append(groups, hi)
}

// build creates the block for column col over tuples[lo:hi], all sharing
// the first col columns, and returns its handle.
func (b *builder[R]) build(tid, lo, hi, col int) arena.Ref {
	vals, groups := b.distinct(lo, hi, col, getValues(), nil)
	s := set.BuildUnchecked(b.alloc, tid, b.layout, vals, 0)
	releaseValues(vals)
	ref, blk := b.alloc.NewBlock(tid, s)

	if col == b.arity-1 {
		b.fillLeaf(tid, blk, groups)
		return ref
	}
	blk.InitPointers(tid, b.alloc)
	s.ForEachIndex(func(pos int, v uint32) {
		blk.SetBlock(pos, v, b.build(tid, groups[pos], groups[pos+1], col+1))
	})
	return ref
}

func (b *builder[R]) fillLeaf(tid int, blk *Block[R], groups []int) {
	if b.anns == nil {
		return
	}
	blk.AllocData(tid, b.alloc)
	blk.Set().ForEachIndex(func(pos int, v uint32) {
		blk.SetData(pos, v, b.anns[groups[pos]])
	})
}
