package trie

import (
	"context"
	"log/slog"

	"github.com/andreyvit/trie/arena"
	"github.com/andreyvit/trie/internal/par"
	"github.com/andreyvit/trie/set"
)

type Options struct {
	// Workers bounds the parallelism of Build and sizes the allocator's
	// partitions. Defaults to GOMAXPROCS.
	Workers int

	// Layout selects the set encoding of every node; set.Auto (the default)
	// picks the smaller encoding per node.
	Layout set.Layout

	Arena arena.Options

	Logger  *slog.Logger
	Verbose bool
}

func (o *Options) normalize() {
	if o.Workers <= 0 {
		o.Workers = par.Workers()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Trie is a relation stored column by column: level i holds the values of
// column i, grouped under the prefix formed by the earlier columns. Leaf
// level blocks may carry one payload (annotation) per tuple.
type Trie[R any] struct {
	alloc     *Allocator[R]
	root      arena.Ref
	levels    int
	tuples    int
	annotated bool
	opt       Options
}

// New returns an empty trie with its own allocator.
func New[R any](opt Options) *Trie[R] {
	opt.normalize()
	return &Trie[R]{
		alloc: NewAllocator[R](opt.Workers, opt.Arena),
		root:  arena.NoRef,
		opt:   opt,
	}
}

func (t *Trie[R]) Allocator() *Allocator[R] { return t.alloc }

// Root returns the handle of the first-level block, or NoRef for an empty
// trie.
func (t *Trie[R]) Root() arena.Ref { return t.root }

// Levels returns the arity of the stored tuples.
func (t *Trie[R]) Levels() int { return t.levels }

// Len returns the number of stored tuples.
func (t *Trie[R]) Len() int { return t.tuples }

// Annotated reports whether leaf blocks carry payloads.
func (t *Trie[R]) Annotated() bool { return t.annotated }

func (t *Trie[R]) Block(ref arena.Ref) *Block[R] {
	return t.alloc.Block(ref)
}

func (t *Trie[R]) Iterator() Iterator[R] {
	return NewIterator(t.alloc, t.root)
}

// descend walks the first len(prefix) columns and returns the block holding
// the next column, or nil when the prefix is absent.
func (t *Trie[R]) descend(prefix []uint32) *Block[R] {
	it := t.Iterator()
	for _, v := range prefix {
		if !it.Valid() {
			return nil
		}
		it = it.Get(v)
	}
	return it.Block()
}

// Contains reports whether tuple is stored. Tuples of the wrong arity are
// never contained.
func (t *Trie[R]) Contains(tuple []uint32) bool {
	if len(tuple) != t.levels || t.levels == 0 {
		return false
	}
	b := t.descend(tuple[:len(tuple)-1])
	return b != nil && b.Set().Contains(tuple[len(tuple)-1])
}

// Lookup returns the annotation of tuple; false means tuple is absent or the
// trie is not annotated.
func (t *Trie[R]) Lookup(tuple []uint32) (R, bool) {
	var zero R
	if len(tuple) != t.levels || t.levels == 0 {
		return zero, false
	}
	b := t.descend(tuple[:len(tuple)-1])
	if b == nil {
		return zero, false
	}
	return b.Data(tuple[len(tuple)-1])
}

// Children returns the set of values that follow prefix, or an empty set
// when prefix is absent or already a whole tuple.
func (t *Trie[R]) Children(prefix []uint32) set.Set {
	if len(prefix) >= t.levels {
		return set.Set{}
	}
	b := t.descend(prefix)
	if b == nil {
		return set.Set{}
	}
	return b.Set()
}

// ForEachTuple visits every tuple in lexicographic order along with its
// annotation (the zero R for unannotated tries). The tuple slice is reused
// between calls.
func (t *Trie[R]) ForEachTuple(f func(tuple []uint32, r R)) {
	if t.levels == 0 {
		return
	}
	tuple := make([]uint32, t.levels)
	t.forEach(t.alloc.Block(t.root), 0, tuple, f)
}

func (t *Trie[R]) forEach(b *Block[R], col int, tuple []uint32, f func(tuple []uint32, r R)) {
	last := col == t.levels-1
	b.Set().ForEachIndex(func(pos int, v uint32) {
		tuple[col] = v
		if last {
			var r R
			if b.HasData() {
				r = b.DataAt(pos, v)
			}
			f(tuple, r)
			return
		}
		t.forEach(t.alloc.Block(b.BlockAt(pos, v)), col+1, tuple, f)
	})
}

// Tuples collects every stored tuple.
func (t *Trie[R]) Tuples() [][]uint32 {
	r := make([][]uint32, 0, t.tuples)
	t.ForEachTuple(func(tuple []uint32, _ R) {
		r = append(r, append([]uint32(nil), tuple...))
	})
	return r
}

// forEachLevel visits blocks level by level; within a level, children are
// visited grouped by parent in the parent level's order, and in key order
// within a parent. This is the order blocks are written to trie files.
func (t *Trie[R]) forEachLevel(f func(level int, parent *Block[R], children []arena.Ref)) {
	if t.root.IsNil() {
		return
	}
	cur := []arena.Ref{t.root}
	f(0, nil, cur)
	for level := 1; level < t.levels; level++ {
		var next []arena.Ref
		for _, ref := range cur {
			parent := t.alloc.Block(ref)
			start := len(next)
			parent.Set().ForEachIndex(func(pos int, v uint32) {
				next = append(next, parent.BlockAt(pos, v))
			})
			f(level, parent, next[start:])
		}
		cur = next
	}
}

func (t *Trie[R]) debugf(msg string, attrs ...slog.Attr) {
	if t.opt.Verbose {
		t.opt.Logger.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
	}
}
