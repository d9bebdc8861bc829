package trie

import "github.com/andreyvit/trie/arena"

// Iterator is a descent cursor over a trie. PointerIndex is the slot
// resolved by the last step, carried into the child so that dense levels
// never repeat a lookup.
//
// An Iterator whose block is absent is invalid; Get on it yields another
// invalid iterator, so callers can chain descents and check Valid once.
type Iterator[R any] struct {
	PointerIndex int

	alloc *Allocator[R]
	ref   arena.Ref
	block *Block[R]
}

// NewIterator returns a cursor positioned at ref.
func NewIterator[R any](alloc *Allocator[R], ref arena.Ref) Iterator[R] {
	return Iterator[R]{alloc: alloc, ref: ref, block: alloc.Block(ref)}
}

func (it *Iterator[R]) Valid() bool {
	return it.block != nil
}

func (it *Iterator[R]) Block() *Block[R] {
	return it.block
}

func (it *Iterator[R]) Ref() arena.Ref {
	return it.ref
}

// Get descends to the child stored under v, updating PointerIndex to the
// resolved slot.
func (it *Iterator[R]) Get(v uint32) Iterator[R] {
	if it.block == nil {
		return Iterator[R]{alloc: it.alloc, ref: arena.NoRef}
	}
	pos, ref, ok := it.block.BlockForward(it.PointerIndex, v)
	it.PointerIndex = pos
	if !ok {
		return Iterator[R]{PointerIndex: pos, alloc: it.alloc, ref: arena.NoRef}
	}
	return Iterator[R]{PointerIndex: pos, alloc: it.alloc, ref: ref, block: it.alloc.Block(ref)}
}

// Data returns the payload stored under v in the current block.
func (it *Iterator[R]) Data(v uint32) (R, bool) {
	if it.block == nil {
		var zero R
		return zero, false
	}
	return it.block.Data(v)
}
