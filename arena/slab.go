package arena

import (
	"fmt"
	"unsafe"
)

// DefaultSlabLen is the default number of elements in a slab chunk.
const DefaultSlabLen = 4096

// Slab carves typed slices out of larger chunks.
type Slab[T any] struct {
	chunkLen  int
	cur       []T
	off       int
	allocated int64
}

func NewSlab[T any](chunkLen int) *Slab[T] {
	if chunkLen <= 0 {
		chunkLen = DefaultSlabLen
	}
	return &Slab[T]{chunkLen: chunkLen}
}

// Alloc returns n zero-valued elements with cap == len.
func (s *Slab[T]) Alloc(n int) []T {
	if n < 0 {
		panic("arena: negative allocation")
	}
	if n == 0 {
		return []T{}
	}
	s.allocated += int64(n)
	if n > s.chunkLen/4 {
		return make([]T, n)
	}
	if s.cur == nil || s.off+n > len(s.cur) {
		s.cur = make([]T, s.chunkLen)
		s.off = 0
	}
	start := s.off
	s.off += n
	return s.cur[start:s.off:s.off]
}

// Fill returns n elements set to v.
func (s *Slab[T]) Fill(n int, v T) []T {
	r := s.Alloc(n)
	for i := range r {
		r[i] = v
	}
	return r
}

// Allocated returns the number of elements handed out so far.
func (s *Slab[T]) Allocated() int64 {
	return s.allocated
}

// AllocatedBytes is Allocated times the element size.
func (s *Slab[T]) AllocatedBytes() int64 {
	var zero T
	return s.allocated * int64(unsafe.Sizeof(zero))
}

func (s *Slab[T]) Reset() {
	s.cur = nil
	s.off = 0
	s.allocated = 0
}

// Slabs is a tid-indexed set of slabs.
type Slabs[T any] struct {
	slabs []*Slab[T]
}

func NewSlabs[T any](workers, chunkLen int) *Slabs[T] {
	if workers <= 0 {
		workers = 1
	}
	ss := &Slabs[T]{slabs: make([]*Slab[T], workers)}
	for i := range ss.slabs {
		ss.slabs[i] = NewSlab[T](chunkLen)
	}
	return ss
}

func (ss *Slabs[T]) Worker(tid int) *Slab[T] {
	if tid < 0 || tid >= len(ss.slabs) {
		panic(fmt.Errorf("arena: worker id %d out of range [0, %d)", tid, len(ss.slabs)))
	}
	return ss.slabs[tid]
}

func (ss *Slabs[T]) Alloc(tid, n int) []T {
	return ss.Worker(tid).Alloc(n)
}

func (ss *Slabs[T]) Fill(tid, n int, v T) []T {
	return ss.Worker(tid).Fill(n, v)
}

func (ss *Slabs[T]) AllocatedBytes() int64 {
	var n int64
	for _, s := range ss.slabs {
		n += s.AllocatedBytes()
	}
	return n
}

func (ss *Slabs[T]) Reset() {
	for _, s := range ss.slabs {
		s.Reset()
	}
}
