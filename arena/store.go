package arena

import "fmt"

// Ref identifies an object in a Store: the owning worker id in the high 16
// bits and the object's index within that worker in the low 48 bits.
type Ref uint64

// NoRef is the null handle.
const NoRef = ^Ref(0)

const (
	refIndexBits = 48
	refIndexMask = 1<<refIndexBits - 1
	maxWorkers   = 1<<16 - 1

	storeChunkLen = 1024
)

func MakeRef(tid int, index int) Ref {
	return Ref(uint64(tid)<<refIndexBits | uint64(index))
}

func (r Ref) Worker() int {
	return int(uint64(r) >> refIndexBits)
}

func (r Ref) Index() int {
	return int(uint64(r) & refIndexMask)
}

func (r Ref) IsNil() bool {
	return r == NoRef
}

func (r Ref) String() string {
	if r == NoRef {
		return "nil"
	}
	return fmt.Sprintf("%d:%d", r.Worker(), r.Index())
}

// Store is an append-only, tid-partitioned object store. Objects never move,
// so pointers returned by Get stay valid for the lifetime of the store.
//
// Each partition must only be appended to by its own worker. Reads are safe
// from any goroutine once construction has finished.
type Store[T any] struct {
	parts []storePart[T]
}

type storePart[T any] struct {
	chunks [][]T
	n      int
}

func NewStore[T any](workers int) *Store[T] {
	if workers <= 0 {
		workers = 1
	}
	if workers > maxWorkers {
		panic(fmt.Errorf("arena: too many workers: %d", workers))
	}
	return &Store[T]{parts: make([]storePart[T], workers)}
}

// New allocates a zero T in partition tid.
func (s *Store[T]) New(tid int) (Ref, *T) {
	if tid < 0 || tid >= len(s.parts) {
		panic(fmt.Errorf("arena: worker id %d out of range [0, %d)", tid, len(s.parts)))
	}
	p := &s.parts[tid]
	ci, off := p.n/storeChunkLen, p.n%storeChunkLen
	if ci == len(p.chunks) {
		p.chunks = append(p.chunks, make([]T, storeChunkLen))
	}
	ref := MakeRef(tid, p.n)
	p.n++
	return ref, &p.chunks[ci][off]
}

// Append copies v into partition tid.
func (s *Store[T]) Append(tid int, v T) Ref {
	ref, ptr := s.New(tid)
	*ptr = v
	return ref
}

// Get returns the object for ref, or nil for NoRef and unknown handles.
func (s *Store[T]) Get(ref Ref) *T {
	if ref == NoRef {
		return nil
	}
	tid, idx := ref.Worker(), ref.Index()
	if tid >= len(s.parts) {
		return nil
	}
	p := &s.parts[tid]
	if idx >= p.n {
		return nil
	}
	return &p.chunks[idx/storeChunkLen][idx%storeChunkLen]
}

// Len returns the total number of objects across partitions.
func (s *Store[T]) Len() int {
	var n int
	for i := range s.parts {
		n += s.parts[i].n
	}
	return n
}

// ForEach visits objects partition by partition in allocation order.
func (s *Store[T]) ForEach(f func(ref Ref, v *T)) {
	for tid := range s.parts {
		p := &s.parts[tid]
		for i := 0; i < p.n; i++ {
			f(MakeRef(tid, i), &p.chunks[i/storeChunkLen][i%storeChunkLen])
		}
	}
}

func (s *Store[T]) Reset() {
	for i := range s.parts {
		s.parts[i] = storePart[T]{}
	}
}
