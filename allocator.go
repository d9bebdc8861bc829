package trie

import (
	"unsafe"

	"github.com/andreyvit/trie/arena"
	"github.com/andreyvit/trie/set"
)

// Allocator owns every block of a trie along with the memory its blocks
// reference: set bodies, child handle arrays, payload arrays and presence
// bitmaps. Each kind of memory is partitioned by worker id, so builders
// running on distinct workers never contend.
//
// Nothing is freed individually; dropping the Allocator (or calling Reset)
// releases the whole trie.
type Allocator[R any] struct {
	bytes  *arena.Pool
	blocks *arena.Store[Block[R]]
	refs   *arena.Slabs[arena.Ref]
	values *arena.Slabs[R]
	bits   *arena.Slabs[uint64]
}

var _ set.Allocator = (*Allocator[int])(nil)

func NewAllocator[R any](workers int, o arena.Options) *Allocator[R] {
	if workers <= 0 {
		workers = 1
	}
	return &Allocator[R]{
		bytes:  arena.NewPool(workers, o),
		blocks: arena.NewStore[Block[R]](workers),
		refs:   arena.NewSlabs[arena.Ref](workers, 0),
		values: arena.NewSlabs[R](workers, 0),
		bits:   arena.NewSlabs[uint64](workers, 0),
	}
}

func (a *Allocator[R]) Workers() int {
	return a.bytes.Workers()
}

// GetNext hands out n zeroed bytes from worker tid's arena.
func (a *Allocator[R]) GetNext(tid int, n int) []byte {
	return a.bytes.GetNext(tid, n)
}

// NewBlock allocates a block over s in partition tid. The addressing mode is
// chosen from the set's density right away; payload and child arrays are
// added later by InitPointers and AllocData.
func (a *Allocator[R]) NewBlock(tid int, s set.Set) (arena.Ref, *Block[R]) {
	ref, b := a.blocks.New(tid)
	b.set = s
	b.addr = ChooseAddressing(s.Cardinality(), s.Range())
	return ref, b
}

// Block resolves a handle; it returns nil for NoRef.
func (a *Allocator[R]) Block(ref arena.Ref) *Block[R] {
	return a.blocks.Get(ref)
}

// Blocks returns the number of blocks allocated so far.
func (a *Allocator[R]) Blocks() int {
	return a.blocks.Len()
}

// Allocated estimates the bytes handed out across all partitions.
func (a *Allocator[R]) Allocated() int64 {
	var b Block[R]
	return a.bytes.Allocated() +
		a.refs.AllocatedBytes() +
		a.values.AllocatedBytes() +
		a.bits.AllocatedBytes() +
		int64(a.blocks.Len())*int64(unsafe.Sizeof(b))
}

func (a *Allocator[R]) Reset() {
	a.bytes.Reset()
	a.blocks.Reset()
	a.refs.Reset()
	a.values.Reset()
	a.bits.Reset()
}
