package trie

import (
	"fmt"
	"io"

	"github.com/andreyvit/trie/arena"
	"github.com/andreyvit/trie/internal/binfmt"
	"github.com/andreyvit/trie/set"
)

// Addressing says how a block maps a child key to a slot in its payload and
// child arrays.
type Addressing uint8

const (
	// Sparse blocks address slots by the key's position in the set, so the
	// arrays hold exactly one slot per member.
	Sparse Addressing = iota
	// Dense blocks address slots by the key itself, so the arrays span the
	// whole range of the set.
	Dense
)

func (a Addressing) String() string {
	switch a {
	case Sparse:
		return "sparse"
	case Dense:
		return "dense"
	default:
		return fmt.Sprintf("addressing(%d)", uint8(a))
	}
}

// SparseRatio is the density threshold: a block is sparse when
// cardinality/range <= 1/SparseRatio.
const SparseRatio = 256

// ChooseAddressing picks the addressing mode for a set of card members drawn
// from [0, rng). A zero range is always sparse.
func ChooseAddressing(card int, rng uint32) Addressing {
	if rng == 0 || uint64(card)*SparseRatio <= uint64(rng) {
		return Sparse
	}
	return Dense
}

// Block is one trie node: the set of keys present at this level under a
// common prefix, and optionally a child handle and a payload per key.
//
// Blocks are built by a single worker and are read-only afterwards; reads
// from any number of goroutines are safe once construction is done.
type Block[R any] struct {
	set  set.Set
	addr Addressing
	next []arena.Ref
	data []R
	has  []uint64
}

// Linkage records where a block hangs off its parent: the slot in the
// parent's arrays and the key it is stored under.
type Linkage struct {
	PrevIndex uint32
	PrevData  uint32
}

func (b *Block[R]) Set() set.Set { return b.set }

func (b *Block[R]) Addressing() Addressing { return b.addr }

func (b *Block[R]) IsSparse() bool { return b.addr == Sparse }

func (b *Block[R]) HasPointers() bool { return b.next != nil }

func (b *Block[R]) HasData() bool { return b.data != nil }

// Slots returns the length of the child and payload arrays: range+1 for
// dense blocks, the cardinality for sparse ones.
func (b *Block[R]) Slots() int {
	if b.addr == Dense {
		return int(b.set.Range()) + 1
	}
	return b.set.Cardinality()
}

func (b *Block[R]) slot(pos int, v uint32) int {
	if b.addr == Dense {
		return int(v)
	}
	return pos
}

// lookup resolves v to its slot, or -1 when v cannot have one. Dense
// blocks only bounds-check: presence comes from the arrays themselves, which
// SetData and SetBlock only ever fill for members.
func (b *Block[R]) lookup(v uint32) int {
	if b.addr == Dense {
		if uint64(v) >= uint64(b.Slots()) {
			return -1
		}
		return int(v)
	}
	pos, ok := b.set.Find(v)
	if !ok {
		return -1
	}
	return pos
}

// checkMember panics when a dense block is asked to store under a key that
// is not in its set.
func (b *Block[R]) checkMember(op string, v uint32) {
	if b.addr == Dense && !b.set.Contains(v) {
		panic(fmt.Sprintf("trie: %s on non-member %d of %v", op, v, b.set))
	}
}

// InitPointers allocates the child handle array, with every slot empty.
func (b *Block[R]) InitPointers(tid int, alloc *Allocator[R]) {
	b.next = alloc.refs.Fill(tid, b.Slots(), arena.NoRef)
}

// AllocData allocates the payload array with every slot absent.
func (b *Block[R]) AllocData(tid int, alloc *Allocator[R]) {
	n := b.Slots()
	b.data = alloc.values.Alloc(tid, n)
	b.has = alloc.bits.Alloc(tid, (n+63)/64)
}

// InitData allocates the payload array and stores v under every member.
func (b *Block[R]) InitData(tid int, alloc *Allocator[R], v R) {
	b.AllocData(tid, alloc)
	b.set.ForEachIndex(func(pos int, key uint32) {
		b.SetData(pos, key, v)
	})
}

// SetData stores r under key v at position pos. Only the argument that
// matches the addressing mode is used.
func (b *Block[R]) SetData(pos int, v uint32, r R) {
	if b.data == nil {
		panic("trie: SetData before AllocData")
	}
	b.checkMember("SetData", v)
	s := b.slot(pos, v)
	b.data[s] = r
	b.has[s/64] |= 1 << (s % 64)
}

// SetBlock stores the child handle for key v at position pos.
func (b *Block[R]) SetBlock(pos int, v uint32, ref arena.Ref) {
	if b.next == nil {
		panic("trie: SetBlock before InitPointers")
	}
	b.checkMember("SetBlock", v)
	b.next[b.slot(pos, v)] = ref
}

// Data returns the payload stored under v; false means v is absent or has
// no payload.
func (b *Block[R]) Data(v uint32) (R, bool) {
	var zero R
	if b.data == nil {
		return zero, false
	}
	s := b.lookup(v)
	if s < 0 || b.has[s/64]&(1<<(s%64)) == 0 {
		return zero, false
	}
	return b.data[s], true
}

// DataAt returns the payload for an already resolved (pos, v) pair.
func (b *Block[R]) DataAt(pos int, v uint32) R {
	return b.data[b.slot(pos, v)]
}

// Block returns the child handle stored under v.
func (b *Block[R]) Block(v uint32) (arena.Ref, bool) {
	if b.next == nil {
		return arena.NoRef, false
	}
	s := b.lookup(v)
	if s < 0 {
		return arena.NoRef, false
	}
	ref := b.next[s]
	return ref, !ref.IsNil()
}

// BlockAt returns the child handle for an already resolved (pos, v) pair.
func (b *Block[R]) BlockAt(pos int, v uint32) arena.Ref {
	return b.next[b.slot(pos, v)]
}

// BlockForward resolves v and returns its slot together with the child
// handle. Dense blocks resolve to v itself without touching the set; sparse
// blocks look v up and ignore pos.
func (b *Block[R]) BlockForward(pos int, v uint32) (int, arena.Ref, bool) {
	if b.next == nil {
		return set.NotFound, arena.NoRef, false
	}
	if b.addr == Dense {
		if uint64(v) >= uint64(len(b.next)) {
			return set.NotFound, arena.NoRef, false
		}
		ref := b.next[v]
		return int(v), ref, !ref.IsNil()
	}
	p, ok := b.set.Find(v)
	if !ok {
		return set.NotFound, arena.NoRef, false
	}
	ref := b.next[p]
	return p, ref, !ref.IsNil()
}

// AppendBinary appends the node record:
//
//	prev_index:u32 prev_data:u32 is_sparse:u8 set body
//
// Child handles and payloads are not part of the record.
func (b *Block[R]) AppendBinary(buf []byte, link Linkage) []byte {
	buf = binfmt.AppendUint32(buf, link.PrevIndex)
	buf = binfmt.AppendUint32(buf, link.PrevData)
	buf = binfmt.AppendBool(buf, b.addr == Sparse)
	return b.set.AppendBinary(buf)
}

// WriteBinary writes the node record to w.
func (b *Block[R]) WriteBinary(w io.Writer, link Linkage) error {
	buf := b.AppendBinary(getScratch(), link)
	_, err := w.Write(buf)
	releaseScratch(buf)
	return err
}

// ReadBlock decodes one node record from r and allocates the block in
// partition tid. The block is only allocated once the whole record has been
// read and validated, so a failed read leaves nothing behind but unused
// arena bytes. A clean end of stream before the record yields io.EOF.
func ReadBlock[R any](r io.Reader, alloc *Allocator[R], tid int) (arena.Ref, Linkage, error) {
	br := binfmt.NewReader(r)
	off := int(br.Offset())

	var link Linkage
	var err error
	link.PrevIndex, err = br.Uint32()
	if err != nil {
		return arena.NoRef, link, err
	}
	link.PrevData, err = br.Uint32()
	if err != nil {
		return arena.NoRef, link, binfmt.NotEOF(err)
	}
	flag, err := br.Byte()
	if err != nil {
		return arena.NoRef, link, binfmt.NotEOF(err)
	}
	if flag > 1 {
		return arena.NoRef, link, binfmt.Errorf(nil, off, ErrCorrupt, "invalid node record: sparse flag %d", flag)
	}
	s, err := set.Read(br, alloc, tid)
	if err != nil {
		return arena.NoRef, link, binfmt.NotEOF(err)
	}

	addr := Dense
	if flag == 1 {
		addr = Sparse
	}
	if addr == Dense && ChooseAddressing(s.Cardinality(), s.Range()) != Dense {
		return arena.NoRef, link, binfmt.Errorf(nil, off, ErrCorrupt, "invalid node record: dense addressing over %v", s)
	}

	ref, b := alloc.NewBlock(tid, s)
	b.addr = addr
	return ref, link, nil
}
