// Package arena provides bulk-lifetime allocators for trie construction.
//
// Nothing allocated from an arena is ever released individually; the whole
// arena is dropped (or Reset) at once. Every allocator here is meant to be
// owned by a single worker at a time: concurrent builders use distinct
// worker ids (tid) and therefore never contend.
//
//   - Arena hands out raw zeroed byte regions (set bodies).
//   - Pool is a tid-indexed collection of Arenas: GetNext(tid, n).
//   - Slab and Slabs hand out typed slices (payload and child arrays),
//     which keeps pointer-carrying element types visible to the GC.
//   - Store holds objects addressed by Ref handles instead of pointers.
package arena

// DefaultChunkSize is the default size of a single arena chunk.
const DefaultChunkSize = 64 * 1024

const align = 8

// Options configures arena chunk sizing.
type Options struct {
	// ChunkSize is the size of a regular chunk in bytes; requests larger than
	// a quarter of it get a dedicated chunk.
	ChunkSize int
}

func (o *Options) normalize() {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
}

// Arena is a linear byte allocator.
type Arena struct {
	chunkSize int
	chunks    [][]byte
	cur       []byte
	off       int
	allocated int64
	reserved  int64
}

func New(o Options) *Arena {
	o.normalize()
	return &Arena{chunkSize: o.ChunkSize}
}

// Alloc returns n zeroed bytes, 8-byte aligned relative to the chunk start.
// The returned slice has cap == len, so appending to it never scribbles over
// neighbouring allocations.
func (a *Arena) Alloc(n int) []byte {
	if n < 0 {
		panic("arena: negative allocation")
	}
	if n == 0 {
		return []byte{}
	}
	a.allocated += int64(n)

	if n > a.chunkSize/4 {
		b := make([]byte, n)
		a.chunks = append(a.chunks, b)
		a.reserved += int64(n)
		return b
	}

	start := (a.off + align - 1) &^ (align - 1)
	if a.cur == nil || start+n > len(a.cur) {
		a.cur = make([]byte, a.chunkSize)
		a.chunks = append(a.chunks, a.cur)
		a.reserved += int64(a.chunkSize)
		start = 0
	}
	a.off = start + n
	return a.cur[start:a.off:a.off]
}

// Allocated returns the number of bytes handed out so far.
func (a *Arena) Allocated() int64 {
	return a.allocated
}

// Reserved returns the number of bytes held by the arena's chunks.
func (a *Arena) Reserved() int64 {
	return a.reserved
}

// Reset drops every chunk. Slices handed out earlier stay valid for whoever
// still holds them, but the arena no longer references them.
func (a *Arena) Reset() {
	a.chunks = nil
	a.cur = nil
	a.off = 0
	a.allocated = 0
	a.reserved = 0
}
