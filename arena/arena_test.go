package arena

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena_AllocZeroedAndAligned(t *testing.T) {
	a := New(Options{ChunkSize: 256})
	var prev []byte
	for _, n := range []int{1, 3, 8, 13, 40} {
		b := a.Alloc(n)
		require.Len(t, b, n)
		require.Equal(t, n, cap(b), "cap must equal len")
		for _, v := range b {
			require.Zero(t, v)
		}
		addr := uintptr(unsafe.Pointer(&b[0]))
		require.Zero(t, addr%align, "allocation of %d bytes not aligned", n)
		for i := range b {
			b[i] = 0xFF
		}
		if prev != nil {
			assert.NotSame(t, &prev[0], &b[0])
		}
		prev = b
	}
	assert.Equal(t, int64(1+3+8+13+40), a.Allocated())
	assert.Equal(t, int64(256), a.Reserved())
}

func TestArena_ChunkOverflowAndLargeAllocations(t *testing.T) {
	a := New(Options{ChunkSize: 64})
	a.Alloc(10)
	a.Alloc(10)
	a.Alloc(10) // 8-aligned: 0, 16, 32 -> ends at 42
	require.Equal(t, int64(64), a.Reserved())
	a.Alloc(16) // needs 48..64, fits exactly
	require.Equal(t, int64(64), a.Reserved())
	a.Alloc(8) // new chunk
	require.Equal(t, int64(128), a.Reserved())

	big := a.Alloc(1000)
	require.Len(t, big, 1000)
	require.Equal(t, int64(1128), a.Reserved())

	require.Empty(t, a.Alloc(0))

	a.Reset()
	require.Zero(t, a.Allocated())
	require.Zero(t, a.Reserved())
}

func TestPool_PerWorker(t *testing.T) {
	p := NewPool(4, Options{})
	require.Equal(t, 4, p.Workers())

	var wg sync.WaitGroup
	for tid := 0; tid < p.Workers(); tid++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b := p.GetNext(tid, 16)
				b[0] = byte(tid)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int64(4*100*16), p.Allocated())

	require.Panics(t, func() { p.GetNext(4, 1) })
	require.Panics(t, func() { p.GetNext(-1, 1) })

	p.Reset()
	require.Zero(t, p.Allocated())
}

func TestSlab(t *testing.T) {
	s := NewSlab[int32](16)
	a := s.Alloc(3)
	b := s.Alloc(3)
	require.Equal(t, []int32{0, 0, 0}, a)
	a[0], b[0] = 1, 2
	a = append(a, 9) // must not clobber b
	require.Equal(t, int32(2), b[0])

	f := s.Fill(4, 7)
	require.Equal(t, []int32{7, 7, 7, 7}, f)

	big := s.Alloc(100)
	require.Len(t, big, 100)
	require.Equal(t, int64(3+3+4+100), s.Allocated())
	require.Equal(t, int64(110*4), s.AllocatedBytes())

	ss := NewSlabs[string](2, 0)
	x := ss.Fill(1, 2, "x")
	require.Equal(t, []string{"x", "x"}, x)
	require.Panics(t, func() { ss.Alloc(2, 1) })
}

func TestStore_Refs(t *testing.T) {
	s := NewStore[string](3)
	r0 := s.Append(0, "a")
	r2 := s.Append(2, "b")
	ref, ptr := s.New(2)
	*ptr = "c"

	require.Equal(t, 0, r0.Worker())
	require.Equal(t, 0, r0.Index())
	require.Equal(t, 2, r2.Worker())
	require.Equal(t, 1, ref.Index())
	require.Equal(t, "2:1", ref.String())
	require.Equal(t, "nil", NoRef.String())

	require.Equal(t, "a", *s.Get(r0))
	require.Equal(t, "b", *s.Get(r2))
	require.Equal(t, "c", *s.Get(ref))
	require.Nil(t, s.Get(NoRef))
	require.Nil(t, s.Get(MakeRef(1, 0)))
	require.Nil(t, s.Get(MakeRef(9, 0)))
	require.Equal(t, 3, s.Len())

	var seen []string
	s.ForEach(func(ref Ref, v *string) { seen = append(seen, *v) })
	require.Equal(t, []string{"a", "b", "c"}, seen)
}

func TestStore_PointersStableAcrossChunks(t *testing.T) {
	s := NewStore[int](1)
	first, p := s.New(0)
	*p = 42
	for i := 0; i < 3*storeChunkLen; i++ {
		s.Append(0, i)
	}
	require.Same(t, p, s.Get(first))
	require.Equal(t, 42, *s.Get(first))
	require.Equal(t, 3*storeChunkLen+1, s.Len())

	s.Reset()
	require.Zero(t, s.Len())
}
