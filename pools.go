package trie

import "sync"

var scratchPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 4096)
	},
}

func getScratch() []byte {
	return scratchPool.Get().([]byte)[:0]
}

func releaseScratch(b []byte) {
	if cap(b) > 1<<20 {
		return // let oversized buffers go
	}
	scratchPool.Put(b[:0])
}

var valuesPool = &sync.Pool{
	New: func() any {
		return make([]uint32, 0, 1024)
	},
}

func getValues() []uint32 {
	return valuesPool.Get().([]uint32)[:0]
}

func releaseValues(v []uint32) {
	valuesPool.Put(v[:0])
}
