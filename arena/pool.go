package arena

import "fmt"

// Pool is a set of per-worker arenas addressed by worker id.
type Pool struct {
	arenas []*Arena
}

func NewPool(workers int, o Options) *Pool {
	if workers <= 0 {
		workers = 1
	}
	p := &Pool{arenas: make([]*Arena, workers)}
	for i := range p.arenas {
		p.arenas[i] = New(o)
	}
	return p
}

// GetNext returns n zeroed bytes from the arena of worker tid.
func (p *Pool) GetNext(tid int, n int) []byte {
	return p.Worker(tid).Alloc(n)
}

func (p *Pool) Worker(tid int) *Arena {
	if tid < 0 || tid >= len(p.arenas) {
		panic(fmt.Errorf("arena: worker id %d out of range [0, %d)", tid, len(p.arenas)))
	}
	return p.arenas[tid]
}

func (p *Pool) Workers() int {
	return len(p.arenas)
}

func (p *Pool) Allocated() int64 {
	var n int64
	for _, a := range p.arenas {
		n += a.Allocated()
	}
	return n
}

func (p *Pool) Reserved() int64 {
	var n int64
	for _, a := range p.arenas {
		n += a.Reserved()
	}
	return n
}

func (p *Pool) Reset() {
	for _, a := range p.arenas {
		a.Reset()
	}
}
