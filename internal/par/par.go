// Package par runs bulk-synchronous fork-join loops over an index range.
package par

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Chunk is the number of consecutive indices handed to a worker at a time.
const Chunk = 128

// Workers returns the default worker count.
func Workers() int {
	return runtime.GOMAXPROCS(0)
}

// ForRange calls f(tid, i) exactly once for every i in [0, n), splitting the
// range into chunks of the given size that workers claim in turn. Worker ids
// are in [0, workers). Returns the number of workers that were started.
//
// Visiting order across chunks is unspecified; within a chunk indices are
// ascending. ForRange returns after every call has completed.
func ForRange(workers, n, chunk int, f func(tid, i int)) int {
	if n <= 0 {
		return 0
	}
	if chunk <= 0 {
		chunk = Chunk
	}
	if workers <= 0 {
		workers = Workers()
	}
	chunks := (n + chunk - 1) / chunk
	if workers > chunks {
		workers = chunks
	}
	if workers == 1 {
		for i := 0; i < n; i++ {
			f(0, i)
		}
		return 1
	}

	var next atomic.Int64
	var g errgroup.Group
	for tid := 0; tid < workers; tid++ {
		g.Go(func() error {
			for {
				c := int(next.Add(1) - 1)
				if c >= chunks {
					return nil
				}
				start := c * chunk
				end := min(start+chunk, n)
				for i := start; i < end; i++ {
					f(tid, i)
				}
			}
		})
	}
	_ = g.Wait()
	return workers
}
