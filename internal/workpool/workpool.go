// Package workpool implements the fixed-size fork-join worker pool
// the orchestrator drives the raster loop with. It is grounded on the
// original crt threads module's Threads::in_parallel contract (submit
// the same body to every worker, block until all return) but built on
// golang.org/x/sync/errgroup the way the teacher's
// cmd/orizon/pkg/utils/graph.go uses it for bounded fan-out, rather
// than the original's hand-rolled condition-variable job counter.
package workpool

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool is a fixed worker count used purely to size fan-out; unlike a
// task queue, it holds no goroutines or channels between calls to
// InParallel.
type Pool struct {
	n int
}

// New returns a Pool sized to n workers. n <= 0 selects
// runtime.GOMAXPROCS(0), mirroring "hardware parallelism" as the
// default.
func New(n int) *Pool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}

	return &Pool{n: n}
}

// Size returns the pool's worker count.
func (p *Pool) Size() int { return p.n }

// InParallel runs body concurrently on Size() goroutines and blocks
// until every one returns. This is a fork-join barrier, not a task
// queue: all workers run the same body, typically a loop that pulls
// units of work (e.g. rgb.Partition rows) from shared state until
// none remain.
func (p *Pool) InParallel(body func()) {
	var g errgroup.Group

	for i := 0; i < p.n; i++ {
		g.Go(func() error {
			body()
			return nil
		})
	}

	_ = g.Wait() // body never returns an error; Wait only blocks for the barrier
}
