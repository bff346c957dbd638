package extract

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many extractors run at once. One pool is meant to be
// shared by every dispatch of a process.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool creates a pool; size <= 0 means runtime.NumCPU().
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the number of slots
func (p *Pool) Size() int {
	return p.size
}

// Go waits for a free slot and runs fn in a new goroutine, releasing the
// slot when fn returns, however long that takes. It fails only if ctx is
// done before a slot frees.
func (p *Pool) Go(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	go func() {
		defer p.sem.Release(1)
		fn()
	}()
	return nil
}
