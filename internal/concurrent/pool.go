package concurrent

import (
	"context"
	"sync"
)

// Pool runs closures on a bounded number of goroutines.
type Pool struct {
	waitGroup *sync.WaitGroup
	slots     chan struct{}
}

// NewPool creates a pool with the given number of slots.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		waitGroup: new(sync.WaitGroup),
		slots:     make(chan struct{}, size),
	}
}

// Submit schedules the closure, blocking while all slots are busy.
func (p *Pool) Submit(exec func()) {
	p.waitGroup.Add(1)
	p.slots <- struct{}{}
	go func() {
		defer func() {
			<-p.slots
			p.waitGroup.Done()
		}()
		exec()
	}()
}

// Wait blocks until all submitted closures have finished.
func (p *Pool) Wait() {
	p.waitGroup.Wait()
}

// ForEach fans the items out over a bounded pool and waits for all of them.
// Each invocation gets the shared context, cancellation is up to the caller.
func ForEach[T any](ctx context.Context, items []T, workers int, exec func(ctx context.Context, item T)) {
	pool := NewPool(workers)
	for _, item := range items {
		item := item
		pool.Submit(func() {
			exec(ctx, item)
		})
	}
	pool.Wait()
}

// Async starts the closure on its own goroutine and returns once it is scheduled.
func Async(exec func()) {
	var mutex = new(sync.Mutex)
	mutex.Lock()
	go func() {
		mutex.Unlock()
		exec()
	}()
	// make sure we wait for the go routine to initialise
	mutex.Lock()
}
