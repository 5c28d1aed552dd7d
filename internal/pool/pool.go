// Package pool bounds the number of provider calls in flight across the
// whole process, independent of how many schedulers or tree runners are
// dispatching work.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrPoolClosed = errors.New("pool is closed")

// Call is a unit of work executed on a pool worker.
type Call func(ctx context.Context) error

// CallPool runs calls on a fixed set of workers. Submission blocks while
// all workers are busy and the queue is full, which applies backpressure
// to the dispatch layer instead of piling up goroutines.
type CallPool struct {
	queue  chan callWrapper
	closed atomic.Bool
	wg     sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

type callWrapper struct {
	call   Call
	ctx    context.Context
	result chan error
}

// New creates a pool with the given worker count and queue depth.
func New(workers, queueSize int) *CallPool {
	if workers <= 0 {
		workers = 8
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &CallPool{queue: make(chan callWrapper, queueSize)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Do submits a call and waits for its result.
func (p *CallPool) Do(ctx context.Context, call Call) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.submitted.Add(1)

	w := callWrapper{call: call, ctx: ctx, result: make(chan error, 1)}
	select {
	case p.queue <- w:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-w.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *CallPool) worker() {
	defer p.wg.Done()
	for w := range p.queue {
		err := p.run(w)
		w.result <- err
		if err != nil {
			p.failed.Add(1)
		} else {
			p.completed.Add(1)
		}
	}
}

func (p *CallPool) run(w callWrapper) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("pooled call panicked")
		}
	}()
	if w.ctx.Err() != nil {
		return w.ctx.Err()
	}
	return w.call(w.ctx)
}

// Close drains the pool. Pending Do calls receive their results first.
func (p *CallPool) Close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.queue)
	p.wg.Wait()
}

// Stats is a point-in-time counter snapshot.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Stats returns pool counters.
func (p *CallPool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}
