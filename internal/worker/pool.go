// AngelaMos | 2026
// pool.go

package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrQueueFull is returned when the pool cannot accept more work; the
// caller decides whether that maps to backpressure or a retry.
var ErrQueueFull = errors.New("worker queue is full")

// ErrPoolClosed is returned on Submit after Shutdown has started.
var ErrPoolClosed = errors.New("worker pool is shut down")

// Task is one unit of background work. The context is the pool's
// lifecycle context, cancelled on shutdown.
type Task func(ctx context.Context)

// Pool runs submitted tasks on a fixed number of goroutines with a
// bounded queue, capping concurrent background work instead of spawning
// one goroutine per request.
type Pool struct {
	queue  chan Task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	// mu orders Submit's channel send against Shutdown's close; a bare
	// atomic flag would leave a window where the send hits a closed
	// channel and panics.
	mu     sync.RWMutex
	closed bool

	active  atomic.Int64
	done    atomic.Int64
	dropped atomic.Int64
}

func NewPool(size, queueDepth int) *Pool {
	if size < 1 {
		size = 1
	}
	if queueDepth < 0 {
		queueDepth = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:  make(chan Task, queueDepth),
		ctx:    ctx,
		cancel: cancel,
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.run(i)
	}

	return p
}

func (p *Pool) run(id int) {
	defer p.wg.Done()

	for task := range p.queue {
		p.active.Add(1)
		p.safeRun(id, task)
		p.active.Add(-1)
		p.done.Add(1)
	}
}

func (p *Pool) safeRun(id int, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("worker panic recovered", "worker", id, "panic", rec)
		}
	}()

	task(p.ctx)
}

// Submit enqueues a task without blocking. A full queue is an error,
// not a wait. The read lock pins the queue open for the duration of the
// send.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- task:
		return nil
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

// Shutdown stops intake and waits for queued and running tasks, up to
// the context deadline. Tasks observe cancellation through their pool
// context once the deadline forces an exit.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

// Stats is a point-in-time snapshot for the admin surface.
type Stats struct {
	Queued  int   `json:"queued"`
	Active  int64 `json:"active"`
	Done    int64 `json:"done"`
	Dropped int64 `json:"dropped"`
}

func (p *Pool) Stats() Stats {
	return Stats{
		Queued:  len(p.queue),
		Active:  p.active.Load(),
		Done:    p.done.Load(),
		Dropped: p.dropped.Load(),
	}
}
