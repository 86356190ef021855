// File: bridge/bridge.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bounded worker pool with lazy growth. Workers are spawned one per
// submission until the concurrency limit, then further submissions queue.
// This caps the number of OS threads parked in blocking syscalls no matter
// how many callers submit concurrently.

package bridge

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/control"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("bridge pool is closed")

// queueDepth aggregates overflow occupancy across all pools so the gauge
// survives individual pools being closed.
var (
	queueDepth int64
	gaugeOnce  sync.Once
)

// Task is one blocking unit of work.
type Task func()

// Pool is the bounded lazy-growth worker pool.
type Pool struct {
	limit int

	mu      sync.Mutex
	workers int
	idle    int
	backlog *queue.Queue
	closed  bool

	taskCh chan Task
}

// PoolOption customizes pool initialization.
type PoolOption func(*Pool)

// WithLimit caps the number of concurrently blocked workers. Non-positive
// selects GOMAXPROCS.
func WithLimit(n int) PoolOption {
	return func(p *Pool) {
		p.limit = n
	}
}

// NewPool creates an empty pool; no worker goroutine exists until the
// first submission.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		backlog: queue.New(),
		taskCh:  make(chan Task),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.limit <= 0 {
		p.limit = runtime.GOMAXPROCS(0)
	}
	gaugeOnce.Do(func() {
		control.Default().Gauge("hioload_ipc_bridge_queue_depth", func() float64 {
			return float64(atomic.LoadInt64(&queueDepth))
		})
	})
	return p
}

// Submit enqueues a task. An idle worker picks it up immediately, a new
// worker is spawned while under the limit, otherwise the task waits in the
// overflow queue in submission order.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	if p.idle > 0 {
		p.idle--
		p.mu.Unlock()
		p.taskCh <- task
		return nil
	}
	if p.workers < p.limit {
		p.workers++
		p.mu.Unlock()
		go p.worker(task)
		return nil
	}
	p.backlog.Add(task)
	atomic.AddInt64(&queueDepth, 1)
	p.mu.Unlock()
	return nil
}

// worker runs its initial task, then drains the overflow queue and parks
// on the handoff channel.
func (p *Pool) worker(first Task) {
	p.run(first)
	for {
		p.mu.Lock()
		if p.backlog.Length() > 0 {
			task := p.backlog.Remove().(Task)
			atomic.AddInt64(&queueDepth, -1)
			p.mu.Unlock()
			p.run(task)
			continue
		}
		if p.closed {
			p.workers--
			p.mu.Unlock()
			return
		}
		p.idle++
		p.mu.Unlock()
		task := <-p.taskCh
		if task == nil {
			return
		}
		p.run(task)
	}
}

// run executes one task, keeping the worker alive across panics.
func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			// swallow panic to keep the worker alive
		}
	}()
	task()
}

// Close rejects further submissions and releases idle workers. Workers
// blocked inside a syscall are not interrupted; they finish their current
// task, drain the overflow queue and then exit.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	n := p.idle
	p.idle = 0
	p.workers -= n
	p.mu.Unlock()
	for i := 0; i < n; i++ {
		p.taskCh <- nil
	}
}

// Stats reports pool occupancy.
func (p *Pool) Stats() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]int{
		"limit":   p.limit,
		"workers": p.workers,
		"idle":    p.idle,
		"queued":  p.backlog.Length(),
	}
}

// Go submits fn and resolves a future with its result exactly once.
// Abandoning the future does not abort fn; it completes detached and the
// result is discarded.
func Go[T any](p *Pool, fn func() (T, error)) *api.Future[T] {
	f := api.NewFuture[T]()
	err := p.Submit(func() {
		f.Resolve(fn())
	})
	if err != nil {
		var zero T
		f.Resolve(zero, err)
	}
	return f
}
