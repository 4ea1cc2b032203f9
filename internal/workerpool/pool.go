// Package workerpool provides a bounded goroutine pool for CPU/I/O-bound
// install work such as delta patch application.
package workerpool

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/logging"
)

var log = logging.L("workerpool")

// ErrPoolStopped is returned when work is submitted after Close.
var ErrPoolStopped = errors.New("worker pool stopped")

// Task is a unit of work submitted to the pool.
type Task func() error

type job struct {
	task Task
	done chan error
}

// Pool is a bounded goroutine pool with a fixed-size task queue.
type Pool struct {
	maxWorkers int
	queue      chan job
	wg         sync.WaitGroup
	accepting  atomic.Bool
	closeOnce  sync.Once
}

// New creates a pool with maxWorkers goroutines and a task queue of queueSize.
func New(maxWorkers, queueSize int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	p := &Pool{
		maxWorkers: maxWorkers,
		queue:      make(chan job, queueSize),
	}
	p.accepting.Store(true)

	for i := 0; i < maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// Do runs task on a pool worker and waits for it to finish. ctx guards only
// the enqueue: once the task is accepted, Do joins its completion even when
// ctx is cancelled, so callers may release resources the task uses as soon
// as Do returns. Tasks are expected to honor ctx themselves to keep the
// join bounded.
func (p *Pool) Do(ctx context.Context, task Task) error {
	if !p.accepting.Load() {
		return ErrPoolStopped
	}

	j := job{task: task, done: make(chan error, 1)}
	select {
	case p.queue <- j:
	case <-ctx.Done():
		return ctx.Err()
	}

	return <-j.done
}

// Close stops accepting work and releases the workers once the queue drains.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.accepting.Store(false)
		close(p.queue)
	})
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.queue {
		j.done <- p.run(j.task)
	}
}

func (p *Pool) run(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", "panic", r, "stack", string(debug.Stack()))
			err = errors.New("worker task panicked")
		}
	}()
	return task()
}
