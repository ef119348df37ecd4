// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"context"
	"sync"

	"github.com/ManuGH/camsession/internal/metrics"
)

// Executor runs posted tasks one at a time, in post order, on a single worker
// goroutine. Post never blocks, so it is safe to call from platform callbacks.
type Executor struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// NewExecutor creates and starts an executor.
func NewExecutor() *Executor {
	e := &Executor{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go e.run()
	return e
}

// Post enqueues fn. It reports false once the executor is closed.
func (e *Executor) Post(fn func()) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	e.queue = append(e.queue, fn)
	depth := len(e.queue)
	e.mu.Unlock()

	metrics.ExecutorQueueDepth.Set(float64(depth))
	select {
	case e.wake <- struct{}{}:
	default:
	}
	return true
}

func (e *Executor) run() {
	defer close(e.done)
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			closed := e.closed
			e.mu.Unlock()
			if closed {
				return
			}
			<-e.wake
			continue
		}
		fn := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		depth := len(e.queue)
		e.mu.Unlock()

		metrics.ExecutorQueueDepth.Set(float64(depth))
		fn()
	}
}

// Flush waits until every task posted before the call has run.
// It must not be called from a task.
func (e *Executor) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	if !e.Post(func() { close(barrier) }) {
		select {
		case <-e.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks, runs the ones already queued and waits for the
// worker. Like Flush, it must not be called from a task.
func (e *Executor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	select {
	case e.wake <- struct{}{}:
	default:
	}
	<-e.done
}
