// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sim

import (
	"sync"
	"time"
)

// notifier is the simulated camera-stack notification thread. Callbacks queued
// on it are delivered one at a time, in queue order, on its own goroutine.
type notifier struct {
	delay time.Duration

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
	done    chan struct{}
}

func newNotifier(delay time.Duration) *notifier {
	n := &notifier{
		delay: delay,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go n.loop()
	return n
}

func (n *notifier) post(fn func()) {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.queue = append(n.queue, fn)
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) loop() {
	defer close(n.done)
	for {
		n.mu.Lock()
		if len(n.queue) == 0 {
			stopped := n.stopped
			n.mu.Unlock()
			if stopped {
				return
			}
			<-n.wake
			continue
		}
		fn := n.queue[0]
		n.queue[0] = nil
		n.queue = n.queue[1:]
		n.mu.Unlock()

		if n.delay > 0 {
			time.Sleep(n.delay)
		}
		fn()
	}
}

// idle reports whether every posted callback has been delivered.
func (n *notifier) idle() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue) == 0
}

// stop drains already-queued callbacks and ends the goroutine.
func (n *notifier) stop() {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		<-n.done
		return
	}
	n.stopped = true
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
	<-n.done
}
