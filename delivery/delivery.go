// Package delivery provides the execution contexts on which pipeline
// results reach their consumer.
//
// A Loop is the single delivery context of a renderer: one goroutine runs
// posted tasks one at a time, in posting order, so display state touched
// only from tasks needs no locking.
package delivery

import (
	"context"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
)

// ErrClosed is returned by Loop.Do after Close.
var ErrClosed = errors.New("delivery: loop closed")

// Executor runs tasks on a designated context.
type Executor interface {
	// Post schedules task. It must not block on the task itself.
	Post(task func())
}

// Inline runs tasks on the posting goroutine. Useful in tests and for
// consumers that synchronise themselves.
type Inline struct{}

// Post runs task immediately.
func (Inline) Post(task func()) { task() }

// Loop is a serial executor backed by one goroutine and an unbounded FIFO
// queue. Posting never blocks, so background fetchers are never held up by a
// slow consumer.
type Loop struct {
	logger log.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	closed  bool
	running bool

	done chan struct{}
}

var _ Executor = (*Loop)(nil)

// NewLoop returns a loop that is not yet running; call Run.
func NewLoop(logger log.Logger) *Loop {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	l := &Loop{
		logger: log.With(logger, "component", "delivery"),
		done:   make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Start runs the loop on a new goroutine and returns l.
func (l *Loop) Start() *Loop {
	go l.Run()
	return l
}

// Post enqueues task. Tasks posted after Close are dropped.
func (l *Loop) Post(task func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		level.Debug(l.logger).Log("msg", "task dropped after close")
		return
	}
	l.queue = append(l.queue, task)
	l.cond.Signal()
}

// Do runs fn on the loop and waits for it to finish. A panic in fn is
// logged and returned as an error.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	var panicked interface{}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.queue = append(l.queue, func() {
		defer close(ran)
		defer func() {
			if r := recover(); r != nil {
				panicked = r
				level.Error(l.logger).Log("msg", "delivery task panicked", "panic", r)
			}
		}()
		fn()
	})
	l.cond.Signal()
	l.mu.Unlock()

	select {
	case <-ran:
		if panicked != nil {
			return errors.Errorf("delivery: task panicked: %v", panicked)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue until Close has been called and the queue is empty.
// A panicking task is logged and does not stop the loop.
func (l *Loop) Run() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()
	defer close(l.done)

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, task := range batch {
			l.run(task)
		}
	}
}

func (l *Loop) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			level.Error(l.logger).Log("msg", "delivery task panicked", "panic", r)
		}
	}()
	task()
}

// Close stops accepting tasks. Already queued tasks still run.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.cond.Broadcast()
	l.mu.Unlock()
}

// Wait blocks until Run has returned or ctx is done.
func (l *Loop) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
