// Package queue serializes operations onto a single worker goroutine. It is
// the generic mechanism the Event Dispatcher (rig package, §4.5) builds on
// to give user intents and HOST events a single logical timeline (§5),
// adapted from the teacher's engine/queue package.
package queue

import (
	"context"
	"errors"
	"sync"
)

// Op is a unit of work submitted to the queue. It receives a context that is
// canceled on shutdown.
type Op interface {
	Apply(ctx context.Context)
}

// Func adapts a plain function into an Op.
type Func func(ctx context.Context)

func (f Func) Apply(ctx context.Context) { f(ctx) }

// Queue runs submitted Ops one at a time, in submission order, on a single
// goroutine — the serialization point §5 requires between concurrently
// submitted user intents and inbound HOST events.
type Queue struct {
	ch      chan Op
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex
}

// New creates a queue with a fixed buffer.
func New(buffer int) *Queue {
	if buffer <= 0 {
		buffer = 32
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{ch: make(chan Op, buffer), ctx: ctx, cancel: cancel}
}

// Start begins the worker goroutine. Safe to call multiple times.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-q.ctx.Done():
				return
			case op := <-q.ch:
				if op != nil {
					op.Apply(q.ctx)
				}
			}
		}
	}()
}

// Enqueue adds an operation to the queue. Ops run strictly in the order they
// are enqueued.
func (q *Queue) Enqueue(op Op) error {
	if q == nil || q.ch == nil {
		return errors.New("queue: not initialized")
	}
	if q.ctx.Err() != nil {
		return errors.New("queue: closed")
	}
	select {
	case q.ch <- op:
		return nil
	case <-q.ctx.Done():
		return errors.New("queue: closed")
	}
}

// Close stops the worker and waits for it to finish the Op in flight, if any.
func (q *Queue) Close() {
	if q == nil {
		return
	}
	q.cancel()
	q.wg.Wait()
}
