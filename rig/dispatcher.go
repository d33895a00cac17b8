package rig

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/o-murphy/modep-rig/internal/queue"
)

// predicate identifies the single HOST echo a local edit is waiting for
// (§4.5 "suppression scope"). Only add (and replace's add half) ever wait on
// one — every other Transport call already returns its result synchronously,
// so nothing else needs a predicate.
type predicate struct {
	kind  EventKind
	label string
}

func (p predicate) matches(ev Event) bool {
	return ev.Kind == p.kind && ev.Label == p.label
}

// Dispatcher is the single serialization point for user intents and HOST
// events (§4.5, §5), built on the teacher-derived internal/queue worker.
// Every Orchestrator request runs as one Op on that worker, so concurrently
// submitted intents queue FIFO and never interleave; HOST events are routed
// onto the same worker when no local edit is waiting on one of them, and
// handed directly to the waiting edit when one is.
type Dispatcher struct {
	orch    *Orchestrator
	jobs    *queue.Queue
	logger  *log.Logger
	timeout time.Duration

	mu     sync.Mutex
	waitCh chan Event // non-nil while a job is inside awaitEvent
}

// NewDispatcher wires a Dispatcher to an Orchestrator. The Orchestrator keeps
// a back-reference so its public Request* methods can submit their bodies as
// single queued Ops.
func NewDispatcher(orch *Orchestrator, logger *log.Logger) *Dispatcher {
	d := &Dispatcher{
		orch:    orch,
		jobs:    queue.New(64),
		logger:  logger,
		timeout: orch.cfg.RequestTimeout,
	}
	orch.disp = d
	return d
}

// Run starts the job worker and the HOST event pump. It blocks until ctx is
// canceled or the event channel closes, then stops the worker: the Op in
// flight finishes, Ops still queued are not run.
func (d *Dispatcher) Run(ctx context.Context, source EventSource) {
	d.jobs.Start()
	d.pumpEvents(ctx, source)
	d.jobs.Close()
}

func (d *Dispatcher) pumpEvents(ctx context.Context, source EventSource) {
	ch := source.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			d.deliver(ev)
		}
	}
}

// deliver routes one HOST event either to an active awaitEvent call or, if
// none is waiting, onto the job worker as a reconciliation Op.
func (d *Dispatcher) deliver(ev Event) {
	d.mu.Lock()
	wc := d.waitCh
	d.mu.Unlock()

	if wc != nil {
		wc <- ev
		return
	}
	_ = d.jobs.Enqueue(queue.Func(func(_ context.Context) {
		d.orch.reconcile(ev)
	}))
}

// submit runs fn as a single Op on the job worker and blocks the caller
// until it returns — the synchronous-call-over-a-serialized-worker pattern
// every Orchestrator Request* method uses.
func (d *Dispatcher) submit(fn func()) {
	done := make(chan struct{})
	_ = d.jobs.Enqueue(queue.Func(func(_ context.Context) {
		fn()
		close(done)
	}))
	<-done
}

// awaitEvent blocks the calling job (already running on the worker) until an
// event matching pred arrives or the timeout elapses. Non-matching events
// received in the meantime are reconciled inline, never dropped (§8
// invariant 4: no event is both absorbed and reacted to — each one here is
// reacted to exactly once, either as the match or via reconcile).
func (d *Dispatcher) awaitEvent(pred predicate) (Event, bool) {
	ch := make(chan Event, 8)

	d.mu.Lock()
	d.waitCh = ch
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.waitCh = nil
		d.mu.Unlock()
	}()

	deadline := time.After(d.timeout)
	for {
		select {
		case ev := <-ch:
			if pred.matches(ev) {
				return ev, true
			}
			d.orch.reconcile(ev)
		case <-deadline:
			d.logger.Warn("suppression predicate timed out, proceeding", "kind", pred.kind, "label", pred.label)
			return Event{}, false
		}
	}
}
