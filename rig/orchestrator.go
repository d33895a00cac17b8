// Package rig implements the Orchestrator state machine (§4.4), the Event
// Dispatcher (§4.5), and the typed error/config/transport surface the rest
// of the module builds on.
package rig

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/o-murphy/modep-rig/port"
	"github.com/o-murphy/modep-rig/routing"
	"github.com/o-murphy/modep-rig/slot"
)

// Orchestrator is the sole mutator of the Slot Registry (§4.3, §5). Every
// public Request*/Set*/Move/Clear method runs its body as one Op on the
// Dispatcher's worker, so the Registry never needs its own lock.
type Orchestrator struct {
	registry       *slot.Registry
	inputTerminal  *slot.Terminal
	outputTerminal *slot.Terminal
	whitelist      *port.Whitelist
	transport      Transport
	cfg            Config
	errHandler     ErrorHandler
	logger         *log.Logger

	disp *Dispatcher

	// edges is local bookkeeping only (§4.4 reconciliation: "update local
	// edge bookkeeping; do not trigger recomputation"). It is never
	// consulted to decide what to disconnect — make-before-break primitives
	// always recompute the exact pairs via the Routing Engine instead,
	// which stays correct as long as port lists don't change after Project.
	edges map[routing.Connection]bool

	state State

	onSlotAdded    func(*slot.Slot)
	onSlotRemoved  func(label string)
	onParamChange  func(label, symbol string, value float64)
	onBypassChange func(label string, bypassed bool)
}

// NewOrchestrator builds an Orchestrator. Callers must still construct a
// Dispatcher with NewDispatcher(orch, ...) and call its Run before issuing
// any request.
func NewOrchestrator(transport Transport, whitelist *port.Whitelist, inputTerminal, outputTerminal *slot.Terminal, cfg Config, errHandler ErrorHandler, logger *log.Logger) *Orchestrator {
	if errHandler == nil {
		errHandler = NopErrorHandler{}
	}
	return &Orchestrator{
		registry:       slot.NewRegistry(),
		inputTerminal:  inputTerminal,
		outputTerminal: outputTerminal,
		whitelist:      whitelist,
		transport:      transport,
		cfg:            cfg,
		errHandler:     errHandler,
		logger:         logger,
		edges:          make(map[routing.Connection]bool),
	}
}

// Notification callback setters (§6 "Core API surface").

func (o *Orchestrator) OnSlotAdded(f func(*slot.Slot))                        { o.onSlotAdded = f }
func (o *Orchestrator) OnSlotRemoved(f func(label string))                    { o.onSlotRemoved = f }
func (o *Orchestrator) OnParamChange(f func(label, symbol string, v float64)) { o.onParamChange = f }
func (o *Orchestrator) OnBypassChange(f func(label string, bypassed bool))    { o.onBypassChange = f }

func (o *Orchestrator) setState(s State) { o.state = s }
func (o *Orchestrator) State() State     { return o.state }

// Read-only API (§6).

func (o *Orchestrator) GetSlotByLabel(label string) (*slot.Slot, bool) { return o.registry.ByLabel(label) }
func (o *Orchestrator) GetSlot(id uuid.UUID) (*slot.Slot, bool)        { return o.registry.ByUUID(id) }
func (o *Orchestrator) Slots() []*slot.Slot                            { return o.registry.Slots() }

// RequestAddPlugin validates uri against the whitelist, issues an add-plugin
// request, waits for the HOST's echoed `add` event to learn the instance's
// ports, then runs a make-before-break insert (§4.4 primitive 1). position
// is the target index in the Registry; a negative value appends.
func (o *Orchestrator) RequestAddPlugin(ctx context.Context, uri string, position int) (label string, err error) {
	o.disp.submit(func() {
		label, err = o.doAdd(ctx, uri, position)
	})
	return label, err
}

func (o *Orchestrator) doAdd(ctx context.Context, uri string, position int) (string, error) {
	if o.cfg.SlotsLimit > 0 && o.registry.Len() >= o.cfg.SlotsLimit {
		return "", newError(InvariantViolation, fmt.Sprintf("slots_limit %d reached", o.cfg.SlotsLimit), nil)
	}
	def, ok := o.whitelist.Lookup(uri)
	if !ok {
		return "", newError(UnsupportedPlugin, uri, nil)
	}

	label, err := o.transport.AddPlugin(ctx, uri)
	if err != nil {
		return "", newError(TransportFailure, "add_plugin "+uri, err)
	}

	if _, exists := o.registry.ByLabel(label); exists {
		return "", newError(DuplicateLabel, label, nil)
	}

	o.setState(StateEditing)
	defer o.setState(StateIdle)

	ev, matched := o.disp.awaitEvent(predicate{kind: EventAdd, label: label})
	reported := port.Reported{}
	if matched {
		reported = port.Reported{AudioIn: ev.AudioIn, AudioOut: ev.AudioOut, MIDIIn: ev.MIDIIn, MIDIOut: ev.MIDIOut}
	} else {
		o.errHandler.HandleError(Timeout, "add "+label+": no echoed add event", nil)
	}

	plugin := port.Project(def, reported)
	s := slot.New()

	if position < 0 || position >= o.registry.Len() {
		o.registry.Append(s)
	} else if err := o.registry.InsertAt(position, s); err != nil {
		o.registry.Append(s)
	}
	o.registry.AttachPlugin(s, label, plugin)

	if err := o.insertPrimitive(ctx, s); err != nil {
		o.errHandler.HandleError(RoutingConflict, "insert "+label, err)
	}

	if o.onSlotAdded != nil {
		o.onSlotAdded(s)
	}
	return label, nil
}

// RequestRemovePlugin runs a make-before-break extract (§4.4 primitive 2)
// then requests removal of the plugin instance from the HOST.
func (o *Orchestrator) RequestRemovePlugin(ctx context.Context, label string) (err error) {
	o.disp.submit(func() {
		err = o.doRemove(ctx, label)
	})
	return err
}

func (o *Orchestrator) doRemove(ctx context.Context, label string) error {
	s, ok := o.registry.ByLabel(label)
	if !ok {
		return newError(SlotNotFound, label, nil)
	}

	o.setState(StateEditing)
	defer o.setState(StateIdle)

	if err := o.extractPrimitive(ctx, s); err != nil {
		return newError(RoutingConflict, "extract "+label, err)
	}
	if err := o.transport.RemovePlugin(ctx, label); err != nil {
		o.errHandler.HandleError(TransportFailure, "remove_plugin "+label, err)
	}

	if _, err := o.registry.RemoveByLabel(label); err != nil {
		return newError(InvariantViolation, "remove "+label, err)
	}
	if o.onSlotRemoved != nil {
		o.onSlotRemoved(label)
	}
	return nil
}

// RequestReplace composes add (awaiting its echo for the new instance's
// ports) with a make-before-break swap (§4.4 primitive 3), then removes the
// old instance.
func (o *Orchestrator) RequestReplace(ctx context.Context, label, uri string) (newLabel string, err error) {
	o.disp.submit(func() {
		newLabel, err = o.doReplace(ctx, label, uri)
	})
	return newLabel, err
}

func (o *Orchestrator) doReplace(ctx context.Context, label, uri string) (string, error) {
	oldSlot, ok := o.registry.ByLabel(label)
	if !ok {
		return "", newError(SlotNotFound, label, nil)
	}
	def, ok := o.whitelist.Lookup(uri)
	if !ok {
		return "", newError(UnsupportedPlugin, uri, nil)
	}

	newLabel, err := o.transport.AddPlugin(ctx, uri)
	if err != nil {
		return "", newError(TransportFailure, "add_plugin "+uri, err)
	}
	if _, exists := o.registry.ByLabel(newLabel); exists {
		return "", newError(DuplicateLabel, newLabel, nil)
	}

	o.setState(StateEditing)
	defer o.setState(StateIdle)

	ev, matched := o.disp.awaitEvent(predicate{kind: EventAdd, label: newLabel})
	reported := port.Reported{}
	if matched {
		reported = port.Reported{AudioIn: ev.AudioIn, AudioOut: ev.AudioOut, MIDIIn: ev.MIDIIn, MIDIOut: ev.MIDIOut}
	} else {
		o.errHandler.HandleError(Timeout, "replace "+newLabel+": no echoed add event", nil)
	}

	newPlugin := port.Project(def, reported)

	if err := o.swapPrimitive(ctx, oldSlot, newLabel, newPlugin); err != nil {
		// Rollback: the new instance never took over; remove it from the
		// HOST and leave the old one connected and in the Registry.
		_ = o.transport.RemovePlugin(ctx, newLabel)
		return "", newError(RoutingConflict, "swap "+label+"->"+newLabel, err)
	}

	if err := o.transport.RemovePlugin(ctx, label); err != nil {
		o.errHandler.HandleError(TransportFailure, "remove_plugin "+label, err)
	}
	if o.onSlotRemoved != nil {
		o.onSlotRemoved(label)
	}
	if o.onSlotAdded != nil {
		if s, ok := o.registry.ByLabel(newLabel); ok {
			o.onSlotAdded(s)
		}
	}
	return newLabel, nil
}

// RequestMove reorders the Registry and runs a reconnection pass that adds
// new neighbor edges before removing old ones.
func (o *Orchestrator) RequestMove(ctx context.Context, from, to int) (err error) {
	o.disp.submit(func() {
		err = o.doMove(ctx, from, to)
	})
	return err
}

func (o *Orchestrator) doMove(ctx context.Context, from, to int) error {
	if from < 0 || from >= o.registry.Len() || to < 0 || to >= o.registry.Len() {
		return newError(SlotNotFound, fmt.Sprintf("move %d->%d", from, to), nil)
	}
	if from == to {
		return nil
	}
	s := o.registry.Slots()[from]
	if s.IsEmpty() {
		return o.registry.Move(from, to)
	}

	o.setState(StateEditing)
	defer o.setState(StateIdle)

	oldEdges := routing.FullRecompute(chainEndpoints(o.buildChain()), o.cfg.RoutingMode)

	if err := o.registry.Move(from, to); err != nil {
		return newError(InvariantViolation, "move", err)
	}

	newEdges := routing.FullRecompute(chainEndpoints(o.buildChain()), o.cfg.RoutingMode)

	toAdd := diffConnections(newEdges, oldEdges)
	toRemove := diffConnections(oldEdges, newEdges)

	for _, c := range toAdd {
		if err := o.connect(ctx, c); err != nil {
			return err
		}
	}
	for _, c := range toRemove {
		o.disconnect(ctx, c)
	}
	return nil
}

// Clear removes every slot in chain order. The path invariant is allowed to
// break only momentarily for the empty chain, where terminals connect
// directly (§4.4 "request_clear").
func (o *Orchestrator) Clear(ctx context.Context) (err error) {
	o.disp.submit(func() {
		err = o.doClear(ctx)
	})
	return err
}

func (o *Orchestrator) doClear(ctx context.Context) error {
	o.setState(StateEditing)
	defer o.setState(StateIdle)

	for _, s := range o.registry.Slots() {
		if s.IsEmpty() {
			continue
		}
		label := s.Label()
		if err := o.transport.RemovePlugin(ctx, label); err != nil {
			o.errHandler.HandleError(TransportFailure, "remove_plugin "+label, err)
		}
		if _, err := o.registry.RemoveByLabel(label); err != nil {
			o.errHandler.HandleError(InvariantViolation, "clear: remove "+label, err)
			continue
		}
		if o.onSlotRemoved != nil {
			o.onSlotRemoved(label)
		}
	}

	for _, c := range routing.Route(o.inputTerminal, o.outputTerminal) {
		o.connect(ctx, c)
	}
	return nil
}

// RequestSetControl forwards a control-symbol change to the HOST and
// optimistically mirrors it locally (§5 "plugin.set_control").
func (o *Orchestrator) RequestSetControl(ctx context.Context, label, symbol string, value float64) (err error) {
	o.disp.submit(func() {
		s, ok := o.registry.ByLabel(label)
		if !ok {
			err = newError(SlotNotFound, label, nil)
			return
		}
		if e := o.transport.SetParam(ctx, label, symbol, value); e != nil {
			err = newError(TransportFailure, "set_param "+label, e)
			return
		}
		s.Plugin().SetControl(symbol, value)
		if o.onParamChange != nil {
			o.onParamChange(label, symbol, value)
		}
	})
	return err
}

// RequestSetBypass forwards a bypass change to the HOST and optimistically
// mirrors it locally.
func (o *Orchestrator) RequestSetBypass(ctx context.Context, label string, bypassed bool) (err error) {
	o.disp.submit(func() {
		s, ok := o.registry.ByLabel(label)
		if !ok {
			err = newError(SlotNotFound, label, nil)
			return
		}
		if e := o.transport.SetBypass(ctx, label, bypassed); e != nil {
			err = newError(TransportFailure, "set_bypass "+label, e)
			return
		}
		s.Plugin().SetBypassed(bypassed)
		if o.onBypassChange != nil {
			o.onBypassChange(label, bypassed)
		}
	})
	return err
}
