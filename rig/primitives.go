package rig

import (
	"context"
	"fmt"

	"github.com/o-murphy/modep-rig/port"
	"github.com/o-murphy/modep-rig/routing"
	"github.com/o-murphy/modep-rig/slot"
)

// insertPrimitive implements §4.4 primitive 1: connect (P→T) and (T→N)
// before disconnecting any pre-existing direct (P→N) edge. T must already be
// attached and a member of the Registry.
func (o *Orchestrator) insertPrimitive(ctx context.Context, T *slot.Slot) error {
	prevA, nextA, prevM, nextM := o.neighborsOf(T)
	ep := T.Endpoint()

	newConns := edgesBetween(prevA, ep, prevM, ep)
	newConns = append(newConns, edgesBetween(ep, nextA, ep, nextM)...)

	var done []routing.Connection
	for _, c := range newConns {
		if err := o.connect(ctx, c); err != nil {
			for _, d := range done {
				o.disconnect(ctx, d)
			}
			return err
		}
		done = append(done, c)
	}

	for _, c := range edgesBetween(prevA, nextA, prevM, nextM) {
		o.disconnect(ctx, c)
	}
	return nil
}

// extractPrimitive implements §4.4 primitive 2: connect (P→N) before
// disconnecting (P→T) and (T→N). Registry removal and HOST plugin removal
// are the caller's responsibility (the caller may be a local request or a
// mirrored external remove, which already destroyed the instance).
func (o *Orchestrator) extractPrimitive(ctx context.Context, T *slot.Slot) error {
	prevA, nextA, prevM, nextM := o.neighborsOf(T)
	ep := T.Endpoint()

	for _, c := range edgesBetween(prevA, nextA, prevM, nextM) {
		if err := o.connect(ctx, c); err != nil {
			return err
		}
	}

	old := edgesBetween(prevA, ep, prevM, ep)
	old = append(old, edgesBetween(ep, nextA, ep, nextM)...)
	for _, c := range old {
		o.disconnect(ctx, c)
	}
	return nil
}

// swapPrimitive implements §4.4 primitive 3: insert the new slot immediately
// ahead of the old one, connect (P→T_new) and (T_new→N) before disconnecting
// (P→T_old) and (T_old→N), then drop T_old from the Registry. The HOST-side
// removal of T_old's instance is the caller's responsibility.
func (o *Orchestrator) swapPrimitive(ctx context.Context, oldSlot *slot.Slot, newLabel string, newPlugin *port.Plugin) error {
	prevA, nextA, prevM, nextM := o.neighborsOf(oldSlot)

	newSlot := slot.New()
	if err := o.registry.InsertAt(oldSlot.Index(), newSlot); err != nil {
		return fmt.Errorf("swap: insert new slot: %w", err)
	}
	o.registry.AttachPlugin(newSlot, newLabel, newPlugin)
	newEp, oldEp := newSlot.Endpoint(), oldSlot.Endpoint()

	newConns := edgesBetween(prevA, newEp, prevM, newEp)
	newConns = append(newConns, edgesBetween(newEp, nextA, newEp, nextM)...)

	var done []routing.Connection
	for _, c := range newConns {
		if err := o.connect(ctx, c); err != nil {
			for _, d := range done {
				o.disconnect(ctx, d)
			}
			_, _ = o.registry.RemoveByLabel(newLabel)
			return err
		}
		done = append(done, c)
	}

	old := edgesBetween(prevA, oldEp, prevM, oldEp)
	old = append(old, edgesBetween(oldEp, nextA, oldEp, nextM)...)
	for _, c := range old {
		o.disconnect(ctx, c)
	}

	_, err := o.registry.RemoveByLabel(oldSlot.Label())
	return err
}

// connect issues one HOST connect request and records it in the local edge
// bookkeeping on success.
func (o *Orchestrator) connect(ctx context.Context, c routing.Connection) error {
	if err := o.transport.Connect(ctx, c.Src, c.Dst); err != nil {
		return newError(TransportFailure, fmt.Sprintf("connect %s->%s", c.Src, c.Dst), err)
	}
	o.edges[c] = true
	return nil
}

// disconnect issues one HOST disconnect request. Failures are reported
// asynchronously rather than aborting the primitive — §4.4 only specifies
// rollback for connection (not disconnection) errors.
func (o *Orchestrator) disconnect(ctx context.Context, c routing.Connection) {
	if err := o.transport.Disconnect(ctx, c.Src, c.Dst); err != nil {
		o.errHandler.HandleError(TransportFailure, fmt.Sprintf("disconnect %s->%s", c.Src, c.Dst), err)
		return
	}
	delete(o.edges, c)
}

// diffConnections returns the elements of a not present in b.
func diffConnections(a, b []routing.Connection) []routing.Connection {
	inB := make(map[routing.Connection]bool, len(b))
	for _, c := range b {
		inB[c] = true
	}
	var out []routing.Connection
	for _, c := range a {
		if !inB[c] {
			out = append(out, c)
		}
	}
	return out
}

// reconcileCtx bounds a HOST call made from the reconciliation path, which
// has no caller-supplied context of its own.
func (o *Orchestrator) reconcileCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), o.cfg.RequestTimeout)
}

// reconcile handles one HOST event that did not match an active local edit's
// suppression predicate (§4.4 "Reconciliation").
func (o *Orchestrator) reconcile(ev Event) {
	switch ev.Kind {
	case EventAdd:
		o.reconcileAdd(ev)
	case EventRemove:
		o.reconcileRemove(ev)
	case EventParamSet:
		o.reconcileParamSet(ev)
	case EventBypass:
		o.reconcileBypass(ev)
	case EventConnect:
		o.edges[routing.Connection{Src: ev.Src, Dst: ev.Dst}] = true
	case EventDisconnect:
		delete(o.edges, routing.Connection{Src: ev.Src, Dst: ev.Dst})
	case EventHardware:
		o.inputTerminal.SetPorts(ev.HWInputs)
		o.outputTerminal.SetPorts(ev.HWOutputs)
	}
}

func (o *Orchestrator) reconcileAdd(ev Event) {
	if _, exists := o.registry.ByLabel(ev.Label); exists {
		// No local edit is active (reconcile only runs for unmatched
		// events), so a duplicate label here is a bug, not a confirmation
		// (§7).
		o.errHandler.HandleError(InvariantViolation, "duplicate add for label "+ev.Label, nil)
		return
	}

	o.setState(StateReconciling)
	defer o.setState(StateIdle)

	if o.cfg.ExternalPolicy == PolicyEnforce {
		ctx, cancel := o.reconcileCtx()
		defer cancel()
		if err := o.transport.RemovePlugin(ctx, ev.Label); err != nil {
			o.errHandler.HandleError(TransportFailure, "enforce: revert add "+ev.Label, err)
		}
		return
	}

	def, ok := o.whitelist.Lookup(ev.URI)
	if !ok {
		def = port.Def{URI: ev.URI}
	}
	reported := port.Reported{AudioIn: ev.AudioIn, AudioOut: ev.AudioOut, MIDIIn: ev.MIDIIn, MIDIOut: ev.MIDIOut}
	plugin := port.Project(def, reported)

	s := slot.New()
	if ev.Position != nil && *ev.Position >= 0 && *ev.Position <= o.registry.Len() {
		_ = o.registry.InsertAt(*ev.Position, s)
	} else {
		o.registry.Append(s)
	}
	o.registry.AttachPlugin(s, ev.Label, plugin)

	ctx, cancel := o.reconcileCtx()
	defer cancel()
	if err := o.insertPrimitive(ctx, s); err != nil {
		o.errHandler.HandleError(RoutingConflict, "mirror insert "+ev.Label, err)
	}
	if o.onSlotAdded != nil {
		o.onSlotAdded(s)
	}
}

func (o *Orchestrator) reconcileRemove(ev Event) {
	s, ok := o.registry.ByLabel(ev.Label)
	if !ok {
		// §7: HOST-originated remove of an unknown label is benign.
		o.logger.Warn("remove event for unknown label, ignoring", "label", ev.Label)
		return
	}

	o.setState(StateReconciling)
	defer o.setState(StateIdle)

	ctx, cancel := o.reconcileCtx()
	defer cancel()

	if o.cfg.ExternalPolicy == PolicyEnforce {
		oldLabel := ev.Label
		uri := s.Plugin().URI

		newLabel, err := o.transport.AddPlugin(ctx, uri)
		if err != nil {
			o.errHandler.HandleError(TransportFailure, "enforce: re-add "+oldLabel, err)
			return
		}

		// Await this add's own echo by predicate, the same way doAdd/doReplace
		// do — it must never fall through to reconcileAdd, which would read
		// PolicyEnforce and revert the very compensation issued here.
		addEv, matched := o.disp.awaitEvent(predicate{kind: EventAdd, label: newLabel})
		reported := port.Reported{}
		if matched {
			reported = port.Reported{AudioIn: addEv.AudioIn, AudioOut: addEv.AudioOut, MIDIIn: addEv.MIDIIn, MIDIOut: addEv.MIDIOut}
		} else {
			o.errHandler.HandleError(Timeout, "enforce: re-add "+newLabel+": no echoed add event", nil)
		}

		def, ok := o.whitelist.Lookup(uri)
		if !ok {
			def = port.Def{URI: uri}
		}
		newPlugin := port.Project(def, reported)

		// swapPrimitive reinserts at s's old index, reconnects around it, and
		// removes the stale slot s from the Registry — leaving no ghost slot
		// pointing at the no-longer-existing HOST instance.
		if err := o.swapPrimitive(ctx, s, newLabel, newPlugin); err != nil {
			_ = o.transport.RemovePlugin(ctx, newLabel)
			o.errHandler.HandleError(RoutingConflict, "enforce: restore "+oldLabel, err)
			return
		}

		if o.onSlotRemoved != nil {
			o.onSlotRemoved(oldLabel)
		}
		if o.onSlotAdded != nil {
			if ns, ok := o.registry.ByLabel(newLabel); ok {
				o.onSlotAdded(ns)
			}
		}
		return
	}

	if err := o.extractPrimitive(ctx, s); err != nil {
		o.errHandler.HandleError(RoutingConflict, "mirror extract "+ev.Label, err)
	}
	if _, err := o.registry.RemoveByLabel(ev.Label); err != nil {
		o.errHandler.HandleError(InvariantViolation, "mirror remove "+ev.Label, err)
	}
	if o.onSlotRemoved != nil {
		o.onSlotRemoved(ev.Label)
	}
}

func (o *Orchestrator) reconcileParamSet(ev Event) {
	s, ok := o.registry.ByLabel(ev.Label)
	if !ok {
		o.logger.Warn("param_set for unknown label, ignoring", "label", ev.Label)
		return
	}
	s.Plugin().SetControl(ev.Symbol, ev.Value)
	if o.onParamChange != nil {
		o.onParamChange(ev.Label, ev.Symbol, ev.Value)
	}
}

func (o *Orchestrator) reconcileBypass(ev Event) {
	s, ok := o.registry.ByLabel(ev.Label)
	if !ok {
		o.logger.Warn("bypass for unknown label, ignoring", "label", ev.Label)
		return
	}
	s.Plugin().SetBypassed(ev.Bypassed)
	if o.onBypassChange != nil {
		o.onBypassChange(ev.Label, ev.Bypassed)
	}
}
