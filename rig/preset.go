package rig

import (
	"context"
	"sort"

	"github.com/o-murphy/modep-rig/port"
	"github.com/o-murphy/modep-rig/preset"
	"github.com/o-murphy/modep-rig/routing"
	"github.com/o-murphy/modep-rig/slot"
)

// SavePreset captures the current Registry as an ordered list of
// preset.Entry (§6 "Preset format"). It takes no HOST snapshot of its own —
// it reflects whatever the Orchestrator's local mirror currently holds.
func (o *Orchestrator) SavePreset(ctx context.Context) (entries []preset.Entry) {
	o.disp.submit(func() {
		for i, s := range o.registry.Slots() {
			if s.IsEmpty() {
				continue
			}
			p := s.Plugin()
			controls := make(map[string]float64, len(p.Controls()))
			for k, v := range p.Controls() {
				controls[k] = v
			}
			entries = append(entries, preset.Entry{
				Index:    i,
				URI:      p.URI,
				Controls: controls,
				Bypassed: p.IsBypassed(),
			})
		}
	})
	return entries
}

// RequestLoadPreset replaces the entire chain with the plugins described by
// entries, in one recomputation pass (§6 "Preset format": loading a preset
// is not required to preserve audio during the swap the way individual edits
// are). Every current slot is torn down first, then each entry's plugin is
// created in order, then the Routing Engine computes the full connection set
// once against the resulting chain.
func (o *Orchestrator) RequestLoadPreset(ctx context.Context, entries []preset.Entry) (err error) {
	o.disp.submit(func() {
		err = o.doLoadPreset(ctx, entries)
	})
	return err
}

func (o *Orchestrator) doLoadPreset(ctx context.Context, entries []preset.Entry) error {
	o.setState(StateReconciling)
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
			o.errHandler.HandleError(InvariantViolation, "load_preset: remove "+label, err)
		}
		if o.onSlotRemoved != nil {
			o.onSlotRemoved(label)
		}
	}

	ordered := make([]preset.Entry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	for _, entry := range ordered {
		def, ok := o.whitelist.Lookup(entry.URI)
		if !ok {
			o.errHandler.HandleError(UnsupportedPlugin, entry.URI, nil)
			continue
		}

		label, err := o.transport.AddPlugin(ctx, entry.URI)
		if err != nil {
			o.errHandler.HandleError(TransportFailure, "add_plugin "+entry.URI, err)
			continue
		}

		ev, matched := o.disp.awaitEvent(predicate{kind: EventAdd, label: label})
		reported := port.Reported{}
		if matched {
			reported = port.Reported{AudioIn: ev.AudioIn, AudioOut: ev.AudioOut, MIDIIn: ev.MIDIIn, MIDIOut: ev.MIDIOut}
		} else {
			o.errHandler.HandleError(Timeout, "load_preset "+label+": no echoed add event", nil)
		}

		plugin := port.Project(def, reported)
		s := slot.New()
		o.registry.Append(s)
		o.registry.AttachPlugin(s, label, plugin)

		for symbol, value := range entry.Controls {
			if err := o.transport.SetParam(ctx, label, symbol, value); err != nil {
				o.errHandler.HandleError(TransportFailure, "set_param "+label, err)
				continue
			}
			plugin.SetControl(symbol, value)
		}
		if entry.Bypassed {
			if err := o.transport.SetBypass(ctx, label, true); err != nil {
				o.errHandler.HandleError(TransportFailure, "set_bypass "+label, err)
			} else {
				plugin.SetBypassed(true)
			}
		}

		if o.onSlotAdded != nil {
			o.onSlotAdded(s)
		}
	}

	chainEps := chainEndpoints(o.buildChain())
	o.edges = make(map[routing.Connection]bool)
	for _, c := range routing.FullRecompute(chainEps, o.cfg.RoutingMode) {
		if err := o.connect(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
