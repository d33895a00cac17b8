package rig

import (
	"github.com/google/uuid"

	"github.com/o-murphy/modep-rig/routing"
	"github.com/o-murphy/modep-rig/slot"
)

// chainEntry pairs a routing endpoint with the slot it came from, if any —
// the two terminal positions carry a nil slot (§9 "terminals are sentinels
// held by the Orchestrator, not members of the Registry").
type chainEntry struct {
	endpoint routing.Endpoint
	slot     *slot.Slot
}

// buildChain assembles the effective chain (§3): input terminal, every
// non-empty Registry slot in order, output terminal. Empty slots are skipped
// entirely — they never participate in routing.
func (o *Orchestrator) buildChain() []chainEntry {
	slots := o.registry.Slots()
	entries := make([]chainEntry, 0, len(slots)+2)
	entries = append(entries, chainEntry{endpoint: o.inputTerminal})
	for _, s := range slots {
		if s.IsEmpty() {
			continue
		}
		entries = append(entries, chainEntry{endpoint: s.Endpoint(), slot: s})
	}
	entries = append(entries, chainEntry{endpoint: o.outputTerminal})
	return entries
}

func chainEndpoints(entries []chainEntry) []routing.Endpoint {
	out := make([]routing.Endpoint, len(entries))
	for i, e := range entries {
		out[i] = e.endpoint
	}
	return out
}

func indexOfSlot(entries []chainEntry, id uuid.UUID) int {
	for i, e := range entries {
		if e.slot != nil && e.slot.ID() == id {
			return i
		}
	}
	return -1
}

// neighborsOf locates slot s in the current effective chain and returns its
// previous/next neighbor per medium, under the configured routing mode. s
// must already be attached (non-empty) and present in the Registry.
func (o *Orchestrator) neighborsOf(s *slot.Slot) (prevAudio, nextAudio, prevMIDI, nextMIDI routing.Endpoint) {
	entries := o.buildChain()
	idx := indexOfSlot(entries, s.ID())
	if idx < 0 {
		return nil, nil, nil, nil
	}
	eps := chainEndpoints(entries)
	prevAudio, nextAudio = routing.Neighbors(eps, idx, o.cfg.RoutingMode, routing.Audio)
	prevMIDI, nextMIDI = routing.Neighbors(eps, idx, o.cfg.RoutingMode, routing.MIDI)
	return prevAudio, nextAudio, prevMIDI, nextMIDI
}

// edgesBetween computes the connections the Routing Engine produces for the
// (src, dst) adjacency, per medium, using the neighbor each medium actually
// picked (hard_bypass and dual_track may pick different nodes per medium, so
// this must not assume prevAudio == prevMIDI).
func edgesBetween(srcAudio, dstAudio, srcMIDI, dstMIDI routing.Endpoint) []routing.Connection {
	var out []routing.Connection
	if srcAudio != nil && dstAudio != nil {
		out = append(out, routing.RouteAudio(srcAudio, dstAudio)...)
	}
	if srcMIDI != nil && dstMIDI != nil {
		out = append(out, routing.RouteMIDI(srcMIDI, dstMIDI)...)
	}
	return out
}
