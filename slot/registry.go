package slot

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/o-murphy/modep-rig/port"
)

// Registry is the ordered sequence of slots (§4.3). All mutations reindex so
// that a slot's Index always equals its position (§3 invariant 2). The
// Registry has no mutex of its own: per §5, it is owned exclusively by the
// Orchestrator, which runs single-threaded, so no lock is required by
// design — callers outside rig must only ever see Slots()'s copies.
type Registry struct {
	slots []*Slot
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Append adds s to the end of the chain.
func (r *Registry) Append(s *Slot) {
	r.slots = append(r.slots, s)
	s.setIndex(len(r.slots) - 1)
}

// InsertAt inserts s at position i (0..Len()), shifting subsequent slots
// right and reindexing.
func (r *Registry) InsertAt(i int, s *Slot) error {
	if i < 0 || i > len(r.slots) {
		return fmt.Errorf("slot: insert position %d out of range [0,%d]", i, len(r.slots))
	}
	r.slots = append(r.slots, nil)
	copy(r.slots[i+1:], r.slots[i:])
	r.slots[i] = s
	r.reindex()
	return nil
}

// AttachPlugin assigns the HOST label and plugin to s, which must already be
// a member of the registry (inserted empty at creation time). This is the
// only place a slot's plugin-bearing state changes after creation.
func (r *Registry) AttachPlugin(s *Slot, label string, p *port.Plugin) {
	s.attach(label, p)
}

// RemoveByLabel removes and returns the slot with the given label.
func (r *Registry) RemoveByLabel(label string) (*Slot, error) {
	for i, s := range r.slots {
		if s.label == label {
			r.slots = append(r.slots[:i], r.slots[i+1:]...)
			r.reindex()
			return s, nil
		}
	}
	return nil, fmt.Errorf("slot: no slot with label %q", label)
}

// Move reorders the slot at index from to index to, reindexing afterward.
func (r *Registry) Move(from, to int) error {
	n := len(r.slots)
	if from < 0 || from >= n {
		return fmt.Errorf("slot: move: invalid from index %d", from)
	}
	if to < 0 || to >= n {
		return fmt.Errorf("slot: move: invalid to index %d", to)
	}
	if from == to {
		return nil
	}
	s := r.slots[from]
	r.slots = append(r.slots[:from], r.slots[from+1:]...)
	r.slots = append(r.slots[:to], append([]*Slot{s}, r.slots[to:]...)...)
	r.reindex()
	return nil
}

// ByLabel looks up a slot by its HOST-assigned label.
func (r *Registry) ByLabel(label string) (*Slot, bool) {
	for _, s := range r.slots {
		if s.label == label {
			return s, true
		}
	}
	return nil, false
}

// ByUUID looks up a slot by its stable local identity.
func (r *Registry) ByUUID(id uuid.UUID) (*Slot, bool) {
	for _, s := range r.slots {
		if s.id == id {
			return s, true
		}
	}
	return nil, false
}

// Len returns the number of slots (empty or not) in the chain.
func (r *Registry) Len() int { return len(r.slots) }

// Slots returns a read-only snapshot of the ordered slot sequence. Other
// components receive only this snapshot, never the live backing slice
// (§5 "Shared resource policy").
func (r *Registry) Slots() []*Slot {
	out := make([]*Slot, len(r.slots))
	copy(out, r.slots)
	return out
}

func (r *Registry) reindex() {
	for i, s := range r.slots {
		s.setIndex(i)
	}
}
