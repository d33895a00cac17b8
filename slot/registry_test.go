package slot

import "testing"

func TestRegistry_AppendReindexes(t *testing.T) {
	r := NewRegistry()
	a, b, c := New(), New(), New()
	r.Append(a)
	r.Append(b)
	r.Append(c)

	for i, s := range r.Slots() {
		if s.Index() != i {
			t.Fatalf("slot %d has index %d", i, s.Index())
		}
	}
}

func TestRegistry_InsertAtMiddle(t *testing.T) {
	r := NewRegistry()
	a, b, c := New(), New(), New()
	r.Append(a)
	r.Append(c)
	if err := r.InsertAt(1, b); err != nil {
		t.Fatalf("InsertAt: %v", err)
	}

	got := r.Slots()
	if got[0].ID() != a.ID() || got[1].ID() != b.ID() || got[2].ID() != c.ID() {
		t.Fatalf("unexpected order after insert: %v", got)
	}
	if got[1].Index() != 1 {
		t.Fatalf("inserted slot index = %d, want 1", got[1].Index())
	}
}

func TestRegistry_RemoveByLabel(t *testing.T) {
	r := NewRegistry()
	a, b := New(), New()
	r.Append(a)
	r.Append(b)
	r.AttachPlugin(a, "DS1_0", nil)
	r.AttachPlugin(b, "Reverb_1", nil)

	removed, err := r.RemoveByLabel("DS1_0")
	if err != nil {
		t.Fatalf("RemoveByLabel: %v", err)
	}
	if removed.ID() != a.ID() {
		t.Fatalf("removed wrong slot")
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	if r.Slots()[0].Index() != 0 {
		t.Fatalf("remaining slot not reindexed: %d", r.Slots()[0].Index())
	}

	if _, err := r.RemoveByLabel("missing"); err == nil {
		t.Fatalf("expected error removing unknown label")
	}
}

func TestRegistry_Move(t *testing.T) {
	r := NewRegistry()
	a, b, c := New(), New(), New()
	r.Append(a)
	r.Append(b)
	r.Append(c)

	if err := r.Move(2, 0); err != nil {
		t.Fatalf("Move: %v", err)
	}

	got := r.Slots()
	if got[0].ID() != c.ID() || got[1].ID() != a.ID() || got[2].ID() != b.ID() {
		t.Fatalf("unexpected order after move: %v", got)
	}
	for i, s := range got {
		if s.Index() != i {
			t.Fatalf("slot at position %d has index %d", i, s.Index())
		}
	}
}

func TestRegistry_ByLabelAndUUID(t *testing.T) {
	r := NewRegistry()
	a := New()
	r.Append(a)
	r.AttachPlugin(a, "DS1_0", nil)

	if s, ok := r.ByLabel("DS1_0"); !ok || s.ID() != a.ID() {
		t.Fatalf("ByLabel lookup failed")
	}
	if s, ok := r.ByUUID(a.ID()); !ok || s.Label() != "DS1_0" {
		t.Fatalf("ByUUID lookup failed")
	}
	if _, ok := r.ByLabel("nope"); ok {
		t.Fatalf("expected miss for unknown label")
	}
}

func TestRegistry_SnapshotIsCopy(t *testing.T) {
	r := NewRegistry()
	r.Append(New())
	snap := r.Slots()
	r.Append(New())

	if len(snap) != 1 {
		t.Fatalf("earlier snapshot was mutated by later Append: len=%d", len(snap))
	}
}
