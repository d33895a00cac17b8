package rig_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/o-murphy/modep-rig/internal/testutil"
	"github.com/o-murphy/modep-rig/port"
	"github.com/o-murphy/modep-rig/rig"
	"github.com/o-murphy/modep-rig/routing"
	"github.com/o-murphy/modep-rig/slot"
)

// recordingHandler captures every error Kind reported to it, for tests that
// assert on the async on_error channel rather than a Request* return value.
type recordingHandler struct {
	mu    sync.Mutex
	kinds []rig.Kind
}

func (r *recordingHandler) HandleError(kind rig.Kind, detail string, err error) {
	r.mu.Lock()
	r.kinds = append(r.kinds, kind)
	r.mu.Unlock()
}

func (r *recordingHandler) has(kind rig.Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Under external_policy: enforce, a HOST-originated remove of a tracked
// plugin must be reverted in place: a fresh instance of the same URI is
// re-added at the same chain position, and the stale slot is fully dropped
// from the Registry rather than left as a ghost pointing at a dead HOST
// instance (§4.4 "Policy choice").
func TestOrchestrator_ExternalRemove_EnforcePolicy(t *testing.T) {
	rec := &recordingHandler{}
	orch, transport, _ := newTestRigFull(t, routing.ModeHardBypass, rig.PolicyEnforce, rec)
	addMono(t, transport, "DS1", "DS1/in", "DS1/out")
	addMono(t, transport, "Reverb", "Reverb/in", "Reverb/out")
	addMono(t, transport, "Delay", "Delay/in", "Delay/out")

	ctx := context.Background()
	if _, err := orch.RequestAddPlugin(ctx, "DS1", -1); err != nil {
		t.Fatalf("add DS1: %v", err)
	}
	reverbLabel, err := orch.RequestAddPlugin(ctx, "Reverb", -1)
	if err != nil {
		t.Fatalf("add Reverb: %v", err)
	}
	if _, err := orch.RequestAddPlugin(ctx, "Delay", -1); err != nil {
		t.Fatalf("add Delay: %v", err)
	}

	var removedLabels []string
	var addedLabels []string
	orch.OnSlotRemoved(func(label string) { removedLabels = append(removedLabels, label) })
	orch.OnSlotAdded(func(s *slot.Slot) { addedLabels = append(addedLabels, s.Label()) })

	// The restored instance is the fourth AddPlugin call, which FakeTransport
	// labels Reverb_4; report label-named ports for it so its edges are
	// distinguishable from the stale instance's.
	addMono(t, transport, "Reverb", "Reverb_4/in", "Reverb_4/out")

	transport.Events.Push(rig.Event{Kind: rig.EventRemove, Label: reverbLabel})
	testutil.AwaitQuiescence()

	slots := orch.Slots()
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots after enforced restore, got %d", len(slots))
	}
	restored := slots[1]
	if restored.Label() == reverbLabel {
		t.Fatalf("expected a fresh label for the restored slot, still has %s", reverbLabel)
	}
	if restored.Plugin().URI != "Reverb" {
		t.Fatalf("expected restored slot to hold a Reverb instance, got %+v", restored.Plugin())
	}

	if _, ok := orch.GetSlotByLabel(reverbLabel); ok {
		t.Fatalf("stale slot %s still present in registry (ghost slot)", reverbLabel)
	}

	calls := transport.CallLog()
	wantOrder := []string{
		"add_plugin Reverb",
		"connect DS1/out->" + restored.Label() + "/in",
		"connect " + restored.Label() + "/out->Delay/in",
		"disconnect DS1/out->Reverb/in",
		"disconnect Reverb/out->Delay/in",
	}
	assertSubsequence(t, calls, wantOrder)

	for _, c := range calls {
		if c == "remove_plugin "+restored.Label() {
			t.Fatalf("restored plugin %s was immediately reverted, call log: %v", restored.Label(), calls)
		}
	}

	if len(removedLabels) != 1 || removedLabels[0] != reverbLabel {
		t.Fatalf("expected on_slot_removed(%s) exactly once, got %v", reverbLabel, removedLabels)
	}
	found := false
	for _, l := range addedLabels {
		if l == restored.Label() {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected on_slot_added(%s), got %v", restored.Label(), addedLabels)
	}

	if rec.has(rig.RoutingConflict) || rec.has(rig.Timeout) {
		t.Fatalf("unexpected error reported during enforce restore: %v", rec.kinds)
	}
}

// Clear tears every slot down in order and reconnects the terminals directly
// once the chain is empty (§4.4 "request_clear").
func TestOrchestrator_Clear(t *testing.T) {
	orch, transport := newTestRig(t, routing.ModeHardBypass)
	addMono(t, transport, "DS1", "DS1/in", "DS1/out")
	addMono(t, transport, "Reverb", "Reverb/in", "Reverb/out")

	ctx := context.Background()
	dsLabel, err := orch.RequestAddPlugin(ctx, "DS1", -1)
	if err != nil {
		t.Fatalf("add DS1: %v", err)
	}
	reverbLabel, err := orch.RequestAddPlugin(ctx, "Reverb", -1)
	if err != nil {
		t.Fatalf("add Reverb: %v", err)
	}

	var removed []string
	orch.OnSlotRemoved(func(label string) { removed = append(removed, label) })

	if err := orch.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if len(orch.Slots()) != 0 {
		t.Fatalf("expected empty chain after clear, got %v", orch.Slots())
	}
	if len(removed) != 2 || removed[0] != dsLabel || removed[1] != reverbLabel {
		t.Fatalf("expected on_slot_removed for both slots in order, got %v", removed)
	}

	calls := transport.CallLog()
	wantOrder := []string{
		"remove_plugin " + dsLabel,
		"remove_plugin " + reverbLabel,
		"connect capture_1->playback_1",
	}
	assertSubsequence(t, calls, wantOrder)
}

// A HOST AddPlugin response that collides with an already-tracked label is
// reported as DuplicateLabel before any routing primitive runs (§7).
func TestOrchestrator_DuplicateLabel(t *testing.T) {
	events := testutil.NewFakeEventSource()
	transport := &fixedLabelTransport{events: events, label: "Dup_1"}
	wl := port.NewWhitelist([]port.Def{{URI: "DS1"}, {URI: "MVerb"}})
	in := slot.NewInputTerminal([]string{"capture_1"}, false)
	out := slot.NewOutputTerminal([]string{"playback_1"}, false)
	cfg := rig.DefaultConfig()
	cfg.RequestTimeout = 2 * time.Second

	logger := log.New(io.Discard)
	orch := rig.NewOrchestrator(transport, wl, in, out, cfg, rig.NopErrorHandler{}, logger)
	disp := rig.NewDispatcher(orch, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go disp.Run(ctx, events)
	t.Cleanup(cancel)

	if _, err := orch.RequestAddPlugin(context.Background(), "DS1", -1); err != nil {
		t.Fatalf("add DS1: %v", err)
	}

	_, err := orch.RequestAddPlugin(context.Background(), "MVerb", -1)
	if err == nil {
		t.Fatalf("expected DuplicateLabel error")
	}
	var rerr *rig.Error
	if !errors.As(err, &rerr) || rerr.Kind != rig.DuplicateLabel {
		t.Fatalf("expected DuplicateLabel kind, got %v", err)
	}
}

// When the HOST never echoes an add event, the request still completes (the
// new slot is created with no reported ports) and the timeout is surfaced
// through the error handler rather than blocking forever (§5 "Cancellation &
// timeouts").
func TestOrchestrator_AddEcho_Timeout(t *testing.T) {
	events := testutil.NewFakeEventSource()
	transport := &silentAddTransport{events: events}
	wl := port.NewWhitelist([]port.Def{{URI: "DS1"}})
	in := slot.NewInputTerminal([]string{"capture_1"}, false)
	out := slot.NewOutputTerminal([]string{"playback_1"}, false)
	cfg := rig.DefaultConfig()
	cfg.RequestTimeout = 30 * time.Millisecond

	rec := &recordingHandler{}
	logger := log.New(io.Discard)
	orch := rig.NewOrchestrator(transport, wl, in, out, cfg, rec, logger)
	disp := rig.NewDispatcher(orch, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go disp.Run(ctx, events)
	t.Cleanup(cancel)

	label, err := orch.RequestAddPlugin(context.Background(), "DS1", -1)
	if err != nil {
		t.Fatalf("add DS1: %v", err)
	}

	s, ok := orch.GetSlotByLabel(label)
	if !ok {
		t.Fatalf("expected slot %s to exist despite the timeout", label)
	}
	if len(s.Plugin().AudioInputs()) != 0 || len(s.Plugin().AudioOutputs()) != 0 {
		t.Fatalf("expected no reported ports after a timed-out echo, got %+v", s.Plugin())
	}
	if !rec.has(rig.Timeout) {
		t.Fatalf("expected a Timeout error to be reported, got %v", rec.kinds)
	}
}

// A connect failure partway through a multi-edge primitive rolls back only
// the edges it already made, leaving the previous topology otherwise intact
// (§4.4 primitive 1 rollback).
func TestOrchestrator_Insert_RollbackOnConnectFailure(t *testing.T) {
	rec := &recordingHandler{}
	orch, transport, _ := newTestRigFull(t, routing.ModeHardBypass, rig.PolicyMirror, rec)
	addMono(t, transport, "DS1", "DS1/in", "DS1/out")
	addMono(t, transport, "MVerb", "MVerb/in", "MVerb/out")

	ctx := context.Background()
	if _, err := orch.RequestAddPlugin(ctx, "DS1", -1); err != nil {
		t.Fatalf("add DS1: %v", err)
	}

	// Inserting MVerb ahead of DS1 needs two new connects: the first must
	// succeed and be rolled back once the second fails.
	transport.FailNext = "Connect"
	transport.FailAfter = 1

	label, err := orch.RequestAddPlugin(ctx, "MVerb", 0)
	if err != nil {
		t.Fatalf("add MVerb: %v", err)
	}
	if !rec.has(rig.RoutingConflict) {
		t.Fatalf("expected a RoutingConflict to be reported, got %v", rec.kinds)
	}

	calls := transport.CallLog()
	wantOrder := []string{
		"connect capture_1->MVerb/in",
		"connect MVerb/out->DS1/in",
		"disconnect capture_1->MVerb/in",
	}
	assertSubsequence(t, calls, wantOrder)

	for _, c := range calls {
		if c == "disconnect MVerb/out->DS1/in" {
			t.Fatalf("expected the failed connect to have nothing to roll back: %v", calls)
		}
	}

	slots := orch.Slots()
	if len(slots) != 2 || slots[0].Label() != label {
		t.Fatalf("expected MVerb slot still present at index 0 despite the rollback, got %v", slots)
	}
}

// fixedLabelTransport always hands back the same label, letting a test drive
// the DuplicateLabel path deterministically.
type fixedLabelTransport struct {
	events *testutil.FakeEventSource
	label  string
}

func (f *fixedLabelTransport) AddPlugin(ctx context.Context, uri string) (string, error) {
	f.events.Push(rig.Event{Kind: rig.EventAdd, Label: f.label, URI: uri})
	return f.label, nil
}
func (f *fixedLabelTransport) RemovePlugin(ctx context.Context, label string) error { return nil }
func (f *fixedLabelTransport) Connect(ctx context.Context, src, dst string) error   { return nil }
func (f *fixedLabelTransport) Disconnect(ctx context.Context, src, dst string) error {
	return nil
}
func (f *fixedLabelTransport) SetParam(ctx context.Context, label, symbol string, value float64) error {
	return nil
}
func (f *fixedLabelTransport) SetBypass(ctx context.Context, label string, bypassed bool) error {
	return nil
}
func (f *fixedLabelTransport) ListHardwarePorts(ctx context.Context) ([]string, []string, error) {
	return nil, nil, nil
}

// silentAddTransport accepts AddPlugin calls but never echoes a matching add
// event, forcing every caller through awaitEvent's timeout path.
type silentAddTransport struct {
	events *testutil.FakeEventSource
	mu     sync.Mutex
	n      int
}

func (f *silentAddTransport) AddPlugin(ctx context.Context, uri string) (string, error) {
	f.mu.Lock()
	f.n++
	label := fmt.Sprintf("%s_silent_%d", uri, f.n)
	f.mu.Unlock()
	return label, nil
}
func (f *silentAddTransport) RemovePlugin(ctx context.Context, label string) error { return nil }
func (f *silentAddTransport) Connect(ctx context.Context, src, dst string) error   { return nil }
func (f *silentAddTransport) Disconnect(ctx context.Context, src, dst string) error {
	return nil
}
func (f *silentAddTransport) SetParam(ctx context.Context, label, symbol string, value float64) error {
	return nil
}
func (f *silentAddTransport) SetBypass(ctx context.Context, label string, bypassed bool) error {
	return nil
}
func (f *silentAddTransport) ListHardwarePorts(ctx context.Context) ([]string, []string, error) {
	return nil, nil, nil
}
