// Package testutil provides fakes used across the module's test suites: an
// in-memory Transport and EventSource double for driving the Orchestrator
// without a real HOST, adapted from the teacher's testutil helpers (which
// built real AVAudioEngine instances for its own integration tests).
package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/o-murphy/modep-rig/rig"
)

// SkipUnlessEnv skips the test unless the given env var equals the wanted
// value.
func SkipUnlessEnv(t *testing.T, key, want string) {
	t.Helper()
	if os.Getenv(key) != want {
		t.Skipf("skipped: set %s=%s to run", key, want)
	}
}

// FakeTransport is an in-memory rig.Transport double. AddPlugin assigns
// labels deterministically (uri + running counter) and Ports supplies the
// port list reported on the add event AddPlugin itself pushes through
// FakeTransport's paired FakeEventSource.
type FakeTransport struct {
	mu        sync.Mutex
	counter   int
	Ports     map[string]rig.Event // keyed by uri; fields AudioIn/AudioOut/MIDIIn/MIDIOut consumed
	Events    *FakeEventSource
	FailNext  string // if non-empty, the method named here fails once FailAfter prior calls to it succeeded
	FailAfter int
	Calls     []string
}

func (f *FakeTransport) record(s string) {
	f.mu.Lock()
	f.Calls = append(f.Calls, s)
	f.mu.Unlock()
}

// CallLog returns a snapshot of every AddPlugin, RemovePlugin, Connect and
// Disconnect call made so far, in order. SetParam, SetBypass and
// ListHardwarePorts are not recorded.
func (f *FakeTransport) CallLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Calls))
	copy(out, f.Calls)
	return out
}

// NewFakeTransport builds a FakeTransport wired to a fresh FakeEventSource.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{Ports: make(map[string]rig.Event), Events: NewFakeEventSource()}
}

func (f *FakeTransport) shouldFail(op string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNext != op {
		return false
	}
	if f.FailAfter > 0 {
		f.FailAfter--
		return false
	}
	f.FailNext = ""
	return true
}

func (f *FakeTransport) AddPlugin(ctx context.Context, uri string) (string, error) {
	f.record(fmt.Sprintf("add_plugin %s", uri))
	if f.shouldFail("AddPlugin") {
		return "", fmt.Errorf("fake: add_plugin failed")
	}
	f.mu.Lock()
	f.counter++
	label := fmt.Sprintf("%s_%d", uri, f.counter)
	f.mu.Unlock()

	tmpl := f.Ports[uri]
	f.Events.Push(rig.Event{
		Kind:     rig.EventAdd,
		Label:    label,
		URI:      uri,
		AudioIn:  tmpl.AudioIn,
		AudioOut: tmpl.AudioOut,
		MIDIIn:   tmpl.MIDIIn,
		MIDIOut:  tmpl.MIDIOut,
	})
	return label, nil
}

func (f *FakeTransport) RemovePlugin(ctx context.Context, label string) error {
	f.record(fmt.Sprintf("remove_plugin %s", label))
	if f.shouldFail("RemovePlugin") {
		return fmt.Errorf("fake: remove_plugin failed")
	}
	f.Events.Push(rig.Event{Kind: rig.EventRemove, Label: label})
	return nil
}

func (f *FakeTransport) Connect(ctx context.Context, src, dst string) error {
	f.record(fmt.Sprintf("connect %s->%s", src, dst))
	if f.shouldFail("Connect") {
		return fmt.Errorf("fake: connect failed")
	}
	f.Events.Push(rig.Event{Kind: rig.EventConnect, Src: src, Dst: dst})
	return nil
}

func (f *FakeTransport) Disconnect(ctx context.Context, src, dst string) error {
	f.record(fmt.Sprintf("disconnect %s->%s", src, dst))
	if f.shouldFail("Disconnect") {
		return fmt.Errorf("fake: disconnect failed")
	}
	f.Events.Push(rig.Event{Kind: rig.EventDisconnect, Src: src, Dst: dst})
	return nil
}

func (f *FakeTransport) SetParam(ctx context.Context, label, symbol string, value float64) error {
	if f.shouldFail("SetParam") {
		return fmt.Errorf("fake: set_param failed")
	}
	f.Events.Push(rig.Event{Kind: rig.EventParamSet, Label: label, Symbol: symbol, Value: value})
	return nil
}

func (f *FakeTransport) SetBypass(ctx context.Context, label string, bypassed bool) error {
	if f.shouldFail("SetBypass") {
		return fmt.Errorf("fake: set_bypass failed")
	}
	f.Events.Push(rig.Event{Kind: rig.EventBypass, Label: label, Bypassed: bypassed})
	return nil
}

func (f *FakeTransport) ListHardwarePorts(ctx context.Context) ([]string, []string, error) {
	return nil, nil, nil
}

// FakeEventSource is an in-memory rig.EventSource double fed by FakeTransport
// (for self-echoes) and directly by tests (for externally originated
// events).
type FakeEventSource struct {
	ch chan rig.Event
}

func NewFakeEventSource() *FakeEventSource {
	return &FakeEventSource{ch: make(chan rig.Event, 256)}
}

func (f *FakeEventSource) Events() <-chan rig.Event { return f.ch }

// Push enqueues ev as if the HOST had emitted it.
func (f *FakeEventSource) Push(ev rig.Event) { f.ch <- ev }

// AwaitQuiescence gives the Dispatcher's worker goroutine time to drain
// whatever was just pushed, for tests that assert on state after an
// externally originated event.
func AwaitQuiescence() { time.Sleep(20 * time.Millisecond) }
