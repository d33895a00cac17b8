// Package slot implements the Slot and Terminal types (§3) and the
// Slot Registry (§4.3): the ordered sequence the Orchestrator mutates.
package slot

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/o-murphy/modep-rig/port"
)

// Slot is a position in the chain. It carries a stable local UUID assigned at
// creation, a HOST-assigned label (empty until the matching add event
// arrives), its 0-based index, and optionally a Plugin. An empty slot (no
// Plugin) is legal and is skipped by routing.
type Slot struct {
	id     uuid.UUID
	label  string
	index  int
	plugin *port.Plugin
}

// New creates an empty slot with a fresh local identity.
func New() *Slot {
	return &Slot{id: uuid.New()}
}

func (s *Slot) ID() uuid.UUID { return s.id }

// IDString returns the slot UUID as a string, for map keys and logging —
// the same UUID-hybrid pattern the teacher uses for channel identity.
func (s *Slot) IDString() string { return s.id.String() }

func (s *Slot) Label() string { return s.label }
func (s *Slot) Index() int    { return s.index }
func (s *Slot) Plugin() *port.Plugin { return s.plugin }
func (s *Slot) IsEmpty() bool { return s.plugin == nil }

// attach assigns the HOST label and plugin to the slot. Only the Registry
// (on behalf of the Orchestrator, the sole mutator per §4.3) calls this.
func (s *Slot) attach(label string, p *port.Plugin) {
	s.label = label
	s.plugin = p
}

func (s *Slot) setIndex(i int) { s.index = i }

// Endpoint adapts a Slot's current Plugin to routing.Endpoint. Calling it on
// an empty slot is a programming error: the effective chain never includes
// empty slots (§3).
func (s *Slot) Endpoint() endpointer {
	if s.plugin == nil {
		panic(fmt.Sprintf("slot: Endpoint() on empty slot %s", s.id))
	}
	return endpointer{s.plugin}
}

// endpointer narrows *port.Plugin to the routing.Endpoint method set without
// importing the routing package from slot (keeps slot's dependency graph a
// pure leaf: port only).
type endpointer struct{ p *port.Plugin }

func (e endpointer) AudioOutputs() []string { return e.p.AudioOutputs() }
func (e endpointer) AudioInputs() []string  { return e.p.AudioInputs() }
func (e endpointer) MIDIOutputs() []string  { return e.p.MIDIOutputs() }
func (e endpointer) MIDIInputs() []string   { return e.p.MIDIInputs() }
func (e endpointer) JoinAudioOutputs() bool { return e.p.JoinAudioOutputs() }
func (e endpointer) JoinAudioInputs() bool  { return e.p.JoinAudioInputs() }
func (e endpointer) JoinMIDIOutputs() bool  { return e.p.JoinMIDIOutputs() }
func (e endpointer) JoinMIDIInputs() bool   { return e.p.JoinMIDIInputs() }

// TerminalKind distinguishes the two pseudo-slot sentinels.
type TerminalKind int

const (
	Input TerminalKind = iota
	Output
)

// Terminal represents the HOST's hardware inputs or outputs (§3
// "Pseudo-slots"). Its only mutation is SetPorts on a HOST hardware event;
// it never appears in the Registry's ordered sequence; it bookends the chain.
type Terminal struct {
	Kind     TerminalKind
	ports    []string
	joinHint bool
}

// NewInputTerminal builds the input_terminal sentinel from the configured
// hardware capture ports and the hardware.join_audio_outputs hint (the
// terminal acts as a *source*, so the relevant hint is its outputs).
func NewInputTerminal(ports []string, joinAudioOutputs bool) *Terminal {
	return &Terminal{Kind: Input, ports: ports, joinHint: joinAudioOutputs}
}

// NewOutputTerminal builds the output_terminal sentinel from the configured
// hardware playback ports and the hardware.join_audio_inputs hint (the
// terminal acts as a *destination*).
func NewOutputTerminal(ports []string, joinAudioInputs bool) *Terminal {
	return &Terminal{Kind: Output, ports: ports, joinHint: joinAudioInputs}
}

func (t *Terminal) AudioOutputs() []string {
	if t.Kind == Input {
		return t.ports
	}
	return nil
}

func (t *Terminal) AudioInputs() []string {
	if t.Kind == Output {
		return t.ports
	}
	return nil
}

// SetPorts replaces the terminal's hardware port list, e.g. on a HOST
// "hardware" event (§6). It does not trigger any reconnection by itself.
func (t *Terminal) SetPorts(ports []string) { t.ports = ports }

func (t *Terminal) MIDIOutputs() []string { return nil }
func (t *Terminal) MIDIInputs() []string  { return nil }

func (t *Terminal) JoinAudioOutputs() bool { return t.Kind == Input && t.joinHint }
func (t *Terminal) JoinAudioInputs() bool  { return t.Kind == Output && t.joinHint }
func (t *Terminal) JoinMIDIOutputs() bool  { return false }
func (t *Terminal) JoinMIDIInputs() bool   { return false }
