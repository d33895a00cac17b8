// Package port implements the port model: per-plugin audio/MIDI port lists,
// routing hints, and the configuration projection that turns a whitelist
// entry plus HOST-reported ports into an effective Plugin.
package port

import "sync"

// Hints are the four routing booleans carried by a plugin definition.
type Hints struct {
	JoinAudioInputs  bool
	JoinAudioOutputs bool
	JoinMIDIInputs   bool
	JoinMIDIOutputs  bool
}

// Def is a whitelisted plugin entry as loaded from configuration (§4.1, §6
// "per-plugin plugins[]"). Overrides, when non-nil, replace the
// HOST-discovered port list verbatim.
type Def struct {
	URI      string
	Name     string
	Category string

	AudioInputsOverride  []string
	AudioOutputsOverride []string
	MIDIInputsOverride   []string
	MIDIOutputsOverride  []string

	Hints
}

// Reported is the set of ports the HOST attached to an `add` event for a
// newly created plugin instance.
type Reported struct {
	AudioIn  []string
	AudioOut []string
	MIDIIn   []string
	MIDIOut  []string
}

// Whitelist is the set of plugin URIs the Orchestrator will accept.
// Read-only after construction; safe for concurrent lookup.
type Whitelist struct {
	defs map[string]Def
}

// NewWhitelist builds a Whitelist from configuration entries.
func NewWhitelist(defs []Def) *Whitelist {
	w := &Whitelist{defs: make(map[string]Def, len(defs))}
	for _, d := range defs {
		w.defs[d.URI] = d
	}
	return w
}

// Lookup returns the whitelist entry for uri, or ok=false if uri is not
// whitelisted. Callers at the Orchestrator boundary turn a false result into
// an UnsupportedPlugin error.
func (w *Whitelist) Lookup(uri string) (Def, bool) {
	if w == nil {
		return Def{}, false
	}
	d, ok := w.defs[uri]
	return d, ok
}

// Plugin is the mutable control surface of an instantiated plugin: its
// effective port lists, routing hints, and current control-symbol values.
type Plugin struct {
	URI      string
	Name     string
	Category string

	AudioIn  []string
	AudioOut []string
	MIDIIn   []string
	MIDIOut  []string

	Hints

	Bypassed bool

	mu       sync.RWMutex
	controls map[string]float64
}

// Project builds the effective Plugin for a newly created instance: ports are
// taken from def's overrides where present, else from what the HOST reported.
func Project(def Def, reported Reported) *Plugin {
	return &Plugin{
		URI:      def.URI,
		Name:     def.Name,
		Category: def.Category,
		AudioIn:  pick(def.AudioInputsOverride, reported.AudioIn),
		AudioOut: pick(def.AudioOutputsOverride, reported.AudioOut),
		MIDIIn:   pick(def.MIDIInputsOverride, reported.MIDIIn),
		MIDIOut:  pick(def.MIDIOutputsOverride, reported.MIDIOut),
		Hints:    def.Hints,
		controls: make(map[string]float64),
	}
}

func pick(override, discovered []string) []string {
	if override != nil {
		return append([]string(nil), override...)
	}
	return append([]string(nil), discovered...)
}

// SetControl records a control-symbol value (e.g. from a param_set event).
func (p *Plugin) SetControl(symbol string, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controls[symbol] = value
}

// Control returns the current value of a control symbol.
func (p *Plugin) Control(symbol string) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.controls[symbol]
	return v, ok
}

// Controls returns a snapshot copy of all control-symbol values.
func (p *Plugin) Controls() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]float64, len(p.controls))
	for k, v := range p.controls {
		out[k] = v
	}
	return out
}

// SetBypassed records the plugin's bypass state (from a bypass event).
func (p *Plugin) SetBypassed(b bool) {
	p.mu.Lock()
	p.Bypassed = b
	p.mu.Unlock()
}

// IsBypassed reports the current bypass state.
func (p *Plugin) IsBypassed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Bypassed
}

// Endpoint interface implementation — the Routing Engine treats a Plugin
// uniformly with slot.Terminal via this interface (§9 "Polymorphism").

func (p *Plugin) AudioOutputs() []string { return p.AudioOut }
func (p *Plugin) AudioInputs() []string  { return p.AudioIn }
func (p *Plugin) MIDIOutputs() []string  { return p.MIDIOut }
func (p *Plugin) MIDIInputs() []string   { return p.MIDIIn }

func (p *Plugin) JoinAudioOutputs() bool { return p.Hints.JoinAudioOutputs }
func (p *Plugin) JoinAudioInputs() bool  { return p.Hints.JoinAudioInputs }
func (p *Plugin) JoinMIDIOutputs() bool  { return p.Hints.JoinMIDIOutputs }
func (p *Plugin) JoinMIDIInputs() bool   { return p.Hints.JoinMIDIInputs }
