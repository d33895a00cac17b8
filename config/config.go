// Package config loads the YAML configuration recognized by the
// Orchestrator (§6 "Configuration") and projects it into the port whitelist,
// terminal definitions, and rig.Config the rest of the module consumes.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/o-murphy/modep-rig/port"
	"github.com/o-murphy/modep-rig/rig"
	"github.com/o-murphy/modep-rig/routing"
	"github.com/o-murphy/modep-rig/slot"
)

// PluginEntry is one entry of the `plugins[]` configuration array.
type PluginEntry struct {
	Name             string   `yaml:"name"`
	URI              string   `yaml:"uri"`
	Category         string   `yaml:"category"`
	Inputs           []string `yaml:"inputs"`
	Outputs          []string `yaml:"outputs"`
	MIDIInputs       []string `yaml:"midi_inputs"`
	MIDIOutputs      []string `yaml:"midi_outputs"`
	JoinAudioInputs  bool     `yaml:"join_audio_inputs"`
	JoinAudioOutputs bool     `yaml:"join_audio_outputs"`
	JoinMIDIInputs   bool     `yaml:"join_midi_inputs"`
	JoinMIDIOutputs  bool     `yaml:"join_midi_outputs"`
}

// HardwareConfig corresponds to the `hardware.*` keys.
type HardwareConfig struct {
	Inputs           []string `yaml:"inputs"`
	Outputs          []string `yaml:"outputs"`
	JoinAudioInputs  bool     `yaml:"join_audio_inputs"`
	JoinAudioOutputs bool     `yaml:"join_audio_outputs"`
}

// RackConfig corresponds to the `rack.*` keys.
type RackConfig struct {
	SlotsLimit     int    `yaml:"slots_limit"`
	RoutingMode    string `yaml:"routing_mode"`
	ExternalPolicy string `yaml:"external_policy"`
}

// ServerConfig corresponds to the `server.*` keys.
type ServerConfig struct {
	URL string `yaml:"url"`
}

// File is the root shape of the YAML configuration document.
type File struct {
	Server  ServerConfig  `yaml:"server"`
	Hardware HardwareConfig `yaml:"hardware"`
	Rack    RackConfig    `yaml:"rack"`
	Plugins []PluginEntry `yaml:"plugins"`
}

// Load reads and parses the YAML configuration at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &f, nil
}

// Whitelist projects the `plugins[]` entries into a port.Whitelist.
func (f *File) Whitelist() *port.Whitelist {
	defs := make([]port.Def, 0, len(f.Plugins))
	for _, p := range f.Plugins {
		defs = append(defs, port.Def{
			URI:                  p.URI,
			Name:                 p.Name,
			Category:             p.Category,
			AudioInputsOverride:  p.Inputs,
			AudioOutputsOverride: p.Outputs,
			MIDIInputsOverride:   p.MIDIInputs,
			MIDIOutputsOverride:  p.MIDIOutputs,
			Hints: port.Hints{
				JoinAudioInputs:  p.JoinAudioInputs,
				JoinAudioOutputs: p.JoinAudioOutputs,
				JoinMIDIInputs:   p.JoinMIDIInputs,
				JoinMIDIOutputs:  p.JoinMIDIOutputs,
			},
		})
	}
	return port.NewWhitelist(defs)
}

// Terminals builds the input_terminal/output_terminal sentinels from the
// `hardware.*` keys (§3 "Pseudo-slots"). Explicit port arrays override
// auto-detection; callers that need auto-detected ports should fetch them
// via Transport.ListHardwarePorts and pass them in directly instead.
func (f *File) Terminals() (in, out *slot.Terminal) {
	in = slot.NewInputTerminal(f.Hardware.Inputs, f.Hardware.JoinAudioOutputs)
	out = slot.NewOutputTerminal(f.Hardware.Outputs, f.Hardware.JoinAudioInputs)
	return in, out
}

// RigConfig projects `rack.*` into a rig.Config, starting from
// rig.DefaultConfig so an absent key keeps its documented default.
func (f *File) RigConfig(requestTimeout time.Duration) (rig.Config, error) {
	cfg := rig.DefaultConfig()
	cfg.SlotsLimit = f.Rack.SlotsLimit
	if requestTimeout > 0 {
		cfg.RequestTimeout = requestTimeout
	}

	switch f.Rack.RoutingMode {
	case "", "hard_bypass":
		cfg.RoutingMode = routing.ModeHardBypass
	case "linear":
		cfg.RoutingMode = routing.ModeLinear
	case "dual_track":
		cfg.RoutingMode = routing.ModeDualTrack
	default:
		return cfg, fmt.Errorf("config: unknown rack.routing_mode %q", f.Rack.RoutingMode)
	}

	switch f.Rack.ExternalPolicy {
	case "", "mirror":
		cfg.ExternalPolicy = rig.PolicyMirror
	case "enforce":
		cfg.ExternalPolicy = rig.PolicyEnforce
	default:
		return cfg, fmt.Errorf("config: unknown rack.external_policy %q", f.Rack.ExternalPolicy)
	}

	return cfg, nil
}
