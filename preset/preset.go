// Package preset implements the preset file format (§6 "Preset format"): a
// JSON array of per-slot snapshots, loaded and saved independently of the
// Orchestrator's make-before-break machinery.
package preset

import (
	"encoding/json"
	"fmt"
	"os"
)

// Entry is one slot's serialized state.
type Entry struct {
	Index    int                `json:"index"`
	URI      string             `json:"uri"`
	Controls map[string]float64 `json:"controls"`
	Bypassed bool               `json:"bypassed"`
}

// Load reads a preset file: a JSON array of Entry in Registry order.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("preset: read %s: %w", path, err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("preset: parse %s: %w", path, err)
	}
	return entries, nil
}

// Save writes entries as a JSON array, overwriting path.
func Save(path string, entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("preset: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("preset: write %s: %w", path, err)
	}
	return nil
}
