package rig

import (
	"time"

	"github.com/o-murphy/modep-rig/routing"
)

// ExternalPolicy selects how the Orchestrator treats externally originated
// structural changes (§4.4 "Policy choice").
type ExternalPolicy string

const (
	PolicyMirror  ExternalPolicy = "mirror" // default
	PolicyEnforce ExternalPolicy = "enforce"
)

// Config holds the rack.* configuration recognized by the Orchestrator (§6).
type Config struct {
	SlotsLimit     int // 0 means unlimited
	RoutingMode    routing.Mode
	ExternalPolicy ExternalPolicy

	// RequestTimeout bounds every transport request and the wait for an
	// echoed structural event (§5 "Cancellation & timeouts", default 5s).
	RequestTimeout time.Duration
}

// DefaultConfig mirrors the documented defaults in §4.2 and §4.4.
func DefaultConfig() Config {
	return Config{
		RoutingMode:    routing.ModeHardBypass,
		ExternalPolicy: PolicyMirror,
		RequestTimeout: 5 * time.Second,
	}
}
