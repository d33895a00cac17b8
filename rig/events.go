package rig

import "context"

// Transport is the request/response control channel the core consumes (§6).
// A concrete implementation lives in the transport package; rig only depends
// on this interface, not on any HTTP/WS detail.
type Transport interface {
	AddPlugin(ctx context.Context, uri string) (label string, err error)
	RemovePlugin(ctx context.Context, label string) error
	Connect(ctx context.Context, srcPort, dstPort string) error
	Disconnect(ctx context.Context, srcPort, dstPort string) error
	SetParam(ctx context.Context, label, symbol string, value float64) error
	SetBypass(ctx context.Context, label string, bypassed bool) error
	ListHardwarePorts(ctx context.Context) (inputs, outputs []string, err error)
}

// EventKind enumerates the event stream message types (§6).
type EventKind string

const (
	EventAdd        EventKind = "add"
	EventRemove     EventKind = "remove"
	EventConnect    EventKind = "connect"
	EventDisconnect EventKind = "disconnect"
	EventParamSet   EventKind = "param_set"
	EventBypass     EventKind = "bypass"
	EventHardware   EventKind = "hardware"
)

// Event is one message from the HOST's event stream (§6).
type Event struct {
	Kind EventKind

	// add / remove
	Label    string
	URI      string
	AudioIn  []string
	AudioOut []string
	MIDIIn   []string
	MIDIOut  []string
	// Position is set only if the HOST's add event carried an explicit
	// insertion index (§4.4 "Reconciliation"); nil means append.
	Position *int

	// connect / disconnect
	Src string
	Dst string

	// param_set
	Symbol string
	Value  float64

	// bypass
	Bypassed bool

	// hardware
	HWInputs  []string
	HWOutputs []string
}

// EventSource is the event stream the core reacts to (§6). Implementations
// must preserve HOST emission order (§5 "Ordering guarantees").
type EventSource interface {
	Events() <-chan Event
}
