package rig

// State is one of the three states a chain can be in (§4.4).
type State int

const (
	StateIdle State = iota
	StateEditing
	StateReconciling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEditing:
		return "editing"
	case StateReconciling:
		return "reconciling"
	default:
		return "unknown"
	}
}
