// Package routing implements the Routing Engine (§4.2): a pure function that
// computes directed port connections between two adjacent endpoints, plus
// the neighbor-finding rules for the three chain modes (linear, hard_bypass,
// dual_track).
package routing

// Endpoint is the capability set the Routing Engine needs from either side of
// a connection: an ordered audio/MIDI port list plus join hints. Both
// plugins and terminals implement it uniformly (§9 "Polymorphism").
type Endpoint interface {
	AudioOutputs() []string
	AudioInputs() []string
	MIDIOutputs() []string
	MIDIInputs() []string

	JoinAudioOutputs() bool
	JoinAudioInputs() bool
	JoinMIDIOutputs() bool
	JoinMIDIInputs() bool
}

// Connection is a directed pair of opaque HOST port paths.
type Connection struct {
	Src string
	Dst string
}

// Mode selects the neighbor-finding discipline used to build the effective
// chain's adjacency for routing purposes (§4.2).
type Mode string

const (
	ModeLinear     Mode = "linear"
	ModeHardBypass Mode = "hard_bypass" // default
	ModeDualTrack  Mode = "dual_track"
)

// Route computes the ordered connections to realize between source endpoint
// S and destination endpoint D: audio pairing first, then MIDI, each computed
// independently per the rules in §4.2.
func Route(src, dst Endpoint) []Connection {
	out := make([]Connection, 0)
	out = append(out, RouteAudio(src, dst)...)
	out = append(out, RouteMIDI(src, dst)...)
	return out
}

// RouteAudio computes only the audio connections between src and dst. Used
// on its own by callers that already know which neighbor was chosen for the
// audio medium specifically (§4.2's per-medium neighbor search can pick a
// different prev/next node for audio than for MIDI).
func RouteAudio(src, dst Endpoint) []Connection {
	pairs := pairMedia(src.AudioOutputs(), dst.AudioInputs(), src.JoinAudioOutputs() || dst.JoinAudioInputs())
	return toConnections(pairs)
}

// RouteMIDI computes only the MIDI connections between src and dst.
func RouteMIDI(src, dst Endpoint) []Connection {
	pairs := pairMedia(src.MIDIOutputs(), dst.MIDIInputs(), src.JoinMIDIOutputs() || dst.JoinMIDIInputs())
	return toConnections(pairs)
}

func toConnections(pairs [][2]string) []Connection {
	out := make([]Connection, 0, len(pairs))
	for _, pair := range pairs {
		out = append(out, Connection{Src: pair[0], Dst: pair[1]})
	}
	return out
}

// pairMedia implements the seven per-media pairing rules of §4.2, in order.
// The result is deterministic for a given input (Testable Property 5).
func pairMedia(outs, ins []string, join bool) [][2]string {
	m, n := len(outs), len(ins)

	switch {
	case join:
		pairs := make([][2]string, 0, m*n)
		for _, o := range outs {
			for _, i := range ins {
				pairs = append(pairs, [2]string{o, i})
			}
		}
		return pairs

	case m == 0 || n == 0:
		return nil

	case m == n:
		pairs := make([][2]string, 0, m)
		for i := 0; i < m; i++ {
			pairs = append(pairs, [2]string{outs[i], ins[i]})
		}
		return pairs

	case m == 1:
		pairs := make([][2]string, 0, n)
		for _, i := range ins {
			pairs = append(pairs, [2]string{outs[0], i})
		}
		return pairs

	case n == 1:
		pairs := make([][2]string, 0, m)
		for _, o := range outs {
			pairs = append(pairs, [2]string{o, ins[0]})
		}
		return pairs

	case m > n:
		pairs := make([][2]string, 0, m)
		for i := 0; i < n; i++ {
			pairs = append(pairs, [2]string{outs[i], ins[i]})
		}
		for i := n; i < m; i++ {
			pairs = append(pairs, [2]string{outs[i], ins[n-1]})
		}
		return pairs

	default: // m < n
		pairs := make([][2]string, 0, n)
		for i := 0; i < m; i++ {
			pairs = append(pairs, [2]string{outs[i], ins[i]})
		}
		for j := m; j < n; j++ {
			pairs = append(pairs, [2]string{outs[m-1], ins[j]})
		}
		return pairs
	}
}

func hasAudioOut(e Endpoint) bool { return len(e.AudioOutputs()) > 0 }
func hasAudioIn(e Endpoint) bool  { return len(e.AudioInputs()) > 0 }
func hasMIDIOut(e Endpoint) bool  { return len(e.MIDIOutputs()) > 0 }
func hasMIDIIn(e Endpoint) bool   { return len(e.MIDIInputs()) > 0 }

func bearsAudio(e Endpoint) bool { return hasAudioOut(e) || hasAudioIn(e) }
func bearsMIDI(e Endpoint) bool  { return hasMIDIOut(e) || hasMIDIIn(e) }

// Medium selects which port family a neighbor search applies to.
type Medium int

const (
	Audio Medium = iota
	MIDI
)

// Neighbors returns the previous and next endpoint chain[index] should route
// against for the given medium, under mode. chain is the effective chain
// (terminal-inclusive, empty slots already removed); index identifies the
// real slot whose neighbors are being computed. A nil return means "no
// qualifying neighbor on that side" (e.g. nothing upstream bears MIDI).
func Neighbors(chain []Endpoint, index int, mode Mode, medium Medium) (prev, next Endpoint) {
	switch mode {
	case ModeLinear:
		if index > 0 {
			prev = chain[index-1]
		}
		if index < len(chain)-1 {
			next = chain[index+1]
		}
		return prev, next

	case ModeDualTrack:
		bears := bearsAudio
		if medium == MIDI {
			bears = bearsMIDI
		}
		return dualTrackNeighbors(chain, index, bears)

	default: // ModeHardBypass
		outFn, inFn, bears := hasAudioOut, hasAudioIn, bearsAudio
		if medium == MIDI {
			outFn, inFn, bears = hasMIDIOut, hasMIDIIn, bearsMIDI
		}
		// A node lacking the medium is skipped in that medium's chain, so it
		// has no neighbors of its own there.
		if !bears(chain[index]) {
			return nil, nil
		}
		if p, ok := scanPrev(chain, index, outFn); ok {
			prev = p
		}
		if nx, ok := scanNext(chain, index, inFn); ok {
			next = nx
		}
		return prev, next
	}
}

func scanPrev(chain []Endpoint, index int, has func(Endpoint) bool) (Endpoint, bool) {
	for j := index - 1; j >= 0; j-- {
		if has(chain[j]) {
			return chain[j], true
		}
	}
	return nil, false
}

func scanNext(chain []Endpoint, index int, has func(Endpoint) bool) (Endpoint, bool) {
	for j := index + 1; j < len(chain); j++ {
		if has(chain[j]) {
			return chain[j], true
		}
	}
	return nil, false
}

func dualTrackNeighbors(chain []Endpoint, index int, bears func(Endpoint) bool) (prev, next Endpoint) {
	filtered := make([]int, 0, len(chain))
	for j, e := range chain {
		if bears(e) {
			filtered = append(filtered, j)
		}
	}
	pos := -1
	for k, j := range filtered {
		if j == index {
			pos = k
			break
		}
	}
	if pos < 0 {
		return nil, nil
	}
	if pos > 0 {
		prev = chain[filtered[pos-1]]
	}
	if pos < len(filtered)-1 {
		next = chain[filtered[pos+1]]
	}
	return prev, next
}

// FullRecompute computes the complete connection set for chain under mode in
// a single pass (used by bulk preset load, §6). For every index it routes
// against that index's next-audio and next-midi neighbor only, so each edge
// is produced exactly once.
func FullRecompute(chain []Endpoint, mode Mode) []Connection {
	var out []Connection
	for i := range chain {
		_, nextAudio := Neighbors(chain, i, mode, Audio)
		_, nextMIDI := Neighbors(chain, i, mode, MIDI)
		if nextAudio != nil {
			out = append(out, RouteAudio(chain[i], nextAudio)...)
		}
		if nextMIDI != nil {
			out = append(out, RouteMIDI(chain[i], nextMIDI)...)
		}
	}
	return out
}
