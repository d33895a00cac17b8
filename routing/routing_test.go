package routing

import (
	"reflect"
	"testing"
)

type fakeEndpoint struct {
	audioOut, audioIn []string
	midiOut, midiIn   []string
	joinAO, joinAI    bool
	joinMO, joinMI    bool
}

func (f fakeEndpoint) AudioOutputs() []string { return f.audioOut }
func (f fakeEndpoint) AudioInputs() []string  { return f.audioIn }
func (f fakeEndpoint) MIDIOutputs() []string  { return f.midiOut }
func (f fakeEndpoint) MIDIInputs() []string   { return f.midiIn }
func (f fakeEndpoint) JoinAudioOutputs() bool { return f.joinAO }
func (f fakeEndpoint) JoinAudioInputs() bool  { return f.joinAI }
func (f fakeEndpoint) JoinMIDIOutputs() bool  { return f.joinMO }
func (f fakeEndpoint) JoinMIDIInputs() bool   { return f.joinMI }

func conns(pairs ...[2]string) []Connection {
	out := make([]Connection, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, Connection{Src: p[0], Dst: p[1]})
	}
	return out
}

func TestRoute_PairingRules(t *testing.T) {
	tests := []struct {
		name string
		src  fakeEndpoint
		dst  fakeEndpoint
		want []Connection
	}{
		{
			name: "index-wise equal counts",
			src:  fakeEndpoint{audioOut: []string{"L", "R"}},
			dst:  fakeEndpoint{audioIn: []string{"L", "R"}},
			want: conns([2]string{"L", "L"}, [2]string{"R", "R"}),
		},
		{
			name: "mono fan-out to stereo",
			src:  fakeEndpoint{audioOut: []string{"out"}},
			dst:  fakeEndpoint{audioIn: []string{"L", "R"}},
			want: conns([2]string{"out", "L"}, [2]string{"out", "R"}),
		},
		{
			name: "stereo fan-in to mono (scenario 5)",
			src:  fakeEndpoint{audioOut: []string{"L", "R"}},
			dst:  fakeEndpoint{audioIn: []string{"M"}},
			want: conns([2]string{"L", "M"}, [2]string{"R", "M"}),
		},
		{
			name: "m > n folds extras into last input",
			src:  fakeEndpoint{audioOut: []string{"1", "2", "3"}},
			dst:  fakeEndpoint{audioIn: []string{"A", "B"}},
			want: conns([2]string{"1", "A"}, [2]string{"2", "B"}, [2]string{"3", "B"}),
		},
		{
			name: "m < n duplicates last output into extras",
			src:  fakeEndpoint{audioOut: []string{"A", "B"}},
			dst:  fakeEndpoint{audioIn: []string{"1", "2", "3"}},
			want: conns([2]string{"A", "1"}, [2]string{"B", "2"}, [2]string{"B", "3"}),
		},
		{
			name: "empty side emits nothing",
			src:  fakeEndpoint{audioOut: nil},
			dst:  fakeEndpoint{audioIn: []string{"L", "R"}},
			want: []Connection{},
		},
		{
			name: "join at source (scenario 6)",
			src:  fakeEndpoint{audioOut: []string{"A", "B"}, joinAO: true},
			dst:  fakeEndpoint{audioIn: []string{"X", "Y"}},
			want: conns([2]string{"A", "X"}, [2]string{"A", "Y"}, [2]string{"B", "X"}, [2]string{"B", "Y"}),
		},
		{
			name: "join at destination",
			src:  fakeEndpoint{audioOut: []string{"A", "B"}},
			dst:  fakeEndpoint{audioIn: []string{"X", "Y"}, joinAI: true},
			want: conns([2]string{"A", "X"}, [2]string{"A", "Y"}, [2]string{"B", "X"}, [2]string{"B", "Y"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Route(tt.src, tt.dst)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Route() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestRoute_AudioBeforeMIDI(t *testing.T) {
	src := fakeEndpoint{audioOut: []string{"a"}, midiOut: []string{"m"}}
	dst := fakeEndpoint{audioIn: []string{"a"}, midiIn: []string{"m"}}

	got := Route(src, dst)
	want := conns([2]string{"a", "a"}, [2]string{"m", "m"})
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Route() = %#v, want %#v (audio must precede MIDI)", got, want)
	}
}

func TestRoute_Deterministic(t *testing.T) {
	src := fakeEndpoint{audioOut: []string{"1", "2", "3"}}
	dst := fakeEndpoint{audioIn: []string{"A", "B"}}

	first := Route(src, dst)
	for i := 0; i < 20; i++ {
		again := Route(src, dst)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Route() is not deterministic: %#v != %#v", first, again)
		}
	}
}

func TestNeighbors_Linear(t *testing.T) {
	a := fakeEndpoint{audioOut: []string{"a"}}
	b := fakeEndpoint{audioIn: []string{"a"}, audioOut: []string{"b"}}
	c := fakeEndpoint{audioIn: []string{"b"}}
	chain := []Endpoint{a, b, c}

	prev, next := Neighbors(chain, 1, ModeLinear, Audio)
	if !reflect.DeepEqual(prev, a) || !reflect.DeepEqual(next, c) {
		t.Fatalf("linear neighbors of middle slot: got prev=%v next=%v", prev, next)
	}
}

func TestNeighbors_HardBypass_SkipsSilentPlugin(t *testing.T) {
	in := fakeEndpoint{audioOut: []string{"hw_in"}}
	silent := fakeEndpoint{} // no audio ports at all (e.g. a MIDI-only plugin)
	out := fakeEndpoint{audioIn: []string{"hw_out"}}
	chain := []Endpoint{in, silent, out}

	prev, next := Neighbors(chain, 1, ModeHardBypass, Audio)
	if prev != nil {
		t.Fatalf("silent plugin should have no audio-out predecessor to find, got %v", prev)
	}
	if next != nil {
		t.Fatalf("silent plugin should have no audio-in successor to find, got %v", next)
	}

	// The terminals either side of the silent plugin should route around it:
	// `in`'s next-audio neighbor must skip the silent plugin and land on `out`.
	_, viaIn := Neighbors(chain, 0, ModeHardBypass, Audio)
	if !reflect.DeepEqual(viaIn, out) {
		t.Fatalf("hard_bypass should skip the silent plugin, got next=%v want %v", viaIn, out)
	}
}

func TestNeighbors_DualTrack_IncludesAsymmetricPort(t *testing.T) {
	// A "generator" with only an audio output (no input) must still appear as
	// its own hop in the audio-bearing track, unlike a plugin with no audio
	// ports at all.
	pre := fakeEndpoint{audioOut: []string{"p"}}
	gen := fakeEndpoint{audioOut: []string{"g"}}
	post := fakeEndpoint{audioIn: []string{"g2"}}
	chain := []Endpoint{pre, gen, post}

	prev, next := Neighbors(chain, 1, ModeDualTrack, Audio)
	if !reflect.DeepEqual(prev, pre) {
		t.Fatalf("dual_track prev of generator = %v, want %v", prev, pre)
	}
	if !reflect.DeepEqual(next, post) {
		t.Fatalf("dual_track next of generator = %v, want %v", next, post)
	}
}

func TestFullRecompute_SingleSlot(t *testing.T) {
	inTerm := fakeEndpoint{audioOut: []string{"capture_1"}}
	plugin := fakeEndpoint{audioIn: []string{"in"}, audioOut: []string{"out"}}
	outTerm := fakeEndpoint{audioIn: []string{"playback_1"}}
	chain := []Endpoint{inTerm, plugin, outTerm}

	got := FullRecompute(chain, ModeHardBypass)
	want := conns([2]string{"capture_1", "in"}, [2]string{"out", "playback_1"})
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FullRecompute() = %#v, want %#v", got, want)
	}
}

func TestFullRecompute_EmptyChain(t *testing.T) {
	inTerm := fakeEndpoint{audioOut: []string{"capture_1"}}
	outTerm := fakeEndpoint{audioIn: []string{"playback_1"}}
	chain := []Endpoint{inTerm, outTerm}

	got := FullRecompute(chain, ModeHardBypass)
	want := conns([2]string{"capture_1", "playback_1"})
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FullRecompute() on empty chain = %#v, want %#v", got, want)
	}
}
