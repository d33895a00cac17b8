package transport

import (
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/o-murphy/modep-rig/rig"
)

// wireEvent is the JSON encoding of one HOST event-stream message (§6). The
// HOST's actual wire format is outside this module's scope; this is the
// concrete shape WSEventSource expects a HOST adapter to speak.
type wireEvent struct {
	Kind     string   `json:"kind"`
	Label    string   `json:"label,omitempty"`
	URI      string   `json:"uri,omitempty"`
	AudioIn  []string `json:"audio_in,omitempty"`
	AudioOut []string `json:"audio_out,omitempty"`
	MIDIIn   []string `json:"midi_in,omitempty"`
	MIDIOut  []string `json:"midi_out,omitempty"`
	Position *int     `json:"position,omitempty"`

	Src string `json:"src,omitempty"`
	Dst string `json:"dst,omitempty"`

	Symbol string  `json:"symbol,omitempty"`
	Value  float64 `json:"value,omitempty"`

	Bypassed bool `json:"bypassed,omitempty"`

	Inputs  []string `json:"inputs,omitempty"`
	Outputs []string `json:"outputs,omitempty"`
}

func (w wireEvent) toEvent() (rig.Event, bool) {
	switch w.Kind {
	case "add":
		return rig.Event{Kind: rig.EventAdd, Label: w.Label, URI: w.URI, AudioIn: w.AudioIn, AudioOut: w.AudioOut, MIDIIn: w.MIDIIn, MIDIOut: w.MIDIOut, Position: w.Position}, true
	case "remove":
		return rig.Event{Kind: rig.EventRemove, Label: w.Label}, true
	case "connect":
		return rig.Event{Kind: rig.EventConnect, Src: w.Src, Dst: w.Dst}, true
	case "disconnect":
		return rig.Event{Kind: rig.EventDisconnect, Src: w.Src, Dst: w.Dst}, true
	case "param_set":
		return rig.Event{Kind: rig.EventParamSet, Label: w.Label, Symbol: w.Symbol, Value: w.Value}, true
	case "bypass":
		return rig.Event{Kind: rig.EventBypass, Label: w.Label, Bypassed: w.Bypassed}, true
	case "hardware":
		return rig.Event{Kind: rig.EventHardware, HWInputs: w.Inputs, HWOutputs: w.Outputs}, true
	default:
		return rig.Event{}, false
	}
}

// WSEventSource is a rig.EventSource backed by a gorilla/websocket
// connection to the HOST's event stream.
type WSEventSource struct {
	conn   *websocket.Conn
	ch     chan rig.Event
	logger *log.Logger
}

// DialWSEventSource connects to url and starts the read pump. The caller
// owns ctx's lifetime: canceling it (or calling Close) stops the pump and
// closes the channel returned by Events.
func DialWSEventSource(ctx context.Context, url string, logger *log.Logger) (*WSEventSource, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	s := &WSEventSource{conn: conn, ch: make(chan rig.Event, 64), logger: logger}
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go s.readPump(ctx)
	return s, nil
}

func (s *WSEventSource) Events() <-chan rig.Event { return s.ch }

// Close terminates the underlying connection.
func (s *WSEventSource) Close() error { return s.conn.Close() }

func (s *WSEventSource) readPump(ctx context.Context) {
	defer close(s.ch)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("event stream read failed", "err", err)
			}
			return
		}
		var w wireEvent
		if err := json.Unmarshal(data, &w); err != nil {
			s.logger.Warn("event stream: malformed message", "err", err)
			continue
		}
		ev, ok := w.toEvent()
		if !ok {
			s.logger.Warn("event stream: unknown kind", "kind", w.Kind)
			continue
		}
		select {
		case s.ch <- ev:
		case <-ctx.Done():
			return
		}
	}
}
