// Package wire defines the framed JSON protocol spoken between this module
// and the Godot engine.
//
// Frames are newline-delimited JSON objects discriminated by the "type"
// field. Three kinds exist: outbound calls, inbound responses correlated by
// call id, and unsolicited inbound events.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FrameType discriminates the kind of a wire frame.
type FrameType string

const (
	// FrameCall is an outbound request frame.
	FrameCall FrameType = "call"
	// FrameResponse is an inbound response frame correlated by call id.
	FrameResponse FrameType = "response"
	// FrameEvent is an unsolicited inbound event frame.
	FrameEvent FrameType = "event"
)

// Engine-side methods the connector invokes.
const (
	MethodPlayAnimation     = "play_animation"
	MethodSetExpression     = "set_expression"
	MethodGetAnimationList  = "get_animation_list"
	MethodGetBlendshapeList = "get_blendshape_list"
)

// Engine-originated event names.
const (
	// EventSpeechDone is emitted by the engine when a spoken line finishes.
	EventSpeechDone = "speech_done"
	// EventError is emitted by the engine when a script-side failure occurs.
	EventError = "error"
	// EventPlayerInput carries a line of text the player typed in-scene.
	EventPlayerInput = "player_input"
)

// Frame is the envelope shared by every wire message.
type Frame struct {
	// Type discriminates the frame kind.
	Type FrameType `json:"type"`
	// ID is the call id for call and response frames.
	ID string `json:"id,omitempty"`
	// Method is the engine method name for call frames.
	Method string `json:"method,omitempty"`
	// Args holds the call arguments, positionally.
	Args []any `json:"args,omitempty"`
	// Result is the response payload on success.
	Result json.RawMessage `json:"result,omitempty"`
	// Error is the engine-reported error message on failure.
	Error string `json:"error,omitempty"`
	// Event is the event name for event frames.
	Event string `json:"event,omitempty"`
	// Payload is the event payload.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewCall builds a call frame.
func NewCall(id, method string, args []any) Frame {
	return Frame{Type: FrameCall, ID: id, Method: method, Args: args}
}

// Encode serializes a frame to a single newline-terminated JSON line.
func Encode(f Frame) ([]byte, error) {
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", f.Type, err)
	}
	return append(raw, '\n'), nil
}

// Decode parses a single frame line and validates its envelope.
//
// A frame with an unknown or missing type is rejected; the connector drops
// such frames with a warning rather than failing the connection.
func Decode(line []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(bytes.TrimSpace(line), &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	switch f.Type {
	case FrameCall:
		if f.Method == "" {
			return Frame{}, fmt.Errorf("call frame missing method")
		}
	case FrameResponse:
		if f.ID == "" {
			return Frame{}, fmt.Errorf("response frame missing id")
		}
	case FrameEvent:
		if f.Event == "" {
			return Frame{}, fmt.Errorf("event frame missing event name")
		}
	default:
		return Frame{}, fmt.Errorf("unknown frame type %q", f.Type)
	}
	return f, nil
}

// DecodeStringList parses a response payload that carries a list of names
// (animation or blendshape lists).
func DecodeStringList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("decode name list: %w", err)
	}
	return names, nil
}
