// Package transport provides the low-level channel to the Godot engine
// process.
//
// A Backend abstracts the raw byte channel: the connector never sees framing
// differences between the TCP socket and the engine-native WebSocket bridge.
// Backends are single-use: once closed they cannot be reopened.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by Send and Receive after the backend is closed.
var ErrClosed = errors.New("transport closed")

// maxFrameSize bounds the size of a single frame we accept from the engine.
//
// Animation and blendshape lists stay tiny; the bound exists so a misbehaving
// engine script cannot grow the read buffer without limit.
const maxFrameSize = 1 * 1024 * 1024

// Backend is the pluggable byte channel to the engine.
//
// Send and Receive may be used concurrently with each other, but neither may
// be called concurrently with itself. Receive blocks until a full frame is
// available or the channel is closed.
type Backend interface {
	// Open establishes the channel to the given target. The context bounds
	// the connection attempt.
	Open(ctx context.Context, target string) error
	// Send writes one frame.
	Send(frame []byte) error
	// Receive blocks until one frame arrives or the channel closes.
	Receive() ([]byte, error)
	// Close tears down the channel. Safe to call more than once.
	Close() error
}
