package connector

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when an operation requires an established
	// connection. Recoverable by calling Connect.
	ErrNotConnected = errors.New("connector not connected")

	// ErrConnecting is returned when Connect is invoked while another
	// connection attempt is still in flight. This is a caller bug, not a
	// transient condition.
	ErrConnecting = errors.New("connection attempt already in progress")

	// ErrConnectionFailed is returned when the engine refuses the connection
	// or the attempt times out.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrConnectionLost is returned to callers whose in-flight calls were
	// invalidated by a transport-level failure.
	ErrConnectionLost = errors.New("connection lost")

	// ErrCallTimeout is returned when a call exceeds its deadline. The call
	// may be retried once the caller decides to.
	ErrCallTimeout = errors.New("call timed out")

	// ErrCancelled is returned to callers whose in-flight calls were
	// invalidated by an explicit Disconnect.
	ErrCancelled = errors.New("call cancelled by disconnect")
)

// EngineError is a failure the engine reported in a response frame. The
// connection itself is still healthy.
type EngineError struct {
	// Method is the engine method that failed.
	Method string
	// Message is the engine-reported error text.
	Message string
}

// Error implements error.
func (e *EngineError) Error() string {
	return fmt.Sprintf("engine: %s failed: %s", e.Method, e.Message)
}
