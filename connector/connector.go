// Package connector owns the control channel to a running Godot engine
// process.
//
// A Connector wraps one transport backend, correlates synchronous calls with
// their responses by call id, and dispatches unsolicited engine events to
// registered handlers. The backend flavor (raw TCP socket or the engine's
// native WebSocket bridge) is fixed when the Connector is constructed and is
// invisible to everything above it.
package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/waifuai/waifu-llm-vrm/internal/transport"
	"github.com/waifuai/waifu-llm-vrm/internal/wire"
	"github.com/waifuai/waifu-llm-vrm/pkg/logger"
)

const (
	// defaultConnectTimeout bounds how long Connect waits for the engine to
	// accept the channel.
	defaultConnectTimeout = 10 * time.Second

	// defaultCallTimeout bounds a single call round-trip when the caller's
	// context carries no tighter deadline.
	defaultCallTimeout = 30 * time.Second

	// DefaultPort is the port the engine-side listener script binds by
	// default.
	DefaultPort = 9000
)

// State is the connection lifecycle state. It is owned exclusively by the
// Connector; callers only observe it.
type State int32

const (
	// Disconnected means no channel is open.
	Disconnected State = iota
	// Connecting means a Connect attempt is in flight.
	Connecting
	// Connected means the channel is open and the receive loop is running.
	Connected
	// Failed means the last Connect attempt was refused or timed out. The
	// next Connect or Disconnect moves the state back to Disconnected.
	Failed
)

// String returns the lifecycle state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// BackendKind selects the transport backend at construction time.
type BackendKind string

const (
	// BackendAuto picks BackendBridge when a bridge URL is configured and
	// BackendTCP otherwise. The choice is resolved once, in New.
	BackendAuto BackendKind = "auto"
	// BackendTCP uses the raw socket listener script.
	BackendTCP BackendKind = "tcp"
	// BackendBridge uses the engine's native WebSocket bridge.
	BackendBridge BackendKind = "bridge"
)

// Config configures a Connector.
type Config struct {
	// Backend selects the transport flavor. Defaults to BackendAuto.
	Backend BackendKind
	// Host is the engine host for the TCP backend. Defaults to localhost.
	Host string
	// Port is the engine port for the TCP backend. Defaults to DefaultPort.
	Port int
	// BridgeURL is the WebSocket URL for the bridge backend
	// (e.g. "ws://localhost:9001/bridge").
	BridgeURL string
	// ConnectTimeout bounds Connect. Defaults to 10s.
	ConnectTimeout time.Duration
	// CallTimeout bounds Call when the caller's context has no deadline.
	// Defaults to 30s.
	CallTimeout time.Duration
}

// Handler receives the payload of one engine event.
//
// Handlers run on the connector's receive goroutine, in registration order,
// before the next frame is read. A handler must not block on a synchronous
// Call of the same connector: the call would be sent, but its response cannot
// be read until the handler returns, so it times out. Hand blocking work off
// to another goroutine instead.
type Handler func(payload json.RawMessage)

type callResult struct {
	result json.RawMessage
	err    error
}

// pendingCall correlates an outbound request with its response channel.
type pendingCall struct {
	method string
	ch     chan callResult
}

// Connector is the control channel to the engine process.
//
// All methods are safe for concurrent use. The pending-call table and the
// lifecycle state share one mutex; the access pattern (one caller side, one
// receive loop) needs nothing finer.
type Connector struct {
	newBackend     func() transport.Backend
	target         string
	connectTimeout time.Duration
	callTimeout    time.Duration

	mu       sync.Mutex
	state    State
	gen      uint64
	backend  transport.Backend
	pending  map[string]pendingCall
	handlers map[string][]Handler
}

// New creates a disconnected Connector. The backend flavor is resolved here
// and never changes for the lifetime of the Connector.
func New(cfg Config) (*Connector, error) {
	kind := cfg.Backend
	if kind == "" || kind == BackendAuto {
		if cfg.BridgeURL != "" {
			kind = BackendBridge
		} else {
			kind = BackendTCP
		}
	}

	c := &Connector{
		connectTimeout: cfg.ConnectTimeout,
		callTimeout:    cfg.CallTimeout,
		pending:        make(map[string]pendingCall),
		handlers:       make(map[string][]Handler),
	}
	if c.connectTimeout <= 0 {
		c.connectTimeout = defaultConnectTimeout
	}
	if c.callTimeout <= 0 {
		c.callTimeout = defaultCallTimeout
	}

	switch kind {
	case BackendTCP:
		host := cfg.Host
		if host == "" {
			host = "localhost"
		}
		port := cfg.Port
		if port == 0 {
			port = DefaultPort
		}
		c.target = net.JoinHostPort(host, strconv.Itoa(port))
		c.newBackend = func() transport.Backend { return transport.NewTCPBackend() }
	case BackendBridge:
		if cfg.BridgeURL == "" {
			return nil, fmt.Errorf("bridge backend selected but no bridge URL configured")
		}
		c.target = cfg.BridgeURL
		c.newBackend = func() transport.Backend { return transport.NewBridgeBackend() }
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Backend)
	}
	return c, nil
}

// State returns the current lifecycle state.
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the channel to the engine and starts the receive loop.
//
// Connect is a no-op when already connected and fails with ErrConnecting when
// another attempt is in flight. A refused or timed-out attempt leaves the
// state Failed; the next Connect retries from scratch. A Disconnect issued
// while the attempt is in flight wins: the attempt returns ErrCancelled and
// the connector stays Disconnected.
func (c *Connector) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case Connected:
		c.mu.Unlock()
		return nil
	case Connecting:
		c.mu.Unlock()
		return ErrConnecting
	case Failed:
		// Failed -> Disconnected cleanup happens lazily, here.
		c.state = Disconnected
	}
	c.state = Connecting
	gen := c.gen
	c.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	backend := c.newBackend()
	if err := backend.Open(ctx, c.target); err != nil {
		_ = backend.Close()
		c.mu.Lock()
		if c.gen == gen {
			c.state = Failed
		}
		c.mu.Unlock()
		logger.Warnf("connector: connect to %s failed: %v", c.target, err)
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	c.mu.Lock()
	// A Disconnect that lands while Open is in flight bumps gen; the attempt
	// it interrupted must not resurrect the connection.
	if c.gen != gen {
		c.mu.Unlock()
		_ = backend.Close()
		return fmt.Errorf("%w: disconnected during connect", ErrCancelled)
	}
	c.backend = backend
	c.state = Connected
	c.mu.Unlock()

	logger.Infof("connector: connected to %s", c.target)
	go c.receiveLoop(backend)
	return nil
}

// Disconnect closes the channel and cancels every outstanding call with
// ErrCancelled. Registered handlers persist across reconnects. Safe to call
// from any state; a no-op when already disconnected.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	if c.state == Disconnected {
		c.mu.Unlock()
		return
	}
	c.gen++
	backend := c.backend
	c.backend = nil
	pending := c.pending
	c.pending = make(map[string]pendingCall)
	c.state = Disconnected
	c.mu.Unlock()

	if backend != nil {
		_ = backend.Close()
	}
	for _, pc := range pending {
		pc.ch <- callResult{err: ErrCancelled}
	}
	logger.Infof("connector: disconnected")
}

// Call invokes an engine method and waits for the correlated response.
//
// Concurrent calls are independent; responses are matched solely by call id
// and may arrive in any order. The caller's context deadline bounds the wait;
// without one, the configured call timeout applies.
func (c *Connector) Call(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	c.mu.Lock()
	if c.state != Connected {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	backend := c.backend
	id := uuid.NewString()
	ch := make(chan callResult, 1)
	c.pending[id] = pendingCall{method: method, ch: ch}
	c.mu.Unlock()

	frame, err := wire.Encode(wire.NewCall(id, method, args))
	if err != nil {
		c.removePending(id)
		return nil, err
	}
	logger.Tracef("connector: -> call %s id=%s", method, id)
	if err := backend.Send(frame); err != nil {
		c.removePending(id)
		return nil, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}

	select {
	case res := <-ch:
		return res.result, res.err
	case <-ctx.Done():
		c.removePending(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrCallTimeout, method)
		}
		return nil, ctx.Err()
	}
}

// On registers a handler for an engine event. Multiple handlers per event are
// invoked in registration order. Registration is independent of connection
// state and survives reconnects.
//
// See Handler for the blocking constraints handlers must respect.
func (c *Connector) On(event string, handler Handler) {
	if handler == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], handler)
}

func (c *Connector) removePending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// receiveLoop reads frames until the backend fails or is closed. It is the
// only reader of inbound frames, so responses and events are processed
// strictly in arrival order.
func (c *Connector) receiveLoop(backend transport.Backend) {
	for {
		raw, err := backend.Receive()
		if err != nil {
			c.handleReadFailure(backend, err)
			return
		}

		frame, err := wire.Decode(raw)
		if err != nil {
			logger.Warnf("connector: dropped invalid frame (len=%d): %v", len(raw), err)
			continue
		}

		switch frame.Type {
		case wire.FrameResponse:
			c.resolve(frame)
		case wire.FrameEvent:
			c.dispatch(frame)
		default:
			logger.Warnf("connector: dropped unexpected %s frame", frame.Type)
		}
	}
}

// handleReadFailure tears down after a backend read error. If an explicit
// Disconnect already detached this backend, everything is done; otherwise all
// outstanding calls fail with ErrConnectionLost and the state drops to
// Disconnected.
func (c *Connector) handleReadFailure(backend transport.Backend, err error) {
	c.mu.Lock()
	if c.backend != backend {
		c.mu.Unlock()
		return
	}
	c.backend = nil
	pending := c.pending
	c.pending = make(map[string]pendingCall)
	c.state = Disconnected
	c.mu.Unlock()

	_ = backend.Close()
	for _, pc := range pending {
		pc.ch <- callResult{err: fmt.Errorf("%w: %v", ErrConnectionLost, err)}
	}
	if !errors.Is(err, transport.ErrClosed) {
		logger.Errorf("connector: receive loop ended: %v", err)
	}
}

// resolve matches a response frame to its pending call. Unknown call ids are
// dropped with a warning; they are expected after timeouts.
func (c *Connector) resolve(frame wire.Frame) {
	c.mu.Lock()
	pc, ok := c.pending[frame.ID]
	delete(c.pending, frame.ID)
	c.mu.Unlock()

	if !ok {
		logger.Warnf("connector: dropped response for unknown call id %s", frame.ID)
		return
	}
	if frame.Error != "" {
		pc.ch <- callResult{err: &EngineError{Method: pc.method, Message: frame.Error}}
		return
	}
	pc.ch <- callResult{result: frame.Result}
}

// dispatch invokes every handler registered for the event, synchronously and
// in registration order. A slow handler delays subsequent frames but never
// reorders them.
func (c *Connector) dispatch(frame wire.Frame) {
	c.mu.Lock()
	handlers := make([]Handler, len(c.handlers[frame.Event]))
	copy(handlers, c.handlers[frame.Event])
	c.mu.Unlock()

	if len(handlers) == 0 {
		logger.Debugf("connector: no handler for event %q", frame.Event)
		return
	}
	logger.Tracef("connector: <- event %s", frame.Event)
	for _, h := range handlers {
		h(frame.Payload)
	}
}
