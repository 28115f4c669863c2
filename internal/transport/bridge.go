package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/waifuai/waifu-llm-vrm/pkg/logger"
)

// BridgeBackend speaks to the engine's native WebSocket server (the bridge
// autoload script shipped with the Godot side of this project).
//
// Each WebSocket text message is one frame; no extra delimiting is applied.
type BridgeBackend struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewBridgeBackend creates an unopened bridge backend.
func NewBridgeBackend() *BridgeBackend {
	return &BridgeBackend{}
}

// Open dials the engine bridge at target (a "ws://host:port/path" URL).
func (b *BridgeBackend) Open(ctx context.Context, target string) error {
	dialer := websocket.Dialer{}
	conn, resp, err := dialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial bridge %s: %w", target, err)
	}
	conn.SetReadLimit(maxFrameSize)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		_ = conn.Close()
		return ErrClosed
	}
	b.conn = conn
	logger.Debugf("bridge: connected to %s", target)
	return nil
}

// Send writes one frame as a WebSocket text message.
func (b *BridgeBackend) Send(frame []byte) error {
	b.mu.Lock()
	conn := b.conn
	closed := b.closed
	b.mu.Unlock()

	if closed || conn == nil {
		return ErrClosed
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("bridge send: %w", err)
	}
	return nil
}

// Receive blocks until one WebSocket message arrives.
func (b *BridgeBackend) Receive() ([]byte, error) {
	b.mu.Lock()
	conn := b.conn
	closed := b.closed
	b.mu.Unlock()

	if closed || conn == nil {
		return nil, ErrClosed
	}

	_, payload, err := conn.ReadMessage()
	if err != nil {
		b.mu.Lock()
		closed = b.closed
		b.mu.Unlock()
		if closed {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("bridge receive: %w", err)
	}
	return payload, nil
}

// Close tears down the connection. A blocked Receive returns ErrClosed.
func (b *BridgeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.conn != nil {
		err := b.conn.Close()
		b.conn = nil
		return err
	}
	return nil
}
