package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/waifuai/waifu-llm-vrm/pkg/logger"
)

// TCPBackend speaks newline-delimited frames over a plain TCP connection to
// the engine's listener script.
type TCPBackend struct {
	mu      sync.Mutex
	conn    net.Conn
	scanner *bufio.Scanner
	closed  bool
}

// NewTCPBackend creates an unopened TCP backend.
func NewTCPBackend() *TCPBackend {
	return &TCPBackend{}
}

// Open dials the engine at target ("host:port").
func (b *TCPBackend) Open(ctx context.Context, target string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		return fmt.Errorf("dial %s: %w", target, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		_ = conn.Close()
		return ErrClosed
	}
	b.conn = conn
	// The scanner's buffer cap enforces maxFrameSize while reading: a line
	// that grows past the cap fails the scan instead of buffering on.
	b.scanner = bufio.NewScanner(conn)
	b.scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	logger.Debugf("tcp: connected to %s", target)
	return nil
}

// Send writes one frame. The frame is expected to carry its own trailing
// newline (wire.Encode appends it).
func (b *TCPBackend) Send(frame []byte) error {
	b.mu.Lock()
	conn := b.conn
	closed := b.closed
	b.mu.Unlock()

	if closed || conn == nil {
		return ErrClosed
	}
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("tcp send: %w", err)
	}
	return nil
}

// Receive blocks until one newline-terminated frame arrives. A frame that
// exceeds maxFrameSize fails the read as soon as the cap is hit.
func (b *TCPBackend) Receive() ([]byte, error) {
	b.mu.Lock()
	scanner := b.scanner
	closed := b.closed
	b.mu.Unlock()

	if closed || scanner == nil {
		return nil, ErrClosed
	}

	if !scanner.Scan() {
		b.mu.Lock()
		closed = b.closed
		b.mu.Unlock()
		if closed {
			return nil, ErrClosed
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		return nil, fmt.Errorf("tcp receive: %w", err)
	}
	return append([]byte(nil), scanner.Bytes()...), nil
}

// Close tears down the connection. A blocked Receive returns ErrClosed.
func (b *TCPBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.conn != nil {
		err := b.conn.Close()
		b.conn = nil
		b.scanner = nil
		return err
	}
	return nil
}
