package transport

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startListener(t *testing.T) (net.Listener, <-chan net.Conn) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()
	return l, accepted
}

func TestTCPBackendRoundTrip(t *testing.T) {
	l, accepted := startListener(t)

	b := NewTCPBackend()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Open(ctx, l.Addr().String()))
	defer b.Close()

	var server net.Conn
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("accept timed out")
	}
	defer server.Close()

	require.NoError(t, b.Send([]byte(`{"type":"call","id":"c1","method":"play_animation"}`+"\n")))

	line, err := bufio.NewReader(server).ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, `"play_animation"`)

	_, err = server.Write([]byte(`{"type":"event","event":"speech_done"}` + "\n"))
	require.NoError(t, err)

	frame, err := b.Receive()
	require.NoError(t, err)
	require.Contains(t, string(frame), "speech_done")
}

func TestTCPBackendReceiveEnforcesFrameBound(t *testing.T) {
	l, accepted := startListener(t)

	b := NewTCPBackend()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Open(ctx, l.Addr().String()))
	defer b.Close()

	var server net.Conn
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("accept timed out")
	}
	defer server.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Receive()
		errCh <- err
	}()

	// Stream well past the frame bound without ever sending a newline. The
	// read must fail once the cap is hit, not buffer the stream wholesale
	// while waiting for a delimiter.
	chunk := bytes.Repeat([]byte("x"), 64*1024)
	go func() {
		for i := 0; i < 3*maxFrameSize/len(chunk); i++ {
			if _, err := server.Write(chunk); err != nil {
				return
			}
		}
	}()

	select {
	case err := <-errCh:
		require.Error(t, err)
		require.ErrorIs(t, err, bufio.ErrTooLong)
	case <-time.After(5 * time.Second):
		t.Fatal("Receive kept buffering past the frame bound")
	}
}

func TestTCPBackendOpenRefused(t *testing.T) {
	// Grab a free port and close the listener so the dial is refused.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	b := NewTCPBackend()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.Error(t, b.Open(ctx, addr))
}

func TestTCPBackendCloseUnblocksReceive(t *testing.T) {
	l, accepted := startListener(t)

	b := NewTCPBackend()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Open(ctx, l.Addr().String()))

	select {
	case conn := <-accepted:
		defer conn.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("accept timed out")
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Receive()
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, b.Close())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Receive did not unblock after Close")
	}

	// Closed backends stay closed.
	require.ErrorIs(t, b.Send([]byte("x\n")), ErrClosed)
	require.NoError(t, b.Close())
}
