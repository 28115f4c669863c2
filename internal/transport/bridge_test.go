package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func startBridgeServer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			// Echo every frame back as the engine would ack it.
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestBridgeBackendRoundTrip(t *testing.T) {
	url := startBridgeServer(t)

	b := NewBridgeBackend()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Open(ctx, url))
	defer b.Close()

	frame := []byte(`{"type":"call","id":"c1","method":"get_animation_list"}`)
	require.NoError(t, b.Send(frame))

	got, err := b.Receive()
	require.NoError(t, err)
	require.Equal(t, frame, got)
}

func TestBridgeBackendCloseUnblocksReceive(t *testing.T) {
	url := startBridgeServer(t)

	b := NewBridgeBackend()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Open(ctx, url))

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
}

func TestBridgeBackendOpenFailure(t *testing.T) {
	b := NewBridgeBackend()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.Error(t, b.Open(ctx, "ws://127.0.0.1:1/bridge"))
}
