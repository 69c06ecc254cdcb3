package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"treasuryd/internal/core/domain"
)

func dialTestHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialTestHub(t, hub)

	// Give the register message time to land before broadcasting
	time.Sleep(50 * time.Millisecond)

	hub.Publish(domain.UpdateEvent{
		TotalUsdValue: 12345.67,
		Timestamp:     "2026-08-31T12:00:00Z",
		TokenCount:    4,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	var got domain.UpdateEvent
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("Bad payload %q: %v", payload, err)
	}
	if got.TotalUsdValue != 12345.67 || got.TokenCount != 4 {
		t.Errorf("Unexpected event: %+v", got)
	}
	if got.Timestamp != "2026-08-31T12:00:00Z" {
		t.Errorf("Unexpected timestamp: %q", got.Timestamp)
	}
}

func TestHub_PublishWithoutClientsDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish(domain.UpdateEvent{TokenCount: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with no clients connected")
	}
}

func TestHub_MultipleClientsAllReceive(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	first := dialTestHub(t, hub)
	second := dialTestHub(t, hub)
	time.Sleep(50 * time.Millisecond)

	hub.Publish(domain.UpdateEvent{TotalUsdValue: 1, TokenCount: 1})

	for i, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Errorf("Client %d did not receive broadcast: %v", i, err)
		}
	}
}

func TestHub_DisconnectAfterShutdownDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	cancel()
	select {
	case <-hub.done:
	case <-time.After(time.Second):
		t.Fatal("Hub did not shut down")
	}

	// A read pump finishing after shutdown hands its client back to a hub
	// that no longer drains unregister
	finished := make(chan struct{})
	go func() {
		hub.disconnect(newClient(hub, nil))
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("disconnect blocked after hub shutdown")
	}
}

func TestHub_ClientDisconnectRemovesIt(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialTestHub(t, hub)
	time.Sleep(50 * time.Millisecond)
	conn.Close()
	time.Sleep(100 * time.Millisecond)

	// Broadcast after disconnect must not panic or block
	hub.Publish(domain.UpdateEvent{TokenCount: 1})
}
