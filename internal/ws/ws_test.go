package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNewMessage(t *testing.T) {
	data, err := NewMessage(MsgGenerationProgress, map[string]any{"entity": "orders", "done": 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("invalid envelope: %v", err)
	}
	if msg.Type != MsgGenerationProgress {
		t.Errorf("type = %s", msg.Type)
	}
	if !strings.Contains(string(msg.Payload), `"orders"`) {
		t.Errorf("payload = %s", msg.Payload)
	}
}

func TestNewMessage_NilPayload(t *testing.T) {
	data, err := NewMessage(MsgError, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if len(msg.Payload) != 0 {
		t.Errorf("expected empty payload, got %s", msg.Payload)
	}
}

func TestHub_BroadcastToClient(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()

	s := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(s.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	waitForClients(t, hub, 1)

	hub.BroadcastGenerationProgress(map[string]any{"entity": "orders", "done": 3, "total": 10})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("invalid message: %v", err)
	}
	if msg.Type != MsgGenerationProgress {
		t.Errorf("type = %s", msg.Type)
	}
}

func TestHub_FullStateOnConnect(t *testing.T) {
	hub := NewHub(testLogger())
	hub.SetStateProvider(func() ([]byte, error) {
		return json.Marshal(map[string]string{"status": "idle"})
	})
	go hub.Run()

	s := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(s.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != MsgFullState {
		t.Errorf("expected full_state first, got %s", msg.Type)
	}
	if !strings.Contains(string(msg.Payload), "idle") {
		t.Errorf("payload = %s", msg.Payload)
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()

	if n := hub.ClientCount(); n != 0 {
		t.Fatalf("expected 0 clients, got %d", n)
	}

	s := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(s.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}

	waitForClients(t, hub, 1)

	conn.Close(websocket.StatusNormalClosure, "")
	waitForClients(t, hub, 0)
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client count never reached %d (at %d)", want, hub.ClientCount())
}

func TestHub_DropsStalledClientOnBroadcast(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()

	// No write pump draining send, so the broadcast cannot be delivered and
	// the hub must drop the client.
	client := &Client{hub: hub, send: make(chan []byte)}
	hub.register <- client
	waitForClients(t, hub, 1)

	hub.Broadcast([]byte(`{"type":"error"}`))
	waitForClients(t, hub, 0)
}
