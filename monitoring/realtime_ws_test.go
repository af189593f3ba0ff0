package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()
	hub := NewHub(nil)
	go hub.Run()
	t.Cleanup(hub.Stop)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return hub, conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
}

func TestHubBroadcast(t *testing.T) {
	hub, conn := dialHub(t)

	hub.Publish(DatasetAdded, map[string]string{"name": "iris"})

	var event Event
	readJSON(t, conn, &event)
	if event.Type != DatasetAdded || event.ID == "" {
		t.Fatalf("unexpected event %+v", event)
	}
	data, ok := event.Data.(map[string]any)
	if !ok || data["name"] != "iris" {
		t.Fatalf("unexpected payload %v", event.Data)
	}
}

func TestHubSubscriptions(t *testing.T) {
	hub, conn := dialHub(t)

	if err := conn.WriteJSON(ClientMessage{Type: "subscribe", Topic: ModelTrained}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.WriteJSON(ClientMessage{Type: "ping"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var pong map[string]string
	readJSON(t, conn, &pong)
	if pong["type"] != "pong" {
		t.Fatalf("expected pong, got %v", pong)
	}

	hub.Publish(DatasetAdded, nil)
	hub.Publish(ModelTrained, nil)

	var event Event
	readJSON(t, conn, &event)
	if event.Type != ModelTrained {
		t.Fatalf("expected only subscribed events, got %s", event.Type)
	}
}

func TestPublishOnNilHub(t *testing.T) {
	var hub *Hub
	hub.Publish(ParamsChanged, nil)
}
