package dashboard

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"farewatch/internal/domain"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()

	hub := NewHub(zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.handle(w, r)
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialHub(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitForClients blocks until the hub sees n connections or times out.
func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.Lock()
		count := len(hub.clients)
		hub.mu.Unlock()
		if count == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d clients", n)
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub, url := startHub(t)

	first := dialHub(t, url)
	second := dialHub(t, url)
	waitForClients(t, hub, 2)

	sent := domain.AlertRecord{
		AlertID:      "a1",
		Origin:       "IST",
		Destination:  "JFK",
		CurrentPrice: 8000,
		DedupeKey:    "key-1",
	}
	hub.BroadcastAlert(sent)

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got domain.AlertRecord
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("read alert: %v", err)
		}
		if got.AlertID != "a1" || got.CurrentPrice != 8000 {
			t.Errorf("unexpected alert: %+v", got)
		}
	}
}

func TestHub_DisconnectedClientIsRemoved(t *testing.T) {
	hub, url := startHub(t)

	conn := dialHub(t, url)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)

	// Broadcasting into an empty hub is a no-op, not a panic.
	hub.BroadcastAlert(domain.AlertRecord{AlertID: "a2", DedupeKey: "key-2"})
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub, url := startHub(t)

	conn := dialHub(t, url)
	waitForClients(t, hub, 1)

	hub.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed")
	}
}
