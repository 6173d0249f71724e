package dashboard

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"farewatch/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub fans delivered alerts out to connected websocket clients. A slow
// client is dropped rather than allowed to stall the broadcast.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan domain.AlertRecord
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]chan domain.AlertRecord),
		logger:  logger,
	}
}

// BroadcastAlert queues the alert for every connected client.
func (h *Hub) BroadcastAlert(alert domain.AlertRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- alert:
		default:
			h.drop(conn)
		}
	}
}

// handle upgrades the request and serves the connection until the client
// goes away.
func (h *Hub) handle(w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	ch := make(chan domain.AlertRecord, 16)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	h.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("websocket client connected")

	// Reader goroutine detects disconnects; inbound frames are discarded.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.mu.Lock()
				h.drop(conn)
				h.mu.Unlock()
				return
			}
		}
	}()

	for alert := range ch {
		if err := conn.WriteJSON(alert); err != nil {
			h.mu.Lock()
			h.drop(conn)
			h.mu.Unlock()
			return nil
		}
	}
	return nil
}

// drop removes a client. Caller holds h.mu.
func (h *Hub) drop(conn *websocket.Conn) {
	if ch, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(ch)
		conn.Close()
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		h.drop(conn)
	}
}
