package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow any origin
	},
}

const (
	writeWait = 5 * time.Second
	// viewerBuffer is how many messages a viewer may fall behind before it
	// is dropped.
	viewerBuffer = 16
)

// viewer is a connected page. Its writes happen on its own goroutine.
type viewer struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub relays messages from publishers to every connected viewer. The
// capture loop publishes smile status notifications; browser pages view
// them.
type Hub struct {
	mu      sync.Mutex
	viewers map[*viewer]struct{}
	last    []byte
	closed  bool
	log     zerolog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		viewers: make(map[*viewer]struct{}),
		log:     logger.With().Str("component", "relay").Logger(),
	}
}

// ServeViewer upgrades a viewer connection. A new viewer immediately gets
// the last relayed message.
func (h *Hub) ServeViewer(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("viewer upgrade failed")
		return
	}

	v := &viewer{conn: conn, send: make(chan []byte, viewerBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.viewers[v] = struct{}{}
	if h.last != nil {
		v.send <- h.last
	}
	count := len(h.viewers)
	h.mu.Unlock()
	h.log.Info().Int("viewers", count).Msg("viewer connected")

	go h.writePump(v)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(v)
}

// writePump delivers queued messages to one viewer until its send channel
// is closed or a write fails.
func (h *Hub) writePump(v *viewer) {
	defer v.conn.Close()

	for msg := range v.send {
		v.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := v.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug().Err(err).Msg("viewer write failed")
			return
		}
	}
}

// ServePublisher upgrades a publisher connection and relays each text
// message it sends.
func (h *Hub) ServePublisher(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("publisher upgrade failed")
		return
	}
	defer conn.Close()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		h.Broadcast(data)
	}
}

// Broadcast queues msg for every viewer without waiting on the network.
// Viewers whose queue is full are dropped.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = append([]byte(nil), msg...)
	for v := range h.viewers {
		select {
		case v.send <- h.last:
		default:
			h.log.Debug().Msg("viewer too slow, dropping")
			h.dropLocked(v)
		}
	}
}

// Viewers returns the number of connected viewers.
func (h *Hub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// Close disconnects every viewer and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for v := range h.viewers {
		h.dropLocked(v)
	}
}

// dropLocked forgets v and ends its write pump. h.mu must be held.
func (h *Hub) dropLocked(v *viewer) {
	if _, ok := h.viewers[v]; !ok {
		return
	}
	delete(h.viewers, v)
	close(v.send)
}

func (h *Hub) remove(v *viewer) {
	h.mu.Lock()
	h.dropLocked(v)
	count := len(h.viewers)
	h.mu.Unlock()

	v.conn.Close()
	h.log.Info().Int("viewers", count).Msg("viewer disconnected")
}
