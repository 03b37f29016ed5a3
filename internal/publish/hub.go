package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wonny/rgm/internal/contracts"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	sendBuffer   = 16
)

// Hub pushes completed-scenario summaries to websocket subscribers
// ⭐ SSOT: /ws/scenarios 구독자 관리는 여기서만
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*subscriber]struct{}
	log      zerolog.Logger
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 대시보드는 다른 origin에서 접속
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*subscriber]struct{}),
		log:     log.With().Str("component", "publish.hub").Logger(),
	}
}

// Name implements Publisher
func (h *Hub) Name() string { return "websocket" }

// ServeHTTP upgrades the request and keeps the subscription until the peer leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	s := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[s] = struct{}{}
	h.mu.Unlock()
	h.log.Debug().Int("subscribers", h.Clients()).Msg("subscriber joined")

	go h.writeLoop(s)
	h.readLoop(s)
}

// readLoop only services control frames; subscribers never send data
func (h *Hub) readLoop(s *subscriber) {
	defer h.remove(s)

	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug().Err(err).Msg("subscriber read ended")
			}
			return
		}
	}
}

func (h *Hub) writeLoop(s *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// remove drops a subscriber once; its writer then closes the connection
func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[s]; ok {
		delete(h.clients, s)
		close(s.send)
	}
}

// Clients returns the number of live subscribers
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish broadcasts the scenario summary. Slow subscribers are dropped, never waited on.
func (h *Hub) Publish(_ context.Context, result *contracts.ScenarioResult) error {
	msg, err := json.Marshal(Summarize(result))
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	var slow []*subscriber
	h.mu.RLock()
	for s := range h.clients {
		select {
		case s.send <- msg:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		h.log.Warn().Msg("dropping slow subscriber")
		h.remove(s)
	}
	return nil
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.clients {
		delete(h.clients, s)
		close(s.send)
	}
}
