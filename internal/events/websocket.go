package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketSink fans events out to every connected websocket client as a
// JSON frame, letting a UI process subscribe to the same canonical events
// published to the in-process bus. Grounded on
// internal/gateway/ws_control_plane.go's per-connection write-loop-over-a-
// buffered-channel idiom; unlike that control plane this sink is publish
// only, with no inbound command handling.
type WebSocketSink struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	logger  *slog.Logger
}

type wsClient struct {
	conn *websocket.Conn
	send chan Event
}

// NewWebSocketSink builds a sink ready to accept connections via ServeHTTP.
func NewWebSocketSink(logger *slog.Logger) *WebSocketSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketSink{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: map[*wsClient]struct{}{},
		logger:  logger,
	}
}

// ServeHTTP upgrades the connection and registers it as an event subscriber.
func (s *WebSocketSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan Event, 64)}
	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	go s.writeLoop(client)
}

func (s *WebSocketSink) writeLoop(client *wsClient) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, client)
		s.mu.Unlock()
		client.conn.Close()
	}()

	for event := range client.send {
		raw, err := json.Marshal(event)
		if err != nil {
			continue
		}
		if err := client.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			return
		}
	}
}

// Emit implements Sink by fanning the event to every connected client's
// buffered send channel, dropping it for clients whose channel is full.
func (s *WebSocketSink) Emit(ctx context.Context, e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		select {
		case client.send <- e:
		default:
			s.logger.Warn("dropping event for slow websocket client", "event", e.Name)
		}
	}
}
