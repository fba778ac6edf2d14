package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
)

// Hub tracks the live websocket connections of this process and the
// conversation rooms they joined. Room membership is always derived from the
// conversation directory on connect; the hub only mirrors it for fanout.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*hubConn
	info   map[string]ConnInfo
	rooms  map[string]map[string]bool
	joined map[string]map[string]bool
}

// hubConn serializes writes to one connection. gorilla/websocket supports at
// most one concurrent writer per connection.
type hubConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conns:  make(map[string]*hubConn),
		info:   make(map[string]ConnInfo),
		rooms:  make(map[string]map[string]bool),
		joined: make(map[string]map[string]bool),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(connID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[connID] = &hubConn{conn: conn}
	h.info[connID] = info
}

// Unregister removes a connection and leaves every room it joined.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID := range h.joined[connID] {
		if conns, ok := h.rooms[roomID]; ok {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	delete(h.joined, connID)
	delete(h.conns, connID)
	delete(h.info, connID)
}

// JoinRoom subscribes a connection to a conversation room.
func (h *Hub) JoinRoom(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[string]bool)
	}
	h.rooms[roomID][connID] = true
	if _, ok := h.joined[connID]; !ok {
		h.joined[connID] = make(map[string]bool)
	}
	h.joined[connID][roomID] = true
}

// LeaveRoom unsubscribes a connection from a room.
func (h *Hub) LeaveRoom(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[roomID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.rooms, roomID)
		}
	}
	if rooms, ok := h.joined[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(h.joined, connID)
		}
	}
}

// SendToConn emits one event to a single connection.
func (h *Hub) SendToConn(connID string, event models.Event) error {
	h.mu.RLock()
	hc, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return websocket.ErrCloseSent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	hc.mu.Lock()
	err = hc.conn.WriteMessage(websocket.TextMessage, payload)
	hc.mu.Unlock()
	if err != nil {
		h.dropConn(connID, hc, err)
		return err
	}
	return nil
}

// SendToSessions fans one event out to every given session that is connected
// to this process, returning how many connections it reached.
func (h *Hub) SendToSessions(sessions []models.Session, event models.Event) int {
	emitted := 0
	for _, sess := range sessions {
		if err := h.SendToConn(sess.ConnID, event); err == nil {
			emitted++
		}
	}
	return emitted
}

// BroadcastToRoom sends the event to every connection in the room, optionally
// skipping one connection (usually the sender's).
func (h *Hub) BroadcastToRoom(roomID string, event models.Event, exceptConnID string) {
	h.mu.RLock()
	ids := make([]string, 0, len(h.rooms[roomID]))
	for connID := range h.rooms[roomID] {
		if connID != exceptConnID {
			ids = append(ids, connID)
		}
	}
	h.mu.RUnlock()

	for _, connID := range ids {
		_ = h.SendToConn(connID, event)
	}
}

func (h *Hub) dropConn(connID string, hc *hubConn, cause error) {
	log.Printf("websocket write error on %s: %v", connID, cause)
	hc.conn.Close()

	h.mu.RLock()
	info, ok := h.info[connID]
	h.mu.RUnlock()
	h.Unregister(connID)
	if !ok {
		return
	}

	class := string(info.Class)
	observability.IncWSEvent(class, "ws_error")
	_ = observability.PublishEvent(context.Background(), routingKey(info.Class), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   wsEventPayload(info, "ws_error", time.Since(info.ConnectedAt), cause.Error()),
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}

func routingKey(class models.ConnectionClass) string {
	switch class {
	case models.ClassGroup:
		return "ws_events.group"
	case models.ClassCall:
		return "ws_events.call"
	default:
		return "ws_events.direct"
	}
}

func wsEventPayload(info ConnInfo, event string, duration time.Duration, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"class":       string(info.Class),
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": duration.Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
}
