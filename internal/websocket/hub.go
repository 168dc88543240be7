// Package websocket streams space activity to connected members.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Message is an activity notification broadcast to one space.
type Message struct {
	Type    string         `json:"type"`
	SpaceID uuid.UUID      `json:"space_id"`
	Entity  string         `json:"entity"`
	Action  string         `json:"action"`
	ID      string         `json:"id,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(spaceID uuid.UUID, entity, action string, id uuid.UUID, extra map[string]any) Message {
	msg := Message{
		Type:    fmt.Sprintf("%s_%s", entity, action),
		SpaceID: spaceID,
		Entity:  entity,
		Action:  action,
		Extra:   extra,
	}
	if id != uuid.Nil {
		msg.ID = id.String()
	}
	return msg
}

// Hub tracks connected clients per space.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]map[*Client]struct{}
	logger *slog.Logger

	// OriginPatterns are passed to the websocket handshake. Empty means
	// same-origin only.
	OriginPatterns []string
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[uuid.UUID]map[*Client]struct{}),
		logger: logger,
	}
}

// Register adds a client to its space's room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[c.spaceID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.spaceID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel. Empty rooms are
// dropped.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if room, ok := h.rooms[c.spaceID]; ok {
		if _, ok := room[c]; ok {
			delete(room, c)
			close(c.send)
		}
		if len(room) == 0 {
			delete(h.rooms, c.spaceID)
		}
	}
	h.mu.Unlock()
}

// Broadcast sends msg to every client in msg.SpaceID. It never blocks; a
// client whose buffer is full misses the message.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[msg.SpaceID] {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("websocket client buffer full, dropping message", "space_id", msg.SpaceID, "type", msg.Type)
		}
	}
}

// ClientCount returns the number of clients connected to a space.
func (h *Hub) ClientCount(spaceID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[spaceID])
}
