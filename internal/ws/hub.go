package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
)

type client struct {
	conn *websocket.Conn
	info ConnInfo
	mu   sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub maintains the chat rooms of active websocket connections.
type Hub struct {
	rooms  map[int]map[*websocket.Conn]*client
	mu     sync.RWMutex
	logger logrus.FieldLogger
}

// NewHub creates an empty hub.
func NewHub(logger logrus.FieldLogger) *Hub {
	return &Hub{
		rooms:  make(map[int]map[*websocket.Conn]*client),
		logger: logger,
	}
}

// AddClient registers a websocket connection to a chat room.
func (h *Hub) AddClient(chatID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[chatID]; !ok {
		h.rooms[chatID] = make(map[*websocket.Conn]*client)
	}
	h.rooms[chatID][conn] = &client{conn: conn, info: info}
}

// RemoveClient removes a connection and reports how many connections the same
// user still holds across all rooms.
func (h *Hub) RemoveClient(chatID int, conn *websocket.Conn) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := 0
	if clients, ok := h.rooms[chatID]; ok {
		if c, ok := clients[conn]; ok {
			userID = c.info.UserID
		}
		delete(clients, conn)
		if len(clients) == 0 {
			delete(h.rooms, chatID)
		}
	}
	if userID == 0 {
		return 0
	}
	return h.userConnectionsLocked(userID)
}

// UserConnections counts the user's open connections across rooms.
func (h *Hub) UserConnections(userID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.userConnectionsLocked(userID)
}

func (h *Hub) userConnectionsLocked(userID int) int {
	count := 0
	for _, clients := range h.rooms {
		for _, c := range clients {
			if c.info.UserID == userID {
				count++
			}
		}
	}
	return count
}

// RoomSize returns the number of connections in a chat room.
func (h *Hub) RoomSize(chatID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[chatID])
}

// Broadcast sends the event to every connection in the chat room. Connections
// that fail to accept the write are closed and dropped.
func (h *Hub) Broadcast(chatID int, event models.ChatEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Error("websocket event encode failed")
		return
	}

	for _, c := range h.snapshot(chatID) {
		if err := c.write(payload); err != nil {
			h.logger.WithError(err).WithFields(logrus.Fields{
				"chat_id": chatID,
				"conn_id": c.info.ConnID,
			}).Warn("websocket write failed")
			_ = c.conn.Close()
			h.RemoveClient(chatID, c.conn)
			observability.IncWSEvent("ws_error")
		}
	}
}

// DisconnectUsers closes the connections the given users hold in a chat room.
func (h *Hub) DisconnectUsers(chatID int, userIDs []int) {
	drop := make(map[int]struct{}, len(userIDs))
	for _, id := range userIDs {
		drop[id] = struct{}{}
	}
	for _, c := range h.snapshot(chatID) {
		if _, ok := drop[c.info.UserID]; ok {
			_ = c.conn.Close()
		}
	}
}

// CloseRoom closes every connection of a chat room.
func (h *Hub) CloseRoom(chatID int) {
	for _, c := range h.snapshot(chatID) {
		_ = c.conn.Close()
	}
}

func (h *Hub) snapshot(chatID int) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*client, 0, len(h.rooms[chatID]))
	for _, c := range h.rooms[chatID] {
		clients = append(clients, c)
	}
	return clients
}
