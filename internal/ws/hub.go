package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// Hub maintains active notification stream connections keyed by user id.
// It is a fan-out subscriber: committed message creations are pushed to every
// recipient with an open connection.
type Hub struct {
	userConns map[int]map[*websocket.Conn]bool
	mu        sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{userConns: make(map[int]map[*websocket.Conn]bool)}
}

// AddClient registers a websocket connection for a user.
func (h *Hub) AddClient(userID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.userConns[userID]; !ok {
		h.userConns[userID] = make(map[*websocket.Conn]bool)
	}
	h.userConns[userID][conn] = true
	observability.IncWSActive()
}

// RemoveClient drops a websocket connection.
func (h *Hub) RemoveClient(userID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.userConns[userID]; ok {
		if conns[conn] {
			delete(conns, conn)
			observability.DecWSActive()
		}
		if len(conns) == 0 {
			delete(h.userConns, userID)
		}
	}
}

// ConnectedUsers reports how many users hold at least one connection.
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userConns)
}

// MessageCreated pushes each committed notification to its recipient.
func (h *Hub) MessageCreated(_ context.Context, msg models.Message, notifications []models.Notification) {
	for i := range notifications {
		n := notifications[i]
		event := models.NotificationEvent{Type: "notification", Notification: &n, Message: &msg}
		h.pushToUser(n.UserID, event)
	}
}

// MessageEdited is a no-op: edits never notify.
func (h *Hub) MessageEdited(context.Context, models.Message) {}

// UserDeleted closes any streams the deleted account still holds.
func (h *Hub) UserDeleted(_ context.Context, userID int) {
	h.mu.Lock()
	conns := h.userConns[userID]
	delete(h.userConns, userID)
	h.mu.Unlock()

	for conn := range conns {
		conn.Close()
		observability.DecWSActive()
	}
}

func (h *Hub) pushToUser(userID int, event models.NotificationEvent) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.userConns[userID]))
	for conn := range h.userConns[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.RemoveClient(userID, conn)
		}
	}
}
