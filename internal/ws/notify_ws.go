package ws

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"messaging-service/internal/middleware"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NotificationStreamHandler upgrades an authenticated request into a
// notification stream. Anonymous requests are rejected before the upgrade.
type NotificationStreamHandler struct {
	hub *Hub
}

// NewNotificationStreamHandler builds the handler.
func NewNotificationStreamHandler(hub *Hub) *NotificationStreamHandler {
	return &NotificationStreamHandler{hub: hub}
}

// Handle serves GET /ws/notifications.
func (h *NotificationStreamHandler) Handle(c *gin.Context) {
	identity := middleware.IdentityFromContext(c)
	if identity.Anonymous {
		c.JSON(http.StatusForbidden, gin.H{"error": "authentication required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	userID := identity.User.ID
	h.hub.AddClient(userID, conn)
	defer func() {
		h.hub.RemoveClient(userID, conn)
		conn.Close()
	}()

	// Streams are push-only. Drain the connection until the client leaves.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
