package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/store"
	"messaging-service/internal/telemetry"
)

// UserHandler manages per-user projections and the account cascade.
type UserHandler struct {
	messageRepo      repositories.MessageRepository
	notificationRepo repositories.NotificationRepository
	messageStore     store.MessageStore
	audit            *telemetry.AuditEmitter
}

// NewUserHandler builds a UserHandler.
func NewUserHandler(
	messageRepo repositories.MessageRepository,
	notificationRepo repositories.NotificationRepository,
	messageStore store.MessageStore,
	audit *telemetry.AuditEmitter,
) *UserHandler {
	return &UserHandler{
		messageRepo:      messageRepo,
		notificationRepo: notificationRepo,
		messageStore:     messageStore,
		audit:            audit,
	}
}

// GetUnread serves the narrow unread projection for the user's list view.
// Only the user may read their own unread list.
func (h *UserHandler) GetUnread(c *gin.Context) {
	userID, ok := paramInt(c, "user_id")
	if !ok {
		return
	}
	identity := identityOf(c)
	if identity.Anonymous || identity.User.ID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": kindAuthorizationDenied})
		return
	}

	msgs, err := h.messageRepo.UnreadForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": kindStorageUnavailable})
		return
	}
	if msgs == nil {
		msgs = []models.UnreadMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// GetNotifications returns the user's notifications newest-first.
func (h *UserHandler) GetNotifications(c *gin.Context) {
	userID, ok := paramInt(c, "user_id")
	if !ok {
		return
	}
	identity := identityOf(c)
	if identity.Anonymous || identity.User.ID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": kindAuthorizationDenied})
		return
	}

	list, err := h.notificationRepo.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": kindStorageUnavailable})
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// MarkNotificationRead flips a notification's read flag for its owner.
func (h *UserHandler) MarkNotificationRead(c *gin.Context) {
	notificationID, ok := paramInt(c, "notification_id")
	if !ok {
		return
	}
	identity := identityOf(c)
	if identity.Anonymous {
		c.JSON(http.StatusForbidden, gin.H{"error": kindAuthorizationDenied})
		return
	}

	notification, err := h.notificationRepo.GetNotification(c.Request.Context(), notificationID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": kindNotFound})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": kindStorageUnavailable})
		}
		return
	}
	if notification.UserID != identity.User.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": kindAuthorizationDenied})
		return
	}

	if err := h.messageStore.MarkNotificationRead(c.Request.Context(), notificationID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": kindStorageUnavailable})
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteUser runs the wide account cascade: the user themselves or an
// elevated role may trigger it.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	userID, ok := paramInt(c, "user_id")
	if !ok {
		return
	}
	identity := identityOf(c)
	if identity.Anonymous || (identity.User.ID != userID && !identity.User.Elevated()) {
		c.JSON(http.StatusForbidden, gin.H{"error": kindAuthorizationDenied})
		return
	}

	if err := h.messageStore.DeleteUser(c.Request.Context(), userID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": kindNotFound})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": kindStorageUnavailable})
		}
		return
	}

	emitAudit(c, h.audit, identity, http.StatusNoContent, "user cascade deleted")
	c.Status(http.StatusNoContent)
}
