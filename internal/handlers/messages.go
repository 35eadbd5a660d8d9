package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/guard"
	"messaging-service/internal/models"
	"messaging-service/internal/moderation"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/store"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/thread"
)

// RateLimiter is the admission port for message creation.
type RateLimiter interface {
	Allow(ctx context.Context, userID int, action string) (bool, error)
	Limit() int
	WindowSeconds() int
}

// MessageHandler manages the message endpoints.
type MessageHandler struct {
	conversationRepo repositories.ConversationRepository
	messageRepo      repositories.MessageRepository
	messageStore     store.MessageStore
	guard            *guard.Guard
	filter           *moderation.Filter
	limiter          RateLimiter
	threads          *thread.Retriever
	audit            *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(
	conversationRepo repositories.ConversationRepository,
	messageRepo repositories.MessageRepository,
	messageStore store.MessageStore,
	g *guard.Guard,
	filter *moderation.Filter,
	limiter RateLimiter,
	threads *thread.Retriever,
	audit *telemetry.AuditEmitter,
) *MessageHandler {
	return &MessageHandler{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		messageStore:     messageStore,
		guard:            g,
		filter:           filter,
		limiter:          limiter,
		threads:          threads,
		audit:            audit,
	}
}

// PostMessage creates a message in a conversation. Gates run in order:
// guard (participant + time window), rate limiter, moderation. A rejection
// short-circuits before any store mutation.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	conversationID, ok := paramInt(c, "conversation_id")
	if !ok {
		return
	}
	identity := identityOf(c)

	if _, err := h.conversationRepo.GetConversation(c.Request.Context(), conversationID); err != nil {
		h.conversationLookupError(c, err)
		return
	}

	member := false
	if !identity.Anonymous {
		var err error
		member, err = h.conversationRepo.IsParticipant(c.Request.Context(), conversationID, identity.User.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": kindStorageUnavailable})
			return
		}
	}
	if !h.guard.CanCreateMessage(identity, member) {
		observability.IncGateRejection(observability.GateGuard)
		emitAudit(c, h.audit, identity, http.StatusForbidden, "message creation denied")
		c.JSON(http.StatusForbidden, gin.H{"error": kindAuthorizationDenied})
		return
	}

	allowed, err := h.limiter.Allow(c.Request.Context(), identity.User.ID, "message:create")
	if err != nil {
		// Counter store failure fails closed, surfaced as a server error.
		c.JSON(http.StatusInternalServerError, gin.H{"error": kindStorageUnavailable})
		return
	}
	if !allowed {
		observability.IncGateRejection(observability.GateRateLimit)
		emitAudit(c, h.audit, identity, http.StatusTooManyRequests, "rate limit exceeded")
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":          kindRateLimitExceeded,
			"limit":          h.limiter.Limit(),
			"window_seconds": h.limiter.WindowSeconds(),
		})
		return
	}

	var req struct {
		Content    string `json:"content" binding:"required"`
		ParentID   *int   `json:"parent_id"`
		ReceiverID *int   `json:"receiver_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		// Undecodable payload fails closed as a moderation rejection.
		observability.IncGateRejection(observability.GateModeration)
		emitAudit(c, h.audit, identity, http.StatusForbidden, "undecodable payload")
		c.JSON(http.StatusForbidden, gin.H{"error": kindModerationRejected})
		return
	}
	if !h.filter.Allow(req.Content) {
		observability.IncGateRejection(observability.GateModeration)
		emitAudit(c, h.audit, identity, http.StatusForbidden, "content rejected")
		c.JSON(http.StatusForbidden, gin.H{"error": kindModerationRejected})
		return
	}

	msg, err := h.messageStore.CreateMessage(c.Request.Context(), store.CreateMessageParams{
		ConversationID: conversationID,
		SenderID:       identity.User.ID,
		ReceiverID:     req.ReceiverID,
		Body:           req.Content,
		ParentID:       req.ParentID,
	})
	if err != nil {
		h.storeMutationError(c, err)
		return
	}

	emitAudit(c, h.audit, identity, http.StatusCreated, "message created")
	c.JSON(http.StatusCreated, msg)
}

// EditMessage updates a message body, producing a history snapshot. Only the
// original sender may edit; an unchanged body is an idempotent no-op.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	messageID, ok := paramInt(c, "message_id")
	if !ok {
		return
	}
	identity := identityOf(c)

	msg, member, ok := h.loadMessageWithMembership(c, messageID, identity.Anonymous, identity.User.ID)
	if !ok {
		return
	}
	if !h.guard.CanUpdateMessage(identity, member, msg.SenderID == identity.User.ID) {
		observability.IncGateRejection(observability.GateGuard)
		c.JSON(http.StatusForbidden, gin.H{"error": kindAuthorizationDenied})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		observability.IncGateRejection(observability.GateModeration)
		c.JSON(http.StatusForbidden, gin.H{"error": kindModerationRejected})
		return
	}
	if !h.filter.Allow(req.Content) {
		observability.IncGateRejection(observability.GateModeration)
		emitAudit(c, h.audit, identity, http.StatusForbidden, "content rejected")
		c.JSON(http.StatusForbidden, gin.H{"error": kindModerationRejected})
		return
	}

	updated, err := h.messageStore.EditMessage(c.Request.Context(), messageID, identity.User.ID, req.Content)
	if err != nil {
		h.storeMutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteMessage removes a message and its owned records. Deleting another
// user's message requires an elevated role.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID, ok := paramInt(c, "message_id")
	if !ok {
		return
	}
	identity := identityOf(c)

	msg, member, ok := h.loadMessageWithMembership(c, messageID, identity.Anonymous, identity.User.ID)
	if !ok {
		return
	}
	if !h.guard.CanDelete(identity, member, msg.SenderID == identity.User.ID) {
		observability.IncGateRejection(observability.GateGuard)
		emitAudit(c, h.audit, identity, http.StatusForbidden, "message delete denied")
		c.JSON(http.StatusForbidden, gin.H{"error": kindAuthorizationDenied})
		return
	}

	if err := h.messageStore.DeleteMessage(c.Request.Context(), messageID); err != nil {
		h.storeMutationError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkMessageRead flips the read flag feeding the unread projection.
func (h *MessageHandler) MarkMessageRead(c *gin.Context) {
	messageID, ok := paramInt(c, "message_id")
	if !ok {
		return
	}
	identity := identityOf(c)

	_, member, ok := h.loadMessageWithMembership(c, messageID, identity.Anonymous, identity.User.ID)
	if !ok {
		return
	}
	if !h.guard.CanRead(identity, member) {
		c.JSON(http.StatusForbidden, gin.H{"error": kindAuthorizationDenied})
		return
	}

	if err := h.messageStore.MarkMessageRead(c.Request.Context(), messageID); err != nil {
		h.storeMutationError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetThread returns the message and its reply subtree flattened depth-first
// in pre-order.
func (h *MessageHandler) GetThread(c *gin.Context) {
	messageID, ok := paramInt(c, "message_id")
	if !ok {
		return
	}
	identity := identityOf(c)

	_, member, ok := h.loadMessageWithMembership(c, messageID, identity.Anonymous, identity.User.ID)
	if !ok {
		return
	}
	if !h.guard.CanRead(identity, member) {
		c.JSON(http.StatusForbidden, gin.H{"error": kindAuthorizationDenied})
		return
	}

	root, replies, err := h.threads.Thread(c.Request.Context(), messageID)
	if err != nil {
		h.storeMutationError(c, err)
		return
	}
	if replies == nil {
		replies = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"message": root, "replies": replies})
}

// GetHistory returns a message's edit history newest-first.
func (h *MessageHandler) GetHistory(c *gin.Context) {
	messageID, ok := paramInt(c, "message_id")
	if !ok {
		return
	}
	identity := identityOf(c)

	_, member, ok := h.loadMessageWithMembership(c, messageID, identity.Anonymous, identity.User.ID)
	if !ok {
		return
	}
	if !h.guard.CanRead(identity, member) {
		c.JSON(http.StatusForbidden, gin.H{"error": kindAuthorizationDenied})
		return
	}

	history, err := h.messageRepo.HistoryForMessage(c.Request.Context(), messageID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": kindStorageUnavailable})
		return
	}
	if history == nil {
		history = []models.MessageHistory{}
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *MessageHandler) loadMessageWithMembership(c *gin.Context, messageID int, anonymous bool, userID int) (models.Message, bool, bool) {
	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": kindNotFound})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": kindStorageUnavailable})
		}
		return models.Message{}, false, false
	}

	member := false
	if !anonymous {
		member, err = h.conversationRepo.IsParticipant(c.Request.Context(), msg.ConversationID, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": kindStorageUnavailable})
			return models.Message{}, false, false
		}
	}
	return msg, member, true
}

func (h *MessageHandler) conversationLookupError(c *gin.Context, err error) {
	if errors.Is(err, repositories.ErrConversationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": kindNotFound})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": kindStorageUnavailable})
}

func (h *MessageHandler) storeMutationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrEmptyBody),
		errors.Is(err, store.ErrBodyTooLong),
		errors.Is(err, store.ErrParentMismatch),
		errors.Is(err, store.ErrParentNotEarlier),
		errors.Is(err, store.ErrReceiverNotIn):
		c.JSON(http.StatusBadRequest, gin.H{"error": kindValidationFailed, "detail": err.Error()})
	case errors.Is(err, store.ErrNotSender):
		c.JSON(http.StatusForbidden, gin.H{"error": kindAuthorizationDenied})
	case errors.Is(err, repositories.ErrMessageNotFound),
		errors.Is(err, repositories.ErrConversationNotFound),
		errors.Is(err, repositories.ErrNotificationNotFound),
		errors.Is(err, repositories.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": kindNotFound})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": kindStorageUnavailable})
	}
}
