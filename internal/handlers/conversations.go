package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/guard"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/store"
	"messaging-service/internal/telemetry"
)

// ConversationHandler manages conversation endpoints.
type ConversationHandler struct {
	conversationRepo repositories.ConversationRepository
	messageRepo      repositories.MessageRepository
	messageStore     store.MessageStore
	guard            *guard.Guard
	audit            *telemetry.AuditEmitter
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(
	conversationRepo repositories.ConversationRepository,
	messageRepo repositories.MessageRepository,
	messageStore store.MessageStore,
	g *guard.Guard,
	audit *telemetry.AuditEmitter,
) *ConversationHandler {
	return &ConversationHandler{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		messageStore:     messageStore,
		guard:            g,
		audit:            audit,
	}
}

// CreateConversation starts a conversation. The creator is always a
// participant; further membership changes are owned by an external surface.
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	identity := identityOf(c)
	if identity.Anonymous {
		c.JSON(http.StatusForbidden, gin.H{"error": kindAuthorizationDenied})
		return
	}

	var req struct {
		ParticipantIDs []int `json:"participant_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": kindValidationFailed, "detail": err.Error()})
		return
	}

	participants := req.ParticipantIDs
	hasCreator := false
	for _, id := range participants {
		if id == identity.User.ID {
			hasCreator = true
			break
		}
	}
	if !hasCreator {
		participants = append(participants, identity.User.ID)
	}

	conv, err := h.conversationRepo.CreateConversation(c.Request.Context(), participants)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": kindStorageUnavailable})
		return
	}

	emitAudit(c, h.audit, identity, http.StatusCreated, "conversation created")
	c.JSON(http.StatusCreated, conv)
}

// ListMessages returns the conversation timeline for a participant.
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	conversationID, ok := paramInt(c, "conversation_id")
	if !ok {
		return
	}
	identity := identityOf(c)

	if _, err := h.conversationRepo.GetConversation(c.Request.Context(), conversationID); err != nil {
		conversationError(c, err)
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
	if !h.guard.CanRead(identity, member) {
		c.JSON(http.StatusForbidden, gin.H{"error": kindAuthorizationDenied})
		return
	}

	msgs, err := h.messageRepo.ListConversationMessages(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": kindStorageUnavailable})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// DeleteConversation removes a conversation and everything it owns.
// Participant membership plus an elevated role is required: a conversation is
// never one user's own content.
func (h *ConversationHandler) DeleteConversation(c *gin.Context) {
	conversationID, ok := paramInt(c, "conversation_id")
	if !ok {
		return
	}
	identity := identityOf(c)

	if _, err := h.conversationRepo.GetConversation(c.Request.Context(), conversationID); err != nil {
		conversationError(c, err)
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
	if !h.guard.CanDelete(identity, member, false) {
		observability.IncGateRejection(observability.GateGuard)
		emitAudit(c, h.audit, identity, http.StatusForbidden, "conversation delete denied")
		c.JSON(http.StatusForbidden, gin.H{"error": kindAuthorizationDenied})
		return
	}

	if err := h.messageStore.DeleteConversation(c.Request.Context(), conversationID); err != nil {
		conversationError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func conversationError(c *gin.Context, err error) {
	if errors.Is(err, repositories.ErrConversationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": kindNotFound})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": kindStorageUnavailable})
}
