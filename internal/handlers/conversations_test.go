package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/auth"
	"messaging-service/internal/guard"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

type conversationHandlerDeps struct {
	conversationRepo *mocks.ConversationRepositoryMock
	messageRepo      *mocks.MessageRepositoryMock
	messageStore     *mocks.MessageStoreMock
}

func newConversationHandler(g *guard.Guard) (*ConversationHandler, conversationHandlerDeps) {
	deps := conversationHandlerDeps{
		conversationRepo: new(mocks.ConversationRepositoryMock),
		messageRepo:      new(mocks.MessageRepositoryMock),
		messageStore:     new(mocks.MessageStoreMock),
	}
	h := NewConversationHandler(deps.conversationRepo, deps.messageRepo, deps.messageStore, g, nil)
	return h, deps
}

func TestCreateConversationAddsCreator(t *testing.T) {
	h, deps := newConversationHandler(alwaysOpen())
	creator := auth.Resolved(models.User{ID: 7, Username: "alice", Role: models.RoleMember})

	deps.conversationRepo.On("CreateConversation", mock.Anything, []int{8, 9, 7}).
		Return(models.Conversation{ID: 5}, nil)

	router := identityRouter(creator, func(r *gin.Engine) {
		r.POST("/conversations", h.CreateConversation)
	})
	w := performJSON(router, http.MethodPost, "/conversations", gin.H{"participant_ids": []int{8, 9}})

	require.Equal(t, http.StatusCreated, w.Code)
	var conv models.Conversation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conv))
	assert.Equal(t, 5, conv.ID)
	deps.conversationRepo.AssertExpectations(t)
}

func TestCreateConversationCreatorAlreadyListed(t *testing.T) {
	h, deps := newConversationHandler(alwaysOpen())
	creator := auth.Resolved(models.User{ID: 7, Username: "alice", Role: models.RoleMember})

	deps.conversationRepo.On("CreateConversation", mock.Anything, []int{7, 8}).
		Return(models.Conversation{ID: 5}, nil)

	router := identityRouter(creator, func(r *gin.Engine) {
		r.POST("/conversations", h.CreateConversation)
	})
	w := performJSON(router, http.MethodPost, "/conversations", gin.H{"participant_ids": []int{7, 8}})

	assert.Equal(t, http.StatusCreated, w.Code)
	deps.conversationRepo.AssertExpectations(t)
}

func TestCreateConversationAnonymousDenied(t *testing.T) {
	h, deps := newConversationHandler(alwaysOpen())

	router := identityRouter(auth.AnonymousIdentity(), func(r *gin.Engine) {
		r.POST("/conversations", h.CreateConversation)
	})
	w := performJSON(router, http.MethodPost, "/conversations", gin.H{"participant_ids": []int{8}})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "authorization_denied", errorKind(t, w))
	deps.conversationRepo.AssertNotCalled(t, "CreateConversation", mock.Anything, mock.Anything)
}

func TestListMessagesForParticipant(t *testing.T) {
	h, deps := newConversationHandler(alwaysOpen())
	member := auth.Resolved(models.User{ID: 7, Username: "alice", Role: models.RoleMember})

	deps.conversationRepo.On("GetConversation", mock.Anything, 1).Return(models.Conversation{ID: 1}, nil)
	deps.conversationRepo.On("IsParticipant", mock.Anything, 1, 7).Return(true, nil)
	deps.messageRepo.On("ListConversationMessages", mock.Anything, 1).Return([]models.Message{
		{ID: 1, ConversationID: 1, SenderID: 7, Body: "first"},
		{ID: 2, ConversationID: 1, SenderID: 8, Body: "second"},
	}, nil)

	router := identityRouter(member, func(r *gin.Engine) {
		r.GET("/conversations/:conversation_id/messages", h.ListMessages)
	})
	w := performJSON(router, http.MethodGet, "/conversations/1/messages", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "first", body.Messages[0].Body)
}

func TestListMessagesEmptyTimelineIsAnArray(t *testing.T) {
	h, deps := newConversationHandler(alwaysOpen())
	member := auth.Resolved(models.User{ID: 7, Username: "alice", Role: models.RoleMember})

	deps.conversationRepo.On("GetConversation", mock.Anything, 1).Return(models.Conversation{ID: 1}, nil)
	deps.conversationRepo.On("IsParticipant", mock.Anything, 1, 7).Return(true, nil)
	deps.messageRepo.On("ListConversationMessages", mock.Anything, 1).Return(nil, nil)

	router := identityRouter(member, func(r *gin.Engine) {
		r.GET("/conversations/:conversation_id/messages", h.ListMessages)
	})
	w := performJSON(router, http.MethodGet, "/conversations/1/messages", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages": []}`, w.Body.String())
}

func TestListMessagesNonParticipantDenied(t *testing.T) {
	h, deps := newConversationHandler(alwaysOpen())
	outsider := auth.Resolved(models.User{ID: 9, Username: "eve", Role: models.RoleMember})

	deps.conversationRepo.On("GetConversation", mock.Anything, 1).Return(models.Conversation{ID: 1}, nil)
	deps.conversationRepo.On("IsParticipant", mock.Anything, 1, 9).Return(false, nil)

	router := identityRouter(outsider, func(r *gin.Engine) {
		r.GET("/conversations/:conversation_id/messages", h.ListMessages)
	})
	w := performJSON(router, http.MethodGet, "/conversations/1/messages", nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "authorization_denied", errorKind(t, w))
}

func TestListMessagesWrappedNotFoundError(t *testing.T) {
	h, deps := newConversationHandler(alwaysOpen())
	member := auth.Resolved(models.User{ID: 7, Username: "alice", Role: models.RoleMember})

	deps.conversationRepo.On("GetConversation", mock.Anything, 404).
		Return(nil, fmt.Errorf("lookup conversation: %w", repositories.ErrConversationNotFound))

	router := identityRouter(member, func(r *gin.Engine) {
		r.GET("/conversations/:conversation_id/messages", h.ListMessages)
	})
	w := performJSON(router, http.MethodGet, "/conversations/404/messages", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorKind(t, w))
}

func TestListMessagesUnknownConversation(t *testing.T) {
	h, deps := newConversationHandler(alwaysOpen())
	member := auth.Resolved(models.User{ID: 7, Username: "alice", Role: models.RoleMember})

	deps.conversationRepo.On("GetConversation", mock.Anything, 404).
		Return(nil, repositories.ErrConversationNotFound)

	router := identityRouter(member, func(r *gin.Engine) {
		r.GET("/conversations/:conversation_id/messages", h.ListMessages)
	})
	w := performJSON(router, http.MethodGet, "/conversations/404/messages", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorKind(t, w))
}

func TestDeleteConversationRequiresElevatedRole(t *testing.T) {
	h, deps := newConversationHandler(alwaysOpen())

	deps.conversationRepo.On("GetConversation", mock.Anything, 1).Return(models.Conversation{ID: 1}, nil)
	deps.conversationRepo.On("IsParticipant", mock.Anything, 1, mock.Anything).Return(true, nil)

	member := auth.Resolved(models.User{ID: 7, Username: "alice", Role: models.RoleMember})
	router := identityRouter(member, func(r *gin.Engine) {
		r.DELETE("/conversations/:conversation_id", h.DeleteConversation)
	})
	w := performJSON(router, http.MethodDelete, "/conversations/1", nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "authorization_denied", errorKind(t, w))
	deps.messageStore.AssertNotCalled(t, "DeleteConversation", mock.Anything, mock.Anything)

	deps.messageStore.On("DeleteConversation", mock.Anything, 1).Return(nil)
	admin := auth.Resolved(models.User{ID: 8, Username: "root", Role: models.RoleAdmin})
	router = identityRouter(admin, func(r *gin.Engine) {
		r.DELETE("/conversations/:conversation_id", h.DeleteConversation)
	})
	w = performJSON(router, http.MethodDelete, "/conversations/1", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	deps.messageStore.AssertExpectations(t)
}
