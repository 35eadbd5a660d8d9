package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/auth"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

type userHandlerDeps struct {
	messageRepo      *mocks.MessageRepositoryMock
	notificationRepo *mocks.NotificationRepositoryMock
	messageStore     *mocks.MessageStoreMock
}

func newUserHandler() (*UserHandler, userHandlerDeps) {
	deps := userHandlerDeps{
		messageRepo:      new(mocks.MessageRepositoryMock),
		notificationRepo: new(mocks.NotificationRepositoryMock),
		messageStore:     new(mocks.MessageStoreMock),
	}
	h := NewUserHandler(deps.messageRepo, deps.notificationRepo, deps.messageStore, nil)
	return h, deps
}

func TestGetUnreadSelf(t *testing.T) {
	h, deps := newUserHandler()
	user := auth.Resolved(models.User{ID: 7, Username: "alice", Role: models.RoleMember})

	deps.messageRepo.On("UnreadForUser", mock.Anything, 7).Return([]models.UnreadMessage{
		{ID: 3, SenderUsername: "bob", Body: "newest", CreatedAt: time.Now()},
		{ID: 2, SenderUsername: "bob", Body: "older", CreatedAt: time.Now().Add(-time.Hour)},
	}, nil)

	router := identityRouter(user, func(r *gin.Engine) {
		r.GET("/users/:user_id/unread", h.GetUnread)
	})
	w := performJSON(router, http.MethodGet, "/users/7/unread", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Messages []models.UnreadMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "newest", body.Messages[0].Body)
	assert.Equal(t, "bob", body.Messages[0].SenderUsername)
}

func TestGetUnreadOtherUserDenied(t *testing.T) {
	h, deps := newUserHandler()
	user := auth.Resolved(models.User{ID: 7, Username: "alice", Role: models.RoleAdmin})

	router := identityRouter(user, func(r *gin.Engine) {
		r.GET("/users/:user_id/unread", h.GetUnread)
	})
	w := performJSON(router, http.MethodGet, "/users/8/unread", nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "authorization_denied", errorKind(t, w))
	deps.messageRepo.AssertNotCalled(t, "UnreadForUser", mock.Anything, mock.Anything)
}

func TestGetUnreadEmptyIsAnArray(t *testing.T) {
	h, deps := newUserHandler()
	user := auth.Resolved(models.User{ID: 7, Username: "alice", Role: models.RoleMember})

	deps.messageRepo.On("UnreadForUser", mock.Anything, 7).Return(nil, nil)

	router := identityRouter(user, func(r *gin.Engine) {
		r.GET("/users/:user_id/unread", h.GetUnread)
	})
	w := performJSON(router, http.MethodGet, "/users/7/unread", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages": []}`, w.Body.String())
}

func TestGetNotificationsSelf(t *testing.T) {
	h, deps := newUserHandler()
	user := auth.Resolved(models.User{ID: 7, Username: "alice", Role: models.RoleMember})

	deps.notificationRepo.On("ListForUser", mock.Anything, 7).Return([]models.Notification{
		{ID: 2, UserID: 7, MessageID: 42},
		{ID: 1, UserID: 7, MessageID: 41, Read: true},
	}, nil)

	router := identityRouter(user, func(r *gin.Engine) {
		r.GET("/users/:user_id/notifications", h.GetNotifications)
	})
	w := performJSON(router, http.MethodGet, "/users/7/notifications", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Notifications []models.Notification `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Notifications, 2)
	assert.Equal(t, 42, body.Notifications[0].MessageID)
}

func TestMarkNotificationReadOwner(t *testing.T) {
	h, deps := newUserHandler()
	user := auth.Resolved(models.User{ID: 7, Username: "alice", Role: models.RoleMember})

	deps.notificationRepo.On("GetNotification", mock.Anything, 3).
		Return(models.Notification{ID: 3, UserID: 7, MessageID: 42}, nil)
	deps.messageStore.On("MarkNotificationRead", mock.Anything, 3).Return(nil)

	router := identityRouter(user, func(r *gin.Engine) {
		r.POST("/notifications/:notification_id/read", h.MarkNotificationRead)
	})
	w := performJSON(router, http.MethodPost, "/notifications/3/read", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	deps.messageStore.AssertExpectations(t)
}

func TestMarkNotificationReadNotOwnerDenied(t *testing.T) {
	h, deps := newUserHandler()
	user := auth.Resolved(models.User{ID: 8, Username: "bob", Role: models.RoleMember})

	deps.notificationRepo.On("GetNotification", mock.Anything, 3).
		Return(models.Notification{ID: 3, UserID: 7, MessageID: 42}, nil)

	router := identityRouter(user, func(r *gin.Engine) {
		r.POST("/notifications/:notification_id/read", h.MarkNotificationRead)
	})
	w := performJSON(router, http.MethodPost, "/notifications/3/read", nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "authorization_denied", errorKind(t, w))
	deps.messageStore.AssertNotCalled(t, "MarkNotificationRead", mock.Anything, mock.Anything)
}

func TestMarkNotificationReadUnknown(t *testing.T) {
	h, deps := newUserHandler()
	user := auth.Resolved(models.User{ID: 7, Username: "alice", Role: models.RoleMember})

	deps.notificationRepo.On("GetNotification", mock.Anything, 404).
		Return(nil, repositories.ErrNotificationNotFound)

	router := identityRouter(user, func(r *gin.Engine) {
		r.POST("/notifications/:notification_id/read", h.MarkNotificationRead)
	})
	w := performJSON(router, http.MethodPost, "/notifications/404/read", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorKind(t, w))
}

func TestDeleteUserSelf(t *testing.T) {
	h, deps := newUserHandler()
	user := auth.Resolved(models.User{ID: 7, Username: "alice", Role: models.RoleMember})

	deps.messageStore.On("DeleteUser", mock.Anything, 7).Return(nil)

	router := identityRouter(user, func(r *gin.Engine) {
		r.DELETE("/users/:user_id", h.DeleteUser)
	})
	w := performJSON(router, http.MethodDelete, "/users/7", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	deps.messageStore.AssertExpectations(t)
}

func TestDeleteUserByElevatedRole(t *testing.T) {
	h, deps := newUserHandler()
	admin := auth.Resolved(models.User{ID: 1, Username: "root", Role: models.RoleAdmin})

	deps.messageStore.On("DeleteUser", mock.Anything, 7).Return(nil)

	router := identityRouter(admin, func(r *gin.Engine) {
		r.DELETE("/users/:user_id", h.DeleteUser)
	})
	w := performJSON(router, http.MethodDelete, "/users/7", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDeleteUserOtherMemberDenied(t *testing.T) {
	h, deps := newUserHandler()
	user := auth.Resolved(models.User{ID: 8, Username: "bob", Role: models.RoleMember})

	router := identityRouter(user, func(r *gin.Engine) {
		r.DELETE("/users/:user_id", h.DeleteUser)
	})
	w := performJSON(router, http.MethodDelete, "/users/7", nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "authorization_denied", errorKind(t, w))
	deps.messageStore.AssertNotCalled(t, "DeleteUser", mock.Anything, mock.Anything)
}

func TestDeleteUserIdempotentCascadeUnknownUser(t *testing.T) {
	h, deps := newUserHandler()
	admin := auth.Resolved(models.User{ID: 1, Username: "root", Role: models.RoleAdmin})

	deps.messageStore.On("DeleteUser", mock.Anything, 404).Return(repositories.ErrUserNotFound)

	router := identityRouter(admin, func(r *gin.Engine) {
		r.DELETE("/users/:user_id", h.DeleteUser)
	})
	w := performJSON(router, http.MethodDelete, "/users/404", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorKind(t, w))
}
