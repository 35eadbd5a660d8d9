package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messaging-service/internal/auth"
	"messaging-service/internal/middleware"
	"messaging-service/internal/telemetry"
)

const requestIDContextKey = "request_id"

// Stable error kinds carried in rejection bodies so clients can distinguish
// "try later" from "not allowed" from "rejected content".
const (
	kindAuthorizationDenied = "authorization_denied"
	kindValidationFailed    = "validation_failed"
	kindRateLimitExceeded   = "rate_limit_exceeded"
	kindModerationRejected  = "moderation_rejected"
	kindStorageUnavailable  = "storage_unavailable"
	kindNotFound            = "not_found"
)

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func paramInt(c *gin.Context, name string) (int, bool) {
	value, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": kindValidationFailed, "detail": "invalid " + name})
		return 0, false
	}
	return value, true
}

func emitAudit(c *gin.Context, emitter *telemetry.AuditEmitter, identity auth.Identity, status int, detail string) {
	emitter.Emit(c.Request.Context(), requestIDFromContext(c), identity.Label(),
		c.Request.Method, c.Request.URL.Path, status, detail)
}

func identityOf(c *gin.Context) auth.Identity {
	return middleware.IdentityFromContext(c)
}
