package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/auth"
	"messaging-service/internal/models"
)

// IdentityContextKey is the gin context key carrying the resolved identity.
const IdentityContextKey = "identity"

// TokenVerifier validates a bearer token and yields the embedded user id.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// UserLoader fetches the account behind a verified token.
type UserLoader interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
}

// IdentityMiddleware resolves the Authorization header into an Identity.
// Resolution failure is not an error: the request continues as anonymous and
// the access guard decides what anonymous is allowed to do.
func IdentityMiddleware(verifier TokenVerifier, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(IdentityContextKey, resolveIdentity(c, verifier, users))
		c.Next()
	}
}

func resolveIdentity(c *gin.Context, verifier TokenVerifier, users UserLoader) auth.Identity {
	header := c.GetHeader("Authorization")
	if header == "" && c.Query("token") != "" {
		// Websocket clients cannot set headers; accept a token query param.
		header = "Bearer " + c.Query("token")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return auth.AnonymousIdentity()
	}

	claims, err := verifier.VerifyToken(parts[1])
	if err != nil {
		return auth.AnonymousIdentity()
	}

	user, err := users.GetUser(c.Request.Context(), claims.UserID)
	if err != nil {
		return auth.AnonymousIdentity()
	}
	return auth.Resolved(user)
}

// IdentityFromContext returns the resolved identity, anonymous when missing.
func IdentityFromContext(c *gin.Context) auth.Identity {
	if val, ok := c.Get(IdentityContextKey); ok {
		if id, ok := val.(auth.Identity); ok {
			return id
		}
	}
	return auth.AnonymousIdentity()
}
