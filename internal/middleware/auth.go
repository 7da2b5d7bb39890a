package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/friendchat-service/internal/services"
	"github.com/yourusername/friendchat-service/pkg/logger"
)

// AuthMiddleware validates the bearer token, records the caller in the
// directory and stores the user ID in the context. Websocket clients may pass
// the token as the "token" query parameter instead.
func AuthMiddleware(verifier services.IdentityVerifier, directory *services.DirectoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		// Validate token and get identity
		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		if _, err := directory.RecordIdentity(c.Request.Context(), identity.Identity); err != nil {
			logger.Log.WithError(err).WithField("user_id", identity.ID).Warn("Failed to record identity")
		}

		// Store user ID in context for use in handlers
		c.Set("userID", identity.ID)
		c.Set("identity", identity.Identity)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		token := c.Query("token")
		return token, token != ""
	}

	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
