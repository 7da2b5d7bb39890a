package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/friendchat-service/internal/models"
	"github.com/yourusername/friendchat-service/internal/repository"
	"github.com/yourusername/friendchat-service/internal/services"
	"github.com/yourusername/friendchat-service/internal/store"
)

func setupRouter(t *testing.T) (*gin.Engine, *services.JWTVerifier, *repository.UserRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := repository.NewUserRepository(store.NewMemoryStore())
	verifier := services.NewJWTVerifier("secret")

	router := gin.New()
	router.Use(AuthMiddleware(verifier, services.NewDirectoryService(users)))
	router.GET("/me", func(c *gin.Context) {
		identity, _ := c.Get("identity")
		c.JSON(http.StatusOK, gin.H{"userID": c.GetString("userID"), "name": identity.(models.Identity).DisplayName})
	})
	return router, verifier, users
}

func get(router *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	router, verifier, users := setupRouter(t)
	token, err := verifier.Issue(models.Identity{ID: "u1", Username: "ana", DisplayName: "Ana"}, time.Hour)
	require.NoError(t, err)

	w := get(router, "/me", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userID":"u1","name":"Ana"}`, w.Body.String())

	user, err := users.GetUserByID(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "ana", user.Username)

	w = get(router, "/me?token="+token, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	router, verifier, _ := setupRouter(t)
	expired, err := verifier.Issue(models.Identity{ID: "u1"}, -time.Minute)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":   "",
		"malformed": "Bearer",
		"scheme":    "Basic abc",
		"invalid":   "Bearer not-a-token",
		"expired":   "Bearer " + expired,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, get(router, "/me", header).Code)
		})
	}
}
