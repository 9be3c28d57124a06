package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/nimbushost/provisioner/pkg/config"
	"github.com/nimbushost/provisioner/pkg/types"
)

func authTestRouter(cfg *config.Config) (*gin.Engine, *types.Actor) {
	gin.SetMode(gin.TestMode)
	seen := &types.Actor{}
	r := gin.New()
	r.Use(AuthMiddleware(cfg))
	r.GET("/me", func(c *gin.Context) {
		*seen = ActorFrom(c)
		c.Status(http.StatusOK)
	})
	r.GET("/admin", RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r, seen
}

func signToken(t *testing.T, secret, sub string, admin bool) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, authClaims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: "s3cret"}}
	r, seen := authTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "s3cret", "user-1", false))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "user-1", seen.UserID)
	require.False(t, seen.Admin)
}

func TestAuthMiddleware_RejectsBadTokens(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: "s3cret"}}
	r, _ := authTestRouter(cfg)

	cases := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"garbage", "Bearer not.a.jwt"},
		{"wrong secret", "Bearer " + signToken(t, "other", "user-1", false)},
		{"no subject", "Bearer " + signToken(t, "s3cret", "", false)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			require.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestAuthMiddleware_HeaderFallbackWithoutSecret(t *testing.T) {
	r, seen := authTestRouter(&config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-ID", "user-7")
	req.Header.Set("X-Admin", "true")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "user-7", seen.UserID)
	require.True(t, seen.Admin)
}

func TestRequireAdmin(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: "s3cret"}}
	r, _ := authTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "s3cret", "user-1", false))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "s3cret", "root", true))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}
