package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/nimbushost/provisioner/pkg/config"
	"github.com/nimbushost/provisioner/pkg/response"
	"github.com/nimbushost/provisioner/pkg/types"
)

const actorKey = "actor"

// setActor stores the resolved caller and folds user_id into the
// request-scoped logger attached by RequestLoggerMiddleware.
func setActor(c *gin.Context, actor types.Actor) {
	c.Set(actorKey, actor)
	if actor.UserID == "" {
		return
	}
	if l, ok := c.Get("logger"); ok {
		if lg, ok := l.(*zap.SugaredLogger); ok && lg != nil {
			enriched := lg.With("user_id", actor.UserID)
			c.Set("logger", enriched)
			ctx := context.WithValue(c.Request.Context(), "logger", enriched)
			c.Request = c.Request.WithContext(ctx)
		}
	}
}

type authClaims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

// AuthMiddleware resolves the caller into a types.Actor from a bearer token
// issued by the identity collaborator. With no jwt_secret configured the
// gateway in front is trusted and identity comes from forwarded headers.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Auth.JWTSecret == "" {
			setActor(c, types.Actor{
				UserID: c.GetHeader("X-User-ID"),
				Admin:  c.GetHeader("X-Admin") == "true",
			})
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Failure{Error: "missing bearer token"})
			return
		}

		claims := &authClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(cfg.Auth.JWTSecret), nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Failure{Error: "invalid token"})
			return
		}

		setActor(c, types.Actor{UserID: claims.Subject, Admin: claims.Admin})
		c.Next()
	}
}

// ActorFrom returns the resolved caller, zero-valued when unauthenticated.
func ActorFrom(c *gin.Context) types.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(types.Actor); ok {
			return actor
		}
	}
	return types.Actor{}
}

// RequireAdmin rejects non-admin callers before the handler runs.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ActorFrom(c).Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Failure{Error: "administrative privilege required"})
			return
		}
		c.Next()
	}
}
