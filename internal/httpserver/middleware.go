package httpserver

import (
	"net/http"
	"strings"
	"time"

	"campusrunner/internal/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"

	actorKey = "actor"
)

// identityMiddleware trusts the identity headers set by the fronting gateway.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerUserID))
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "message": headerUserID + " header required"})
			return
		}
		rawRole := c.GetHeader(headerUserRole)
		if strings.TrimSpace(rawRole) == "" {
			rawRole = string(domain.RoleRequester)
		}
		role, ok := domain.ParseRole(rawRole)
		if !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_role", "message": "unknown role " + rawRole})
			return
		}
		c.Set(actorKey, domain.User{ID: id, Role: role})
		c.Next()
	}
}

func requireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := actorFrom(c)
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "role " + string(actor.Role) + " may not use this endpoint"})
	}
}

func actorFrom(c *gin.Context) domain.User {
	v, _ := c.Get(actorKey)
	u, _ := v.(domain.User)
	return u
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if actor := actorFrom(c); actor.ID != "" {
			fields = append(fields, zap.String("actor_id", actor.ID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("http request", fields...)
		default:
			logger.Info("http request", fields...)
		}
	}
}
