package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ActorIDKey is the gin context key carrying the resolved actor id.
const ActorIDKey = "actorID"

type ActorResolver interface {
	ResolveActor(ctx context.Context, token string) (uint32, error)
}

// RequireAuth resolves the bearer credential to an actor id and aborts with
// 401 when it cannot. Handlers downstream read the id with ActorID and pass
// it to services explicitly.
func RequireAuth(resolver ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		tokenStr := strings.TrimPrefix(auth, "Bearer ")
		if tokenStr == auth {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		actorID, err := resolver.ResolveActor(c.Request.Context(), tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ActorIDKey, actorID)
		c.Next()
	}
}

// ActorID returns the resolved actor id, or 0 when the request was not
// authenticated.
func ActorID(c *gin.Context) uint32 {
	v, ok := c.Get(ActorIDKey)
	if !ok {
		return 0
	}
	id, ok := v.(uint32)
	if !ok {
		return 0
	}
	return id
}
