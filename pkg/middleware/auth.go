package middleware

import (
	"strings"

	"taskora/pkg/errutil"
	"taskora/pkg/identity"
	"taskora/pkg/jwt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const identityKey = "taskora.identity"

// Auth validates the bearer access token and stores the caller identity on the gin context.
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWith(c, errutil.Unauthorized("missing Authorization header", nil))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWith(c, errutil.Unauthorized("malformed Authorization header", nil))
			return
		}

		claims, err := jwt.ParseToken(secret, jwt.TokenTypeAccess, strings.TrimSpace(parts[1]))
		if err != nil {
			zap.L().Debug("rejected access token", zap.Error(err))
			abortWith(c, errutil.Unauthorized("invalid access token", err))
			return
		}

		c.Set(identityKey, identity.Identity{
			UserID:     claims.UserID,
			IsReviewer: claims.IsReviewer,
		})
		c.Next()
	}
}

// Identity returns the caller set by Auth, or identity.Anonymous.
func Identity(c *gin.Context) identity.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return identity.Anonymous
	}
	id, ok := v.(identity.Identity)
	if !ok {
		return identity.Anonymous
	}
	return id
}
