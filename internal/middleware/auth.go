package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fanradar/internal/pkg"
	"fanradar/internal/service"
)

const ContextUserIDKey = "user_id"

// TokenVerifier 校验 access token 并返回用户 id，凭证无效或已在别处登录时返回 service.ErrUnauthenticated
type TokenVerifier interface {
	Authenticate(ctx context.Context, token string) (uint64, error)
}

func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			abort(c, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		userID, err := verifier.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			if errors.Is(err, service.ErrUnauthenticated) {
				abort(c, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			pkg.Logger.Error("authenticate", zap.Error(err))
			abort(c, http.StatusInternalServerError, "internal error")
			return
		}

		// 注入 user_id
		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg})
}
