package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"velovis/internal/permission"
	"velovis/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	currentCallerContextKey = "current-caller"
)

// AuthMiddleware JWT 认证中间件，解析访问令牌并加载当前权限
func (h *HTTPHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{
				Code:    ErrCodeUnauthorized,
				Message: "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{
				Code:    ErrCodeUnauthorized,
				Message: "invalid authorization header format",
			})
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{
				Code:    ErrCodeUnauthorized,
				Message: "missing bearer token",
			})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		caller, err := h.sessions.Authenticate(ctx, tokenString)
		if err != nil {
			switch service.KindOf(err) {
			case service.KindUnauthorized:
				logrus.WithError(err).Debug("rejected access token")
				c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{
					Code:    ErrCodeSessionExpired,
					Message: "token is invalid or expired",
				})
			case service.KindForbidden:
				c.AbortWithStatusJSON(http.StatusForbidden, APIError{
					Code:    ErrCodeForbidden,
					Message: "account is not active",
				})
			default:
				logrus.WithError(err).Error("failed to authenticate request")
				c.AbortWithStatusJSON(http.StatusInternalServerError, APIError{
					Code:    ErrCodeInternalError,
					Message: "failed to authenticate",
				})
			}
			return
		}

		c.Set(currentCallerContextKey, caller)
		c.Next()
	}
}

// RequirePermissions 权限守卫，调用方至少持有 keys 中的一个
func (h *HTTPHandler) RequirePermissions(keys ...permission.Key) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := permission.Require(CurrentCaller(c), keys...); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, APIError{
				Code:    ErrCodeInsufficientPermission,
				Message: "insufficient permission",
			})
			return
		}
		c.Next()
	}
}

// CurrentCaller 从上下文获取当前认证用户
func CurrentCaller(c *gin.Context) *permission.Caller {
	value, exists := c.Get(currentCallerContextKey)
	if !exists {
		return nil
	}
	caller, ok := value.(*permission.Caller)
	if !ok {
		return nil
	}
	return caller
}
