package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"velovis/internal/model"
	"velovis/internal/permission"
	"velovis/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HTTPHandler HTTP 请求处理器
type HTTPHandler struct {
	repo        model.Repository
	frontendURL string

	// 服务层
	sessions *service.SessionManager
	recovery *service.CredentialRecovery
	roles    *service.RoleService
}

// NewHTTPHandler 创建 HTTP 处理器实例
func NewHTTPHandler(repo model.Repository, sessions *service.SessionManager, recovery *service.CredentialRecovery, roles *service.RoleService, frontendURL string) *HTTPHandler {
	return &HTTPHandler{
		repo:        repo,
		frontendURL: strings.TrimRight(strings.TrimSpace(frontendURL), "/"),
		sessions:    sessions,
		recovery:    recovery,
		roles:       roles,
	}
}

// RegisterRoutes mounts the auth, role and user routes under /api.
func (h *HTTPHandler) RegisterRoutes(r gin.IRouter) {
	apiGroup := r.Group("/api")

	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.POST("/refresh", h.Refresh)
	authGroup.POST("/logout", h.Logout)
	authGroup.POST("/forgot-password", h.ForgotPassword)
	authGroup.POST("/reset-password", h.ResetPassword)
	authGroup.GET("/activate", h.Activate)
	authGroup.GET("/me", h.AuthMiddleware(), h.Me)
	authGroup.POST("/logout-all", h.AuthMiddleware(), h.LogoutAll)
	authGroup.PATCH("/change-password", h.AuthMiddleware(), h.ChangePassword)

	protected := apiGroup.Group("")
	protected.Use(h.AuthMiddleware())

	protected.GET("/permissions", h.RequirePermissions(permission.PermissionsRead, permission.RolesRead), h.ListPermissions)

	roleAdmin := protected.Group("/roles")
	roleAdmin.GET("", h.RequirePermissions(permission.RolesRead), h.ListRoles)
	roleAdmin.POST("", h.RequirePermissions(permission.RolesCreate), h.CreateRole)
	roleAdmin.PUT("/:id/permissions", h.RequirePermissions(permission.RolesUpdate), h.AssignRolePermissions)
	roleAdmin.DELETE("/:id", h.RequirePermissions(permission.RolesDelete), h.DeleteRole)

	userAdmin := protected.Group("/users")
	userAdmin.GET("", h.RequirePermissions(permission.UsersRead), h.ListUsers)
	userAdmin.GET("/:id", h.RequirePermissions(permission.UsersRead), h.GetUser)
	userAdmin.POST("/:id/roles", h.RequirePermissions(permission.UsersAssignRole), h.AssignUserRoles)
}

// Health reports process liveness and, when the repository supports it, database reachability.
func (h *HTTPHandler) Health(c *gin.Context) {
	pinger, ok := h.repo.(model.Pinger)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := pinger.Ping(ctx); err != nil {
		logrus.WithError(err).Warn("health check: database unreachable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "ok"})
}
