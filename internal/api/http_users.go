package api

import (
	"context"
	"net/http"
	"time"

	"velovis/internal/entity"

	"github.com/gin-gonic/gin"
)

// ListUsers 列出所有用户及其角色
func (h *HTTPHandler) ListUsers(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	users, err := h.roles.ListUsers(ctx)
	if err != nil {
		ServiceError(c, err, "list-users")
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *HTTPHandler) GetUser(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.roles.GetUser(ctx, c.Param("id"))
	if err != nil {
		ServiceError(c, err, "get-user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// AssignUserRoles 替换用户的角色
func (h *HTTPHandler) AssignUserRoles(c *gin.Context) {
	var req entity.AssignRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.roles.AssignRoles(ctx, c.Param("id"), req.RoleIDs)
	if err != nil {
		ServiceError(c, err, "assign-roles")
		return
	}
	c.JSON(http.StatusOK, user)
}
