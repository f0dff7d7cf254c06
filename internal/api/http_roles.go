package api

import (
	"context"
	"net/http"
	"time"

	"velovis/internal/entity"

	"github.com/gin-gonic/gin"
)

func (h *HTTPHandler) ListPermissions(c *gin.Context) {
	c.JSON(http.StatusOK, h.roles.ListPermissions())
}

func (h *HTTPHandler) ListRoles(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	roles, err := h.roles.ListRoles(ctx)
	if err != nil {
		ServiceError(c, err, "list-roles")
		return
	}
	c.JSON(http.StatusOK, gin.H{"roles": roles})
}

func (h *HTTPHandler) CreateRole(c *gin.Context) {
	var req entity.RoleCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		MissingField(c, "name")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	role, err := h.roles.CreateRole(ctx, req.Name)
	if err != nil {
		ServiceError(c, err, "create-role")
		return
	}
	c.JSON(http.StatusCreated, role)
}

// AssignRolePermissions 替换角色的权限集合
func (h *HTTPHandler) AssignRolePermissions(c *gin.Context) {
	var req entity.AssignPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	role, err := h.roles.AssignPermissions(ctx, c.Param("id"), req.PermissionKeys)
	if err != nil {
		ServiceError(c, err, "assign-permissions")
		return
	}
	c.JSON(http.StatusOK, role)
}

func (h *HTTPHandler) DeleteRole(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.roles.DeleteRole(ctx, c.Param("id")); err != nil {
		ServiceError(c, err, "delete-role")
		return
	}
	c.Status(http.StatusNoContent)
}
