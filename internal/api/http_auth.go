package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"velovis/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func (h *HTTPHandler) Register(c *gin.Context) {
	var req entity.AuthRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid registration payload")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.recovery.Register(ctx, req)
	if err != nil {
		ServiceError(c, err, "register")
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *HTTPHandler) Login(c *gin.Context) {
	var req entity.AuthLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid login payload")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	tokens, err := h.sessions.Login(ctx, req.Username, req.Password)
	if err != nil {
		logrus.WithError(err).WithField("username", req.Username).Debug("login attempt failed")
		ServiceError(c, err, "login")
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *HTTPHandler) Refresh(c *gin.Context) {
	var req entity.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		MissingField(c, "refresh_token")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	tokens, err := h.sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		ServiceError(c, err, "refresh")
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *HTTPHandler) Logout(c *gin.Context) {
	var req entity.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		MissingField(c, "refresh_token")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.sessions.Logout(ctx, req.RefreshToken); err != nil {
		ServiceError(c, err, "logout")
		return
	}
	c.JSON(http.StatusOK, entity.MessageResponse{Message: "logged out"})
}

func (h *HTTPHandler) LogoutAll(c *gin.Context) {
	caller := CurrentCaller(c)
	if caller == nil {
		Unauthorized(c, "unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.sessions.LogoutAll(ctx, caller.ID); err != nil {
		ServiceError(c, err, "logout-all")
		return
	}
	c.JSON(http.StatusOK, entity.MessageResponse{Message: "logged out from all devices"})
}

func (h *HTTPHandler) ChangePassword(c *gin.Context) {
	caller := CurrentCaller(c)
	if caller == nil {
		Unauthorized(c, "unauthorized")
		return
	}
	var req entity.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.recovery.ChangePassword(ctx, caller.ID, req.CurrentPassword, req.NewPassword); err != nil {
		ServiceError(c, err, "change-password")
		return
	}
	c.JSON(http.StatusOK, entity.MessageResponse{Message: "password changed, please log in again"})
}

func (h *HTTPHandler) ForgotPassword(c *gin.Context) {
	var req entity.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		MissingField(c, "email")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	message, err := h.recovery.ForgotPassword(ctx, req.Email)
	if err != nil {
		ServiceError(c, err, "forgot-password")
		return
	}
	c.JSON(http.StatusOK, entity.MessageResponse{Message: message})
}

func (h *HTTPHandler) ResetPassword(c *gin.Context) {
	var req entity.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.recovery.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		ServiceError(c, err, "reset-password")
		return
	}
	c.JSON(http.StatusOK, entity.MessageResponse{Message: "password has been reset"})
}

// Activate is opened from the activation email, so it answers with a redirect
// to the frontend login page instead of JSON.
func (h *HTTPHandler) Activate(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.recovery.Activate(ctx, token); err != nil {
		logrus.WithError(err).Info("account activation failed")
		c.Redirect(http.StatusFound, h.frontendURL+"/login?error=activation_failed")
		return
	}
	c.Redirect(http.StatusFound, h.frontendURL+"/login?activated=true")
}

func (h *HTTPHandler) Me(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	me, err := h.sessions.Me(ctx, CurrentCaller(c))
	if err != nil {
		ServiceError(c, err, "me")
		return
	}
	c.JSON(http.StatusOK, me)
}
