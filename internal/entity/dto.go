package entity

import "time"

type AuthRegisterRequest struct {
	Username    string `json:"username" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

type AuthLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest carries a refresh token for /refresh and /logout.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// AuthTokens is the access/refresh pair handed out by login and refresh.
type AuthTokens struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// MessageResponse 通用消息响应
type MessageResponse struct {
	Message string `json:"message"`
}

// MeResponse is the authenticated caller with the resolved permission set.
type MeResponse struct {
	UserSummary
	Permissions []string `json:"permissions"`
}

type RoleCreateRequest struct {
	Name string `json:"name" binding:"required"`
}

type AssignPermissionsRequest struct {
	PermissionKeys []string `json:"permission_keys"`
}

type AssignRolesRequest struct {
	RoleIDs []string `json:"role_ids"`
}

type PermissionListResponse struct {
	Permissions []string            `json:"permissions"`
	Categories  map[string][]string `json:"categories"`
}
