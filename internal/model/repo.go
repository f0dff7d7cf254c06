package model

import (
	"context"
	"time"

	"velovis/internal/entity"
)

// Repository 定义数据库操作接口
type Repository interface {
	// Transaction runs fn against a repository bound to one database
	// transaction. fn must only use the repository it is given.
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	// 用户管理
	CreateUser(ctx context.Context, user *entity.DbUser) error
	UpdateUser(ctx context.Context, id string, updates entity.UserUpdates) error
	GetUserByID(ctx context.Context, id string) (*entity.DbUser, error)
	GetUserByUsername(ctx context.Context, username string) (*entity.DbUser, error)
	GetUserByEmail(ctx context.Context, email string) (*entity.DbUser, error)
	ListUsers(ctx context.Context) ([]entity.DbUser, error)
	CountUsers(ctx context.Context) (int64, error)

	// 角色与权限
	CreateRole(ctx context.Context, role *entity.DbRole) error
	GetRoleByID(ctx context.Context, id string) (*entity.DbRole, error)
	GetRoleByName(ctx context.Context, name string) (*entity.DbRole, error)
	ListRoles(ctx context.Context) ([]entity.DbRole, error)
	FindRolesByIDs(ctx context.Context, ids []string) ([]entity.DbRole, error)
	DeleteRole(ctx context.Context, id string) error
	ReplaceRolePermissions(ctx context.Context, roleID string, keys []string) error

	// 用户角色
	ListUserRoles(ctx context.Context, userID string) ([]entity.DbRole, error)
	ListRoleNamesByUser(ctx context.Context, userIDs []string) (map[string][]string, error)
	AddUserRole(ctx context.Context, userID, roleID string) error
	ReplaceUserRoles(ctx context.Context, userID string, roleIDs []string) error

	// 刷新令牌
	CreateRefreshToken(ctx context.Context, token *entity.DbRefreshToken) error
	ListActiveRefreshTokens(ctx context.Context, userID string) ([]entity.DbRefreshToken, error)
	InvalidateRefreshToken(ctx context.Context, id string, at time.Time) (bool, error)
	InvalidateUserRefreshTokens(ctx context.Context, userID string, at time.Time) (int64, error)

	// 密码重置令牌
	CreatePasswordResetToken(ctx context.Context, token *entity.DbPasswordResetToken) error
	GetPasswordResetTokenByHash(ctx context.Context, hash string) (*entity.DbPasswordResetToken, error)
	DeletePasswordResetToken(ctx context.Context, id string) error
	DeleteUserPasswordResetTokens(ctx context.Context, userID string) (int64, error)
}
