package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"velovis/internal/auth"
	"velovis/internal/config"
	"velovis/internal/entity"
	"velovis/internal/permission"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultUserPermissions are granted to the USER role on first seed.
var DefaultUserPermissions = []permission.Key{
	permission.CommentsCreate,
	permission.CommentsUpdateOwn,
	permission.CommentsDeleteOwn,
	permission.CartsReadOwn,
	permission.CartsUpdateOwn,
	permission.OrdersCreateOwn,
	permission.OrdersReadOwn,
}

// SeedDefaults makes sure the system roles exist and optionally creates the
// first administrator. ADMIN is resynchronised to the full catalog on every
// boot; USER is only populated when it is first created so that operator
// changes survive restarts.
func SeedDefaults(ctx context.Context, repo Repository, cfg config.Config) error {
	if repo == nil {
		return nil
	}

	adminRole, err := ensureRole(ctx, repo, entity.RoleAdmin, keysToStrings(permission.All()), true)
	if err != nil {
		return err
	}
	if _, err := ensureRole(ctx, repo, entity.RoleUser, keysToStrings(DefaultUserPermissions), false); err != nil {
		return err
	}

	return seedAdminUser(ctx, repo, cfg, adminRole)
}

func ensureRole(ctx context.Context, repo Repository, name string, keys []string, sync bool) (*entity.DbRole, error) {
	role, err := repo.GetRoleByName(ctx, name)
	switch {
	case err == nil:
		if sync {
			if err := repo.ReplaceRolePermissions(ctx, role.ID, keys); err != nil {
				return nil, fmt.Errorf("sync role %s: %w", name, err)
			}
		}
		return role, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		role = &entity.DbRole{Name: name}
		for _, k := range keys {
			role.Permissions = append(role.Permissions, entity.DbRolePermission{PermissionKey: k})
		}
		if err := repo.CreateRole(ctx, role); err != nil {
			return nil, fmt.Errorf("create role %s: %w", name, err)
		}
		logrus.WithField("role", name).WithField("permissions", len(keys)).Info("seeded role")
		return role, nil
	default:
		return nil, err
	}
}

func seedAdminUser(ctx context.Context, repo Repository, cfg config.Config, adminRole *entity.DbRole) error {
	username := strings.TrimSpace(cfg.SeedAdminUsername)
	email := strings.ToLower(strings.TrimSpace(cfg.SeedAdminEmail))
	if username == "" || email == "" || cfg.SeedAdminPassword == "" {
		return nil
	}

	if _, err := repo.GetUserByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := auth.HashPasswordWithCost(cfg.SeedAdminPassword, cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash seed admin password: %w", err)
	}

	return repo.Transaction(ctx, func(tx Repository) error {
		user := &entity.DbUser{
			Username:     username,
			Email:        email,
			PasswordHash: hash,
			DisplayName:  username,
			IsActive:     true,
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("create seed admin: %w", err)
		}
		if err := tx.AddUserRole(ctx, user.ID, adminRole.ID); err != nil {
			return err
		}
		if userRole, err := tx.GetRoleByName(ctx, entity.RoleUser); err == nil {
			if err := tx.AddUserRole(ctx, user.ID, userRole.ID); err != nil {
				return err
			}
		}
		logrus.WithField("username", username).Info("seeded admin user")
		return nil
	})
}

func keysToStrings(keys []permission.Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}
