package service

import (
	"context"
	"fmt"

	"velovis/internal/entity"
	"velovis/internal/model"
	"velovis/internal/permission"

	"github.com/sirupsen/logrus"
)

// PermissionResolver flattens a user's role memberships into the caller value
// used for authorization. Results are never cached.
type PermissionResolver struct {
	repo model.Repository
}

func NewPermissionResolver(repo model.Repository) *PermissionResolver {
	return &PermissionResolver{repo: repo}
}

// Resolve builds the caller for user from its current roles.
func (r *PermissionResolver) Resolve(ctx context.Context, user *entity.DbUser) (*permission.Caller, error) {
	if user == nil {
		return nil, fmt.Errorf("resolve permissions: user is nil")
	}
	roles, err := r.repo.ListUserRoles(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load roles for user %s: %w", user.ID, err)
	}

	caller := &permission.Caller{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Roles:       make([]string, 0, len(roles)),
		Permissions: permission.NewSet(),
	}
	for _, role := range roles {
		caller.Roles = append(caller.Roles, role.Name)
		for _, p := range role.Permissions {
			key := permission.Key(p.PermissionKey)
			if !permission.IsKnown(key) {
				logrus.WithField("role", role.Name).WithField("permission", p.PermissionKey).
					Debug("ignoring permission outside the catalog")
				continue
			}
			caller.Permissions.Add(key)
		}
	}
	return caller, nil
}
