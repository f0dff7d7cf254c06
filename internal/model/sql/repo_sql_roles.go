package sql

import (
	"context"
	"fmt"
	"strings"

	"velovis/internal/entity"

	"gorm.io/gorm"
)

func preloadPermissions(tx *gorm.DB) *gorm.DB {
	return tx.Order("permission_key ASC")
}

// CreateRole inserts a role together with any permissions attached to it.
func (r *GormRepository) CreateRole(ctx context.Context, role *entity.DbRole) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if role == nil {
		return fmt.Errorf("role is nil")
	}
	return r.db.WithContext(ctx).Create(role).Error
}

// GetRoleByID loads a role with its permission keys.
func (r *GormRepository) GetRoleByID(ctx context.Context, id string) (*entity.DbRole, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if strings.TrimSpace(id) == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var role entity.DbRole
	if err := r.db.WithContext(ctx).Preload("Permissions", preloadPermissions).
		Where("id = ?", id).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// GetRoleByName loads a role by its name.
func (r *GormRepository) GetRoleByName(ctx context.Context, name string) (*entity.DbRole, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	var role entity.DbRole
	if err := r.db.WithContext(ctx).Preload("Permissions", preloadPermissions).
		Where("name = ?", strings.TrimSpace(name)).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// ListRoles returns all roles ordered by name.
func (r *GormRepository) ListRoles(ctx context.Context) ([]entity.DbRole, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	var roles []entity.DbRole
	if err := r.db.WithContext(ctx).Preload("Permissions", preloadPermissions).
		Order("name ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// FindRolesByIDs returns the roles that exist among ids.
func (r *GormRepository) FindRolesByIDs(ctx context.Context, ids []string) ([]entity.DbRole, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if len(ids) == 0 {
		return []entity.DbRole{}, nil
	}
	var roles []entity.DbRole
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// DeleteRole removes a role and its permission and membership rows.
func (r *GormRepository) DeleteRole(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&entity.DbRolePermission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", id).Delete(&entity.DbUserRole{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&entity.DbRole{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ReplaceRolePermissions swaps the role's permission keys for keys.
func (r *GormRepository) ReplaceRolePermissions(ctx context.Context, roleID string, keys []string) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).Delete(&entity.DbRolePermission{}).Error; err != nil {
			return err
		}
		rows := make([]entity.DbRolePermission, 0, len(keys))
		seen := make(map[string]struct{}, len(keys))
		for _, key := range keys {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			rows = append(rows, entity.DbRolePermission{RoleID: roleID, PermissionKey: key})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

// ListUserRoles returns the roles held by a user, with permissions preloaded.
func (r *GormRepository) ListUserRoles(ctx context.Context, userID string) ([]entity.DbRole, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	var roles []entity.DbRole
	err := r.db.WithContext(ctx).
		Preload("Permissions", preloadPermissions).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.name ASC").
		Find(&roles).Error
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// ListRoleNamesByUser maps each of userIDs to the sorted names of its roles.
// Users without roles are absent from the result.
func (r *GormRepository) ListRoleNamesByUser(ctx context.Context, userIDs []string) (map[string][]string, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	out := make(map[string][]string)
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		UserID string
		Name   string
	}
	err := r.db.WithContext(ctx).
		Table("user_roles").
		Select("user_roles.user_id AS user_id, roles.name AS name").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("user_roles.user_id IN ?", userIDs).
		Order("roles.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.UserID] = append(out[row.UserID], row.Name)
	}
	return out, nil
}

// AddUserRole attaches a role to a user; attaching twice is a no-op.
func (r *GormRepository) AddUserRole(ctx context.Context, userID, roleID string) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.DbUserRole{}).
		Where("user_id = ? AND role_id = ?", userID, roleID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entity.DbUserRole{UserID: userID, RoleID: roleID}).Error
}

// ReplaceUserRoles swaps the user's memberships for roleIDs.
func (r *GormRepository) ReplaceUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&entity.DbUserRole{}).Error; err != nil {
			return err
		}
		rows := make([]entity.DbUserRole, 0, len(roleIDs))
		seen := make(map[string]struct{}, len(roleIDs))
		for _, id := range roleIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			rows = append(rows, entity.DbUserRole{UserID: userID, RoleID: id})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}
