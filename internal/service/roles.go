package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"velovis/internal/entity"
	"velovis/internal/model"
	"velovis/internal/permission"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RoleService 角色与权限管理
type RoleService struct {
	repo model.Repository
}

func NewRoleService(repo model.Repository) *RoleService {
	return &RoleService{repo: repo}
}

// ListPermissions returns the whole catalog, flat and grouped by resource.
func (s *RoleService) ListPermissions() entity.PermissionListResponse {
	all := permission.All()
	flat := make([]string, 0, len(all))
	for _, k := range all {
		flat = append(flat, string(k))
	}
	grouped := make(map[string][]string)
	for resource, keys := range permission.Categories() {
		names := make([]string, 0, len(keys))
		for _, k := range keys {
			names = append(names, string(k))
		}
		sort.Strings(names)
		grouped[resource] = names
	}
	return entity.PermissionListResponse{Permissions: flat, Categories: grouped}
}

// CreateRole creates an empty role. Names are stored upper-case.
func (s *RoleService) CreateRole(ctx context.Context, name string) (*entity.RoleSummary, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return nil, invalidInput("role name is required", nil)
	}
	if _, err := s.repo.GetRoleByName(ctx, name); err == nil {
		return nil, conflict(fmt.Sprintf("role %s already exists", name))
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check role: %w", err)
	}

	role := &entity.DbRole{Name: name}
	if err := s.repo.CreateRole(ctx, role); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, conflict(fmt.Sprintf("role %s already exists", name))
		}
		return nil, fmt.Errorf("create role: %w", err)
	}
	logrus.WithField("role", name).Info("role created")
	summary := entity.NewRoleSummary(role)
	return &summary, nil
}

func (s *RoleService) ListRoles(ctx context.Context) ([]entity.RoleSummary, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	out := make([]entity.RoleSummary, 0, len(roles))
	for i := range roles {
		out = append(out, entity.NewRoleSummary(&roles[i]))
	}
	return out, nil
}

// AssignPermissions replaces the role's permission set. Every key must be in
// the catalog; otherwise nothing changes and the unknown keys are reported.
func (s *RoleService) AssignPermissions(ctx context.Context, roleID string, keys []string) (*entity.RoleSummary, error) {
	cleaned := make([]string, 0, len(keys))
	for _, k := range keys {
		cleaned = append(cleaned, strings.TrimSpace(k))
	}
	if invalid := permission.Validate(cleaned); len(invalid) > 0 {
		return nil, invalidInput("unknown permission keys", map[string][]string{"invalid_keys": invalid})
	}

	var role *entity.DbRole
	err := s.repo.Transaction(ctx, func(tx model.Repository) error {
		if _, err := tx.GetRoleByID(ctx, roleID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("role not found")
			}
			return fmt.Errorf("load role: %w", err)
		}
		if err := tx.ReplaceRolePermissions(ctx, roleID, cleaned); err != nil {
			return fmt.Errorf("replace permissions: %w", err)
		}
		var err error
		role, err = tx.GetRoleByID(ctx, roleID)
		return err
	})
	if err != nil {
		return nil, err
	}
	logrus.WithField("role", role.Name).WithField("permissions", len(role.Permissions)).Info("role permissions replaced")
	summary := entity.NewRoleSummary(role)
	return &summary, nil
}

// DeleteRole removes a role and its memberships. ADMIN and USER cannot be deleted.
func (s *RoleService) DeleteRole(ctx context.Context, roleID string) error {
	role, err := s.repo.GetRoleByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("role not found")
		}
		return fmt.Errorf("load role: %w", err)
	}
	if entity.IsSystemRole(role.Name) {
		return forbidden(fmt.Sprintf("role %s is required by the system and cannot be deleted", role.Name))
	}
	if err := s.repo.DeleteRole(ctx, role.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("role not found")
		}
		return fmt.Errorf("delete role: %w", err)
	}
	logrus.WithField("role", role.Name).Info("role deleted")
	return nil
}

// AssignRoles replaces the user's role memberships.
func (s *RoleService) AssignRoles(ctx context.Context, userID string, roleIDs []string) (*entity.UserSummary, error) {
	wanted := make([]string, 0, len(roleIDs))
	seen := make(map[string]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		wanted = append(wanted, id)
	}

	var (
		user  *entity.DbUser
		names []string
	)
	err := s.repo.Transaction(ctx, func(tx model.Repository) error {
		var err error
		user, err = tx.GetUserByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("user not found")
			}
			return fmt.Errorf("load user: %w", err)
		}
		roles, err := tx.FindRolesByIDs(ctx, wanted)
		if err != nil {
			return fmt.Errorf("load roles: %w", err)
		}
		if len(roles) != len(wanted) {
			return invalidInput("unknown role ids", map[string][]string{"invalid_role_ids": missingRoleIDs(wanted, roles)})
		}
		if err := tx.ReplaceUserRoles(ctx, user.ID, wanted); err != nil {
			return fmt.Errorf("replace roles: %w", err)
		}
		for _, r := range roles {
			names = append(names, r.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	logrus.WithField("user_id", user.ID).WithField("roles", names).Info("user roles replaced")
	summary := entity.NewUserSummary(user, names)
	return &summary, nil
}

// GetUser returns a user with the names of its roles.
func (s *RoleService) GetUser(ctx context.Context, userID string) (*entity.UserSummary, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user not found")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	roles, err := s.repo.ListUserRoles(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	summary := entity.NewUserSummary(user, names)
	return &summary, nil
}

// ListUsers returns all users with their role names, oldest account first.
func (s *RoleService) ListUsers(ctx context.Context) ([]entity.UserSummary, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	names, err := s.repo.ListRoleNamesByUser(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	out := make([]entity.UserSummary, 0, len(users))
	for i := range users {
		roles := names[users[i].ID]
		if roles == nil {
			roles = []string{}
		}
		out = append(out, entity.NewUserSummary(&users[i], roles))
	}
	return out, nil
}

func missingRoleIDs(wanted []string, found []entity.DbRole) []string {
	have := make(map[string]struct{}, len(found))
	for _, r := range found {
		have[r.ID] = struct{}{}
	}
	var missing []string
	for _, id := range wanted {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
