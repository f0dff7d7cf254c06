package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// IsSystemRole reports whether the role is required by the system and cannot be deleted.
func IsSystemRole(name string) bool {
	return name == RoleAdmin || name == RoleUser
}

// DbRole is a named bundle of permission keys.
type DbRole struct {
	ID          string             `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	Name        string             `gorm:"column:name;type:varchar(64);uniqueIndex;not null" json:"name"`
	Permissions []DbRolePermission `gorm:"foreignKey:RoleID;references:ID" json:"permissions,omitempty"`
}

func (DbRole) TableName() string {
	return "roles"
}

func (r *DbRole) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// PermissionKeys returns the raw keys attached to the role.
func (r *DbRole) PermissionKeys() []string {
	if r == nil {
		return nil
	}
	keys := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		keys = append(keys, p.PermissionKey)
	}
	return keys
}

// DbRolePermission attaches one catalog key to a role. The pair is the primary key.
type DbRolePermission struct {
	RoleID        string    `gorm:"primaryKey;column:role_id;type:varchar(36)" json:"role_id"`
	PermissionKey string    `gorm:"primaryKey;column:permission_key;type:varchar(64)" json:"permission_key"`
	CreatedAt     time.Time `json:"created_at"`
}

func (DbRolePermission) TableName() string {
	return "role_permissions"
}

// DbUserRole 用户与角色的关联
type DbUserRole struct {
	UserID    string    `gorm:"primaryKey;column:user_id;type:varchar(36)" json:"user_id"`
	RoleID    string    `gorm:"primaryKey;column:role_id;type:varchar(36);index" json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (DbUserRole) TableName() string {
	return "user_roles"
}

// RoleSummary is the client view of a role.
type RoleSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewRoleSummary(role *DbRole) RoleSummary {
	if role == nil {
		return RoleSummary{}
	}
	keys := role.PermissionKeys()
	if keys == nil {
		keys = []string{}
	}
	return RoleSummary{
		ID:          role.ID,
		Name:        role.Name,
		Permissions: keys,
		CreatedAt:   role.CreatedAt,
	}
}
