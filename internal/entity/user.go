package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DbUser represents a persisted user account.
type DbUser struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Username     string    `gorm:"column:username;type:varchar(64);uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	DisplayName  string    `gorm:"column:display_name;type:varchar(255)" json:"display_name"`
	IsActive     bool      `gorm:"column:is_active;not null;default:false" json:"is_active"`
}

// TableName overrides default pluralised name.
func (DbUser) TableName() string {
	return "users"
}

// BeforeCreate 为新用户生成 UUID 主键
func (u *DbUser) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// UserSummary is a lightweight user description returned to clients.
type UserSummary struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	IsActive    bool      `json:"is_active"`
	Roles       []string  `json:"roles,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewUserSummary builds the client view of a user.
func NewUserSummary(user *DbUser, roles []string) UserSummary {
	if user == nil {
		return UserSummary{}
	}
	return UserSummary{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		IsActive:    user.IsActive,
		Roles:       roles,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}
