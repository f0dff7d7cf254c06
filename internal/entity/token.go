package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DbRefreshToken records one issued refresh token by its SHA-256 digest.
// A nil InvalidatedAt means the session is still active.
type DbRefreshToken struct {
	ID            string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	UserID        string     `gorm:"column:user_id;type:varchar(36);index;not null" json:"user_id"`
	TokenHash     string     `gorm:"column:token_hash;type:varchar(64);not null" json:"-"`
	InvalidatedAt *time.Time `gorm:"column:invalidated_at;index" json:"invalidated_at,omitempty"`
}

func (DbRefreshToken) TableName() string {
	return "refresh_tokens"
}

func (t *DbRefreshToken) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Active reports whether the token has not been invalidated.
func (t *DbRefreshToken) Active() bool {
	return t != nil && t.InvalidatedAt == nil
}

// DbPasswordResetToken 密码重置令牌，仅保存哈希值
type DbPasswordResetToken struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserID    string    `gorm:"column:user_id;type:varchar(36);index;not null" json:"user_id"`
	TokenHash string    `gorm:"column:token_hash;type:varchar(64);uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null" json:"expires_at"`
}

func (DbPasswordResetToken) TableName() string {
	return "password_reset_tokens"
}

func (t *DbPasswordResetToken) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Expired reports whether the token is past its expiry at now.
func (t *DbPasswordResetToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
