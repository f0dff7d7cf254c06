package sql

import (
	"context"
	"fmt"
	"strings"

	"velovis/internal/entity"

	"gorm.io/gorm"
)

// CreateUser persists a new user record.
func (r *GormRepository) CreateUser(ctx context.Context, user *entity.DbUser) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if user == nil {
		return fmt.Errorf("user is nil")
	}
	return r.db.WithContext(ctx).Create(user).Error
}

// UpdateUser updates an existing user entry.
func (r *GormRepository) UpdateUser(ctx context.Context, id string, updates entity.UserUpdates) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("invalid user")
	}
	if updates.IsEmpty() {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&entity.DbUser{}).Where("id = ?", id).Updates(updates.ToMap())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetUserByID loads a user by ID.
func (r *GormRepository) GetUserByID(ctx context.Context, id string) (*entity.DbUser, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if strings.TrimSpace(id) == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var user entity.DbUser
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername loads a user by exact username.
func (r *GormRepository) GetUserByUsername(ctx context.Context, username string) (*entity.DbUser, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var user entity.DbUser
	if err := r.db.WithContext(ctx).Where("username = ?", trimmed).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail loads a user by email, case-insensitively.
func (r *GormRepository) GetUserByEmail(ctx context.Context, email string) (*entity.DbUser, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}

	var user entity.DbUser
	if err := r.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(trimmed)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns every user, oldest first.
func (r *GormRepository) ListUsers(ctx context.Context) ([]entity.DbUser, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	var users []entity.DbUser
	if err := r.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// CountUsers returns total user count.
func (r *GormRepository) CountUsers(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, fmt.Errorf("repository not initialised")
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.DbUser{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
