package sql

import (
	"context"
	"fmt"
	"time"

	"velovis/internal/entity"

	"gorm.io/gorm"
)

// CreateRefreshToken stores the digest of a newly issued refresh token.
func (r *GormRepository) CreateRefreshToken(ctx context.Context, token *entity.DbRefreshToken) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if token == nil {
		return fmt.Errorf("refresh token is nil")
	}
	return r.db.WithContext(ctx).Create(token).Error
}

// ListActiveRefreshTokens returns the user's tokens that have not been invalidated.
func (r *GormRepository) ListActiveRefreshTokens(ctx context.Context, userID string) ([]entity.DbRefreshToken, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	var tokens []entity.DbRefreshToken
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND invalidated_at IS NULL", userID).
		Order("created_at DESC").
		Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

// InvalidateRefreshToken marks one token invalid. It reports false when the
// row was already invalidated or does not exist, so concurrent rotations of
// the same token cannot both succeed.
func (r *GormRepository) InvalidateRefreshToken(ctx context.Context, id string, at time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, fmt.Errorf("repository not initialised")
	}
	result := r.db.WithContext(ctx).Model(&entity.DbRefreshToken{}).
		Where("id = ? AND invalidated_at IS NULL", id).
		Update("invalidated_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// InvalidateUserRefreshTokens marks every active token of the user invalid.
func (r *GormRepository) InvalidateUserRefreshTokens(ctx context.Context, userID string, at time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, fmt.Errorf("repository not initialised")
	}
	result := r.db.WithContext(ctx).Model(&entity.DbRefreshToken{}).
		Where("user_id = ? AND invalidated_at IS NULL", userID).
		Update("invalidated_at", at)
	return result.RowsAffected, result.Error
}

// CreatePasswordResetToken stores a reset token digest.
func (r *GormRepository) CreatePasswordResetToken(ctx context.Context, token *entity.DbPasswordResetToken) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if token == nil {
		return fmt.Errorf("reset token is nil")
	}
	return r.db.WithContext(ctx).Create(token).Error
}

// GetPasswordResetTokenByHash looks a reset token up by digest.
func (r *GormRepository) GetPasswordResetTokenByHash(ctx context.Context, hash string) (*entity.DbPasswordResetToken, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if hash == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var token entity.DbPasswordResetToken
	if err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// DeletePasswordResetToken removes a reset token by ID.
func (r *GormRepository) DeletePasswordResetToken(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.DbPasswordResetToken{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteUserPasswordResetTokens removes every outstanding reset token of the user.
func (r *GormRepository) DeleteUserPasswordResetTokens(ctx context.Context, userID string) (int64, error) {
	if r == nil || r.db == nil {
		return 0, fmt.Errorf("repository not initialised")
	}
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&entity.DbPasswordResetToken{})
	return result.RowsAffected, result.Error
}
