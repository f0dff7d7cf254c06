package sql

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// GormRepository implements Repository using GORM
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new repository instance
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// DB exposes the underlying handle for wiring and health checks.
func (r *GormRepository) DB() *gorm.DB {
	if r == nil {
		return nil
	}
	return r.db
}

// Transaction runs fn with a repository bound to a single transaction.
// Returning an error from fn rolls the transaction back.
func (r *GormRepository) Transaction(ctx context.Context, fn func(tx *GormRepository) error) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx})
	})
}

// Ping checks the database connection.
func (r *GormRepository) Ping(ctx context.Context) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
