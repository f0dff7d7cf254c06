package model

import (
	"context"

	"velovis/internal/model/sql"
)

// gormStore adapts sql.GormRepository to Repository. The sql package cannot
// name Repository without an import cycle, so the transaction callback is
// re-typed here.
type gormStore struct {
	*sql.GormRepository
}

// Wrap exposes a GormRepository as a Repository.
func Wrap(repo *sql.GormRepository) Repository {
	return gormStore{GormRepository: repo}
}

func (s gormStore) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return s.GormRepository.Transaction(ctx, func(tx *sql.GormRepository) error {
		return fn(gormStore{GormRepository: tx})
	})
}

// Pinger is implemented by repositories that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}
