package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore persists objects to the local filesystem.
type LocalStore struct {
	baseDir string
}

// NewLocalStore creates a LocalStore. The directory is created if it does not exist.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	baseDir = strings.TrimSpace(baseDir)
	if baseDir == "" {
		baseDir = "datas/outbox"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

// BaseDir returns the root directory used for storing objects.
func (s *LocalStore) BaseDir() string {
	return s.baseDir
}

// Put writes data below the base directory. Existing objects are never overwritten.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	relative, err := checkPut(ctx, "", key, data)
	if err != nil {
		return "", err
	}

	absPath := filepath.Join(s.baseDir, filepath.FromSlash(relative))
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}

	f, err := os.OpenFile(absPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}
	return relative, nil
}

var _ ObjectStore = (*LocalStore)(nil)
