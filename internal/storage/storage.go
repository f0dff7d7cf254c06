package storage

import (
	"context"
	"fmt"
	"strings"

	"velovis/internal/config"
)

const (
	// TypeLocal 表示本地文件系统存储。
	TypeLocal = "local"
	// TypeS3 表示 Amazon S3 或兼容的存储后端。
	TypeS3 = "s3"
	// TypeOSS 表示阿里云 OSS 存储。
	TypeOSS = "oss"
	// TypeCOS 表示腾讯云 COS 存储。
	TypeCOS = "cos"
	// TypeR2 表示 Cloudflare R2 存储。
	TypeR2 = "r2"
)

// ObjectStore 持久化不可变的二进制对象，key 由调用方生成。
// Put 返回实际写入的 key（包含驱动配置的前缀）。
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// NewObjectStore 根据配置实例化存储后端。
func NewObjectStore(cfg config.Config) (ObjectStore, error) {
	typeName := strings.ToLower(strings.TrimSpace(cfg.StorageType))
	switch typeName {
	case "", TypeLocal:
		return NewLocalStore(cfg.StorageLocalDir)
	case TypeS3:
		return NewS3Store(cfg)
	case TypeOSS:
		return NewOSSStore(cfg)
	case TypeCOS:
		return NewCOSStore(cfg)
	case TypeR2:
		return NewR2Store(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}
}
