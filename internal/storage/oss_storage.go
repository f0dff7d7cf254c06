package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"velovis/internal/config"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

type ossStore struct {
	bucket *oss.Bucket
	prefix string
}

func NewOSSStore(cfg config.Config) (ObjectStore, error) {
	endpoint := strings.TrimSpace(cfg.StorageOSSEndpoint)
	if endpoint == "" {
		return nil, errors.New("storage: missing OSS endpoint")
	}
	bucketName := strings.TrimSpace(cfg.StorageOSSBucket)
	if bucketName == "" {
		return nil, errors.New("storage: missing OSS bucket")
	}
	accessKey := strings.TrimSpace(cfg.StorageOSSAccessKeyID)
	secretKey := strings.TrimSpace(cfg.StorageOSSAccessKeySecret)
	if accessKey == "" || secretKey == "" {
		return nil, errors.New("storage: missing OSS credentials")
	}

	client, err := oss.New(endpoint, accessKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("storage: create OSS client: %w", err)
	}
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("storage: open OSS bucket: %w", err)
	}

	return &ossStore{
		bucket: bucket,
		prefix: trimPrefix(cfg.StorageOSSPrefix),
	}, nil
}

func (s *ossStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	fullKey, err := checkPut(ctx, s.prefix, key, data)
	if err != nil {
		return "", err
	}

	// 归档对象不可覆盖
	options := []oss.Option{
		oss.WithContext(ctx),
		oss.ContentType(ensureContentType(contentType)),
		oss.ForbidOverWrite(true),
	}
	if err := s.bucket.PutObject(fullKey, bytes.NewReader(data), options...); err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return fullKey, nil
}

var _ ObjectStore = (*ossStore)(nil)
