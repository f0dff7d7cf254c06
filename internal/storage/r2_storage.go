package storage

import (
	"errors"
	"fmt"
	"strings"

	"velovis/internal/config"
)

// NewR2Store talks to Cloudflare R2 through its S3-compatible API.
func NewR2Store(cfg config.Config) (ObjectStore, error) {
	bucket := strings.TrimSpace(cfg.StorageR2Bucket)
	if bucket == "" {
		return nil, errors.New("storage: missing R2 bucket")
	}

	endpoint := strings.TrimSpace(cfg.StorageR2Endpoint)
	if endpoint == "" {
		accountID := strings.TrimSpace(cfg.StorageR2AccountID)
		if accountID == "" {
			return nil, errors.New("storage: missing R2 endpoint or account id")
		}
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
	}

	region := strings.TrimSpace(cfg.StorageR2Region)
	if region == "" {
		region = "auto"
	}

	client, err := newS3Client(s3ClientOptions{
		Region:          region,
		Endpoint:        endpoint,
		AccessKeyID:     cfg.StorageR2AccessKeyID,
		SecretAccessKey: cfg.StorageR2SecretAccessKey,
		ForcePathStyle:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: create R2 client: %w", err)
	}

	return &s3Store{
		client: client,
		bucket: bucket,
		prefix: trimPrefix(cfg.StorageR2Prefix),
	}, nil
}
