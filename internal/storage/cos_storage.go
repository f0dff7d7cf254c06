package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"velovis/internal/config"

	"github.com/tencentyun/cos-go-sdk-v5"
)

type cosStore struct {
	client *cos.Client
	prefix string
}

func NewCOSStore(cfg config.Config) (ObjectStore, error) {
	baseURL := strings.TrimSpace(cfg.StorageCOSBucketURL)
	if baseURL == "" {
		return nil, errors.New("storage: missing COS bucket URL")
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("storage: parse COS bucket URL: %w", err)
	}

	secretID := strings.TrimSpace(cfg.StorageCOSSecretID)
	secretKey := strings.TrimSpace(cfg.StorageCOSSecretKey)
	if secretID == "" || secretKey == "" {
		return nil, errors.New("storage: missing COS credentials")
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: parsedURL}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  secretID,
			SecretKey: secretKey,
		},
	})

	return &cosStore{
		client: client,
		prefix: trimPrefix(cfg.StorageCOSPrefix),
	}, nil
}

func (s *cosStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	fullKey, err := checkPut(ctx, s.prefix, key, data)
	if err != nil {
		return "", err
	}

	options := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{
			ContentType: ensureContentType(contentType),
		},
	}
	resp, err := s.client.Object.Put(ctx, fullKey, bytes.NewReader(data), options)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return fullKey, nil
}

var _ ObjectStore = (*cosStore)(nil)
