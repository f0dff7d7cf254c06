package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"velovis/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type s3ClientOptions struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	ForcePathStyle  bool
}

type s3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

func (s *s3Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	fullKey, err := checkPut(ctx, s.prefix, key, data)
	if err != nil {
		return "", err
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(fullKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ensureContentType(contentType)),
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object: %w", describeS3Error(err))
	}
	return fullKey, nil
}

var _ ObjectStore = (*s3Store)(nil)

// describeS3Error surfaces the service error code, which the SDK buries in a long chain.
func describeS3Error(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s: %w", apiErr.ErrorCode(), apiErr.ErrorMessage(), err)
	}
	return err
}

func NewS3Store(cfg config.Config) (ObjectStore, error) {
	bucket := strings.TrimSpace(cfg.StorageS3Bucket)
	if bucket == "" {
		return nil, errors.New("storage: missing S3 bucket")
	}
	client, err := newS3Client(s3ClientOptions{
		Region:          strings.TrimSpace(cfg.StorageS3Region),
		Endpoint:        strings.TrimSpace(cfg.StorageS3Endpoint),
		AccessKeyID:     strings.TrimSpace(cfg.StorageS3AccessKeyID),
		SecretAccessKey: strings.TrimSpace(cfg.StorageS3SecretAccessKey),
		SessionToken:    strings.TrimSpace(cfg.StorageS3SessionToken),
		ForcePathStyle:  cfg.StorageS3ForcePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: create S3 client: %w", err)
	}

	return &s3Store{
		client: client,
		bucket: bucket,
		prefix: trimPrefix(cfg.StorageS3Prefix),
	}, nil
}

func newS3Client(opts s3ClientOptions) (*s3.Client, error) {
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		return nil, errors.New("storage: missing S3 region")
	}
	accessKey := strings.TrimSpace(opts.AccessKeyID)
	secretKey := strings.TrimSpace(opts.SecretAccessKey)
	if accessKey == "" || secretKey == "" {
		return nil, errors.New("storage: missing S3 credentials")
	}

	awsCfg := aws.Config{
		Region: region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, strings.TrimSpace(opts.SessionToken)),
		),
	}

	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = opts.ForcePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return client, nil
}
