// Package s3 implements the BlobStore on Amazon S3 or an S3-compatible
// service (MinIO, Localstack).
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"docvault/internal/storage"
)

// Config configures the S3 blob store
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // empty for AWS; set for MinIO/Localstack
	AccessKeyID     string // empty to use the default credential chain
	SecretAccessKey string
	KeyPrefix       string // prepended to every object key
}

// BlobStore stores objects in one bucket
type BlobStore struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// NewClient builds an S3 client from cfg. A custom endpoint switches to
// path-style addressing.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	opts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewBlobStore verifies bucket access and returns the store
func NewBlobStore(ctx context.Context, client *s3.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("access bucket %q: %w", cfg.Bucket, err)
	}

	return &BlobStore{client: client, bucket: cfg.Bucket, keyPrefix: cfg.KeyPrefix}, nil
}

func (s *BlobStore) objectKey(key string) string {
	return s.keyPrefix + key
}

// Put uploads r under key
func (s *BlobStore) Put(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   r,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}

// MoveToTrash copies the object under the trash prefix, then deletes the
// original. S3 has no rename.
func (s *BlobStore) MoveToTrash(ctx context.Context, key string) (string, error) {
	return s.relocate(ctx, key, storage.TrashKey(key))
}

// RestoreFromTrash copies a trashed object back to its original key, then
// deletes the trashed copy
func (s *BlobStore) RestoreFromTrash(ctx context.Context, key string) (string, error) {
	return s.relocate(ctx, key, storage.UntrashKey(key))
}

func (s *BlobStore) relocate(ctx context.Context, from, to string) (string, error) {
	if from == to {
		return to, nil
	}

	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + escapeKey(s.objectKey(from))),
		Key:        aws.String(s.objectKey(to)),
	})
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%s: %w", from, storage.ErrObjectNotFound)
		}
		return "", fmt.Errorf("copy object %s to %s: %w", from, to, err)
	}

	if err := s.Delete(ctx, from); err != nil {
		return "", err
	}
	return to, nil
}

// Delete removes the object. S3 reports success for missing keys.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// Open streams the object. The caller must close the reader.
func (s *BlobStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", key, storage.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	return out.Body, nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

// escapeKey URL-encodes each path segment of a key for CopySource
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
