package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// S3Storage implements the Store interface using S3-compatible storage (AWS S3, MinIO, etc.)
type S3Storage struct {
	client *minio.Client
	bucket string
	prefix string
	region string
}

// S3Options configures an S3Storage.
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	// Prefix is prepended to every key.
	Prefix string
	UseSSL bool
}

// NewS3Storage creates a new S3-compatible storage provider
// Works with AWS S3, MinIO, Wasabi, DigitalOcean Spaces, and other S3-compatible services
func NewS3Storage(opts S3Options) (*S3Storage, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	log.Debug().
		Str("endpoint", opts.Endpoint).
		Str("bucket", opts.Bucket).
		Str("region", opts.Region).
		Bool("ssl", opts.UseSSL).
		Msg("S3-compatible storage initialized")

	return &S3Storage{
		client: client,
		bucket: opts.Bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
		region: opts.Region,
	}, nil
}

// Name returns the provider name
func (s3 *S3Storage) Name() string {
	return "s3"
}

// Health checks that the target bucket is reachable
func (s3 *S3Storage) Health(ctx context.Context) error {
	ok, err := s3.client.BucketExists(ctx, s3.bucket)
	if err != nil {
		return fmt.Errorf("S3 health check failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("S3 bucket %q does not exist", s3.bucket)
	}
	return nil
}

func (s3 *S3Storage) objectKey(key string) (string, error) {
	clean, ok := CleanKey(key)
	if !ok {
		return "", fmt.Errorf("invalid key %q", key)
	}
	if s3.prefix == "" {
		return clean, nil
	}
	return path.Join(s3.prefix, clean), nil
}

// Put uploads an artifact to the bucket
func (s3 *S3Storage) Put(ctx context.Context, key string, data io.Reader, size int64, opts *UploadOptions) (*Object, error) {
	if opts == nil {
		opts = &UploadOptions{}
	}
	objectKey, err := s3.objectKey(key)
	if err != nil {
		return nil, err
	}

	putOpts := minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
		CacheControl: opts.CacheControl,
	}

	info, err := s3.client.PutObject(ctx, s3.bucket, objectKey, data, size, putOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Debug().
		Str("bucket", s3.bucket).
		Str("key", objectKey).
		Int64("size", info.Size).
		Msg("Artifact uploaded to S3")

	return &Object{
		Key:          key,
		Size:         info.Size,
		ContentType:  opts.ContentType,
		LastModified: info.LastModified,
		ETag:         info.ETag,
		Location:     "s3://" + s3.bucket + "/" + objectKey,
		Metadata:     opts.Metadata,
	}, nil
}

// Get downloads an artifact from the bucket
func (s3 *S3Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	objectKey, err := s3.objectKey(key)
	if err != nil {
		return nil, err
	}
	// Stat first so a missing key surfaces here rather than on first read.
	if _, err := s3.client.StatObject(ctx, s3.bucket, objectKey, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to get object info: %w", err)
	}
	reader, err := s3.client.GetObject(ctx, s3.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	return reader, nil
}

// Exists checks if an artifact exists
func (s3 *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	objectKey, err := s3.objectKey(key)
	if err != nil {
		return false, err
	}
	_, err = s3.client.StatObject(ctx, s3.bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == 404
}
