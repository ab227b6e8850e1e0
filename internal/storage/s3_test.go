package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/jsbundle/internal/config"
)

// setupS3Storage connects to the S3-compatible service named by
// JSBUNDLE_TEST_S3_ENDPOINT, e.g. a local MinIO:
//
//	docker run -p 9000:9000 -e MINIO_ROOT_USER=minioadmin -e MINIO_ROOT_PASSWORD=minioadmin minio/minio server /data
func setupS3Storage(t *testing.T) *S3Storage {
	t.Helper()

	endpoint := os.Getenv("JSBUNDLE_TEST_S3_ENDPOINT")
	if endpoint == "" || testing.Short() {
		t.Skip("Skipping S3 tests: JSBUNDLE_TEST_S3_ENDPOINT not set")
	}

	bucket := fmt.Sprintf("jsbundle-test-%d", time.Now().UnixNano())
	s3, err := NewS3Storage(S3Options{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Region:    "us-east-1",
		Bucket:    bucket,
		Prefix:    "builds",
	})
	require.NoError(t, err)

	ctx := context.Background()
	if err := s3.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		t.Skipf("Skipping S3 tests: MinIO not available: %v", err)
	}
	t.Cleanup(func() {
		for obj := range s3.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
			_ = s3.client.RemoveObject(ctx, bucket, obj.Key, minio.RemoveObjectOptions{})
		}
		_ = s3.client.RemoveBucket(ctx, bucket)
	})

	return s3
}

func TestS3Storage_ObjectKey(t *testing.T) {
	s3, err := NewS3Storage(S3Options{Endpoint: "localhost:9000", Bucket: "b", Prefix: "/builds/"})
	require.NoError(t, err)

	key, err := s3.objectKey("app/main.js")
	require.NoError(t, err)
	assert.Equal(t, "builds/app/main.js", key)

	key, err = s3.objectKey("../main.js")
	require.NoError(t, err)
	assert.Equal(t, "builds/main.js", key)

	_, err = s3.objectKey("")
	assert.Error(t, err)

	noPrefix, err := NewS3Storage(S3Options{Endpoint: "localhost:9000", Bucket: "b"})
	require.NoError(t, err)
	key, err = noPrefix.objectKey("main.js")
	require.NoError(t, err)
	assert.Equal(t, "main.js", key)
	assert.Equal(t, "s3", noPrefix.Name())
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(minio.ErrorResponse{StatusCode: 404}))
	assert.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403}))
}

func TestS3Storage_PutGetExists(t *testing.T) {
	s3 := setupS3Storage(t)
	ctx := context.Background()
	content := []byte("(function () {})();\n")

	require.NoError(t, s3.Health(ctx))

	exists, err := s3.Exists(ctx, "main.js")
	require.NoError(t, err)
	assert.False(t, exists)

	obj, err := s3.Put(ctx, "main.js", bytes.NewReader(content), int64(len(content)), &UploadOptions{
		ContentType: "text/javascript",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), obj.Size)
	assert.Contains(t, obj.Location, "/builds/main.js")

	exists, err = s3.Exists(ctx, "main.js")
	require.NoError(t, err)
	assert.True(t, exists)

	reader, err := s3.Get(ctx, "main.js")
	require.NoError(t, err)
	defer reader.Close()
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = s3.Get(ctx, "missing.js")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestNewProvider(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		p, err := NewProvider(afero.NewMemMapFs(), &config.StorageConfig{Provider: "local"}, "/dist")
		require.NoError(t, err)
		assert.Equal(t, "local", p.Name())
		assert.Equal(t, "/dist", p.(*LocalStorage).basePath)
	})

	t.Run("local path override", func(t *testing.T) {
		p, err := NewProvider(afero.NewMemMapFs(), &config.StorageConfig{Provider: "local", LocalPath: "/artifacts"}, "/dist")
		require.NoError(t, err)
		assert.Equal(t, "/artifacts", p.(*LocalStorage).basePath)
	})

	t.Run("s3", func(t *testing.T) {
		p, err := NewProvider(afero.NewMemMapFs(), &config.StorageConfig{
			Provider:   "s3",
			S3Endpoint: "http://localhost:9000",
			S3Bucket:   "bundles",
			Prefix:     "ci",
		}, "/dist")
		require.NoError(t, err)
		s3 := p.(*S3Storage)
		assert.Equal(t, "bundles", s3.bucket)
		assert.Equal(t, "ci", s3.prefix)
		assert.Equal(t, "localhost:9000", s3.client.EndpointURL().Host)
		assert.Equal(t, "http", s3.client.EndpointURL().Scheme)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := NewProvider(afero.NewMemMapFs(), &config.StorageConfig{Provider: "ftp"}, "/dist")
		assert.ErrorContains(t, err, "unsupported storage provider")
	})
}
