// Package storage persists build artifacts on the local file system or in
// an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// Object represents a stored artifact
type Object struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	ContentType  string            `json:"content_type"`
	LastModified time.Time         `json:"last_modified"`
	ETag         string            `json:"etag,omitempty"`
	Location     string            `json:"location"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// UploadOptions contains options for storing artifacts
type UploadOptions struct {
	ContentType  string
	Metadata     map[string]string
	CacheControl string
}

// Store defines the operations the bundler needs from artifact storage
type Store interface {
	// Put stores data under key, replacing any previous object
	Put(ctx context.Context, key string, data io.Reader, size int64, opts *UploadOptions) (*Object, error)

	// Get opens the object stored under key
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)
}

// Provider is the interface that storage providers must implement
type Provider interface {
	Store
	Name() string
	Health(ctx context.Context) error
}

// CleanKey normalizes a key to a slash-separated relative path and reports
// whether it stays inside the store.
func CleanKey(key string) (string, bool) {
	key = path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	key = strings.TrimPrefix(key, "/")
	return key, key != "" && key != "."
}
