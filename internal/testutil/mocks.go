// Package testutil provides test doubles shared by package tests.
package testutil

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fluxbase-eu/jsbundle/internal/storage"
)

// MockStore is an in-memory storage.Provider. Setting PutErr makes every
// Put fail after FailAfter successful writes.
type MockStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]*storage.Object

	PutErr    error
	FailAfter int
	puts      int
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		objects: make(map[string][]byte),
		meta:    make(map[string]*storage.Object),
	}
}

func (m *MockStore) Name() string {
	return "mock"
}

func (m *MockStore) Health(ctx context.Context) error {
	return nil
}

func (m *MockStore) Put(ctx context.Context, key string, data io.Reader, size int64, opts *storage.UploadOptions) (*storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PutErr != nil && m.puts >= m.FailAfter {
		return nil, m.PutErr
	}
	m.puts++

	content, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}
	if size >= 0 && int64(len(content)) != size {
		return nil, fmt.Errorf("short write: got %d of %d bytes", len(content), size)
	}
	if opts == nil {
		opts = &storage.UploadOptions{}
	}

	sum := md5.Sum(content)
	obj := &storage.Object{
		Key:          key,
		Size:         int64(len(content)),
		ContentType:  opts.ContentType,
		LastModified: time.Now(),
		ETag:         hex.EncodeToString(sum[:]),
		Location:     "mock://" + key,
		Metadata:     opts.Metadata,
	}
	m.objects[key] = content
	m.meta[key] = obj
	return obj, nil
}

func (m *MockStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	content, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (m *MockStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

// Object returns the stored object description and content for key.
func (m *MockStore) Object(key string) (*storage.Object, []byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.meta[key]
	return obj, m.objects[key], ok
}

// Len returns the number of stored objects.
func (m *MockStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
