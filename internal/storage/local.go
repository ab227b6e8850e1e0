package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// LocalStorage implements the Store interface on a file system
type LocalStorage struct {
	fs       afero.Fs
	basePath string
}

// NewLocalStorage creates a new file system storage provider rooted at
// basePath
func NewLocalStorage(fsys afero.Fs, basePath string) (*LocalStorage, error) {
	// Create base directory if it doesn't exist
	if err := fsys.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		fs:       fsys,
		basePath: basePath,
	}, nil
}

// Name returns the provider name
func (ls *LocalStorage) Name() string {
	return "local"
}

// Health checks if the storage directory is writable
func (ls *LocalStorage) Health(ctx context.Context) error {
	if _, err := ls.fs.Stat(ls.basePath); err != nil {
		return fmt.Errorf("storage directory not accessible: %w", err)
	}

	f, err := afero.TempFile(ls.fs, ls.basePath, ".health_check-*")
	if err != nil {
		return fmt.Errorf("storage directory not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	_ = ls.fs.Remove(name)

	return nil
}

// getPath returns the full path for a key
func (ls *LocalStorage) getPath(key string) (string, error) {
	clean, ok := CleanKey(key)
	if !ok {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(ls.basePath, filepath.FromSlash(clean)), nil
}

// Put writes the object to a temporary file and renames it into place, so
// readers never observe a partial artifact.
func (ls *LocalStorage) Put(ctx context.Context, key string, data io.Reader, size int64, opts *UploadOptions) (*Object, error) {
	if opts == nil {
		opts = &UploadOptions{}
	}

	filePath, err := ls.getPath(key)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(filePath)
	if err := ls.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := afero.TempFile(ls.fs, dir, "."+filepath.Base(filePath)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	// Calculate MD5 hash while writing
	hash := md5.New()
	written, err := io.Copy(io.MultiWriter(tmp, hash), data)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = ls.fs.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if size >= 0 && written != size {
		_ = ls.fs.Remove(tmp.Name())
		return nil, fmt.Errorf("short write: wrote %d of %d bytes", written, size)
	}

	if err := ls.fs.Rename(tmp.Name(), filePath); err != nil {
		_ = ls.fs.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}

	info, err := ls.fs.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	log.Debug().
		Str("key", key).
		Int64("size", written).
		Msg("Artifact written to local storage")

	return &Object{
		Key:          key,
		Size:         info.Size(),
		ContentType:  opts.ContentType,
		LastModified: info.ModTime(),
		ETag:         hex.EncodeToString(hash.Sum(nil)),
		Location:     filePath,
		Metadata:     opts.Metadata,
	}, nil
}

// Get opens the file stored under key
func (ls *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	filePath, err := ls.getPath(key)
	if err != nil {
		return nil, err
	}
	f, err := ls.fs.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Exists checks if a file exists
func (ls *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	filePath, err := ls.getPath(key)
	if err != nil {
		return false, err
	}
	_, err = ls.fs.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
