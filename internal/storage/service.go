package storage

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/fluxbase-eu/jsbundle/internal/config"
)

// NewProvider creates the storage provider described by cfg. Local storage
// writes below localDir unless cfg.LocalPath overrides it.
func NewProvider(fsys afero.Fs, cfg *config.StorageConfig, localDir string) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "local", "":
		base := localDir
		if cfg.LocalPath != "" {
			base = cfg.LocalPath
		}
		provider, err := NewLocalStorage(fsys, base)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		return provider, nil

	case "s3":
		// Determine if using SSL based on endpoint
		useSSL := !strings.HasPrefix(cfg.S3Endpoint, "http://")

		// Remove http:// or https:// prefix if present
		endpoint := cfg.S3Endpoint
		endpoint = strings.TrimPrefix(endpoint, "https://")
		endpoint = strings.TrimPrefix(endpoint, "http://")

		// If no endpoint specified, use default S3 endpoint
		if endpoint == "" {
			endpoint = "s3.amazonaws.com"
			useSSL = true
		}

		provider, err := NewS3Storage(S3Options{
			Endpoint:  endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.Prefix,
			UseSSL:    useSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		return provider, nil

	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Provider)
	}
}
