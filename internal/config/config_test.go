package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		OutDir:      "dist",
		MainFields:  []string{"main"},
		Concurrency: 4,
		Log:         LogConfig{Level: "info", Format: "auto"},
		Storage:     StorageConfig{Provider: "local"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Concurrency = 0 },
			wantErr: true,
			errMsg:  "concurrency must be positive",
		},
		{
			name:    "empty main fields",
			mutate:  func(c *Config) { c.MainFields = nil },
			wantErr: true,
			errMsg:  "main_fields must name at least one package.json field",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: true,
			errMsg:  "log format must be",
		},
		{
			name: "sample rate out of range",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.SampleRate = 1.5
			},
			wantErr: true,
			errMsg:  "sample_rate must be between 0 and 1",
		},
		{
			name:    "unknown storage provider",
			mutate:  func(c *Config) { c.Storage.Provider = "gcs" },
			wantErr: true,
			errMsg:  "storage provider must be 'local' or 's3'",
		},
		{
			name: "incomplete s3",
			mutate: func(c *Config) {
				c.Storage.Provider = "s3"
				c.Storage.S3Endpoint = "localhost:9000"
			},
			wantErr: true,
			errMsg:  "S3 configuration is incomplete",
		},
		{
			name: "complete s3",
			mutate: func(c *Config) {
				c.Storage = StorageConfig{
					Provider:    "s3",
					S3Endpoint:  "localhost:9000",
					S3AccessKey: "key",
					S3SecretKey: "secret",
					S3Bucket:    "bundles",
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dist", cfg.OutDir)
	assert.Equal(t, []string{"main"}, cfg.MainFields)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "local", cfg.Storage.Provider)
	assert.Equal(t, "jsbundle", cfg.Tracing.ServiceName)
	assert.Empty(t, cfg.Externals)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "jsbundle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
outdir: build
minify: true
externals: [react]
main_fields: [browser, main]
log:
  level: debug
storage:
  prefix: bundles/
`), 0o600))

	t.Setenv("JSBUNDLE_CONCURRENCY", "8")
	t.Setenv("JSBUNDLE_LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "build", cfg.OutDir)
	assert.True(t, cfg.Minify)
	assert.Equal(t, []string{"react"}, cfg.Externals)
	assert.Equal(t, []string{"browser", "main"}, cfg.MainFields)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, "bundles/", cfg.Storage.Prefix)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JSBUNDLE_STORAGE_PROVIDER", "ftp")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitList([]string{"a, b", "", "c"}))
	assert.Empty(t, splitList(nil))
}
