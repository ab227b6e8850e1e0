package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config represents the bundler configuration
type Config struct {
	OutDir      string        `mapstructure:"outdir" yaml:"outdir"`
	Minify      bool          `mapstructure:"minify" yaml:"minify"`
	Metafile    bool          `mapstructure:"metafile" yaml:"metafile"`
	Externals   []string      `mapstructure:"externals" yaml:"externals"`
	MainFields  []string      `mapstructure:"main_fields" yaml:"main_fields"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
	Log         LogConfig     `mapstructure:"log" yaml:"log"`
	Metrics     MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Tracing     TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	Storage     StorageConfig `mapstructure:"storage" yaml:"storage"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // console, json or auto
	File   string `mapstructure:"file" yaml:"file"`
}

// MetricsConfig contains build metrics settings
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Textfile string `mapstructure:"textfile" yaml:"textfile"` // node_exporter textfile path
}

// TracingConfig contains OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure"`
}

// StorageConfig contains artifact storage settings
type StorageConfig struct {
	Provider    string `mapstructure:"provider" yaml:"provider"` // local or s3
	LocalPath   string `mapstructure:"local_path" yaml:"local_path"`
	S3Endpoint  string `mapstructure:"s3_endpoint" yaml:"s3_endpoint"`
	S3AccessKey string `mapstructure:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key" yaml:"s3_secret_key"`
	S3Bucket    string `mapstructure:"s3_bucket" yaml:"s3_bucket"`
	S3Region    string `mapstructure:"s3_region" yaml:"s3_region"`
	Prefix      string `mapstructure:"prefix" yaml:"prefix"`
}

// Load loads configuration from file and environment variables. An empty
// configFile searches the working directory and ./config for jsbundle.yaml.
func Load(configFile string) (*Config, error) {
	// Load .env file if it exists
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("jsbundle")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("JSBUNDLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("No config file found, using environment variables and defaults")
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("Config file loaded")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	// Lists may also be given comma-separated.
	config.Externals = splitList(config.Externals)
	config.MainFields = splitList(config.MainFields)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads environment variables from .env file
func loadEnvFile() error {
	for _, location := range []string{".env", ".env.local"} {
		if _, err := os.Stat(location); err == nil {
			if err := godotenv.Load(location); err != nil {
				return fmt.Errorf("error loading .env file from %s: %w", location, err)
			}
			log.Debug().Str("file", location).Msg(".env file loaded")
			return nil
		}
	}

	return fmt.Errorf("no .env file found")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("outdir", "dist")
	v.SetDefault("minify", false)
	v.SetDefault("metafile", false)
	v.SetDefault("externals", []string{})
	v.SetDefault("main_fields", []string{"main"})
	v.SetDefault("concurrency", 4)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("log.file", "")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.textfile", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.service_name", "jsbundle")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.insecure", true)

	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local_path", "")
	v.SetDefault("storage.s3_endpoint", "")
	v.SetDefault("storage.s3_access_key", "")
	v.SetDefault("storage.s3_secret_key", "")
	v.SetDefault("storage.s3_bucket", "")
	v.SetDefault("storage.s3_region", "us-east-1")
	v.SetDefault("storage.prefix", "")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}

	if len(c.MainFields) == 0 {
		return fmt.Errorf("main_fields must name at least one package.json field")
	}

	switch c.Log.Format {
	case "", "auto", "console", "json":
	default:
		return fmt.Errorf("log format must be 'auto', 'console' or 'json'")
	}

	if c.Tracing.Enabled && (c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1) {
		return fmt.Errorf("tracing sample_rate must be between 0 and 1")
	}

	return c.Storage.Validate()
}

// Validate validates storage configuration
func (sc *StorageConfig) Validate() error {
	if sc.Provider != "local" && sc.Provider != "s3" {
		return fmt.Errorf("storage provider must be 'local' or 's3'")
	}

	if sc.Provider == "s3" {
		if sc.S3Endpoint == "" || sc.S3AccessKey == "" ||
			sc.S3SecretKey == "" || sc.S3Bucket == "" {
			return fmt.Errorf("S3 configuration is incomplete")
		}
	}

	return nil
}

// splitList expands comma-separated entries, as produced by environment
// overrides, and drops empty ones.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
