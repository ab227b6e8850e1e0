// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/fluxbase-eu/jsbundle/internal/config"
)

// Logger is the configured global logger and the resources behind it.
type Logger struct {
	*Writer
	file *os.File
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Setup installs the global logger described by cfg, writing console output
// to stderr.
func Setup(cfg config.LogConfig) (*Logger, error) {
	return setup(cfg, os.Stderr, isTerminal(os.Stderr))
}

func setup(cfg config.LogConfig, stderr io.Writer, tty bool) (*Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	format := cfg.Format
	if format == "" || format == "auto" {
		format = "json"
		if tty {
			format = "console"
		}
	}

	l := &Logger{}
	var file io.Writer
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.file = f
		file = f
	}

	l.Writer = NewWriter(stderr, format, file)
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(l.Writer).With().Timestamp().Logger()
	return l, nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
