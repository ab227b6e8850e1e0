package logging

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Writer is a zerolog writer that sends every entry to the console and,
// when configured, a JSON log file. It also counts entries per level so a
// command can report how many warnings a build produced.
type Writer struct {
	console io.Writer
	file    io.Writer

	mu     sync.Mutex
	counts map[zerolog.Level]int
}

// NewWriter creates a new zerolog writer. format is "console" for pretty
// output or "json"; file may be nil.
func NewWriter(out io.Writer, format string, file io.Writer) *Writer {
	console := out
	if format == "console" {
		// Pretty console output
		console = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
		}
	}

	return &Writer{
		console: console,
		file:    file,
		counts:  make(map[zerolog.Level]int),
	}
}

// WriteLevel implements zerolog.LevelWriter.
func (w *Writer) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	w.count(level)
	return w.write(p)
}

// Write implements io.Writer. The level is read back from the JSON entry.
func (w *Writer) Write(p []byte) (int, error) {
	w.count(parseLevel(p))
	return w.write(p)
}

func (w *Writer) write(p []byte) (int, error) {
	// Ignore console write errors - they shouldn't prevent logging
	if w.console != nil {
		_, _ = w.console.Write(p)
	}
	if w.file != nil {
		if _, err := w.file.Write(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (w *Writer) count(level zerolog.Level) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.counts[level]++
}

// Count returns how many entries were written at level.
func (w *Writer) Count(level zerolog.Level) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counts[level]
}

// parseLevel extracts the level field of a zerolog JSON entry.
func parseLevel(p []byte) zerolog.Level {
	var raw struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal(p, &raw); err != nil {
		return zerolog.NoLevel
	}
	switch strings.ToLower(raw.Level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.NoLevel
	}
}
