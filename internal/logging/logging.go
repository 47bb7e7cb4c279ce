// Package logging builds the structured logger used across seopipe.
//
// Records are JSON lines written to a size-rotated file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/config"
)

// Logger wraps an slog.Logger and the rotating file it writes to.
type Logger struct {
	*slog.Logger
	file *lumberjack.Logger
}

// New returns a logger writing JSON records to cfg.Path, rotated by size.
// An empty path logs to stderr.
func New(cfg config.LogConfig) (*Logger, error) {
	level := ParseLevel(cfg.Level)
	if strings.TrimSpace(cfg.Path) == "" {
		return &Logger{Logger: newJSON(os.Stderr, level)}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	file := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB, // megabytes
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays, // days
		Compress:   true,
	}
	return &Logger{Logger: newJSON(file, level), file: file}, nil
}

// NewWithWriter returns a logger writing JSON records to w.
func NewWithWriter(w io.Writer, level string) *Logger {
	return &Logger{Logger: newJSON(w, ParseLevel(level))}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}

// Close closes the underlying log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else
// is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newJSON(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
