// Package logging builds the per-component logrus loggers used across itemsync.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex

	current Config
	output  io.Writer
	rotator *lumberjack.Logger
)

// Setup installs cfg for loggers created afterwards and drops cached loggers
// so the next NewLogger call picks up the new settings.
func Setup(cfg Config) {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if rotator != nil {
		_ = rotator.Close()
		rotator = nil
	}
	current = cfg
	output = buildOutput(cfg)
	loggers = make(map[string]*logrus.Entry)
}

// NewLogger creates and returns a pre-configured logger for a specific component.
// It returns the same entry for repeated calls with the same component.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	if output == nil {
		output = buildOutput(current)
	}

	logger := logrus.New()
	logger.SetLevel(level(current))
	if strings.EqualFold(current.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logger.SetOutput(output)

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

func level(cfg Config) logrus.Level {
	levelStr := "info"
	if env := os.Getenv("ITEMSYNC_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if cfg.Level != "" {
		levelStr = cfg.Level
	}
	lvl, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func buildOutput(cfg Config) io.Writer {
	var writers []io.Writer

	if cfg.File != "" {
		path := expandPath(cfg.File)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			rotator = &lumberjack.Logger{
				Filename:   path,
				MaxSize:    orDefault(cfg.MaxSizeMB, 10),
				MaxBackups: orDefault(cfg.MaxBackups, 3),
			}
			writers = append(writers, rotator)
		}
	}

	if toStderr(cfg) {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		// Interactive terminal without a file sink: stay quiet so the TUI is not corrupted.
		return io.Discard
	case 1:
		return writers[0]
	default:
		return io.MultiWriter(writers...)
	}
}

func toStderr(cfg Config) bool {
	switch cfg.Stderr {
	case "always":
		return true
	case "never":
		return false
	}
	isDebug := level(cfg) >= logrus.DebugLevel
	isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	return isDebug || !isInteractive
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// expandPath expands tilde in file paths
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
