package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	Setup(Config{Stderr: "never"})

	logger := NewLogger("test-component")
	require.NotNil(t, logger)
	assert.Equal(t, "test-component", logger.Data["component"])
	assert.Same(t, logger, NewLogger("test-component"))
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv("ITEMSYNC_LOG_LEVEL", "debug")
	Setup(Config{Level: "warn", Stderr: "never"})

	assert.Equal(t, logrus.DebugLevel, NewLogger("env-level").Logger.GetLevel())
}

func TestLevelFallback(t *testing.T) {
	t.Setenv("ITEMSYNC_LOG_LEVEL", "")
	Setup(Config{Level: "not-a-level", Stderr: "never"})

	assert.Equal(t, logrus.InfoLevel, NewLogger("fallback").Logger.GetLevel())
}

func TestFileSink(t *testing.T) {
	t.Setenv("ITEMSYNC_LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "logs", "itemsync.log")
	Setup(Config{File: path, Format: "json", Stderr: "never"})
	t.Cleanup(func() { Setup(Config{Stderr: "never"}) })

	NewLogger("file-sink").Info("hello from the file sink")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello from the file sink"`)
	assert.Contains(t, string(data), `"component":"file-sink"`)
}
