package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eslsoft/vocsync/internal/infrastructure/config"
)

func TestNewLogger(t *testing.T) {
	logger, cleanup, err := NewLogger(&config.Config{Log: config.LogConfig{Level: "debug", Format: "text"}})
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, _, err := NewLogger(&config.Config{Log: config.LogConfig{Level: "loud"}})
	assert.Error(t, err)
}

func TestNewLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocsync.log")
	logger, cleanup, err := NewLogger(&config.Config{Log: config.LogConfig{
		Level:     "info",
		Format:    "json",
		File:      path,
		MaxSizeMB: 1,
	}})
	require.NoError(t, err)

	logger.WithField("books", 2).Info("sync to remote finished")
	cleanup()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"sync to remote finished"`)
	assert.Contains(t, string(raw), `"books":2`)
}
