package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eslsoft/vocsync/internal/infrastructure/config"
)

func TestEngineOptions(t *testing.T) {
	cfg := &config.Config{Sync: config.SyncConfig{ChunkSize: 10, RelationBatchSize: 20, Concurrency: 2, HistoryEnabled: false}}

	assert.Len(t, engineOptions(cfg), 4)
}

func TestProvideLocalDB(t *testing.T) {
	cfg := &config.Config{Local: config.LocalConfig{Path: t.TempDir() + "/vocsync.db"}}

	db, cleanup, err := provideLocalDB(cfg)
	require.NoError(t, err)
	defer cleanup()

	require.NoError(t, db.Ping())
}
