package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/docqa-backend/internal/ingestion/chunker"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docqa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DOCQA_CONFIG_FILE", "")
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("CHUNK_OVERLAP", "")
	t.Setenv("OBJECT_STORAGE_MODE", "")
	t.Setenv("EMBED_BATCH_SIZE", "")
	t.Setenv("EMBED_BATCH_PAUSE_MS", "")

	cfg, err := LoadConfig(logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, chunker.DefaultSize, cfg.Ingest.ChunkSize)
	assert.Equal(t, chunker.DefaultOverlap, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, 5, cfg.Ingest.EmbedBatchSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Ingest.EmbedBatchPause)
	assert.Equal(t, string(StorageModeLocal), cfg.ObjectStorageMode)
	assert.Equal(t, 3, cfg.Retrieval.AreaTopK)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := writeConfigFile(t, `
ingestion:
  chunk_size: 800
  chunk_overlap: 0
  embed_batch_pause_ms: 0
retrieval:
  general_top_k: 6
  history_window: 8
`)
	t.Setenv("DOCQA_CONFIG_FILE", path)
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("CHUNK_OVERLAP", "")
	t.Setenv("EMBED_BATCH_PAUSE_MS", "")
	t.Setenv("EMBED_BATCH_SIZE", "9")

	cfg, err := LoadConfig(logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Ingest.ChunkSize)
	assert.Equal(t, 0, cfg.Ingest.ChunkOverlap, "explicit zero overlap in the file is kept")
	assert.Equal(t, time.Duration(0), cfg.Ingest.EmbedBatchPause)
	assert.Equal(t, 9, cfg.Ingest.EmbedBatchSize)
	assert.Equal(t, 6, cfg.Retrieval.GeneralTopK)
	assert.Equal(t, 8, cfg.Retrieval.HistoryWindow)
	assert.Equal(t, 3, cfg.Retrieval.MaxSources)
}

func TestLoadConfigRejectsOverlapNotBelowSize(t *testing.T) {
	t.Setenv("DOCQA_CONFIG_FILE", "")
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")

	_, err := LoadConfig(logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHUNK_OVERLAP")
}

func TestLoadConfigBadFile(t *testing.T) {
	t.Setenv("DOCQA_CONFIG_FILE", writeConfigFile(t, "ingestion: [not, a, map"))
	_, err := LoadConfig(logger.Nop())
	require.Error(t, err)

	t.Setenv("DOCQA_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = LoadConfig(logger.Nop())
	require.Error(t, err)
}
