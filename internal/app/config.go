package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/docqa-backend/internal/data/db"
	"github.com/yungbote/docqa-backend/internal/platform/envutil"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
	"github.com/yungbote/docqa-backend/internal/retrieval"
	"github.com/yungbote/docqa-backend/internal/services"
)

type Config struct {
	Port        string
	LogMode     string
	ServiceName string
	Environment string

	DB db.Config

	// ObjectStorageMode is local, gcs or gcs_emulator.
	ObjectStorageMode string
	UploadsDir        string

	// VectorProvider is memory or qdrant. Empty picks qdrant when QDRANT_URL
	// is set.
	VectorProvider string

	RedisAddr    string
	RedisChannel string

	CORSOrigins []string

	Ingest    services.IngestConfig
	Retrieval retrieval.Config
}

// fileConfig is the optional YAML file named by DOCQA_CONFIG_FILE. It only
// carries tunables; env still wins over it.
type fileConfig struct {
	Ingestion struct {
		MaxFileSize            int64 `yaml:"max_file_size"`
		ChunkSize              int   `yaml:"chunk_size"`
		ChunkOverlap           *int  `yaml:"chunk_overlap"`
		EmbedBatchSize         int   `yaml:"embed_batch_size"`
		EmbedBatchPauseMS      *int  `yaml:"embed_batch_pause_ms"`
		ProgressCleanupSeconds int   `yaml:"progress_cleanup_seconds"`
	} `yaml:"ingestion"`
	Retrieval struct {
		AreaTopK           int `yaml:"area_top_k"`
		GeneralTopK        int `yaml:"general_top_k"`
		KeywordLimit       int `yaml:"keyword_limit"`
		MaxAreaSnippets    int `yaml:"max_area_snippets"`
		MaxGeneralSnippets int `yaml:"max_general_snippets"`
		MaxSources         int `yaml:"max_sources"`
		HistoryWindow      int `yaml:"history_window"`
		AreaPreviewChars   int `yaml:"area_preview_chars"`
		Concurrency        int `yaml:"concurrency"`
	} `yaml:"retrieval"`
}

// LoadConfig layers defaults, the YAML file and the environment, in that
// order. A .env file in the working directory is loaded first when present.
func LoadConfig(log *logger.Logger) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Could not load .env", "error", err)
	}

	cfg := Config{
		Ingest:    services.DefaultIngestConfig(),
		Retrieval: retrieval.DefaultConfig(),
	}
	if path := envutil.String("DOCQA_CONFIG_FILE", ""); path != "" {
		if err := applyConfigFile(&cfg, path); err != nil {
			return Config{}, err
		}
		log.Info("Loaded config file", "path", path)
	}

	cfg.Port = envutil.String("PORT", "8000")
	cfg.LogMode = envutil.String("LOG_MODE", "development")
	cfg.ServiceName = envutil.String("OTEL_SERVICE_NAME", "docqa-backend")
	cfg.Environment = envutil.String("APP_ENV", "development")

	cfg.DB = db.Config{
		Driver:           envutil.String("DB_DRIVER", db.DriverSQLite),
		SQLitePath:       envutil.String("SQLITE_PATH", "data/docqa.db"),
		PostgresHost:     envutil.String("POSTGRES_HOST", "localhost"),
		PostgresPort:     envutil.String("POSTGRES_PORT", "5432"),
		PostgresUser:     envutil.String("POSTGRES_USER", "postgres"),
		PostgresPassword: envutil.String("POSTGRES_PASSWORD", ""),
		PostgresName:     envutil.String("POSTGRES_NAME", "docqa"),
		PostgresSSLMode:  envutil.String("POSTGRES_SSLMODE", "disable"),
	}

	cfg.ObjectStorageMode = strings.ToLower(envutil.String("OBJECT_STORAGE_MODE", string(StorageModeLocal)))
	cfg.UploadsDir = envutil.String("UPLOADS_DIR", "uploads")
	cfg.VectorProvider = strings.ToLower(envutil.String("VECTOR_PROVIDER", ""))
	cfg.RedisAddr = envutil.String("REDIS_ADDR", "")
	cfg.RedisChannel = envutil.String("REDIS_CHANNEL", "docqa:sse")
	cfg.CORSOrigins = envutil.List("CORS_ALLOW_ORIGINS", nil)

	in := &cfg.Ingest
	in.MaxFileSize = envutil.Int64("MAX_FILE_SIZE", in.MaxFileSize)
	in.ChunkSize = envutil.Int("CHUNK_SIZE", in.ChunkSize)
	in.ChunkOverlap = envutil.Int("CHUNK_OVERLAP", in.ChunkOverlap)
	in.EmbedBatchSize = envutil.Int("EMBED_BATCH_SIZE", in.EmbedBatchSize)
	in.EmbedBatchPause = time.Duration(envutil.Int("EMBED_BATCH_PAUSE_MS", int(in.EmbedBatchPause/time.Millisecond))) * time.Millisecond
	in.ProgressCleanup = time.Duration(envutil.Int("PROGRESS_CLEANUP_SECONDS", int(in.ProgressCleanup/time.Second))) * time.Second

	if in.ChunkOverlap >= in.ChunkSize {
		return Config{}, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", in.ChunkOverlap, in.ChunkSize)
	}
	return cfg, nil
}

func applyConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	in := &cfg.Ingest
	setInt64(&in.MaxFileSize, fc.Ingestion.MaxFileSize)
	setInt(&in.ChunkSize, fc.Ingestion.ChunkSize)
	if fc.Ingestion.ChunkOverlap != nil {
		in.ChunkOverlap = *fc.Ingestion.ChunkOverlap
	}
	setInt(&in.EmbedBatchSize, fc.Ingestion.EmbedBatchSize)
	if fc.Ingestion.EmbedBatchPauseMS != nil {
		in.EmbedBatchPause = time.Duration(*fc.Ingestion.EmbedBatchPauseMS) * time.Millisecond
	}
	if fc.Ingestion.ProgressCleanupSeconds > 0 {
		in.ProgressCleanup = time.Duration(fc.Ingestion.ProgressCleanupSeconds) * time.Second
	}

	rc := &cfg.Retrieval
	fr := fc.Retrieval
	setInt(&rc.AreaTopK, fr.AreaTopK)
	setInt(&rc.GeneralTopK, fr.GeneralTopK)
	setInt(&rc.KeywordLimit, fr.KeywordLimit)
	setInt(&rc.MaxAreaSnippets, fr.MaxAreaSnippets)
	setInt(&rc.MaxGeneralSnippets, fr.MaxGeneralSnippets)
	setInt(&rc.MaxSources, fr.MaxSources)
	setInt(&rc.HistoryWindow, fr.HistoryWindow)
	setInt(&rc.AreaPreviewChars, fr.AreaPreviewChars)
	setInt(&rc.Concurrency, fr.Concurrency)
	return nil
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setInt64(dst *int64, v int64) {
	if v > 0 {
		*dst = v
	}
}
