package qdrant

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/yungbote/docqa-backend/internal/platform/envutil"
)

type Config struct {
	URL        string
	Collection string
	// Namespace isolates deployments that share a collection.
	Namespace string
	VectorDim int
	// CreateCollection creates a cosine collection of VectorDim when missing.
	CreateCollection bool
}

type ConfigErrorCode string

const (
	ConfigErrorMissingURL        ConfigErrorCode = "missing_url"
	ConfigErrorInvalidURL        ConfigErrorCode = "invalid_url"
	ConfigErrorMissingCollection ConfigErrorCode = "missing_collection"
	ConfigErrorInvalidVectorDim  ConfigErrorCode = "invalid_vector_dim"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid qdrant config"
	}
	switch e.Code {
	case ConfigErrorMissingURL:
		return "QDRANT_URL is required"
	case ConfigErrorInvalidURL:
		return fmt.Sprintf("invalid QDRANT_URL=%q; expected absolute URL like http://qdrant:6333", e.Value)
	case ConfigErrorMissingCollection:
		return "QDRANT_COLLECTION is required"
	case ConfigErrorInvalidVectorDim:
		return fmt.Sprintf("invalid QDRANT_VECTOR_DIM=%q; expected positive integer", e.Value)
	default:
		return "invalid qdrant config"
	}
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ConfigFromEnv reads QDRANT_URL, QDRANT_COLLECTION, QDRANT_NAMESPACE,
// QDRANT_VECTOR_DIM and QDRANT_CREATE_COLLECTION. The dimension defaults to
// that of text-embedding-3-small.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		URL:              envutil.String("QDRANT_URL", ""),
		Collection:       envutil.String("QDRANT_COLLECTION", "pdf_documents"),
		Namespace:        envutil.String("QDRANT_NAMESPACE", "docqa"),
		VectorDim:        envutil.Int("QDRANT_VECTOR_DIM", 1536),
		CreateCollection: envutil.Bool("QDRANT_CREATE_COLLECTION", true),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return &ConfigError{Code: ConfigErrorMissingURL}
	}
	parsed, err := url.Parse(c.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return &ConfigError{Code: ConfigErrorInvalidURL, Value: c.URL, Cause: err}
	}
	if strings.TrimSpace(c.Collection) == "" {
		return &ConfigError{Code: ConfigErrorMissingCollection}
	}
	if c.VectorDim <= 0 {
		return &ConfigError{Code: ConfigErrorInvalidVectorDim, Value: strconv.Itoa(c.VectorDim)}
	}
	return nil
}
