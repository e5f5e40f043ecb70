package qdrant

import (
	"errors"
	"testing"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_COLLECTION", "")
	t.Setenv("QDRANT_VECTOR_DIM", "")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.Collection != "pdf_documents" || cfg.VectorDim != 1536 || cfg.Namespace != "docqa" {
		t.Fatalf("defaults: got=%+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		code ConfigErrorCode
	}{
		{"missing url", Config{Collection: "c", VectorDim: 3}, ConfigErrorMissingURL},
		{"relative url", Config{URL: "qdrant:6333", Collection: "c", VectorDim: 3}, ConfigErrorInvalidURL},
		{"missing collection", Config{URL: "http://q", VectorDim: 3}, ConfigErrorMissingCollection},
		{"bad dim", Config{URL: "http://q", Collection: "c"}, ConfigErrorInvalidVectorDim},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			var ce *ConfigError
			if !errors.As(err, &ce) || ce.Code != tc.code {
				t.Fatalf("want %s got=%v", tc.code, err)
			}
		})
	}
}
