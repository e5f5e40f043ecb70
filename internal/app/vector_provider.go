package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"

	"github.com/yungbote/docqa-backend/internal/observability"
	"github.com/yungbote/docqa-backend/internal/platform/envutil"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
	"github.com/yungbote/docqa-backend/internal/platform/qdrant"
	"github.com/yungbote/docqa-backend/internal/platform/vectorstore"
)

type VectorProvider string

const (
	VectorProviderMemory VectorProvider = "memory"
	VectorProviderQdrant VectorProvider = "qdrant"
)

var (
	newQdrantStore = func(ctx context.Context, log *logger.Logger, cfg qdrant.Config) (vectorstore.Store, error) {
		return qdrant.New(ctx, log, cfg)
	}
	qdrantConfigFrom = qdrant.ConfigFromEnv
)

type VectorProviderBootstrapErrorCode string

const (
	VectorProviderBootstrapErrorInvalidProvider     VectorProviderBootstrapErrorCode = "invalid_provider"
	VectorProviderBootstrapErrorMissingQdrantURL    VectorProviderBootstrapErrorCode = "missing_qdrant_url"
	VectorProviderBootstrapErrorInvalidQdrantURL    VectorProviderBootstrapErrorCode = "invalid_qdrant_url"
	VectorProviderBootstrapErrorMissingQdrantColl   VectorProviderBootstrapErrorCode = "missing_qdrant_collection"
	VectorProviderBootstrapErrorInvalidQdrantVector VectorProviderBootstrapErrorCode = "invalid_qdrant_vector_dim"
	VectorProviderBootstrapErrorConnectFailed       VectorProviderBootstrapErrorCode = "connect_failed"
	VectorProviderBootstrapErrorProviderInitFailed  VectorProviderBootstrapErrorCode = "provider_init_failed"
)

type VectorProviderBootstrapError struct {
	Code     VectorProviderBootstrapErrorCode
	Provider string
	Cause    error
}

func (e *VectorProviderBootstrapError) Error() string {
	if e == nil {
		return "vector provider bootstrap failed"
	}
	return fmt.Sprintf("vector provider bootstrap failed (code=%s provider=%q): %v", e.Code, e.Provider, e.Cause)
}

func (e *VectorProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// selectVectorProvider normalizes the configured provider. With nothing
// configured, a set QDRANT_URL selects qdrant and the in-process store is
// used otherwise.
func selectVectorProvider(configured string) (VectorProvider, string) {
	p := strings.TrimSpace(strings.ToLower(configured))
	if p != "" {
		return VectorProvider(p), "env"
	}
	if envutil.String("QDRANT_URL", "") != "" {
		return VectorProviderQdrant, "qdrant_url_default"
	}
	return VectorProviderMemory, "default"
}

func ResolveVectorStore(ctx context.Context, log *logger.Logger, cfg Config) (vectorstore.Store, error) {
	provider, source := selectVectorProvider(cfg.VectorProvider)

	switch provider {
	case VectorProviderMemory:
		log.Info("Selecting vector store provider", "provider", provider, "provider_mode_source", source)
		return instrumentVectorStore(string(provider), vectorstore.NewMemory()), nil

	case VectorProviderQdrant:
		qcfg, err := qdrantConfigFrom()
		if err != nil {
			classified := classifyVectorProviderBootstrapError(string(provider), err)
			log.Error(
				"Vector store provider selection failed",
				"provider", provider,
				"provider_mode_source", source,
				"error_code", vectorProviderBootstrapErrorCode(classified),
				"error", classified,
			)
			return nil, classified
		}
		log.Info(
			"Selecting vector store provider",
			"provider", provider,
			"provider_mode_source", source,
			"qdrant_url", qcfg.URL,
			"qdrant_collection", qcfg.Collection,
			"qdrant_namespace", qcfg.Namespace,
			"qdrant_vector_dim", qcfg.VectorDim,
		)
		vs, err := newQdrantStore(ctx, log, qcfg)
		if err != nil {
			classified := classifyVectorProviderBootstrapError(string(provider), err)
			log.Error(
				"Vector store provider bootstrap failed",
				"provider", provider,
				"provider_mode_source", source,
				"error_code", vectorProviderBootstrapErrorCode(classified),
				"error", classified,
			)
			return nil, classified
		}
		return instrumentVectorStore(string(provider), vs), nil

	default:
		err := &VectorProviderBootstrapError{
			Code:     VectorProviderBootstrapErrorInvalidProvider,
			Provider: string(provider),
			Cause:    fmt.Errorf("unsupported vector provider %q", provider),
		}
		log.Error("Vector store provider selection failed", "provider", provider, "error_code", err.Code, "error", err)
		return nil, err
	}
}

func instrumentVectorStore(provider string, vs vectorstore.Store) vectorstore.Store {
	if vs == nil {
		return nil
	}
	return &instrumentedVectorStore{provider: provider, inner: vs, metrics: observability.Current()}
}

func classifyVectorProviderBootstrapError(provider string, err error) error {
	var cfgErr *qdrant.ConfigError
	if errors.As(err, &cfgErr) {
		code := VectorProviderBootstrapErrorProviderInitFailed
		switch cfgErr.Code {
		case qdrant.ConfigErrorMissingURL:
			code = VectorProviderBootstrapErrorMissingQdrantURL
		case qdrant.ConfigErrorInvalidURL:
			code = VectorProviderBootstrapErrorInvalidQdrantURL
		case qdrant.ConfigErrorMissingCollection:
			code = VectorProviderBootstrapErrorMissingQdrantColl
		case qdrant.ConfigErrorInvalidVectorDim:
			code = VectorProviderBootstrapErrorInvalidQdrantVector
		}
		return &VectorProviderBootstrapError{Code: code, Provider: provider, Cause: err}
	}

	var urlErr *neturl.Error
	var netErr net.Error
	var opErr *qdrant.OperationError
	switch {
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return &VectorProviderBootstrapError{Code: VectorProviderBootstrapErrorConnectFailed, Provider: provider, Cause: err}
	case errors.As(err, &opErr) && (opErr.Code == qdrant.OperationErrorTransportFailed || opErr.Code == qdrant.OperationErrorTimeout):
		return &VectorProviderBootstrapError{Code: VectorProviderBootstrapErrorConnectFailed, Provider: provider, Cause: err}
	}
	if strings.Contains(strings.ToLower(err.Error()), "connection refused") {
		return &VectorProviderBootstrapError{Code: VectorProviderBootstrapErrorConnectFailed, Provider: provider, Cause: err}
	}
	return &VectorProviderBootstrapError{Code: VectorProviderBootstrapErrorProviderInitFailed, Provider: provider, Cause: err}
}

func vectorProviderBootstrapErrorCode(err error) VectorProviderBootstrapErrorCode {
	var bootstrapErr *VectorProviderBootstrapError
	if errors.As(err, &bootstrapErr) && bootstrapErr.Code != "" {
		return bootstrapErr.Code
	}
	return VectorProviderBootstrapErrorProviderInitFailed
}
