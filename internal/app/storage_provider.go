package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/docqa-backend/internal/platform/blob"
	"github.com/yungbote/docqa-backend/internal/platform/gcp"
	"github.com/yungbote/docqa-backend/internal/platform/logger"
)

type StorageMode string

const (
	StorageModeLocal       StorageMode = "local"
	StorageModeGCS         StorageMode = StorageMode(gcp.ObjectStorageModeGCS)
	StorageModeGCSEmulator StorageMode = StorageMode(gcp.ObjectStorageModeGCSEmulator)
)

var (
	newLocalBlobStore = func(root string) (blob.Store, error) { return blob.NewLocal(root) }
	newGCSBucket      = gcp.NewBucket
)

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidMode         StorageProviderBootstrapErrorCode = "invalid_mode"
	StorageProviderBootstrapErrorMissingBucket       StorageProviderBootstrapErrorCode = "missing_bucket"
	StorageProviderBootstrapErrorMissingEmulatorHost StorageProviderBootstrapErrorCode = "missing_emulator_host"
	StorageProviderBootstrapErrorInvalidEmulatorHost StorageProviderBootstrapErrorCode = "invalid_emulator_host"
	StorageProviderBootstrapErrorLocalDirFailed      StorageProviderBootstrapErrorCode = "local_dir_failed"
	StorageProviderBootstrapErrorConnectFailed       StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code  StorageProviderBootstrapErrorCode
	Mode  string
	Cause error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "object storage bootstrap failed"
	}
	return fmt.Sprintf("object storage bootstrap failed (code=%s mode=%q): %v", e.Code, e.Mode, e.Cause)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveBlobStore returns the PDF store for the configured mode. The bucket
// is non-nil only for the GCS modes and must be closed by the caller.
func resolveBlobStore(ctx context.Context, log *logger.Logger, cfg Config) (blob.Store, *gcp.Bucket, error) {
	mode := strings.TrimSpace(strings.ToLower(cfg.ObjectStorageMode))
	if mode == "" {
		mode = string(StorageModeLocal)
	}

	switch StorageMode(mode) {
	case StorageModeLocal:
		log.Info("Selecting object storage provider", "mode", mode, "uploads_dir", cfg.UploadsDir)
		store, err := newLocalBlobStore(cfg.UploadsDir)
		if err != nil {
			err = &StorageProviderBootstrapError{Code: StorageProviderBootstrapErrorLocalDirFailed, Mode: mode, Cause: err}
			log.Error("Object storage provider bootstrap failed", "mode", mode, "error", err)
			return nil, nil, err
		}
		return store, nil, nil

	case StorageModeGCS, StorageModeGCSEmulator:
		bucketCfg, err := gcp.BucketConfigFromEnv(mode)
		if err != nil {
			classified := classifyStorageProviderBootstrapError(mode, err)
			log.Error("Object storage provider selection failed", "mode", mode, "error_code", storageProviderBootstrapErrorCode(classified), "error", classified)
			return nil, nil, classified
		}
		log.Info(
			"Selecting object storage provider",
			"mode", mode,
			"bucket", bucketCfg.Name,
			"emulator_host", bucketCfg.EmulatorHost,
		)
		bucket, err := newGCSBucket(ctx, log, bucketCfg)
		if err != nil {
			classified := classifyStorageProviderBootstrapError(mode, err)
			log.Error("Object storage provider bootstrap failed", "mode", mode, "error_code", storageProviderBootstrapErrorCode(classified), "error", classified)
			return nil, nil, classified
		}
		return blob.NewGCS(bucket), bucket, nil

	default:
		err := &StorageProviderBootstrapError{
			Code:  StorageProviderBootstrapErrorInvalidMode,
			Mode:  mode,
			Cause: fmt.Errorf("unsupported object storage mode %q", mode),
		}
		log.Error("Object storage provider selection failed", "mode", mode, "error_code", err.Code, "error", err)
		return nil, nil, err
	}
}

func classifyStorageProviderBootstrapError(mode string, err error) error {
	code := StorageProviderBootstrapErrorConnectFailed
	var cfgErr *gcp.BucketConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case gcp.BucketConfigErrorInvalidMode:
			code = StorageProviderBootstrapErrorInvalidMode
		case gcp.BucketConfigErrorMissingBucket:
			code = StorageProviderBootstrapErrorMissingBucket
		case gcp.BucketConfigErrorMissingEmulatorHost:
			code = StorageProviderBootstrapErrorMissingEmulatorHost
		case gcp.BucketConfigErrorInvalidEmulatorHost:
			code = StorageProviderBootstrapErrorInvalidEmulatorHost
		}
	}
	return &StorageProviderBootstrapError{Code: code, Mode: mode, Cause: err}
}

func storageProviderBootstrapErrorCode(err error) StorageProviderBootstrapErrorCode {
	var bootstrapErr *StorageProviderBootstrapError
	if errors.As(err, &bootstrapErr) && bootstrapErr.Code != "" {
		return bootstrapErr.Code
	}
	return StorageProviderBootstrapErrorConnectFailed
}
