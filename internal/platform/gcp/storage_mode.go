package gcp

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yungbote/docqa-backend/internal/platform/envutil"
)

type ObjectStorageMode string

const (
	ObjectStorageModeGCS         ObjectStorageMode = "gcs"
	ObjectStorageModeGCSEmulator ObjectStorageMode = "gcs_emulator"
)

type BucketConfig struct {
	Mode         ObjectStorageMode
	Name         string
	EmulatorHost string
}

func (cfg BucketConfig) IsEmulatorMode() bool {
	return cfg.Mode == ObjectStorageModeGCSEmulator
}

type BucketConfigErrorCode string

const (
	BucketConfigErrorInvalidMode         BucketConfigErrorCode = "invalid_mode"
	BucketConfigErrorMissingBucket       BucketConfigErrorCode = "missing_bucket"
	BucketConfigErrorMissingEmulatorHost BucketConfigErrorCode = "missing_emulator_host"
	BucketConfigErrorInvalidEmulatorHost BucketConfigErrorCode = "invalid_emulator_host"
)

type BucketConfigError struct {
	Code  BucketConfigErrorCode
	Value string
	Cause error
}

func (e *BucketConfigError) Error() string {
	if e == nil {
		return "invalid bucket config"
	}
	switch e.Code {
	case BucketConfigErrorInvalidMode:
		return fmt.Sprintf("invalid OBJECT_STORAGE_MODE=%q (allowed: %q, %q)", e.Value, ObjectStorageModeGCS, ObjectStorageModeGCSEmulator)
	case BucketConfigErrorMissingBucket:
		return "missing env var PDF_GCS_BUCKET_NAME"
	case BucketConfigErrorMissingEmulatorHost:
		return fmt.Sprintf("OBJECT_STORAGE_MODE=%q requires STORAGE_EMULATOR_HOST to be set", ObjectStorageModeGCSEmulator)
	case BucketConfigErrorInvalidEmulatorHost:
		return fmt.Sprintf("invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://fake-gcs:4443", e.Value)
	default:
		return "invalid bucket config"
	}
}

func (e *BucketConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// BucketConfigFromEnv resolves the PDF bucket for the given mode. An empty
// mode picks the emulator when STORAGE_EMULATOR_HOST is set.
func BucketConfigFromEnv(mode string) (BucketConfig, error) {
	cfg := BucketConfig{
		Name:         envutil.String("PDF_GCS_BUCKET_NAME", ""),
		EmulatorHost: strings.TrimRight(envutil.String("STORAGE_EMULATOR_HOST", ""), "/"),
	}
	switch m := ObjectStorageMode(strings.ToLower(strings.TrimSpace(mode))); m {
	case "":
		cfg.Mode = ObjectStorageModeGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode = ObjectStorageModeGCSEmulator
		}
	case ObjectStorageModeGCS, ObjectStorageModeGCSEmulator:
		cfg.Mode = m
	default:
		return cfg, &BucketConfigError{Code: BucketConfigErrorInvalidMode, Value: mode}
	}
	return cfg, cfg.Validate()
}

func (cfg BucketConfig) Validate() error {
	switch cfg.Mode {
	case ObjectStorageModeGCS, ObjectStorageModeGCSEmulator:
	default:
		return &BucketConfigError{Code: BucketConfigErrorInvalidMode, Value: string(cfg.Mode)}
	}
	if strings.TrimSpace(cfg.Name) == "" {
		return &BucketConfigError{Code: BucketConfigErrorMissingBucket}
	}
	if !cfg.IsEmulatorMode() {
		return nil
	}
	if cfg.EmulatorHost == "" {
		return &BucketConfigError{Code: BucketConfigErrorMissingEmulatorHost}
	}
	u, err := url.Parse(cfg.EmulatorHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &BucketConfigError{Code: BucketConfigErrorInvalidEmulatorHost, Value: cfg.EmulatorHost, Cause: err}
	}
	return nil
}
