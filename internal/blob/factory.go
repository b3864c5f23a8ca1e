package blob

import (
	"fmt"
	"strings"

	appcfg "github.com/fdg312/sugarcheck/internal/config"
)

type Logger interface {
	Printf(format string, v ...any)
}

// LocalPathPrefix is the route that serves MemoryStore artifacts.
const LocalPathPrefix = "/v1/artifacts"

// NewBlobStore builds a blob store using mode local|s3|minio|auto.
// Local mode returns a *MemoryStore whose URLs point at publicBaseURL.
func NewBlobStore(cfg appcfg.BlobConfig, publicBaseURL string, logger Logger) (Store, string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = appcfg.BlobModeLocal
	}

	switch mode {
	case appcfg.BlobModeLocal:
		logf(logger, "INFO blob: mode=local (forced)")
		return newLocal(publicBaseURL), appcfg.BlobModeLocal, nil

	case appcfg.BlobModeAuto:
		if cfg.S3.IsConfigured() {
			logf(logger, "INFO blob.s3: code=s3_ready %s", cfg.S3.DiagnosticsSummary())
			store, err := newS3(cfg)
			if err == nil {
				logf(logger, "INFO blob: mode=s3 (auto, configured)")
				return store, appcfg.BlobModeS3, nil
			}
			logf(logger, "WARN blob.s3: init_failed=%q", err.Error())
		} else {
			level, code, msg := cfg.S3.Diagnostics()
			logf(logger, "%s blob.s3: code=%s %s", strings.ToUpper(level), code, msg)
		}

		if cfg.Minio.IsConfigured() {
			store, err := newMinio(cfg)
			if err == nil {
				logf(logger, "INFO blob: mode=minio (auto, configured)")
				return store, appcfg.BlobModeMinio, nil
			}
			logf(logger, "WARN blob.minio: init_failed=%q", err.Error())
		}

		logf(logger, "INFO blob: mode=local (auto, no remote store configured)")
		return newLocal(publicBaseURL), appcfg.BlobModeLocal, nil

	case appcfg.BlobModeS3:
		if !cfg.S3.IsConfigured() {
			missing := cfg.S3.MissingRequired()
			logf(logger, "FATAL blob.s3: code=s3_config_incomplete missing=%v", missing)
			logf(logger, "FATAL blob.s3: %s", cfg.S3.DiagnosticsSummary())
			return nil, "", fmt.Errorf("BLOB_MODE=s3 requested but missing required config: %s", strings.Join(missing, ", "))
		}

		logf(logger, "INFO blob.s3: code=s3_ready %s", cfg.S3.DiagnosticsSummary())
		store, err := newS3(cfg)
		if err != nil {
			logf(logger, "FATAL blob.s3: init_failed=%v", err)
			return nil, "", fmt.Errorf("BLOB_MODE=s3 init failed: %w", err)
		}

		logf(logger, "INFO blob: mode=s3 (forced)")
		return store, appcfg.BlobModeS3, nil

	case appcfg.BlobModeMinio:
		if !cfg.Minio.IsConfigured() {
			missing := cfg.Minio.MissingRequired()
			logf(logger, "FATAL blob.minio: code=minio_config_incomplete missing=%v", missing)
			return nil, "", fmt.Errorf("BLOB_MODE=minio requested but missing required config: %s", strings.Join(missing, ", "))
		}

		store, err := newMinio(cfg)
		if err != nil {
			logf(logger, "FATAL blob.minio: init_failed=%v", err)
			return nil, "", fmt.Errorf("BLOB_MODE=minio init failed: %w", err)
		}

		logf(logger, "INFO blob: mode=minio (forced) endpoint=%s bucket=%s", cfg.Minio.Endpoint, cfg.Minio.Bucket)
		return store, appcfg.BlobModeMinio, nil

	default:
		return nil, "", fmt.Errorf("unsupported blob mode: %s", mode)
	}
}

func newLocal(publicBaseURL string) *MemoryStore {
	return NewMemoryStore(strings.TrimRight(publicBaseURL, "/") + LocalPathPrefix)
}

func newS3(cfg appcfg.BlobConfig) (*S3Store, error) {
	return NewS3Store(cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.Bucket, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, cfg.S3.PublicBaseURL)
}

func newMinio(cfg appcfg.BlobConfig) (*MinioStore, error) {
	m := cfg.Minio
	return NewMinioStore(m.Endpoint, m.AccessKey, m.SecretKey, m.Bucket, m.Region, m.UseSSL, cfg.PublicPrefix, m.PublicBaseURL)
}

func logf(logger Logger, format string, v ...any) {
	if logger == nil {
		return
	}
	logger.Printf(format, v...)
}
