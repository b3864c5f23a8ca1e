package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestS3ConfigIsConfigured(t *testing.T) {
	t.Run("empty config is not configured", func(t *testing.T) {
		cfg := S3Config{}
		if cfg.IsConfigured() {
			t.Fatal("expected IsConfigured=false for empty config")
		}
	})

	t.Run("required fields set is configured", func(t *testing.T) {
		cfg := S3Config{
			Endpoint:        "https://storage.yandexcloud.net",
			Region:          "ru-central1",
			Bucket:          "bucket",
			AccessKeyID:     "key",
			SecretAccessKey: "secret",
		}
		if !cfg.IsConfigured() {
			t.Fatal("expected IsConfigured=true when all required fields are set")
		}
	})
}

func TestS3ConfigMissingRequired(t *testing.T) {
	cfg := S3Config{
		Endpoint: "https://storage.yandexcloud.net",
		Bucket:   "bucket",
	}
	missing := cfg.MissingRequired()

	want := []string{"S3_REGION", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY"}
	if len(missing) != len(want) {
		t.Fatalf("expected %d missing fields, got %d (%v)", len(want), len(missing), missing)
	}
	for i := range want {
		if missing[i] != want[i] {
			t.Fatalf("expected missing[%d]=%s, got %s", i, want[i], missing[i])
		}
	}
}

func TestS3ConfigDiagnostics(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		level, code, _ := (S3Config{}).Diagnostics()
		if level != "info" || code != "s3_not_configured" {
			t.Fatalf("expected info/s3_not_configured, got %s/%s", level, code)
		}
	})

	t.Run("partial config", func(t *testing.T) {
		level, code, _ := (S3Config{Endpoint: "https://storage.yandexcloud.net"}).Diagnostics()
		if level != "warn" || code != "s3_partial_config" {
			t.Fatalf("expected warn/s3_partial_config, got %s/%s", level, code)
		}
	})
}

func TestMinioConfigMissingRequired(t *testing.T) {
	missing := (MinioConfig{Endpoint: "localhost:9000"}).MissingRequired()
	want := []string{"MINIO_BUCKET", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY"}
	if len(missing) != len(want) {
		t.Fatalf("expected %v, got %v", want, missing)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("APP_ENV", "local")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.Blob.Mode != BlobModeLocal {
		t.Fatalf("expected blob mode local, got %s", cfg.Blob.Mode)
	}
	if cfg.Reports.LockMode != LockModeMemory {
		t.Fatalf("expected lock mode memory, got %s", cfg.Reports.LockMode)
	}
	if cfg.Reports.RenderTimeoutSeconds != 30 || cfg.Reports.UploadTimeoutSeconds != 60 {
		t.Fatalf("unexpected timeouts: %+v", cfg.Reports)
	}
	if cfg.PublicBaseURL != "http://localhost:8080" {
		t.Fatalf("unexpected public base url %q", cfg.PublicBaseURL)
	}
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("port: 9090\nreports:\n  lockMode: none\n  listLimit: 5\nblob:\n  mode: local\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("REPORTS_LIST_LIMIT", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9090 {
		t.Fatalf("expected port from file, got %d", cfg.Port)
	}
	if cfg.Reports.LockMode != LockModeNone {
		t.Fatalf("expected lock mode from file, got %s", cfg.Reports.LockMode)
	}
	if cfg.Reports.ListLimit != 7 {
		t.Fatalf("expected env to override file, got %d", cfg.Reports.ListLimit)
	}
}

func TestLoadUnknownModesFallBack(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("BLOB_MODE", "ftp")
	t.Setenv("REPORTS_LOCK_MODE", "zookeeper")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Blob.Mode != BlobModeLocal {
		t.Fatalf("expected fallback to local, got %s", cfg.Blob.Mode)
	}
	if cfg.Reports.LockMode != LockModeMemory {
		t.Fatalf("expected fallback to memory, got %s", cfg.Reports.LockMode)
	}
}

func TestValidateS3ModeRequiresConfig(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("BLOB_MODE", "s3")
	t.Setenv("S3_ENDPOINT", "")
	t.Setenv("S3_BUCKET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when BLOB_MODE=s3 without credentials")
	}
}

func TestDatabaseURLPriority(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DATABASE_URL_POOLED", "postgres://pooled")
	t.Setenv("DATABASE_URL", "postgres://raw")
	t.Setenv("DATABASE_URL_DIRECT", "postgres://direct")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://pooled" {
		t.Fatalf("expected pooled url for runtime, got %s", cfg.DatabaseURL)
	}
}
