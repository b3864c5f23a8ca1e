package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/fdg312/sugarcheck/internal/blob"
	"github.com/fdg312/sugarcheck/internal/config"
	"github.com/fdg312/sugarcheck/internal/dbmigrate"
	"github.com/fdg312/sugarcheck/internal/httpserver"
	"github.com/fdg312/sugarcheck/internal/keylock"
	"github.com/fdg312/sugarcheck/internal/logger"
	"github.com/fdg312/sugarcheck/internal/pdf"
	"github.com/fdg312/sugarcheck/internal/reports"
	"github.com/fdg312/sugarcheck/internal/storage"
	"github.com/fdg312/sugarcheck/internal/storage/memory"
	"github.com/fdg312/sugarcheck/internal/storage/postgres"
)

const serviceName = "sugarcheck-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		log.Fatalf("FATAL logger: %v", err)
	}
	defer zl.Sync()

	printStartupBanner(cfg, zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RunMigrationsOnStartup {
		sel, err := dbmigrate.SelectStartupURL(cfg)
		if err != nil {
			zl.Fatal("startup migrations", zap.Error(err))
		}
		if sel.Skip() {
			zl.Info("startup migrations skipped", zap.String("storage", sel.Source))
		} else {
			zl.Info("startup migrations", zap.String("command", "up"), zap.String("using", sel.Source))
			if err := dbmigrate.Run(ctx, "up", sel.URL, dbmigrate.Options{Logger: logger.Printf{L: zl}}); err != nil {
				zl.Fatal("startup migrations failed", zap.Error(err))
			}
		}
	}

	store := openStorage(ctx, cfg, zl)

	blobStore, blobMode, err := blob.NewBlobStore(cfg.Blob, cfg.PublicBaseURL, logger.Printf{L: zl})
	if err != nil {
		zl.Fatal("blob store init failed", zap.Error(err))
	}
	artifacts, _ := blobStore.(*blob.MemoryStore)
	zl.Info("blob store ready", zap.String("mode", blobMode))

	locker, closeLocker := newLocker(cfg, zl)
	defer closeLocker()

	service := reports.NewService(store, store, store, blobStore, newEngine, locker, reports.Config{
		RenderTimeout: time.Duration(cfg.Reports.RenderTimeoutSeconds) * time.Second,
		UploadTimeout: time.Duration(cfg.Reports.UploadTimeoutSeconds) * time.Second,
		ListLimit:     cfg.Reports.ListLimit,
	}, zl)

	server := httpserver.New(cfg, httpserver.Deps{
		Storage:   store,
		Reports:   service,
		Artifacts: artifacts,
	}, zl)
	defer server.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			zl.Fatal("server stopped", zap.Error(err))
		}
	case <-ctx.Done():
		zl.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zl.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}

// newEngine gives every request its own PDF engine.
func newEngine(ctx context.Context) (reports.RenderEngine, error) {
	return pdf.New(), nil
}

// openStorage uses Postgres when a database URL is configured, otherwise a
// seeded in-memory store (local only).
func openStorage(ctx context.Context, cfg *config.Config, zl *zap.Logger) storage.Storage {
	if cfg.DatabaseURL == "" {
		mem := memory.New()
		if cfg.Env == "local" {
			id := memory.SeedDemo(mem, time.Now())
			zl.Info("using in-memory storage with demo user", zap.String("user_id", id.String()))
		} else {
			zl.Warn("using in-memory storage")
		}
		return mem
	}

	pg, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("postgres connection failed", zap.Error(err))
	}
	zl.Info("postgres connected")
	return pg
}

func newLocker(cfg *config.Config, zl *zap.Logger) (keylock.Locker, func()) {
	switch cfg.Reports.LockMode {
	case config.LockModeRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ttl := time.Duration(cfg.Reports.LockTTLSeconds) * time.Second
		zl.Info("report lock: redis", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", ttl))
		return keylock.NewRedis(client, ttl, zl), func() { client.Close() }
	case config.LockModeNone:
		zl.Warn("report lock disabled, identical concurrent requests may both render")
		return keylock.Noop{}, func() {}
	default:
		return keylock.NewMemory(), func() {}
	}
}

// printStartupBanner logs a one-time summary of the resolved configuration.
// Secrets are only reported as "set" / "not set".
func printStartupBanner(cfg *config.Config, zl *zap.Logger) {
	s := zl.Sugar()
	s.Info("========== SugarCheck API ==========")
	s.Infof("  env              = %s", cfg.Env)
	s.Infof("  port             = %d", cfg.Port)
	s.Infof("  public_base_url  = %s", cfg.PublicBaseURL)

	s.Info("---- database ----")
	s.Infof("  runtime_url      = %s", describeDBURL(cfg.DatabaseURL, cfg.DatabaseURLPooled))
	s.Infof("  direct           = %s", setOrNot(cfg.DatabaseURLDirect))
	s.Infof("  migrations_on_startup = %t", cfg.RunMigrationsOnStartup)

	s.Info("---- auth ----")
	s.Infof("  auth_mode        = %s", cfg.AuthMode)
	s.Infof("  jwt_secret       = %s", secretStatus(cfg.JWTSecret, "change_me"))

	s.Info("---- blob ----")
	s.Infof("  blob_mode        = %s", cfg.Blob.Mode)
	if cfg.Blob.Mode == config.BlobModeS3 || cfg.Blob.Mode == config.BlobModeAuto {
		s.Infof("  s3: %s", cfg.Blob.S3.DiagnosticsSummary())
	}
	if cfg.Blob.Mode == config.BlobModeMinio || cfg.Blob.Mode == config.BlobModeAuto {
		s.Infof("  minio_endpoint   = %s", nonEmptyOrDash(cfg.Blob.Minio.Endpoint))
	}

	s.Info("---- reports ----")
	s.Infof("  render_timeout   = %ds", cfg.Reports.RenderTimeoutSeconds)
	s.Infof("  upload_timeout   = %ds", cfg.Reports.UploadTimeoutSeconds)
	s.Infof("  lock_mode        = %s", cfg.Reports.LockMode)
	if cfg.Reports.LockMode == config.LockModeRedis {
		s.Infof("  redis_addr       = %s", cfg.Redis.Addr)
		s.Infof("  redis_password   = %s", setOrNot(cfg.Redis.Password))
	}
	s.Info("====================================")
}

func setOrNot(v string) string {
	if strings.TrimSpace(v) == "" {
		return "not set"
	}
	return "set"
}

func nonEmptyOrDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

func secretStatus(v, insecureDefault string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "not set"
	}
	if v == insecureDefault {
		return "set (DEFAULT, insecure)"
	}
	return "set (custom)"
}

func describeDBURL(runtime, pooled string) string {
	if runtime == "" {
		return "not set (will use in-memory storage)"
	}
	if pooled != "" && runtime == pooled {
		return "set (via DATABASE_URL_POOLED)"
	}
	return "set"
}
