package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	BlobModeLocal = "local"
	BlobModeS3    = "s3"
	BlobModeMinio = "minio"
	BlobModeAuto  = "auto"

	LockModeMemory = "memory"
	LockModeRedis  = "redis"
	LockModeNone   = "none"

	AuthModeNone = "none"
	AuthModeJWT  = "jwt"
)

type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	PublicBaseURL   string `yaml:"publicBaseUrl"`
}

func (c S3Config) MissingRequired() []string {
	missing := make([]string, 0, 5)
	if strings.TrimSpace(c.Endpoint) == "" {
		missing = append(missing, "S3_ENDPOINT")
	}
	if strings.TrimSpace(c.Region) == "" {
		missing = append(missing, "S3_REGION")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		missing = append(missing, "S3_BUCKET")
	}
	if strings.TrimSpace(c.AccessKeyID) == "" {
		missing = append(missing, "S3_ACCESS_KEY_ID")
	}
	if strings.TrimSpace(c.SecretAccessKey) == "" {
		missing = append(missing, "S3_SECRET_ACCESS_KEY")
	}
	return missing
}

func (c S3Config) IsConfigured() bool {
	return len(c.MissingRequired()) == 0
}

func (c S3Config) Diagnostics() (level string, code string, msg string) {
	allEmpty := strings.TrimSpace(c.Endpoint) == "" &&
		strings.TrimSpace(c.Region) == "" &&
		strings.TrimSpace(c.Bucket) == "" &&
		strings.TrimSpace(c.AccessKeyID) == "" &&
		strings.TrimSpace(c.SecretAccessKey) == ""

	if allEmpty {
		return "info", "s3_not_configured", "not configured (all empty)"
	}

	missing := c.MissingRequired()
	if len(missing) > 0 {
		return "warn", "s3_partial_config", fmt.Sprintf("partial config, missing=%v", missing)
	}

	return "info", "s3_ready", "ready"
}

// DiagnosticsSummary returns a detailed summary for logging (no secrets)
func (c S3Config) DiagnosticsSummary() string {
	return fmt.Sprintf("endpoint=%s region=%s bucket=%s public_base_url=%s access_key_id=%s secret_access_key=%s",
		nonEmptyOrDash(c.Endpoint),
		nonEmptyOrDash(c.Region),
		nonEmptyOrDash(c.Bucket),
		nonEmptyOrDash(c.PublicBaseURL),
		setOrNot(c.AccessKeyID),
		setOrNot(c.SecretAccessKey),
	)
}

// MinioConfig describes an S3-compatible endpoint reached through minio-go
// (MinIO, R2 and friends).
type MinioConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Region        string `yaml:"region"`
	Bucket        string `yaml:"bucket"`
	AccessKey     string `yaml:"accessKey"`
	SecretKey     string `yaml:"secretKey"`
	UseSSL        bool   `yaml:"useSsl"`
	PublicBaseURL string `yaml:"publicBaseUrl"`
}

func (c MinioConfig) MissingRequired() []string {
	missing := make([]string, 0, 4)
	if strings.TrimSpace(c.Endpoint) == "" {
		missing = append(missing, "MINIO_ENDPOINT")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		missing = append(missing, "MINIO_BUCKET")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		missing = append(missing, "MINIO_ACCESS_KEY")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		missing = append(missing, "MINIO_SECRET_KEY")
	}
	return missing
}

func (c MinioConfig) IsConfigured() bool {
	return len(c.MissingRequired()) == 0
}

type BlobConfig struct {
	Mode  string      `yaml:"mode"` // local|s3|minio|auto
	S3    S3Config    `yaml:"s3"`
	Minio MinioConfig `yaml:"minio"`
	// PublicPrefix is the key prefix under which artifacts are made world readable.
	PublicPrefix string `yaml:"publicPrefix"`
}

type ReportsConfig struct {
	RenderTimeoutSeconds int    `yaml:"renderTimeoutSeconds"`
	UploadTimeoutSeconds int    `yaml:"uploadTimeoutSeconds"`
	LockMode             string `yaml:"lockMode"` // memory|redis|none
	LockTTLSeconds       int    `yaml:"lockTtlSeconds"`
	ListLimit            int    `yaml:"listLimit"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Config holds the service configuration.
type Config struct {
	Env       string `yaml:"env"` // local | staging | production
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"` // json | console

	// Database
	DatabaseURL       string `yaml:"-"` // runtime connection (resolved: pooled > url > direct)
	DatabaseURLRaw    string `yaml:"databaseUrl"`
	DatabaseURLPooled string `yaml:"databaseUrlPooled"`
	DatabaseURLDirect string `yaml:"databaseUrlDirect"`

	RunMigrationsOnStartup bool `yaml:"runMigrationsOnStartup"`

	// CORS
	CORSAllowedOrigins   []string `yaml:"corsAllowedOrigins"`
	CORSAllowCredentials bool     `yaml:"corsAllowCredentials"`

	// Rate Limiting
	RateLimitRPS   int `yaml:"rateLimitRps"`
	RateLimitBurst int `yaml:"rateLimitBurst"`

	// Authentication
	AuthMode      string `yaml:"authMode"` // none | jwt
	JWTSecret     string `yaml:"jwtSecret"`
	JWTIssuer     string `yaml:"jwtIssuer"`
	JWTTTLMinutes int    `yaml:"jwtTtlMinutes"`

	// PublicBaseURL is used to build artifact links in local blob mode.
	PublicBaseURL string `yaml:"publicBaseUrl"`

	Blob    BlobConfig    `yaml:"blob"`
	Reports ReportsConfig `yaml:"reports"`
	Redis   RedisConfig   `yaml:"redis"`
}

// AuthEnabled reports whether bearer tokens are verified.
func (c *Config) AuthEnabled() bool {
	return c.AuthMode == AuthModeJWT
}

func defaults() *Config {
	return &Config{
		Env:           "local",
		Port:          8080,
		LogLevel:      "debug",
		LogFormat:     "json",
		AuthMode:      AuthModeNone,
		JWTSecret:     "change_me",
		JWTIssuer:     "sugarcheck",
		JWTTTLMinutes: 10080,
		Blob: BlobConfig{
			Mode:         BlobModeLocal,
			PublicPrefix: "reports/",
			S3:           S3Config{Region: "us-east-1"},
		},
		Reports: ReportsConfig{
			RenderTimeoutSeconds: 30,
			UploadTimeoutSeconds: 60,
			LockMode:             LockModeMemory,
			LockTTLSeconds:       120,
			ListLimit:            20,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
	}
}

// Load builds the configuration from defaults, an optional YAML file
// (CONFIG_PATH) and environment variables, in that order.
func Load() (*Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	normalize(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	// APP_ENV (fallback to ENV for backward compat)
	if env := os.Getenv("APP_ENV"); env != "" {
		cfg.Env = env
	} else if env := os.Getenv("ENV"); env != "" {
		cfg.Env = env
	}

	cfg.Port = envInt("PORT", cfg.Port)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envString("LOG_FORMAT", cfg.LogFormat)

	// ---------- Database ----------
	cfg.DatabaseURLPooled = envString("DATABASE_URL_POOLED", cfg.DatabaseURLPooled)
	cfg.DatabaseURLRaw = envString("DATABASE_URL", cfg.DatabaseURLRaw)
	cfg.DatabaseURLDirect = envString("DATABASE_URL_DIRECT", cfg.DatabaseURLDirect)
	cfg.RunMigrationsOnStartup = envBool("RUN_MIGRATIONS_ON_STARTUP", cfg.RunMigrationsOnStartup)

	// ---------- CORS ----------
	if raw := os.Getenv("CORS_ALLOWED_ORIGINS"); raw != "" {
		cfg.CORSAllowedOrigins = splitList(raw)
	}
	cfg.CORSAllowCredentials = envBool("CORS_ALLOW_CREDENTIALS", cfg.CORSAllowCredentials)

	// ---------- Rate Limiting ----------
	cfg.RateLimitRPS = envInt("RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = envInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)

	// ---------- Auth ----------
	cfg.AuthMode = strings.ToLower(envString("AUTH_MODE", cfg.AuthMode))
	cfg.JWTSecret = envString("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = envString("JWT_ISSUER", cfg.JWTIssuer)
	cfg.JWTTTLMinutes = envInt("JWT_TTL_MINUTES", cfg.JWTTTLMinutes)

	cfg.PublicBaseURL = envString("PUBLIC_BASE_URL", cfg.PublicBaseURL)

	// ---------- Blob ----------
	cfg.Blob.Mode = strings.ToLower(envString("BLOB_MODE", cfg.Blob.Mode))
	cfg.Blob.PublicPrefix = envString("BLOB_PUBLIC_PREFIX", cfg.Blob.PublicPrefix)

	cfg.Blob.S3.Endpoint = envString("S3_ENDPOINT", cfg.Blob.S3.Endpoint)
	cfg.Blob.S3.Region = envString("S3_REGION", cfg.Blob.S3.Region)
	cfg.Blob.S3.Bucket = envString("S3_BUCKET", cfg.Blob.S3.Bucket)
	cfg.Blob.S3.AccessKeyID = envString("S3_ACCESS_KEY_ID", cfg.Blob.S3.AccessKeyID)
	cfg.Blob.S3.SecretAccessKey = envString("S3_SECRET_ACCESS_KEY", cfg.Blob.S3.SecretAccessKey)
	cfg.Blob.S3.PublicBaseURL = envString("S3_PUBLIC_BASE_URL", cfg.Blob.S3.PublicBaseURL)

	cfg.Blob.Minio.Endpoint = envString("MINIO_ENDPOINT", cfg.Blob.Minio.Endpoint)
	cfg.Blob.Minio.Region = envString("MINIO_REGION", cfg.Blob.Minio.Region)
	cfg.Blob.Minio.Bucket = envString("MINIO_BUCKET", cfg.Blob.Minio.Bucket)
	cfg.Blob.Minio.AccessKey = envString("MINIO_ACCESS_KEY", cfg.Blob.Minio.AccessKey)
	cfg.Blob.Minio.SecretKey = envString("MINIO_SECRET_KEY", cfg.Blob.Minio.SecretKey)
	cfg.Blob.Minio.UseSSL = envBool("MINIO_USE_SSL", cfg.Blob.Minio.UseSSL)
	cfg.Blob.Minio.PublicBaseURL = envString("MINIO_PUBLIC_BASE_URL", cfg.Blob.Minio.PublicBaseURL)

	// ---------- Reports ----------
	cfg.Reports.RenderTimeoutSeconds = envInt("REPORTS_RENDER_TIMEOUT_SECONDS", cfg.Reports.RenderTimeoutSeconds)
	cfg.Reports.UploadTimeoutSeconds = envInt("REPORTS_UPLOAD_TIMEOUT_SECONDS", cfg.Reports.UploadTimeoutSeconds)
	cfg.Reports.LockMode = strings.ToLower(envString("REPORTS_LOCK_MODE", cfg.Reports.LockMode))
	cfg.Reports.LockTTLSeconds = envInt("REPORTS_LOCK_TTL_SECONDS", cfg.Reports.LockTTLSeconds)
	cfg.Reports.ListLimit = envInt("REPORTS_LIST_LIMIT", cfg.Reports.ListLimit)

	// ---------- Redis ----------
	cfg.Redis.Addr = envString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envInt("REDIS_DB", cfg.Redis.DB)
}

// normalize resolves derived fields and replaces out-of-range values with defaults.
func normalize(cfg *Config) {
	// Priority: DATABASE_URL_POOLED > DATABASE_URL > DATABASE_URL_DIRECT
	cfg.DatabaseURL = cfg.DatabaseURLPooled
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = cfg.DatabaseURLRaw
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = cfg.DatabaseURLDirect
	}

	if len(cfg.CORSAllowedOrigins) == 0 && cfg.Env == "local" {
		cfg.CORSAllowedOrigins = []string{"http://localhost:3000", "http://localhost:8081"}
	}

	switch cfg.Blob.Mode {
	case BlobModeLocal, BlobModeS3, BlobModeMinio, BlobModeAuto:
	default:
		log.Printf("WARNING: unknown BLOB_MODE=%q, fallback to %s", cfg.Blob.Mode, BlobModeLocal)
		cfg.Blob.Mode = BlobModeLocal
	}

	switch cfg.Reports.LockMode {
	case LockModeMemory, LockModeRedis, LockModeNone:
	default:
		log.Printf("WARNING: unknown REPORTS_LOCK_MODE=%q, fallback to %s", cfg.Reports.LockMode, LockModeMemory)
		cfg.Reports.LockMode = LockModeMemory
	}

	if cfg.AuthMode != AuthModeNone && cfg.AuthMode != AuthModeJWT {
		log.Printf("WARNING: unknown AUTH_MODE=%q, fallback to %s", cfg.AuthMode, AuthModeNone)
		cfg.AuthMode = AuthModeNone
	}

	if cfg.Reports.RenderTimeoutSeconds <= 0 {
		cfg.Reports.RenderTimeoutSeconds = 30
	}
	if cfg.Reports.UploadTimeoutSeconds <= 0 {
		cfg.Reports.UploadTimeoutSeconds = 60
	}
	if cfg.Reports.LockTTLSeconds <= 0 {
		cfg.Reports.LockTTLSeconds = 120
	}
	if cfg.Reports.ListLimit <= 0 {
		cfg.Reports.ListLimit = 20
	}
	if cfg.JWTTTLMinutes <= 0 {
		cfg.JWTTTLMinutes = 10080
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
}

// Validate performs checks that must fail startup.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.Blob.Mode == BlobModeS3 && !c.Blob.S3.IsConfigured() {
		return fmt.Errorf("BLOB_MODE=s3 but missing: %s", strings.Join(c.Blob.S3.MissingRequired(), ", "))
	}
	if c.Blob.Mode == BlobModeMinio && !c.Blob.Minio.IsConfigured() {
		return fmt.Errorf("BLOB_MODE=minio but missing: %s", strings.Join(c.Blob.Minio.MissingRequired(), ", "))
	}
	if c.Reports.LockMode == LockModeRedis && strings.TrimSpace(c.Redis.Addr) == "" {
		return fmt.Errorf("REPORTS_LOCK_MODE=redis requires REDIS_ADDR")
	}
	isProd := c.Env == "production" || c.Env == "staging"
	if isProd && c.AuthEnabled() && c.JWTSecret == "change_me" {
		return fmt.Errorf("JWT_SECRET must not be 'change_me' in %s", c.Env)
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

// envInt reads an int env var with a default value.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

func envBool(key string, defaultVal bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func nonEmptyOrDash(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "-"
	}
	return v
}

func setOrNot(v string) string {
	if strings.TrimSpace(v) == "" {
		return "not set"
	}
	return "set"
}
