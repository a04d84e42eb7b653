package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"portfolio-api/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string        `yaml:"port"`
	Env             string        `yaml:"env"`
	CORSAllowOrigin []string      `yaml:"corsAllowOrigins"`
	TrustedProxies  []string      `yaml:"trustedProxies"`
	TrustedPlatform string        `yaml:"trustedPlatform"`
	AdminPassword   string        `yaml:"adminPassword"`
	BlobStore       string        `yaml:"blobStore"`
	LocalStoreDir   string        `yaml:"localStoreDir"`
	AWSRegion       string        `yaml:"awsRegion"`
	S3Bucket        string        `yaml:"s3Bucket"`
	S3Prefix        string        `yaml:"s3Prefix"`
	SSEKMSKeyID     string        `yaml:"sseKmsKeyId"`
	DatabaseURL     string        `yaml:"databaseUrl"`
	Collections     []string      `yaml:"collections"`
	IDScheme        string        `yaml:"idScheme"`
	StorageTimeout  time.Duration `yaml:"storageTimeout"`
	ConflictRetries int           `yaml:"conflictRetries"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
	WriteRateRPS    float64       `yaml:"writeRateLimitRps"`
	WriteRateBurst  int           `yaml:"writeRateLimitBurst"`
	MetricsEnabled  bool          `yaml:"metricsEnabled"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port:            "8080",
		Env:             "dev",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		BlobStore:       "local",
		LocalStoreDir:   "./data",
		Collections:     []string{"certificates", "projects"},
		IDScheme:        "uuid",
		StorageTimeout:  10 * time.Second,
		ConflictRetries: 3,
		MaxUploadBytes:  10 << 20,
		WriteRateRPS:    5,
		WriteRateBurst:  20,
	}
}

// Load reads configuration from an optional YAML file and environment
// variables. Environment variables win over the file.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			telemetry.Warn("config file ignored", map[string]any{"path": path, "error": err.Error()})
		}
	}
	applyEnv(&cfg)
	cfg.normalize()
	return cfg
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Port, "PORT")
	setString(&cfg.Env, "ENV")
	if v := os.Getenv("CORS_ALLOW_ORIGINS"); v != "" {
		cfg.CORSAllowOrigin = splitAndTrim(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitAndTrim(v)
	}
	setString(&cfg.TrustedPlatform, "TRUSTED_PLATFORM")
	setString(&cfg.AdminPassword, "ADMIN_PASSWORD")
	setString(&cfg.BlobStore, "BLOB_STORE")
	setString(&cfg.LocalStoreDir, "LOCAL_STORE_DIR")
	setString(&cfg.AWSRegion, "AWS_REGION")
	setString(&cfg.S3Bucket, "S3_BUCKET")
	setString(&cfg.S3Prefix, "S3_PREFIX")
	setString(&cfg.SSEKMSKeyID, "SSE_KMS_KEY_ID")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	if v := os.Getenv("COLLECTIONS"); v != "" {
		cfg.Collections = splitAndTrim(v)
	}
	setString(&cfg.IDScheme, "ID_SCHEME")
	if v, ok := readDuration("STORAGE_TIMEOUT"); ok {
		cfg.StorageTimeout = v
	}
	if v, ok := readInt("RECORDS_CONFLICT_RETRIES"); ok {
		cfg.ConflictRetries = v
	}
	if v, ok := readInt("MAX_UPLOAD_BYTES"); ok {
		cfg.MaxUploadBytes = int64(v)
	}
	if v, ok := readFloat("WRITE_RATE_LIMIT_RPS"); ok {
		cfg.WriteRateRPS = v
	}
	if v, ok := readInt("WRITE_RATE_LIMIT_BURST"); ok {
		cfg.WriteRateBurst = v
	}
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		cfg.MetricsEnabled = parseBool(v)
	}
}

func (c *Config) normalize() {
	c.Env = normalizeEnv(c.Env)
	c.BlobStore = normalizeStoreType(c.BlobStore)
	c.IDScheme = normalizeIDScheme(c.IDScheme)
	if c.StorageTimeout <= 0 {
		c.StorageTimeout = 10 * time.Second
	}
	if c.ConflictRetries < 0 {
		c.ConflictRetries = 0
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 10 << 20
	}
	collections := make([]string, 0, len(c.Collections))
	seen := make(map[string]struct{}, len(c.Collections))
	for _, name := range c.Collections {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		collections = append(collections, name)
	}
	c.Collections = collections
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func readInt(key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		telemetry.Warn("invalid config env int", map[string]any{"key": key, "error": err.Error()})
		return 0, false
	}
	return val, true
}

func readFloat(key string) (float64, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		telemetry.Warn("invalid config env number", map[string]any{"key": key, "error": err.Error()})
		return 0, false
	}
	return val, true
}

func readDuration(key string) (time.Duration, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		telemetry.Warn("invalid config env duration", map[string]any{"key": key, "error": err.Error()})
		return 0, false
	}
	return val, true
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "postgres", "pg":
		return "postgres"
	case "memory":
		return "memory"
	default:
		return "local"
	}
}

func normalizeIDScheme(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "timestamp", "time":
		return "timestamp"
	default:
		return "uuid"
	}
}

// IsDevLike reports whether env is a developer environment.
func IsDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
