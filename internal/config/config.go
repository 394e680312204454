// Package config loads and validates server configuration from environment
// variables. Bad values fail fast at startup rather than surfacing mid-job.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the tablab server.
type Config struct {
	Server    ServerConfig
	Upload    UploadConfig
	Retention RetentionConfig
	Admin     AdminConfig
	Signing   SigningConfig
	Model     ModelConfig
	Jobs      JobsConfig
	Cache     CacheConfig
}

type ServerConfig struct {
	Port     int
	LogLevel string
	BaseURL  string
}

type UploadConfig struct {
	OutDir      string
	MaxBytes    int64
	AllowedExt  map[string]bool
	AllowedMIME map[string]bool
	RatePerMin  int
}

type RetentionConfig struct {
	TTL           time.Duration // 0 disables sweeping
	SweepInterval time.Duration
}

type AdminConfig struct {
	Token     string
	TokenHash string
}

type SigningConfig struct {
	Key string
	TTL time.Duration
}

type ModelConfig struct {
	Path  string
	Watch bool
}

type JobsConfig struct {
	Store         string // "fs" or "postgres"
	DatabaseURL   string
	MaxConcurrent int64
}

type CacheConfig struct {
	RedisURL string
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validJobStores = map[string]bool{
	"fs":       true,
	"postgres": true,
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any value is invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     envInt("TABLAB_PORT", 8080),
			LogLevel: envString("LOG_LEVEL", "info"),
			BaseURL:  envString("BASE_URL", "http://localhost:8080"),
		},
		Upload: UploadConfig{
			OutDir:      envString("OUT_DIR", "out"),
			MaxBytes:    envInt64("MAX_BYTES", 10*1024*1024),
			AllowedExt:  envSet("ALLOWED_EXTENSIONS", ".csv,.xlsx"),
			AllowedMIME: envSet("ALLOWED_MIME_TYPES", defaultMIMETypes),
			RatePerMin:  envInt("RATE_LIMIT_PER_MINUTE", 60),
		},
		Retention: RetentionConfig{
			TTL:           envDurationSecs("RESULT_TTL_SECONDS", 24*time.Hour),
			SweepInterval: envDurationSecs("SWEEP_INTERVAL_SECONDS", time.Hour),
		},
		Admin: AdminConfig{
			Token:     os.Getenv("ADMIN_TOKEN"),
			TokenHash: os.Getenv("ADMIN_TOKEN_HASH"),
		},
		Signing: SigningConfig{
			Key: os.Getenv("DOWNLOAD_SIGNING_KEY"),
			TTL: envDurationSecs("DOWNLOAD_URL_TTL_SECONDS", time.Hour),
		},
		Model: ModelConfig{
			Path:  envString("MODEL_PATH", "models/iforest.gob"),
			Watch: envBool("MODEL_WATCH", false),
		},
		Jobs: JobsConfig{
			Store:         envString("JOB_STORE", "fs"),
			DatabaseURL:   os.Getenv("DATABASE_URL"),
			MaxConcurrent: envInt64("MAX_CONCURRENT_JOBS", 2),
		},
		Cache: CacheConfig{
			RedisURL: os.Getenv("REDIS_URL"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

const defaultMIMETypes = "text/csv," +
	"application/vnd.ms-excel," +
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet," +
	"application/octet-stream"

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("TABLAB_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if !validLogLevels[c.Server.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.Server.LogLevel)
	}

	if !strings.HasPrefix(c.Server.BaseURL, "http://") && !strings.HasPrefix(c.Server.BaseURL, "https://") {
		return fmt.Errorf("BASE_URL must start with http:// or https://, got %q", c.Server.BaseURL)
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("MAX_BYTES must be positive, got %d", c.Upload.MaxBytes)
	}

	if len(c.Upload.AllowedExt) == 0 {
		return fmt.Errorf("ALLOWED_EXTENSIONS must not be empty")
	}
	for ext := range c.Upload.AllowedExt {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("ALLOWED_EXTENSIONS entries must start with a dot, got %q", ext)
		}
	}

	if c.Retention.TTL < 0 {
		return fmt.Errorf("RESULT_TTL_SECONDS must not be negative")
	}
	if c.Retention.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_SECONDS must be positive")
	}

	if c.Admin.Token != "" && c.Admin.TokenHash != "" {
		return fmt.Errorf("set only one of ADMIN_TOKEN and ADMIN_TOKEN_HASH")
	}

	if !validJobStores[c.Jobs.Store] {
		return fmt.Errorf("JOB_STORE must be fs or postgres, got %q", c.Jobs.Store)
	}
	if c.Jobs.Store == "postgres" && c.Jobs.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when JOB_STORE is postgres")
	}
	if c.Jobs.MaxConcurrent < 1 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1, got %d", c.Jobs.MaxConcurrent)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

// envSet parses a comma-separated list into a lowercase membership set.
func envSet(key, defaultVal string) map[string]bool {
	raw := envString(key, defaultVal)
	set := make(map[string]bool)
	for _, item := range strings.Split(raw, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			set[item] = true
		}
	}
	return set
}
