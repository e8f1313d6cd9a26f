package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Config struct {
	Port      int
	APIPort   int
	LogLevel  string
	LogFormat string

	AllowedOrigin      string
	AllowedUploadTypes []string
	MaxUploadSize      int64
	ImageContainers    []string

	BlobBackend string
	GCSBucket   string
	BlobDir     string

	EdgeCache        string
	EdgeCacheEntries int
	EdgeCacheDir     string
	EdgeCacheVary    []string

	KVBackend     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CacheTTLEntity time.Duration
	CacheTTLList   time.Duration
	CacheTTLOwner  time.Duration

	DBDriver string
	DBDSN    string

	AuthPEMPublicKey string

	VipsMaxCacheMB  int
	VipsConcurrency int

	DetachedTaskTimeout time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:      getEnvInt("PORT", 8080),
		APIPort:   getEnvInt("API_PORT", 8081),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		AllowedOrigin:      getEnv("ALLOWED_ORIGIN", "*"),
		AllowedUploadTypes: getEnvList("ALLOWED_UPLOAD_TYPES", []string{"image/jpeg", "image/jpg", "image/png"}),
		MaxUploadSize:      getEnvInt64("MAX_UPLOAD_SIZE", 1*1024*1024), // 1MB
		ImageContainers:    getEnvList("IMAGE_CONTAINERS", []string{"articles"}),

		BlobBackend: getEnv("BLOB_BACKEND", "file"),
		GCSBucket:   getEnv("GCS_BUCKET", ""),
		BlobDir:     getEnv("BLOB_DIR", "/data/blobs"),

		EdgeCache:        getEnv("EDGE_CACHE", "memory"),
		EdgeCacheEntries: getEnvInt("EDGE_CACHE_ENTRIES", 1000),
		EdgeCacheDir:     getEnv("EDGE_CACHE_DIR", "/data/edge-cache"),
		EdgeCacheVary:    getEnvList("EDGE_CACHE_VARY", nil),

		KVBackend:     getEnv("KV_BACKEND", "memory"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		CacheTTLEntity: getEnvDuration("CACHE_TTL_ENTITY", time.Hour),
		CacheTTLList:   getEnvDuration("CACHE_TTL_LIST", 10*time.Minute),
		CacheTTLOwner:  getEnvDuration("CACHE_TTL_OWNER", 5*time.Minute),

		DBDriver: getEnv("DB_DRIVER", "sqlite"),
		DBDSN:    getEnv("DB_DSN", "file:inkwell.db?cache=shared"),

		AuthPEMPublicKey: getEnv("AUTH_PEM_PUBLIC_KEY", ""),

		VipsMaxCacheMB:  getEnvInt("VIPS_MAX_CACHE_MB", 256),
		VipsConcurrency: getEnvInt("VIPS_CONCURRENCY", 1),

		DetachedTaskTimeout: getEnvDuration("DETACHED_TASK_TIMEOUT", 10*time.Second),
	}

	return cfg
}

// Validate reports the first invalid field of every rule that fails.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.APIPort, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.LogFormat, validation.In("json", "console")),
		validation.Field(&c.AllowedOrigin, validation.Required),
		validation.Field(&c.AllowedUploadTypes, validation.Required),
		validation.Field(&c.MaxUploadSize, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.ImageContainers, validation.Required),
		validation.Field(&c.BlobBackend, validation.Required, validation.In("gcs", "file")),
		validation.Field(&c.GCSBucket, validation.When(c.BlobBackend == "gcs", validation.Required)),
		validation.Field(&c.BlobDir, validation.When(c.BlobBackend == "file", validation.Required)),
		validation.Field(&c.EdgeCache, validation.Required, validation.In("memory", "file", "disabled")),
		validation.Field(&c.EdgeCacheEntries, validation.When(c.EdgeCache == "memory", validation.Required, validation.Min(1))),
		validation.Field(&c.EdgeCacheDir, validation.When(c.EdgeCache == "file", validation.Required)),
		validation.Field(&c.KVBackend, validation.Required, validation.In("redis", "memory", "disabled")),
		validation.Field(&c.RedisAddr, validation.When(c.KVBackend == "redis", validation.Required)),
		validation.Field(&c.CacheTTLEntity, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.CacheTTLList, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.CacheTTLOwner, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.DBDriver, validation.Required, validation.In("sqlite", "postgres")),
		validation.Field(&c.DBDSN, validation.Required),
		validation.Field(&c.DetachedTaskTimeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

// IsUploadAllowed reports whether the MIME type is on the upload allow-list.
func (c *Config) IsUploadAllowed(contentType string) bool {
	for _, t := range c.AllowedUploadTypes {
		if strings.EqualFold(t, contentType) {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
