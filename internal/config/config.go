package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string

	OTLPEndpoint string

	Voice    VoiceProviderConfig
	Gate     GateConfig
	Webhooks WebhookSecrets
	Sync     SyncConfig
	Worker   WorkerConfig
	Tiers    TierConfig

	// SweepSecret gates the scheduled reconciliation trigger. InternalSecret
	// gates operational endpoints (queue status, forced drain). They are
	// deliberately distinct so the external scheduler never holds the
	// operational credential.
	SweepSecret    string
	InternalSecret string

	LogLevel string
}

// VoiceProviderConfig configures the outbound voice-provisioning client.
type VoiceProviderConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// GateConfig is the webhook security gate policy.
type GateConfig struct {
	RequireHTTPS       bool
	AllowedSources     []string
	MaxBodyBytes       int64
	TimestampTolerance time.Duration
	ReplayCapacity     int
}

// WebhookSecrets holds the per-provider shared signing secrets.
type WebhookSecrets struct {
	Stripe string
	Paddle string
	Voice  string
}

// SyncConfig tunes the sync job queue.
type SyncConfig struct {
	MaxRetries    int
	RetryDemotion int
}

// WorkerConfig tunes the background worker loop.
type WorkerConfig struct {
	RunInterval   time.Duration
	DrainBatch    int
	SweepInterval time.Duration
	EnabledJobs   []string
}

// TierConfig holds the per-tier resource limits.
type TierConfig struct {
	FreeMinutes      int64
	FreeAssistants   int64
	FreePhoneNumbers int64
	ProMinutes       int64
	ProAssistants    int64
	ProPhoneNumbers  int64
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "vocalis"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "vocalis"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		Voice: VoiceProviderConfig{
			BaseURL: strings.TrimRight(getenv("VOICE_PROVIDER_URL", "https://api.voice.example.com"), "/"),
			APIKey:  strings.TrimSpace(getenv("VOICE_PROVIDER_API_KEY", "")),
			Timeout: getenvDuration("VOICE_PROVIDER_TIMEOUT", 15*time.Second),
		},
		Gate: GateConfig{
			RequireHTTPS:       getenvBool("WEBHOOK_REQUIRE_HTTPS", true),
			AllowedSources:     parseList(getenv("WEBHOOK_ALLOWED_SOURCES", "")),
			MaxBodyBytes:       int64(getenvInt("WEBHOOK_MAX_BODY_BYTES", 1<<20)),
			TimestampTolerance: getenvDuration("WEBHOOK_TIMESTAMP_TOLERANCE", 300*time.Second),
			ReplayCapacity:     getenvInt("WEBHOOK_REPLAY_CAPACITY", 10000),
		},
		Webhooks: WebhookSecrets{
			Stripe: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			Paddle: strings.TrimSpace(getenv("PADDLE_WEBHOOK_SECRET", "")),
			Voice:  strings.TrimSpace(getenv("VOICE_WEBHOOK_SECRET", "")),
		},
		Sync: SyncConfig{
			MaxRetries:    getenvInt("SYNC_MAX_RETRIES", 5),
			RetryDemotion: getenvInt("SYNC_RETRY_DEMOTION", 10),
		},
		Worker: WorkerConfig{
			RunInterval:   getenvDuration("WORKER_RUN_INTERVAL", time.Minute),
			DrainBatch:    getenvInt("WORKER_DRAIN_BATCH", 50),
			SweepInterval: getenvDuration("WORKER_SWEEP_INTERVAL", time.Hour),
			EnabledJobs:   parseList(getenv("WORKER_ENABLED_JOBS", "")),
		},
		Tiers: TierConfig{
			FreeMinutes:      getenvInt64("TIER_FREE_MINUTES", 10),
			FreeAssistants:   getenvInt64("TIER_FREE_ASSISTANTS", 1),
			FreePhoneNumbers: getenvInt64("TIER_FREE_PHONE_NUMBERS", 1),
			ProMinutes:       getenvInt64("TIER_PRO_MINUTES", 1000),
			ProAssistants:    getenvInt64("TIER_PRO_ASSISTANTS", 10),
			ProPhoneNumbers:  getenvInt64("TIER_PRO_PHONE_NUMBERS", 5),
		},

		SweepSecret:    strings.TrimSpace(getenv("SWEEP_TRIGGER_SECRET", "")),
		InternalSecret: strings.TrimSpace(getenv("INTERNAL_API_SECRET", "")),

		LogLevel: getenv("LOG_LEVEL", "info"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
