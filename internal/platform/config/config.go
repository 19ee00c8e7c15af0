package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything the server needs from the deployment
// environment. FromEnv keeps main lean; packages receive the slice of
// configuration they need, never the whole struct.
type Config struct {
	Addr string

	// PostgresURL is the DSN for the ledger, project and contact stores.
	// Empty selects the in-memory stores (dev/test mode).
	PostgresURL string

	Redis RedisConfig

	// VaultKey is the base64-encoded 256-bit field-encryption key.
	// Empty disables encryption at the write path; reads stay tolerant.
	VaultKey string

	// WebhookSecret is the shared secret for payment-provider signatures.
	WebhookSecret string
	// WebhookTolerance bounds the age of a signed payload timestamp.
	WebhookTolerance time.Duration

	Notify NotifyConfig

	// RateLimitDisabled turns off admission control entirely (tests only).
	RateLimitDisabled bool

	// StoreTimeout bounds every durable-store call made on the request path.
	StoreTimeout time.Duration
}

// RedisConfig mirrors the knobs the rate limiter's counter store needs.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NotifyConfig holds push-notification credentials. Both empty means
// notifications degrade to a logged warning.
type NotifyConfig struct {
	Endpoint string
	Token    string
	User     string
}

// FromEnv builds a Config from environment variables with development
// defaults.
func FromEnv() Config {
	return Config{
		Addr:        envOr("PAYDESK_ADDR", ":8080"),
		PostgresURL: os.Getenv("PAYDESK_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("PAYDESK_REDIS_URL"),
			PoolSize:     envInt("PAYDESK_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("PAYDESK_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("PAYDESK_REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  envDuration("PAYDESK_REDIS_READ_TIMEOUT", time.Second),
			WriteTimeout: envDuration("PAYDESK_REDIS_WRITE_TIMEOUT", time.Second),
		},
		VaultKey:         os.Getenv("PAYDESK_VAULT_KEY"),
		WebhookSecret:    os.Getenv("PAYDESK_WEBHOOK_SECRET"),
		WebhookTolerance: envDuration("PAYDESK_WEBHOOK_TOLERANCE", 5*time.Minute),
		Notify: NotifyConfig{
			Endpoint: envOr("PAYDESK_PUSH_ENDPOINT", "https://api.pushover.net/1/messages.json"),
			Token:    os.Getenv("PAYDESK_PUSH_TOKEN"),
			User:     os.Getenv("PAYDESK_PUSH_USER"),
		},
		RateLimitDisabled: os.Getenv("PAYDESK_RATELIMIT_DISABLED") == "true",
		StoreTimeout:      envDuration("PAYDESK_STORE_TIMEOUT", 5*time.Second),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
