package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds push service configuration loaded from the environment.
type Config struct {
	AppName   string
	LogLevel  string
	HTTPPort  string
	PublicURL string

	RabbitURL       string
	PushQueue       string
	DeadLetterQueue string
	PrefetchCount   int
	WorkerCount     int

	DatabaseURL string
	RedisURL    string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string
	WebPushTTL      int

	JWTSecret  string
	SessionTTL time.Duration

	ProviderTimeout     time.Duration
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
}

// Load loads configuration and performs basic validation.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppName:             getEnv("APP_NAME", "sousei_push_service"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		HTTPPort:            getEnv("HTTP_PORT", "8082"),
		PublicURL:           getEnv("PUBLIC_URL", "/"),
		RabbitURL:           getEnv("RABBITMQ_URL", ""),
		PushQueue:           getEnv("PUSH_QUEUE", "push.queue"),
		DeadLetterQueue:     getEnv("PUSH_DLQ", "failed.queue"),
		PrefetchCount:       getEnvAsInt("PUSH_PREFETCH", 100),
		WorkerCount:         getEnvAsInt("WORKER_COUNT", 5),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisURL:            getEnv("REDIS_URL", ""),
		VAPIDPublicKey:      getEnv("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey:     getEnv("VAPID_PRIVATE_KEY", ""),
		VAPIDSubscriber:     getEnv("VAPID_SUBSCRIBER", "push@sousei-dev.com"),
		WebPushTTL:          getEnvAsInt("WEBPUSH_TTL", 24*60*60),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		SessionTTL:          getEnvAsDuration("CLIENT_SESSION_TTL", 90*time.Second),
		ProviderTimeout:     getEnvAsDuration("PROVIDER_TIMEOUT", 10*time.Second),
		RetryMaxAttempts:    getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoff: getEnvAsDuration("RETRY_INITIAL_BACKOFF", time.Second),
		RetryMaxBackoff:     getEnvAsDuration("RETRY_MAX_BACKOFF", 15*time.Second),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// VAPIDConfigured reports whether both VAPID keys are present. Subscriptions
// cannot be created without them; callers degrade instead of failing hard.
func (c *Config) VAPIDConfigured() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

func (c *Config) validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	return nil
}

func getEnv(key, def string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	return value
}

func getEnvAsInt(key string, def int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("invalid int for %s, using default %d: %v", key, def, err)
			return def
		}
		return i
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			log.Printf("invalid duration for %s, using default %s: %v", key, def, err)
			return def
		}
		return d
	}
	return def
}
