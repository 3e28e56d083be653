// Package config builds runtime configuration from environment variables so
// main stays lean. Malformed values fall back to defaults rather than
// aborting startup.
package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	// AdminKeyHash is a bcrypt hash of the admin key guarding debug endpoints.
	// Empty disables the admin surface.
	AdminKeyHash string
}

// RedisConfig captures Redis connection settings. An empty URL disables Redis
// and stores fall back to their in-memory implementations.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig captures the entry-record database settings. An empty DSN
// disables Postgres.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	ConnMaxLifetime time.Duration
}

// KafkaConfig captures audit event pipeline settings. No brokers disables
// audit publishing.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// Engine captures the field-state engine's tunables.
type Engine struct {
	// DebounceDelay is the quiet period before a scheduled save fires.
	DebounceDelay time.Duration
	// MaxRetries bounds automatic retries after a failed save.
	MaxRetries int
	// RetryDelay is the backoff base; attempt n waits RetryDelay * 2^n.
	RetryDelay time.Duration
	// ErrorTTL is how long a save key stays in the error state before
	// resetting to untracked.
	ErrorTTL time.Duration
	// ReadinessThreshold is the completion percent at or above which a
	// destination counts as ready.
	ReadinessThreshold float64
}

// Config is the full application configuration.
type Config struct {
	Server   Server
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Engine   Engine
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envString("ENTRYPASS_ADDR", ":8080"),
			JWTSigningKey: envString("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			AdminKeyHash:  os.Getenv("ADMIN_KEY_HASH"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			MaxConns:        int32(envInt("POSTGRES_MAX_CONNS", 8)),
			ConnMaxLifetime: envDuration("POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:    splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: envString("KAFKA_AUDIT_TOPIC", "entrypass.audit.v1"),
		},
		Engine: Engine{
			DebounceDelay:      envDuration("ENGINE_DEBOUNCE_DELAY", 800*time.Millisecond),
			MaxRetries:         envInt("ENGINE_MAX_RETRIES", 3),
			RetryDelay:         envDuration("ENGINE_RETRY_DELAY", 1*time.Second),
			ErrorTTL:           envDuration("ENGINE_ERROR_TTL", 10*time.Second),
			ReadinessThreshold: envFloat("ENGINE_READINESS_THRESHOLD", 90),
		},
	}
}

func envString(key, fallback string) string {
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

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func splitNonEmpty(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			if part := csv[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
