package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr          string
	PostgresDSN   string
	RedisURL      string
	KafkaBrokers  []string
	AuditTopic    string
	JWTSigningKey string
	RequireAuth   bool
}

// SnapshotCacheTTL bounds how long a cached "now" projection may live even
// when its sequence check still passes.
var SnapshotCacheTTL = 5 * time.Minute

// AuditBuffer is the audit pipeline's inbox capacity; a full inbox degrades
// to synchronous appends rather than dropping entries.
const AuditBuffer = 256

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("DEAL_KERNEL_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	topic := os.Getenv("AUDIT_TOPIC")
	if topic == "" {
		topic = "dealkernel.audit"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:          addr,
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		RedisURL:      os.Getenv("REDIS_URL"),
		KafkaBrokers:  brokers,
		AuditTopic:    topic,
		JWTSigningKey: jwtSigningKey,
		RequireAuth:   os.Getenv("REQUIRE_AUTH") == "true",
	}
}

// RedisConfig carries tuning for the projection snapshot cache connection.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns conservative defaults for the given URL.
func DefaultRedisConfig(url string) RedisConfig {
	return RedisConfig{
		URL:          url,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}
