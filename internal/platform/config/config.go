package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Topic and group names shared by all three binaries. The dead-letter topic
// is always <EventsTopic> + DLTSuffix.
const (
	EventsTopic = "proposal-events"
	AuditTopic  = "audit-logs"
	DLTSuffix   = ".DLT"

	GroupProposal     = "proposal-service"
	GroupAudit        = "audit-service"
	GroupNotification = "notification-service"
)

// Config carries everything the binaries need. Built once in main and passed
// down explicitly; no package-level state.
type Config struct {
	Addr          string
	JWTSigningKey string

	KafkaBrokers []string
	EnsureTopics bool

	DefaultChain []string

	RetryMaxAttempts int
	RetryBackoff     time.Duration
	ConsumerWorkers  int

	DatabaseURL string
	RedisURL    string

	DedupeTTL time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:             envOr("IPM_ADDR", ":8080"),
		JWTSigningKey:    os.Getenv("JWT_SIGNING_KEY"),
		KafkaBrokers:     splitList(envOr("KAFKA_BROKERS", "localhost:9092")),
		EnsureTopics:     os.Getenv("KAFKA_ENSURE_TOPICS") == "true",
		DefaultChain:     splitList(envOr("IPM_DEFAULT_CHAIN", "PEER_REVIEW,MANAGER_APPROVAL,COMPLIANCE")),
		RetryMaxAttempts: envInt("IPM_RETRY_MAX_ATTEMPTS", 3),
		RetryBackoff:     envDuration("IPM_RETRY_BACKOFF", time.Second),
		ConsumerWorkers:  envInt("IPM_CONSUMER_WORKERS", 2),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		DedupeTTL:        envDuration("IPM_DEDUPE_TTL", 24*time.Hour),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
