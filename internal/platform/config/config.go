package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration for the credential core.
type Config struct {
	Addr string

	// Network tags DIDs minted by this process (e.g. "mainnet", "testnet").
	Network string

	PostgresURL string
	Redis       RedisConfig
	Kafka       KafkaConfig

	// ArtifactDir points at the circuit artifact collaborator's local cache.
	// Empty means ephemeral in-process artifacts (dev and test only).
	ArtifactDir string

	// ShareSigningKey signs share transport tokens.
	ShareSigningKey string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds lifecycle event stream settings.
type KafkaConfig struct {
	Brokers string
	Topic   string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:            envOr("PRIVID_ADDR", ":8080"),
		Network:         envOr("PRIVID_NETWORK", "testnet"),
		PostgresURL:     os.Getenv("PRIVID_POSTGRES_URL"),
		ArtifactDir:     os.Getenv("PRIVID_ARTIFACT_DIR"),
		ShareSigningKey: os.Getenv("PRIVID_SHARE_SIGNING_KEY"),
		Redis: RedisConfig{
			URL:          os.Getenv("PRIVID_REDIS_URL"),
			PoolSize:     envIntOr("PRIVID_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("PRIVID_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: os.Getenv("PRIVID_KAFKA_BROKERS"),
			Topic:   envOr("PRIVID_KAFKA_TOPIC", "privid.lifecycle"),
		},
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
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
