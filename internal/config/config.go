// Package config reads process configuration from the environment, with an
// optional .env file for development.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds settings for all three processes; each binary reads the subset
// it needs.
type Config struct {
	// Shared
	KafkaBrokers []string
	JWTSecret    string
	TokenTTL     time.Duration

	// Gateway
	GatewayAddr    string
	RequestTimeout time.Duration

	// Notifier
	NotifierAddr string
}

// Load reads the environment (and .env, when present) into a Config with
// development defaults.
func Load() *Config {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	return &Config{
		KafkaBrokers:   splitList(getenv("KAFKA_BROKERS", "localhost:9092")),
		JWTSecret:      getenv("JWT_SECRET", "dev-secret-change-me"),
		TokenTTL:       getDuration("TOKEN_TTL", 24*time.Hour),
		GatewayAddr:    getenv("GATEWAY_ADDR", ":3000"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 120*time.Second),
		NotifierAddr:   getenv("NOTIFIER_ADDR", ":8080"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
