// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds the server settings read from the environment. A .env file is
// loaded by the binary before Load runs.
type Config struct {
	Addr     string
	Store    string
	LogLevel logrus.Level

	// DatabaseURL wins over the individual POSTGRES_/PG_ variables.
	DatabaseURL string

	// RedisAddr empty disables the Redis event queue.
	RedisAddr   string
	RedisDB     int
	EventsQueue string

	// TokenTTL of 0 issues tokens without an exp claim.
	TokenTTL time.Duration

	// Raw ed25519 key files. Both empty means a fresh key pair per process.
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string

	// Historian batching, used by cmd/historian.
	HistorianBatchSize int
	HistorianFlush     time.Duration
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:        ":" + getEnv("PORT", "8080"),
		Store:       getEnv("STORE", StoreMemory),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		EventsQueue: getEnv("FRIEND_EVENTS_QUEUE", "huddle_friend_events"),

		JWTPrivateKeyPath: os.Getenv("JWT_PRIVATE_KEY_PATH"),
		JWTPublicKeyPath:  os.Getenv("JWT_PUBLIC_KEY_PATH"),

		HistorianBatchSize: getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		HistorianFlush:     time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
	}

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	switch cfg.Store {
	case StoreMemory, StorePostgres:
	default:
		return nil, fmt.Errorf("invalid STORE %q (want %s or %s)", cfg.Store, StoreMemory, StorePostgres)
	}

	if cfg.Store == StorePostgres && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = PostgresURLFromParts()
	}

	if (cfg.JWTPrivateKeyPath == "") != (cfg.JWTPublicKeyPath == "") {
		return nil, fmt.Errorf("JWT_PRIVATE_KEY_PATH and JWT_PUBLIC_KEY_PATH must be set together")
	}

	switch ttl := os.Getenv("TOKEN_EXPIRE_TIME"); ttl {
	case "", "0", "never":
	default:
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid TOKEN_EXPIRE_TIME: %w", err)
		}
		if d < 0 {
			return nil, fmt.Errorf("invalid TOKEN_EXPIRE_TIME %q: must not be negative", ttl)
		}
		cfg.TokenTTL = d
	}
	return cfg, nil
}

// PostgresURLFromParts builds a connection string from POSTGRES_USER,
// POSTGRES_PASSWORD, PG_HOST, PG_PORT and PG_DATABASE.
func PostgresURLFromParts() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		getEnv("PG_HOST", "localhost"),
		getEnv("PG_PORT", "5432"),
		os.Getenv("PG_DATABASE"),
	)
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt parses an environment variable as integer, else returns the default.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
