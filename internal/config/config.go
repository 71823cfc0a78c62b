package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the gateway.
type Config struct {
	HTTPPort    string
	Environment string
	JWTSecret   []byte
	Database    DatabaseConfig
	Provider    ProviderConfig
	Redis       RedisConfig

	// EncryptionKey is an optional base64-encoded AES key. When set,
	// provider secrets are encrypted at rest in the credential store.
	EncryptionKey string

	// AdminTokenHash is an optional argon2id hash (PHC format) of the
	// admin service token. The admin surface is disabled when empty.
	AdminTokenHash string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// ProviderConfig holds settings for the upstream provisioning API
type ProviderConfig struct {
	BaseURL         string
	ProvisioningKey string
	RequestTimeout  time.Duration
}

// RedisConfig holds Redis connection settings for the lifecycle event
// stream. An empty Address falls back to the in-memory sink.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	EventsKey    string
	EventsMaxLen int64
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvInt64(key string, defaultValue int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// Load reads configuration from environment variables. Values the
// service cannot run without (database, signing secret, provisioning
// credentials) fail here rather than on the first request.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	provisioningKey := os.Getenv("PROVISIONING_API_KEY")
	if provisioningKey == "" {
		return nil, fmt.Errorf("PROVISIONING_API_KEY is required")
	}

	cfg := &Config{
		HTTPPort:    getEnvString("HTTP_PORT", "8080"),
		Environment: getEnvString("ENVIRONMENT", "development"),
		JWTSecret:   []byte(jwtSecret),
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Provider: ProviderConfig{
			BaseURL:         getEnvString("PROVIDER_BASE_URL", "https://openrouter.ai/api/v1"),
			ProvisioningKey: provisioningKey,
			RequestTimeout:  getEnvDuration("PROVIDER_REQUEST_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", ""),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			EventsKey:    getEnvString("REDIS_EVENTS_KEY", "gateway:credit-events"),
			EventsMaxLen: getEnvInt64("REDIS_EVENTS_MAX_LEN", 100_000),
		},
		EncryptionKey:  getEnvString("ENCRYPTION_KEY", ""),
		AdminTokenHash: getEnvString("ADMIN_TOKEN_HASH", ""),
	}

	return cfg, nil
}
