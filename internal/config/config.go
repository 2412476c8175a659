package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	LLM          LLMConfig
	Embedding    EmbeddingConfig
	Breaker      BreakerConfig
	Retrieval    RetrievalConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters for approval endpoints.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// LLMConfig selects and configures the reasoning service provider.
type LLMConfig struct {
	Provider           string
	GeminiAPIKey       string
	GeminiModel        string
	AnthropicAPIKey    string
	AnthropicModel     string
	CallTimeoutSeconds int
	Temperature        float64
}

// EmbeddingConfig configures the embedding collaborator.
type EmbeddingConfig struct {
	Model     string
	Dimension int
}

// BreakerConfig tunes the circuit breaker around the reasoning service.
type BreakerConfig struct {
	FailureThreshold       int
	RecoveryTimeoutSeconds int
}

// RetrievalConfig controls documentation ingestion and lookup.
type RetrievalConfig struct {
	DocsPath      string
	TopK          int
	MaxChunkBytes int
}

// NotificationConfig holds escalation notification endpoints.
type NotificationConfig struct {
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "triage-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		LLM: LLMConfig{
			Provider:           getEnv("LLM_PROVIDER", "gemini"),
			GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
			GeminiModel:        getEnv("GEMINI_MODEL", "gemini-2.0-flash-001"),
			AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
			AnthropicModel:     getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			CallTimeoutSeconds: getEnvAsInt("LLM_CALL_TIMEOUT_SECONDS", 30),
			Temperature:        getEnvAsFloat("LLM_TEMPERATURE", 0.1),
		},
		Embedding: EmbeddingConfig{
			Model:     getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),
			Dimension: getEnvAsInt("EMBEDDING_DIMENSION", 768),
		},
		Breaker: BreakerConfig{
			FailureThreshold:       getEnvAsInt("BREAKER_FAILURE_THRESHOLD", 3),
			RecoveryTimeoutSeconds: getEnvAsInt("BREAKER_RECOVERY_TIMEOUT_SECONDS", 60),
		},
		Retrieval: RetrievalConfig{
			DocsPath:      getEnv("RETRIEVAL_DOCS_PATH", "./data/docs"),
			TopK:          getEnvAsInt("RETRIEVAL_TOP_K", 3),
			MaxChunkBytes: getEnvAsInt("RETRIEVAL_MAX_CHUNK_BYTES", 1000),
		},
		Notification: NotificationConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// CallTimeout returns the reasoning-service call deadline.
func (l LLMConfig) CallTimeout() time.Duration {
	if l.CallTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(l.CallTimeoutSeconds) * time.Second
}

// RecoveryTimeout returns the breaker cool-down window.
func (b BreakerConfig) RecoveryTimeout() time.Duration {
	if b.RecoveryTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(b.RecoveryTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
