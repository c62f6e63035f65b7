package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// MinJWTSecretLength is the shortest HS256 secret the server accepts.
const MinJWTSecretLength = 32

// Config holds application configuration
type Config struct {
	DatabaseURL string
	ServerPort  string
	BaseURL     string
	FrontendURL string
	EnableHSTS  bool
	OpenAPIPath string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// RedisURL backs the rate limiter. Empty uses per-process counters.
	RedisURL string
	// RabbitMQURL enables background jobs. Empty skips them.
	RabbitMQURL      string
	RabbitMQPrefetch int

	OpenAIKey        string
	AnthropicKey     string
	LlamaKey         string
	GeminiKey        string
	CustomModelKey   string
	LlamaBaseURL     string
	ModelCallTimeout time.Duration
	DefaultModelName string

	KnowledgeBasePath       string
	UseDictionaryLemmatizer bool
	SentimentAPIURL         string
	QAAPIURL                string
	InferenceAPIToken       string
	InferenceRPS            float64

	BlockchainEnabled bool
	ContractAddress   string

	WorkerRPS         float64
	StaleSessionAfter time.Duration
	ReaperInterval    time.Duration
	DLQRetention      time.Duration
	DLQSweepInterval  time.Duration

	WorkerDebugMode bool
	ServerDebugMode bool
	OTELEnabled     bool
	OTELEndpoint    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom loads configuration through getenv, which returns "" for unset
// keys.
func LoadFrom(getenv func(string) string) (*Config, error) {
	return load(getenv, true)
}

// LoadOffline loads configuration for binaries that never open the
// database, such as the MCP server. DATABASE_URL is optional.
func LoadOffline(getenv func(string) string) (*Config, error) {
	return load(getenv, false)
}

func load(getenv func(string) string, needDatabase bool) (*Config, error) {
	cfg := &Config{
		DatabaseURL: getEnv(getenv, "DATABASE_URL", ""),
		ServerPort:  getEnv(getenv, "SERVER_PORT", "8080"),
		BaseURL:     getEnv(getenv, "BASE_URL", "http://localhost:8080"),
		FrontendURL: getEnv(getenv, "FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:  getEnvBool(getenv, "ENABLE_HSTS", false),
		OpenAPIPath: getEnv(getenv, "OPENAPI_PATH", ""),

		JWTSecret:       getEnv(getenv, "JWT_SECRET", ""),
		AccessTokenTTL:  getEnvDuration(getenv, "ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL: getEnvDuration(getenv, "REFRESH_TOKEN_TTL", 720*time.Hour),

		RedisURL:         getEnv(getenv, "REDIS_URL", ""),
		RabbitMQURL:      getEnv(getenv, "RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt(getenv, "RABBITMQ_PREFETCH", 1),

		OpenAIKey:        getEnv(getenv, "OPENAI_API_KEY", ""),
		AnthropicKey:     getEnv(getenv, "ANTHROPIC_API_KEY", ""),
		LlamaKey:         getEnv(getenv, "LLAMA_API_KEY", ""),
		GeminiKey:        getEnv(getenv, "GEMINI_API_KEY", ""),
		CustomModelKey:   getEnv(getenv, "CUSTOM_MODEL_API_KEY", ""),
		LlamaBaseURL:     getEnv(getenv, "LLAMA_BASE_URL", ""),
		ModelCallTimeout: getEnvDuration(getenv, "MODEL_CALL_TIMEOUT", 15*time.Second),
		DefaultModelName: getEnv(getenv, "DEFAULT_MODEL_NAME", ""),

		KnowledgeBasePath:       getEnv(getenv, "KNOWLEDGE_BASE_PATH", ""),
		UseDictionaryLemmatizer: getEnvBool(getenv, "USE_DICTIONARY_LEMMATIZER", true),
		SentimentAPIURL:         getEnv(getenv, "SENTIMENT_API_URL", ""),
		QAAPIURL:                getEnv(getenv, "QA_API_URL", ""),
		InferenceAPIToken:       getEnv(getenv, "INFERENCE_API_TOKEN", ""),
		InferenceRPS:            getEnvFloat(getenv, "INFERENCE_RPS", 5),

		BlockchainEnabled: getEnvBool(getenv, "BLOCKCHAIN_ENABLED", false),
		ContractAddress:   getEnv(getenv, "CONTRACT_ADDRESS", ""),

		WorkerRPS:         getEnvFloat(getenv, "WORKER_RPS", 10),
		StaleSessionAfter: getEnvDuration(getenv, "STALE_SESSION_AFTER", 24*time.Hour),
		ReaperInterval:    getEnvDuration(getenv, "SESSION_REAPER_INTERVAL", 15*time.Minute),
		DLQRetention:      getEnvDuration(getenv, "DLQ_RETENTION", 7*24*time.Hour),
		DLQSweepInterval:  getEnvDuration(getenv, "DLQ_SWEEP_INTERVAL", time.Hour),

		WorkerDebugMode: getEnvBool(getenv, "WORKER_DEBUG_MODE", false),
		ServerDebugMode: getEnvBool(getenv, "SERVER_DEBUG_MODE", false),
		OTELEnabled:     getEnvBool(getenv, "OTEL_ENABLED", false),
		OTELEndpoint:    getEnv(getenv, "OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if needDatabase && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RabbitMQPrefetch < 1 {
		cfg.RabbitMQPrefetch = 1
	}
	if cfg.BlockchainEnabled && cfg.ContractAddress == "" {
		return nil, fmt.Errorf("CONTRACT_ADDRESS is required when BLOCKCHAIN_ENABLED is set")
	}

	return cfg, nil
}

// ValidateServer checks the settings only the HTTP server needs.
func (c *Config) ValidateServer() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", MinJWTSecretLength)
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be shorter than REFRESH_TOKEN_TTL")
	}
	return nil
}

func getEnv(getenv func(string) string, key, defaultValue string) string {
	if value := strings.TrimSpace(getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(getenv func(string) string, key string, defaultValue bool) bool {
	if value := getEnv(getenv, key, ""); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(getenv func(string) string, key string, defaultValue int) int {
	if value := getEnv(getenv, key, ""); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(getenv func(string) string, key string, defaultValue float64) float64 {
	if value := getEnv(getenv, key, ""); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(getenv func(string) string, key string, defaultValue time.Duration) time.Duration {
	if value := getEnv(getenv, key, ""); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
