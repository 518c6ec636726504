package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the API service
type Config struct {
	// Server
	Port        string
	Environment string

	// Database
	DatabaseURL string
	RedisURL    string

	// Model service (local generation path)
	ModelServiceURL string
	AnthropicAPIKey string

	// Model defaults
	Region         string
	DefaultModelID string
	Temperature    float64

	// Remote expert agent runtime
	RemoteRuntimeEnabled bool
	RemoteAgentRef       string
	RemoteRuntimeURL     string
	RemoteReadTimeout    time.Duration
	RemoteConnectTimeout time.Duration

	// Artifact store
	ArtifactTTL time.Duration

	// Chat sessions
	SessionIdleTTL time.Duration

	// Messaging
	NATSURL string

	// Security
	JWTSecret string
}

// Load reads configuration from environment variables. Missing values fall
// back to development defaults; callers should log which defaults were
// applied so a degraded configuration is visible, not silent.
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("GO_ENV", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),

		ModelServiceURL: getEnv("MODEL_SERVICE_URL", "http://localhost:8000"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		Region:         getEnv("REGION", "us-east-1"),
		DefaultModelID: getEnv("DEFAULT_MODEL_ID", "anthropic.claude-3-7-sonnet-20250219-v1:0"),
		Temperature:    getEnvFloat("MODEL_TEMPERATURE", 0.3),

		RemoteRuntimeEnabled: getEnvBool("USE_REMOTE_RUNTIME", true),
		RemoteAgentRef:       getEnv("REMOTE_AGENT_REF", ""),
		RemoteRuntimeURL:     getEnv("REMOTE_RUNTIME_URL", ""),
		RemoteReadTimeout:    getEnvDuration("REMOTE_READ_TIMEOUT", 15*time.Minute),
		RemoteConnectTimeout: getEnvDuration("REMOTE_CONNECT_TIMEOUT", time.Minute),

		ArtifactTTL: getEnvDuration("ARTIFACT_TTL", 24*time.Hour),

		SessionIdleTTL: getEnvDuration("SESSION_IDLE_TTL", 12*time.Hour),

		NATSURL: getEnv("NATS_URL", "nats://localhost:4222"),

		JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-production"),
	}
}

// AppliedDefaults reports which security or infrastructure relevant values
// fell back to their development defaults.
func (c *Config) AppliedDefaults() []string {
	var defaults []string
	if os.Getenv("JWT_SECRET") == "" {
		defaults = append(defaults, "JWT_SECRET")
	}
	if os.Getenv("REDIS_URL") == "" {
		defaults = append(defaults, "REDIS_URL")
	}
	if os.Getenv("MODEL_SERVICE_URL") == "" && os.Getenv("ANTHROPIC_API_KEY") == "" {
		defaults = append(defaults, "MODEL_SERVICE_URL")
	}
	return defaults
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
