// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8080"`

	// LLM provider (OpenAI-compatible chat completions). Provider choice is a
	// pure strategy substitution: point BaseURL/APIKey at OpenRouter, Groq, or
	// any compatible gateway and the pipeline behaves identically.
	LLMProvider    string        `env:"LLM_PROVIDER" envDefault:"openrouter"`
	LLMAPIKey      string        `env:"LLM_API_KEY"`
	LLMBaseURL     string        `env:"LLM_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	LLMModel       string        `env:"LLM_MODEL" envDefault:"google/gemini-2.0-flash-001"`
	LLMTemperature float64       `env:"LLM_TEMPERATURE" envDefault:"0.2"`
	LLMMaxTokens   int           `env:"LLM_MAX_TOKENS" envDefault:"1024"`
	LLMTimeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`
	// MaxPromptTokens bounds the prompt size; older history is truncated first.
	MaxPromptTokens int `env:"MAX_PROMPT_TOKENS" envDefault:"6000"`

	// AI backoff configuration (transport-level retries on 429/5xx).
	AIBackoffMaxElapsedTime  time.Duration `env:"AI_BACKOFF_MAX_ELAPSED_TIME" envDefault:"90s"`
	AIBackoffInitialInterval time.Duration `env:"AI_BACKOFF_INITIAL_INTERVAL" envDefault:"2s"`
	AIBackoffMaxInterval     time.Duration `env:"AI_BACKOFF_MAX_INTERVAL" envDefault:"20s"`
	AIBackoffMultiplier      float64       `env:"AI_BACKOFF_MULTIPLIER" envDefault:"1.5"`

	// Question pipeline behavior.
	// ValidationEnabled selects the thorough mode: generated questions are
	// scored and regenerated up to ValidationMaxAttempts times.
	ValidationEnabled     bool `env:"QUESTION_VALIDATION_ENABLED" envDefault:"false"`
	ValidationMaxAttempts int  `env:"QUESTION_VALIDATION_MAX_ATTEMPTS" envDefault:"3"`
	ValidationThreshold   int  `env:"QUESTION_VALIDATION_THRESHOLD" envDefault:"70"`
	// PregenEnabled pre-generates the next question in the background after a
	// question is returned.
	PregenEnabled bool `env:"QUESTION_PREGEN_ENABLED" envDefault:"false"`

	// Session memory store. Redis is used when SessionRedisURL is set;
	// otherwise sessions live in-process.
	SessionRedisURL string        `env:"SESSION_REDIS_URL"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"2h"`
	SessionMaxCount int           `env:"SESSION_MAX_COUNT" envDefault:"1024"`

	// KafkaBrokers enables interview event publishing when non-empty.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// HTTP server.
	CORSAllowOrigins      string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	RateLimitPerMin       int           `env:"RATE_LIMIT_PER_MIN" envDefault:"30"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"120s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	RequestTimeout        time.Duration `env:"REQUEST_TIMEOUT" envDefault:"120s"`

	// Observability.
	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"ai-interview-coach"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// GetAIBackoffConfig returns backoff configuration for the current environment.
// Test environments use much shorter timeouts for faster execution.
func (c Config) GetAIBackoffConfig() (maxElapsedTime, initialInterval, maxInterval time.Duration, multiplier float64) {
	if c.IsTest() {
		return 2 * time.Second, 50 * time.Millisecond, 500 * time.Millisecond, 2.0
	}
	return c.AIBackoffMaxElapsedTime, c.AIBackoffInitialInterval, c.AIBackoffMaxInterval, c.AIBackoffMultiplier
}

// EventsEnabled reports whether interview event publishing is configured.
func (c Config) EventsEnabled() bool { return len(c.KafkaBrokers) > 0 }
