package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by LORECHECK_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("LORECHECK_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// LLMProvider returns the configured generative-language provider.
// Valid values: openai, mock, none. Defaults to "none": the generative
// extractor is optional and the pipeline runs without it.
func LLMProvider() string {
	p := os.Getenv("LLM_PROVIDER")
	if p == "" {
		return "none"
	}
	return p
}

// EmbeddingProvider returns the configured embedding provider.
// Valid values: openai, mock. Defaults to "mock".
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "mock"
	}
	return p
}

// ParseProvider returns the configured grammatical-parse collaborator.
// Valid values: http, none. Defaults to "none": the dependency extractor
// proposes nothing without a parse service attached.
func ParseProvider() string {
	p := os.Getenv("PARSE_PROVIDER")
	if p == "" {
		return "none"
	}
	return p
}

// ParseServiceURL points at the external parse service for the http provider.
func ParseServiceURL() string {
	return os.Getenv("PARSE_SERVICE_URL")
}

// EmbeddingModel selects the embedding model for the openai provider.
// Empty means the client default.
func EmbeddingModel() string {
	return os.Getenv("EMBEDDING_MODEL")
}

// FusionConfigPath points at the YAML file holding method weights, the
// acceptance threshold/margin, and the severity curve. Empty means compiled
// defaults.
func FusionConfigPath() string {
	return os.Getenv("FUSION_CONFIG")
}

// LLMTimeout bounds a single generative collaborator call.
func LLMTimeout() time.Duration {
	ms, err := strconv.Atoi(os.Getenv("LLM_TIMEOUT_MS"))
	if err != nil || ms <= 0 {
		return 10 * time.Second
	}
	return time.Duration(ms) * time.Millisecond
}

// LLMMaxConcurrency caps in-flight generative collaborator calls.
func LLMMaxConcurrency() int {
	n, err := strconv.Atoi(os.Getenv("LLM_MAX_CONCURRENCY"))
	if err != nil || n <= 0 {
		return 4
	}
	return n
}

// LLMRateRPS limits generative collaborator calls per second.
func LLMRateRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("LLM_RATE_RPS"), 64)
	if err != nil || rps <= 0 {
		return 5
	}
	return rps
}

// ExtractionWorkers sets how many chapters are analyzed in parallel.
func ExtractionWorkers() int {
	n, err := strconv.Atoi(os.Getenv("EXTRACTION_WORKERS"))
	if err != nil || n <= 0 {
		return 4
	}
	return n
}

// RateLimitRPS returns the API requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
