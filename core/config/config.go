package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"basegraph.app/boardroom/core/db"
)

type Config struct {
	OTel       OTelConfig
	Redis      RedisConfig
	OpenAI     ProviderConfig
	Anthropic  ProviderConfig
	Discussion DiscussionConfig
	Env        string
	Port       string
	DB         db.Config
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
	SampleRatio    float64
}

type RedisConfig struct {
	URL          string
	StreamPrefix string
	StreamMaxLen int64
}

// ProviderConfig holds credentials for one LLM provider. Models are chosen per candidate.
type ProviderConfig struct {
	APIKey    string
	BaseURL   string
	MaxTokens int
}

type BackendFamily string

const (
	// BackendChain runs each turn through the synchronous fallback chain.
	BackendChain BackendFamily = "chain"
	// BackendThreads runs each turn as an assistant run on a provider thread.
	BackendThreads BackendFamily = "threads"
)

// CandidateConfig is one entry of the fallback chain, most capable first.
type CandidateConfig struct {
	Provider string
	Model    string
}

func (c CandidateConfig) Name() string {
	return c.Provider + ":" + c.Model
}

type DiscussionConfig struct {
	Backend          BackendFamily
	Candidates       []CandidateConfig
	CandidateTimeout time.Duration
	PollInterval     time.Duration
	PollMaxAttempts  int
	AssistantIDs     map[string]string // role -> assistant id, threads family only
	PersonasFile     string
	SummaryEnabled   bool
	MaxConcurrent    int
}

type ServiceType string

const (
	ServiceTypeServer ServiceType = "server"
	ServiceTypeCLI    ServiceType = "cli"
)

// assistantRoles are the roles an ASSISTANT_ID_<ROLE> variable is read for.
var assistantRoles = []string{"CEO", "CFO", "CTO", "CMO"}

// Load loads configuration from environment variables.
// In development, it loads from service-specific .env files:
//   - .env.server for the API server
//   - .env.cli for the command line runner
//
// Falls back to .env if service-specific file doesn't exist.
func Load(serviceType ServiceType) (Config, error) {
	if getEnv("BOARDROOM_ENV", "development") == "development" {
		envFile := fmt.Sprintf(".env.%s", serviceType)
		if err := godotenv.Load(envFile); err != nil {
			_ = godotenv.Load(".env")
		}
	}

	candidates, err := parseCandidates(getEnv("LLM_CANDIDATES", "openai:gpt-4o,openai:gpt-4o-mini,anthropic:claude-sonnet-4-5-20250514"))
	if err != nil {
		return Config{}, err
	}

	assistantIDs := make(map[string]string)
	for _, role := range assistantRoles {
		if v := getEnv("ASSISTANT_ID_"+role, ""); v != "" {
			assistantIDs[role] = v
		}
	}

	cfg := Config{
		Env:  getEnv("BOARDROOM_ENV", "development"),
		Port: getEnv("PORT", "8080"),
		DB: db.Config{
			DSN:      getEnv("DATABASE_URL", ""),
			MaxConns: getEnvInt32("DB_MAX_CONNS", 10),
			MinConns: getEnvInt32("DB_MIN_CONNS", 2),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "boardroom"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			SampleRatio:    getEnvFloat("OTEL_TRACES_SAMPLE_RATIO", 1),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			StreamPrefix: getEnv("REDIS_STREAM_PREFIX", "discussion-stream"),
			StreamMaxLen: int64(getEnvInt("REDIS_STREAM_MAXLEN", 1000)),
		},
		OpenAI: ProviderConfig{
			APIKey:    getEnv("OPENAI_API_KEY", ""),
			BaseURL:   getEnv("OPENAI_BASE_URL", ""),
			MaxTokens: getEnvInt("OPENAI_MAX_TOKENS", 1000),
		},
		Anthropic: ProviderConfig{
			APIKey:    getEnv("ANTHROPIC_API_KEY", ""),
			BaseURL:   getEnv("ANTHROPIC_BASE_URL", ""),
			MaxTokens: getEnvInt("ANTHROPIC_MAX_TOKENS", 1024),
		},
		Discussion: DiscussionConfig{
			Backend:          BackendFamily(getEnv("DISCUSSION_BACKEND", string(BackendChain))),
			Candidates:       candidates,
			CandidateTimeout: getEnvDuration("CANDIDATE_TIMEOUT", 60*time.Second),
			PollInterval:     getEnvDuration("POLL_INTERVAL", time.Second),
			PollMaxAttempts:  getEnvInt("POLL_MAX_ATTEMPTS", 30),
			AssistantIDs:     assistantIDs,
			PersonasFile:     getEnv("PERSONAS_FILE", ""),
			SummaryEnabled:   getEnvBool("SUMMARY_ENABLED", true),
			MaxConcurrent:    getEnvInt("MAX_CONCURRENT_DISCUSSIONS", 16),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks that the selected backend family can actually be reached.
func (c Config) Validate() error {
	switch c.Discussion.Backend {
	case BackendChain:
		if len(c.Discussion.Candidates) == 0 {
			return fmt.Errorf("LLM_CANDIDATES must name at least one candidate")
		}
		for _, cand := range c.Discussion.Candidates {
			if !c.ProviderFor(cand.Provider).Enabled() {
				return fmt.Errorf("candidate %s requires an API key for %s", cand.Name(), cand.Provider)
			}
		}
	case BackendThreads:
		if !c.OpenAI.Enabled() {
			return fmt.Errorf("OPENAI_API_KEY is required for the threads backend")
		}
		if len(c.Discussion.AssistantIDs) == 0 {
			return fmt.Errorf("threads backend requires at least one ASSISTANT_ID_<ROLE>")
		}
	default:
		return fmt.Errorf("unsupported DISCUSSION_BACKEND: %q", c.Discussion.Backend)
	}

	if c.Discussion.CandidateTimeout <= 0 {
		return fmt.Errorf("CANDIDATE_TIMEOUT must be positive")
	}
	if c.Discussion.PollInterval <= 0 || c.Discussion.PollMaxAttempts <= 0 {
		return fmt.Errorf("POLL_INTERVAL and POLL_MAX_ATTEMPTS must be positive")
	}
	return nil
}

// ProviderFor returns the credentials for a candidate provider.
func (c Config) ProviderFor(provider string) ProviderConfig {
	switch provider {
	case "openai":
		return c.OpenAI
	case "anthropic":
		return c.Anthropic
	default:
		return ProviderConfig{}
	}
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

func (c ProviderConfig) Enabled() bool {
	return c.APIKey != ""
}

// parseCandidates reads "provider:model" pairs in fallback order.
func parseCandidates(s string) ([]CandidateConfig, error) {
	var out []CandidateConfig
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		provider, model, ok := strings.Cut(part, ":")
		provider = strings.ToLower(strings.TrimSpace(provider))
		model = strings.TrimSpace(model)
		if !ok || provider == "" || model == "" {
			return nil, fmt.Errorf("invalid LLM_CANDIDATES entry %q (want provider:model)", part)
		}
		if provider != "openai" && provider != "anthropic" {
			return nil, fmt.Errorf("invalid LLM_CANDIDATES entry %q: unsupported provider %q", part, provider)
		}
		out = append(out, CandidateConfig{Provider: provider, Model: model})
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt32(key string, fallback int32) int32 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(i)
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
