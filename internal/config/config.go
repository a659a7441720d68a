package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StoreNotion  = "notion"
	StoreSurreal = "surreal"
	StoreMemory  = "memory"
)

// LLM providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderBedrock   = "bedrock"
)

// Config holds all configuration values.
type Config struct {
	// Language model
	LLMProvider     string
	LLMModel        string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	OllamaHost      string
	AWSRegion       string

	// Workspace store
	Store      string
	NotionKey  string
	SchemaFile string

	// SurrealDB connection (surreal store and audit history)
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string
	Audit              bool

	// Pipeline
	SelfName            string
	Opponent            string
	RecommendationTypes []string
	Location            *time.Location
	RunTimeout          time.Duration
	Concurrency         int

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// ConfigurationError reports missing or invalid settings detected at startup.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		LLMProvider:     strings.ToLower(getEnv("DICTATE_LLM_PROVIDER", ProviderOpenAI)),
		LLMModel:        getEnv("DICTATE_LLM_MODEL", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", os.Getenv("OPENAI_KEY")),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),

		Store:      strings.ToLower(getEnv("DICTATE_STORE", StoreNotion)),
		NotionKey:  getEnv("NOTION_KEY", ""),
		SchemaFile: getEnv("DICTATE_SCHEMA_FILE", ""),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "dictate"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "workspace"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),
		Audit:              getEnv("DICTATE_AUDIT", "false") == "true",

		SelfName:            getEnv("DICTATE_SELF_NAME", "Mark"),
		Opponent:            getEnv("DICTATE_WORDLE_OPPONENT", "Lorna"),
		RecommendationTypes: parseList(getEnv("DICTATE_RECOMMENDATION_TYPES", "")),
		Location:            parseLocation(getEnv("DICTATE_TIMEZONE", "Local")),
		RunTimeout:          parseDuration(getEnv("DICTATE_RUN_TIMEOUT", "2m"), 2*time.Minute),
		Concurrency:         parseInt(getEnv("DICTATE_CONCURRENCY", "4"), 4),

		LogFile:  getEnv("DICTATE_LOG_FILE", "/tmp/dictate.log"),
		LogLevel: parseLogLevel(getEnv("DICTATE_LOG_LEVEL", "INFO")),
	}
}

// Validate fails fast on settings the selected provider and store need.
func (c Config) Validate() error {
	var errs []error

	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY (or OPENAI_KEY) is required for provider openai"))
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for provider anthropic"))
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			errs = append(errs, errors.New("OLLAMA_HOST is required for provider ollama"))
		}
	case ProviderBedrock:
		if c.AWSRegion == "" {
			errs = append(errs, errors.New("AWS_REGION is required for provider bedrock"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DICTATE_LLM_PROVIDER %q", c.LLMProvider))
	}

	switch c.Store {
	case StoreNotion:
		if c.NotionKey == "" {
			errs = append(errs, errors.New("NOTION_KEY is required for store notion"))
		}
	case StoreSurreal:
		if c.SurrealDBURL == "" {
			errs = append(errs, errors.New("SURREALDB_URL is required for store surreal"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown DICTATE_STORE %q", c.Store))
	}

	if c.Audit && c.SurrealDBURL == "" {
		errs = append(errs, errors.New("SURREALDB_URL is required when DICTATE_AUDIT is enabled"))
	}
	if c.Concurrency <= 0 {
		errs = append(errs, errors.New("DICTATE_CONCURRENCY must be positive"))
	}
	if c.RunTimeout <= 0 {
		errs = append(errs, errors.New("DICTATE_RUN_TIMEOUT must be positive"))
	}

	if len(errs) > 0 {
		return &ConfigurationError{Err: errors.Join(errs...)}
	}
	return nil
}

// NeedsSurreal reports whether a SurrealDB connection must be opened.
func (c Config) NeedsSurreal() bool {
	return c.Store == StoreSurreal || c.Audit
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("unknown timezone, using local", "timezone", name, "error", err)
		return time.Local
	}
	return loc
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// parseList splits a comma separated value, dropping blanks.
func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
