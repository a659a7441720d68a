package config

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DICTATE_LLM_PROVIDER", "")
	t.Setenv("DICTATE_STORE", "")
	t.Setenv("DICTATE_SELF_NAME", "")
	t.Setenv("DICTATE_RUN_TIMEOUT", "")
	t.Setenv("DICTATE_WORDLE_OPPONENT", "")
	t.Setenv("DICTATE_RECOMMENDATION_TYPES", "")
	t.Setenv("DICTATE_CONCURRENCY", "")

	cfg := Load()
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, StoreNotion, cfg.Store)
	assert.Equal(t, "Mark", cfg.SelfName)
	assert.Equal(t, "Lorna", cfg.Opponent)
	assert.Empty(t, cfg.RecommendationTypes)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 2*time.Minute, cfg.RunTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_OpenAIKeyFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_KEY", "sk-legacy")

	cfg := Load()
	assert.Equal(t, "sk-legacy", cfg.OpenAIAPIKey)
}

func TestLoad_RecommendationTypes(t *testing.T) {
	t.Setenv("DICTATE_RECOMMENDATION_TYPES", "Book, Movie,, Game ")

	cfg := Load()
	assert.Equal(t, []string{"Book", "Movie", "Game"}, cfg.RecommendationTypes)
}

func TestValidate(t *testing.T) {
	valid := Config{
		LLMProvider:  "openai",
		OpenAIAPIKey: "sk-test",
		Store:        StoreNotion,
		NotionKey:    "secret",
		RunTimeout:   time.Minute,
		Concurrency:  4,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing openai key", mutate: func(c *Config) { c.OpenAIAPIKey = "" }, wantErr: "OPENAI_API_KEY"},
		{name: "missing notion key", mutate: func(c *Config) { c.NotionKey = "" }, wantErr: "NOTION_KEY"},
		{name: "unknown provider", mutate: func(c *Config) { c.LLMProvider = "gemini" }, wantErr: "gemini"},
		{name: "unknown store", mutate: func(c *Config) { c.Store = "sqlite" }, wantErr: "sqlite"},
		{name: "memory store needs nothing", mutate: func(c *Config) { c.Store = StoreMemory; c.NotionKey = "" }},
		{name: "zero concurrency", mutate: func(c *Config) { c.Concurrency = 0 }, wantErr: "DICTATE_CONCURRENCY"},
		{name: "anthropic key", mutate: func(c *Config) { c.LLMProvider = "anthropic" }, wantErr: "ANTHROPIC_API_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var cfgErr *ConfigurationError
			assert.True(t, errors.As(err, &cfgErr))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_JoinsAllProblems(t *testing.T) {
	err := Config{LLMProvider: "openai", Store: StoreNotion}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
	assert.Contains(t, err.Error(), "NOTION_KEY")
	assert.Contains(t, err.Error(), "DICTATE_RUN_TIMEOUT")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLogLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("bogus"))
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("record created", "collection", "tasks")
	logger.Debug("hidden")

	assert.Contains(t, stderr.String(), "record created")
	assert.Contains(t, file.String(), `"collection":"tasks"`)
	assert.NotContains(t, file.String(), "hidden")
}
