//go:build !integration

package main

import (
	"path/filepath"
	"testing"

	"github.com/sells-group/crosssell/internal/config"
)

const testCSV = "../internal/customer/testdata/customers.csv"

// useTestConfig installs a valid offline, CSV-backed configuration and
// restores the previous one when the test ends.
func useTestConfig(t *testing.T) *config.Config {
	t.Helper()
	prev := cfg
	t.Cleanup(func() { cfg = prev })

	cfg = &config.Config{
		Source: config.SourceConfig{
			Driver:     "csv",
			CSVPath:    testCSV,
			SQLitePath: filepath.Join(t.TempDir(), "customers.db"),
			DBHost:     "localhost",
			DBPort:     5432,
			DBName:     "crosssell",
		},
		Completion: config.CompletionConfig{Provider: "offline"},
		OpenAI:     config.OpenAIConfig{Model: "gpt-3.5-turbo"},
		Anthropic:  config.AnthropicConfig{Model: "claude-haiku-4-5-20251001", MaxTokens: 2048},
		Cache:      config.CacheConfig{TTLSecs: 600},
		Breaker:    config.BreakerConfig{FailureThreshold: 5, ResetTimeoutSecs: 30, HalfOpenProbes: 1},
		RateLimit:  config.RateLimitConfig{Burst: 1},
		Engine:     config.EngineConfig{Kind: "local"},
		Temporal: config.TemporalConfig{
			HostPort:         "localhost:7233",
			Namespace:        "default",
			TaskQueue:        "crosssell-recommendations",
			StageTimeoutSecs: 600,
		},
		Server:  config.ServerConfig{Port: 8000},
		Log:     config.LogConfig{Level: "info", Format: "json"},
		Tracing: config.TracingConfig{Exporter: "none"},
	}
	return cfg
}
