//go:build !integration

package main

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crosssell/internal/completion"
	"github.com/sells-group/crosssell/internal/config"
	"github.com/sells-group/crosssell/internal/monitoring"
	"github.com/sells-group/crosssell/internal/pipeline"
)

func TestPipelineEnv_Close_Nil(t *testing.T) {
	pe := &pipelineEnv{}
	assert.NotPanics(t, func() {
		pe.Close()
		pe.Close()
	})
}

func TestPipelineEnv_Close_ReverseOrder(t *testing.T) {
	var order []int
	pe := &pipelineEnv{}
	pe.onClose(func() { order = append(order, 1) })
	pe.onClose(func() { order = append(order, 2) })
	pe.Close()
	assert.Equal(t, []int{2, 1}, order)
}

func TestInitPipeline_OfflineCSV(t *testing.T) {
	useTestConfig(t)

	env, err := initPipeline(context.Background(), "recommend")
	require.NoError(t, err)
	defer env.Close()

	assert.Equal(t, "CSV", env.Source.Name())
	assert.Nil(t, env.Temporal)
	assert.Same(t, env.Pipeline, env.Recommender)

	resp := env.Recommender.Run(context.Background(), "C001")
	require.True(t, resp.Success, resp.Error)
	assert.NotEmpty(t, resp.ResearchReport)

	resp = env.Recommender.Run(context.Background(), "C999")
	assert.False(t, resp.Success)
	assert.Equal(t, "Customer C999 not found", resp.Error)
}

func TestInitPipeline_InvalidConfig(t *testing.T) {
	c := useTestConfig(t)
	c.Completion.Provider = "openai"

	_, err := initPipeline(context.Background(), "recommend")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai.key")
}

func TestInitPipeline_MissingCSV(t *testing.T) {
	c := useTestConfig(t)
	c.Source.CSVPath = "does-not-exist.csv"

	_, err := initPipeline(context.Background(), "recommend")
	require.Error(t, err)
}

func TestOpenSource_SQLite(t *testing.T) {
	c := useTestConfig(t)
	c.Source.Driver = "sqlite"

	src, err := openSource(context.Background())
	require.NoError(t, err)
	defer src.Close() //nolint:errcheck

	assert.Equal(t, "SQLite", src.Name())
}

func TestOpenSource_WithRedis(t *testing.T) {
	c := useTestConfig(t)
	mr := miniredis.RunT(t)
	c.Cache.RedisURL = "redis://" + mr.Addr()

	src, err := openSource(context.Background())
	require.NoError(t, err)
	defer src.Close() //nolint:errcheck

	assert.Equal(t, "CSV+redis", src.Name())

	rec, err := src.GetCustomerByID(context.Background(), "C001")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.NotEmpty(t, mr.Keys())
}

func TestOpenSource_BadRedisURL(t *testing.T) {
	c := useTestConfig(t)
	c.Cache.RedisURL = "ftp://nowhere"

	_, err := openSource(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}

func TestBuildCompleter_Chain(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())

	tests := []struct {
		name      string
		provider  string
		perSecond float64
		want      any
	}{
		{"offline", "offline", 0, &completion.Metered{}},
		{"openai", "openai", 0, &completion.Breaker{}},
		{"openai limited", "openai", 2, &completion.Limited{}},
		{"anthropic", "anthropic", 0, &completion.Breaker{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := useTestConfig(t)
			c.Completion.Provider = tt.provider
			c.OpenAI.Key = "sk-test"
			c.Anthropic.Key = "ak-test"
			c.RateLimit.PerSecond = tt.perSecond

			llm, err := buildCompleter(metrics)
			require.NoError(t, err)
			assert.IsType(t, tt.want, llm)
		})
	}
}

func TestBuildCompleter_UnknownProvider(t *testing.T) {
	c := useTestConfig(t)
	c.Completion.Provider = "bard"

	_, err := buildCompleter(nil)
	require.Error(t, err)
}

func TestPricingRates_Overlay(t *testing.T) {
	c := useTestConfig(t)
	c.Pricing = config.PricingConfig{
		OpenAI: map[string]config.ModelPricing{
			"gpt-3.5-turbo": {Input: 9, Output: 18},
			"custom-model":  {Input: 1, Output: 2},
		},
	}

	rates := pricingRates()
	assert.Equal(t, 9.0, rates.OpenAI["gpt-3.5-turbo"].Input)
	assert.Equal(t, 2.0, rates.OpenAI["custom-model"].Output)
	assert.NotEmpty(t, rates.Anthropic)
}

func TestInitPipeline_UnknownMode(t *testing.T) {
	useTestConfig(t)

	env, err := initPipeline(context.Background(), "migrate")
	require.Error(t, err)
	assert.Nil(t, env)
}

func TestInitPipeline_RegistersStages(t *testing.T) {
	useTestConfig(t)

	env, err := initPipeline(context.Background(), "customers")
	require.NoError(t, err)
	defer env.Close()

	for _, name := range pipeline.StageOrder {
		_, ok := env.Pipeline.Stage(name)
		assert.True(t, ok, name)
	}
}
