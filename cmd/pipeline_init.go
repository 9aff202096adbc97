package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/sells-group/crosssell/internal/completion"
	"github.com/sells-group/crosssell/internal/cost"
	"github.com/sells-group/crosssell/internal/customer"
	"github.com/sells-group/crosssell/internal/model"
	"github.com/sells-group/crosssell/internal/monitoring"
	"github.com/sells-group/crosssell/internal/pipeline"
	"github.com/sells-group/crosssell/internal/resilience"
	"github.com/sells-group/crosssell/internal/workflow"
	anthropicpkg "github.com/sells-group/crosssell/pkg/anthropic"
)

// Recommender produces a recommendation response for one customer. Both the
// in-process pipeline and the Temporal runner satisfy it.
type Recommender interface {
	Run(ctx context.Context, customerID string) model.RecommendationResponse
}

// pipelineEnv holds the data source, completion chain, and pipeline needed
// by the serve/recommend/worker commands.
type pipelineEnv struct {
	Source      customer.Source
	Pipeline    *pipeline.Pipeline
	Recommender Recommender
	Registry    *prometheus.Registry
	Metrics     *monitoring.Metrics
	Temporal    client.Client // nil unless engine.kind is temporal

	closers []func()
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	for i := len(pe.closers) - 1; i >= 0; i-- {
		pe.closers[i]()
	}
	pe.closers = nil
}

func (pe *pipelineEnv) onClose(fn func()) {
	pe.closers = append(pe.closers, fn)
}

// initPipeline validates config for mode, opens the data source, builds the
// completion chain and pipeline, and connects to Temporal when configured.
// Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &pipelineEnv{Registry: prometheus.NewRegistry()}
	env.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	env.Metrics = monitoring.NewMetrics(env.Registry)

	shutdownTracing, err := initTracing(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}
	env.onClose(func() { _ = shutdownTracing(context.Background()) })

	src, err := openSource(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Source = src
	env.onClose(func() { _ = src.Close() })

	llm, err := buildCompleter(env.Metrics)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Pipeline = pipeline.NewDefault(src, src.Name(), llm, pipeline.WithMetrics(env.Metrics))
	env.Recommender = env.Pipeline

	if cfg.Engine.Kind == "temporal" || mode == "worker" {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "temporal: dial")
		}
		env.Temporal = tc
		env.onClose(tc.Close)
		if cfg.Engine.Kind == "temporal" {
			env.Recommender = workflow.NewRunner(tc, cfg.Temporal.TaskQueue, cfg.Temporal.StageTimeout())
		}
	}

	zap.L().Info("pipeline initialized",
		zap.String("data_source", src.Name()),
		zap.String("provider", cfg.Completion.Provider),
		zap.String("engine", cfg.Engine.Kind),
	)
	return env, nil
}

// openSource opens the configured customer data source, wrapped in the
// Redis cache when cache.redis_url is set.
func openSource(ctx context.Context) (customer.Source, error) {
	var src customer.Source
	switch cfg.Source.Driver {
	case "postgres":
		pg, err := customer.NewPostgres(ctx, cfg.Source.PostgresURL(), &customer.PoolConfig{
			MaxConns: cfg.Source.MaxConns,
			MinConns: cfg.Source.MinConns,
		})
		if err != nil {
			return nil, err
		}
		src = pg
	case "sqlite":
		sq, err := customer.NewSQLite(cfg.Source.SQLitePath)
		if err != nil {
			return nil, err
		}
		src = sq
	default:
		csvSrc, err := customer.NewCSVSource(cfg.Source.CSVPath)
		if err != nil {
			return nil, err
		}
		src = csvSrc
	}

	if cfg.Cache.RedisURL == "" {
		return src, nil
	}

	opts, err := redis.ParseURL(cfg.Cache.RedisURL)
	if err != nil {
		_ = src.Close()
		return nil, eris.Wrap(err, "redis: parse url")
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		// The cache degrades to pass-through on errors, so an unreachable
		// Redis is not fatal.
		zap.L().Warn("redis unreachable, cache will pass through", zap.Error(err))
	}
	return &closingCache{CachedSource: customer.NewCachedSource(src, rdb, cfg.Cache.TTL()), rdb: rdb}, nil
}

// closingCache closes the Redis client along with the wrapped source.
type closingCache struct {
	*customer.CachedSource
	rdb *redis.Client
}

func (c *closingCache) Close() error {
	_ = c.rdb.Close()
	return c.CachedSource.Close()
}

// buildCompleter builds the provider client and wraps it, innermost first,
// with metering, the circuit breaker, and the rate limiter.
func buildCompleter(metrics *monitoring.Metrics) (completion.Completer, error) {
	provider := cfg.Completion.Provider

	var base completion.Completer
	switch provider {
	case "openai":
		base = completion.NewOpenAI(cfg.OpenAI.Key, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	case "anthropic":
		var opts []anthropicpkg.Option
		if cfg.Anthropic.BaseURL != "" {
			opts = append(opts, anthropicpkg.WithBaseURL(cfg.Anthropic.BaseURL))
		}
		ac := anthropicpkg.NewClient(cfg.Anthropic.Key, opts...)
		base = completion.NewAnthropic(ac, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
	case "offline":
		zap.L().Warn("completion provider is offline, responses are canned")
		return completion.NewMetered(completion.NewOffline(), provider, nil, metrics), nil
	default:
		return nil, eris.Errorf("completion: unknown provider %q", provider)
	}

	llm := completion.Completer(completion.NewMetered(base, provider, cost.NewCalculator(pricingRates()), metrics))

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold:  cfg.Breaker.FailureThreshold,
		ResetTimeout:      secs(cfg.Breaker.ResetTimeoutSecs),
		HalfOpenMaxProbes: cfg.Breaker.HalfOpenProbes,
		OnStateChange: func(from, to resilience.CircuitState) {
			metrics.SetBreakerState(provider, int(to))
			zap.L().Warn("completion circuit breaker state change",
				zap.String("provider", provider),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
	metrics.SetBreakerState(provider, int(resilience.CircuitClosed))
	llm = completion.NewBreaker(llm, cb)

	if cfg.RateLimit.PerSecond > 0 {
		llm = completion.NewLimited(llm, cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
	}
	return llm, nil
}

// pricingRates overlays configured pricing on the built-in rates.
func pricingRates() cost.Rates {
	rates := cost.DefaultRates()
	for name, p := range cfg.Pricing.Anthropic {
		rates.Anthropic[name] = cost.ModelRate{Input: p.Input, Output: p.Output}
	}
	for name, p := range cfg.Pricing.OpenAI {
		rates.OpenAI[name] = cost.ModelRate{Input: p.Input, Output: p.Output}
	}
	return rates
}

func secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}
