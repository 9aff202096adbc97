package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Source     SourceConfig     `yaml:"source" mapstructure:"source"`
	Completion CompletionConfig `yaml:"completion" mapstructure:"completion"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Breaker    BreakerConfig    `yaml:"breaker" mapstructure:"breaker"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit" mapstructure:"ratelimit"`
	Engine     EngineConfig     `yaml:"engine" mapstructure:"engine"`
	Temporal   TemporalConfig   `yaml:"temporal" mapstructure:"temporal"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Tracing    TracingConfig    `yaml:"tracing" mapstructure:"tracing"`
}

// SourceConfig selects and configures the customer data source.
type SourceConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=csv postgres sqlite"`
	UseDatabase bool   `yaml:"use_database" mapstructure:"use_database"`
	CSVPath     string `yaml:"csv_path" mapstructure:"csv_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DBHost      string `yaml:"db_host" mapstructure:"db_host"`
	DBPort      int    `yaml:"db_port" mapstructure:"db_port" validate:"min=1,max=65535"`
	DBName      string `yaml:"db_name" mapstructure:"db_name"`
	DBUser      string `yaml:"db_user" mapstructure:"db_user"`
	DBPassword  string `yaml:"db_password" mapstructure:"db_password"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns" validate:"gte=0"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns" validate:"gte=0,ltefield=MaxConns"`
}

// PostgresURL returns DatabaseURL, or a URL assembled from the DB_* parts.
func (s SourceConfig) PostgresURL() string {
	if s.DatabaseURL != "" {
		return s.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   s.DBHost + ":" + strconv.Itoa(s.DBPort),
		Path:   "/" + s.DBName,
	}
	if s.DBPassword != "" {
		u.User = url.UserPassword(s.DBUser, s.DBPassword)
	} else if s.DBUser != "" {
		u.User = url.User(s.DBUser)
	}
	return u.String()
}

// CompletionConfig selects the completion provider.
type CompletionConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider" validate:"oneof=openai anthropic offline"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model" validate:"required"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model" validate:"required"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens" validate:"min=1"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
}

// PricingConfig overrides per-model token pricing (USD per million tokens).
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    map[string]ModelPricing `yaml:"openai" mapstructure:"openai"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// CacheConfig configures the Redis read-through cache for customer records.
// An empty RedisURL disables the cache.
type CacheConfig struct {
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url" validate:"omitempty,url"`
	TTLSecs  int    `yaml:"ttl_secs" mapstructure:"ttl_secs" validate:"min=1"`
}

// TTL returns the cache TTL as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSecs) * time.Second
}

// BreakerConfig configures the completion circuit breaker.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold" validate:"min=1"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs" validate:"min=1"`
	HalfOpenProbes   int `yaml:"half_open_probes" mapstructure:"half_open_probes" validate:"min=1"`
}

// RateLimitConfig throttles completion calls. PerSecond 0 disables it.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second" mapstructure:"per_second" validate:"gte=0"`
	Burst     int     `yaml:"burst" mapstructure:"burst" validate:"min=1"`
}

// EngineConfig selects how the pipeline is executed.
type EngineConfig struct {
	Kind string `yaml:"kind" mapstructure:"kind" validate:"oneof=local temporal"`
}

// TemporalConfig configures the Temporal engine and worker.
type TemporalConfig struct {
	HostPort         string `yaml:"host_port" mapstructure:"host_port" validate:"required"`
	Namespace        string `yaml:"namespace" mapstructure:"namespace" validate:"required"`
	TaskQueue        string `yaml:"task_queue" mapstructure:"task_queue" validate:"required"`
	StageTimeoutSecs int    `yaml:"stage_timeout_secs" mapstructure:"stage_timeout_secs" validate:"min=1"`
}

// StageTimeout returns the per-stage activity timeout.
func (t TemporalConfig) StageTimeout() time.Duration {
	return time.Duration(t.StageTimeoutSecs) * time.Second
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// TracingConfig configures OpenTelemetry tracing. Exporter "none" keeps
// spans in-process only.
type TracingConfig struct {
	Exporter    string `yaml:"exporter" mapstructure:"exporter" validate:"oneof=none stdout"`
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
}

// legacyEnv maps config keys to the environment names used by earlier
// deployments. Prefixed names still take precedence.
var legacyEnv = map[string]string{
	"openai.key":          "OPENAI_API_KEY",
	"anthropic.key":       "ANTHROPIC_API_KEY",
	"source.use_database": "USE_DATABASE",
	"source.db_host":      "DB_HOST",
	"source.db_port":      "DB_PORT",
	"source.db_name":      "DB_NAME",
	"source.db_user":      "DB_USER",
	"source.db_password":  "DB_PASSWORD",
	"cache.redis_url":     "REDIS_URL",
}

const envPrefix = "CROSSSELL"

// Load reads configuration from .env, config.yaml, and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("source.csv_path", "customer_data.csv")
	v.SetDefault("source.sqlite_path", "customer_data.db")
	v.SetDefault("source.db_host", "localhost")
	v.SetDefault("source.db_port", 5432)
	v.SetDefault("source.db_name", "customer_db")
	v.SetDefault("source.db_user", "postgres")
	v.SetDefault("source.max_conns", 10)
	v.SetDefault("source.min_conns", 1)
	v.SetDefault("completion.provider", "openai")
	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("cache.ttl_secs", 600)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_timeout_secs", 30)
	v.SetDefault("breaker.half_open_probes", 1)
	v.SetDefault("ratelimit.per_second", 0)
	v.SetDefault("ratelimit.burst", 1)
	v.SetDefault("engine.kind", "local")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "crosssell-recommendations")
	v.SetDefault("temporal.stage_timeout_secs", 600)
	v.SetDefault("server.port", 8000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.service_name", "crosssell")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Driver is left without a default so USE_DATABASE can pick it.
	if cfg.Source.Driver == "" {
		cfg.Source.Driver = "csv"
		if cfg.Source.UseDatabase {
			cfg.Source.Driver = "postgres"
		}
	}

	return &cfg, nil
}

var validate = validator.New()

// Validate checks the configuration for the given command mode: "serve",
// "recommend", "customers", "seed" or "worker".
func (c *Config) Validate(mode string) error {
	var problems []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return eris.Wrap(err, "config: validate")
		}
		for _, fe := range verrs {
			problems = append(problems, fieldProblem(fe))
		}
	}

	needsPipeline := false
	switch mode {
	case "serve":
		needsPipeline = true
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
	case "recommend", "worker":
		needsPipeline = true
	case "customers":
	case "seed":
		if c.Source.Driver == "csv" {
			problems = append(problems, "source.driver must be postgres or sqlite to seed")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needsPipeline {
		switch c.Completion.Provider {
		case "openai":
			if c.OpenAI.Key == "" {
				problems = append(problems, "openai.key is required (OPENAI_API_KEY)")
			}
		case "anthropic":
			if c.Anthropic.Key == "" {
				problems = append(problems, "anthropic.key is required (ANTHROPIC_API_KEY)")
			}
		}
	}

	if c.Source.Driver == "csv" && c.Source.CSVPath == "" {
		problems = append(problems, "source.csv_path is required for the csv driver")
	}
	if c.Source.Driver == "sqlite" && c.Source.SQLitePath == "" {
		problems = append(problems, "source.sqlite_path is required for the sqlite driver")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// fieldProblem renders a validator error using the mapstructure key path,
// e.g. "breaker.failure_threshold failed min=1".
func fieldProblem(fe validator.FieldError) string {
	parts := strings.Split(fe.Namespace(), ".")
	if len(parts) > 0 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snake(p)
	}
	rule := fe.Tag()
	if fe.Param() != "" {
		rule += "=" + fe.Param()
	}
	return fmt.Sprintf("%s failed %s", strings.Join(parts, "."), rule)
}

var keyOverrides = map[string]string{
	"OpenAI":           "openai",
	"RateLimit":        "ratelimit",
	"CSVPath":          "csv_path",
	"DatabaseURL":      "database_url",
	"SQLitePath":       "sqlite_path",
	"BaseURL":          "base_url",
	"RedisURL":         "redis_url",
	"DBHost":           "db_host",
	"DBPort":           "db_port",
	"DBName":           "db_name",
	"DBUser":           "db_user",
	"DBPassword":       "db_password",
	"TTLSecs":          "ttl_secs",
	"HostPort":         "host_port",
	"StageTimeoutSecs": "stage_timeout_secs",
}

func snake(name string) string {
	if s, ok := keyOverrides[name]; ok {
		return s
	}
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
