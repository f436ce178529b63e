// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Breaker configuration (per-backend circuit breakers).
	Breaker BreakerConfig `yaml:"breaker"`

	// Cache configuration (answer cache).
	Cache CacheConfig `yaml:"cache"`

	// Cost configuration (per-user daily ceilings).
	Cost CostConfig `yaml:"cost"`

	// Model configuration (language-model service).
	Model ModelConfig `yaml:"model"`

	// Qdrant configuration (vector store).
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Bus configuration (telemetry events).
	Bus BusConfig `yaml:"bus"`

	// Engine configuration (orchestrator).
	Engine EngineConfig `yaml:"engine"`

	// Logging configuration.
	Log LogConfig `yaml:"log"`
}

// BreakerConfig holds circuit breaker settings, shared by both backends.
type BreakerConfig struct {
	FailureThreshold    int   `envconfig:"PULSE_BREAKER_FAILURE_THRESHOLD" yaml:"failure_threshold"`
	TimeoutMs           int64 `envconfig:"PULSE_BREAKER_TIMEOUT_MS" yaml:"timeout_ms"`
	HalfOpenMaxAttempts int   `envconfig:"PULSE_BREAKER_HALF_OPEN_MAX_ATTEMPTS" yaml:"half_open_max_attempts"`
}

// CacheConfig holds answer cache settings.
type CacheConfig struct {
	Type       string `envconfig:"PULSE_CACHE_TYPE" yaml:"type"` // memory or redis
	TTLMs      int64  `envconfig:"PULSE_CACHE_TTL_MS" yaml:"ttl_ms"`
	MaxEntries int    `envconfig:"PULSE_CACHE_MAX_ENTRIES" yaml:"max_entries"`
	RedisURL   string `envconfig:"PULSE_REDIS_URL" yaml:"redis_url"`
}

// CostConfig holds per-user daily usage ceilings and model pricing.
type CostConfig struct {
	MaxDailyCalls           int     `envconfig:"PULSE_COST_MAX_DAILY_CALLS" yaml:"max_daily_calls"`
	MaxDailyEmbeddings      int     `envconfig:"PULSE_COST_MAX_DAILY_EMBEDDINGS" yaml:"max_daily_embeddings"`
	MaxDailyCompletions     int     `envconfig:"PULSE_COST_MAX_DAILY_COMPLETIONS" yaml:"max_daily_completions"`
	MaxDailyTokens          int64   `envconfig:"PULSE_COST_MAX_DAILY_TOKENS" yaml:"max_daily_tokens"`
	MaxDailyCostUSD         float64 `envconfig:"PULSE_COST_MAX_DAILY_USD" yaml:"max_daily_cost_usd"`
	EmbeddingRatePer1K      float64 `envconfig:"PULSE_COST_EMBED_RATE" yaml:"embedding_rate_per_1k"`
	CompletionInRatePer1K   float64 `envconfig:"PULSE_COST_COMPLETION_IN_RATE" yaml:"completion_in_rate_per_1k"`
	CompletionOutRatePer1K  float64 `envconfig:"PULSE_COST_COMPLETION_OUT_RATE" yaml:"completion_out_rate_per_1k"`
	LedgerType              string  `envconfig:"PULSE_COST_LEDGER_TYPE" yaml:"ledger_type"` // memory or redis
	LedgerRedisURL          string  `envconfig:"PULSE_COST_LEDGER_REDIS_URL" yaml:"ledger_redis_url"`
	LedgerSweepIntervalMins int     `envconfig:"PULSE_COST_LEDGER_SWEEP_MINS" yaml:"ledger_sweep_interval_mins"`
}

// ModelConfig holds language-model service settings.
type ModelConfig struct {
	APIKey          string  `envconfig:"PULSE_OPENAI_API_KEY" yaml:"api_key"`
	EmbedModel      string  `envconfig:"PULSE_EMBED_MODEL" yaml:"embed_model"`
	CompletionModel string  `envconfig:"PULSE_COMPLETION_MODEL" yaml:"completion_model"`
	EmbedDim        int     `envconfig:"PULSE_EMBED_DIM" yaml:"embed_dim"`
	RatePerSecond   float64 `envconfig:"PULSE_MODEL_RATE_PER_SECOND" yaml:"rate_per_second"`
	RateBurst       int     `envconfig:"PULSE_MODEL_RATE_BURST" yaml:"rate_burst"`
}

// QdrantConfig holds vector store connection settings.
type QdrantConfig struct {
	Host       string `envconfig:"QDRANT_HOST" yaml:"host"`
	Port       int    `envconfig:"QDRANT_PORT" yaml:"port"`
	APIKey     string `envconfig:"QDRANT_API_KEY" yaml:"api_key"`
	UseTLS     bool   `envconfig:"QDRANT_USE_TLS" yaml:"use_tls"`
	Collection string `envconfig:"QDRANT_COLLECTION" yaml:"collection"`
}

// BusConfig holds telemetry event bus settings.
type BusConfig struct {
	Type            string `envconfig:"PULSE_BUS_TYPE" yaml:"type"` // memory or kafka
	KafkaBrokers    string `envconfig:"PULSE_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaGroup      string `envconfig:"PULSE_KAFKA_GROUP" yaml:"kafka_group"`
	EventLogEnabled bool   `envconfig:"PULSE_BUS_EVENT_LOG" yaml:"event_log_enabled"`
	EventLogPath    string `envconfig:"PULSE_BUS_EVENT_LOG_PATH" yaml:"event_log_path"`
}

// EngineConfig holds orchestrator settings.
type EngineConfig struct {
	ExactDeadlineMs    int64   `envconfig:"PULSE_EXACT_DEADLINE_MS" yaml:"exact_deadline_ms"`
	SemanticDeadlineMs int64   `envconfig:"PULSE_SEMANTIC_DEADLINE_MS" yaml:"semantic_deadline_ms"`
	EMASmoothing       float64 `envconfig:"PULSE_EMA_SMOOTHING" yaml:"ema_smoothing"`
	CacheMinConfidence float64 `envconfig:"PULSE_CACHE_MIN_CONFIDENCE" yaml:"cache_min_confidence"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"PULSE_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"PULSE_LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Breaker = BreakerConfig{
		FailureThreshold:    5,
		TimeoutMs:           30000,
		HalfOpenMaxAttempts: 2,
	}

	cfg.Cache = CacheConfig{
		Type:       "memory",
		TTLMs:      5 * 60 * 1000,
		MaxEntries: 1000,
		RedisURL:   "redis://localhost:6379",
	}

	cfg.Cost = CostConfig{
		MaxDailyCalls:           200,
		MaxDailyEmbeddings:      150,
		MaxDailyCompletions:     100,
		MaxDailyTokens:          500000,
		MaxDailyCostUSD:         5.0,
		EmbeddingRatePer1K:      0.00002,
		CompletionInRatePer1K:   0.0025,
		CompletionOutRatePer1K:  0.01,
		LedgerType:              "memory",
		LedgerSweepIntervalMins: 60,
	}

	cfg.Model = ModelConfig{
		EmbedModel:      "text-embedding-3-small",
		CompletionModel: "gpt-4o-mini",
		EmbedDim:        1536,
		RatePerSecond:   2,
		RateBurst:       4,
	}

	cfg.Qdrant = QdrantConfig{
		Host:       "localhost",
		Port:       6334,
		Collection: "content",
	}

	cfg.Bus = BusConfig{
		Type:         "memory",
		EventLogPath: "./data/events.jsonl",
	}

	cfg.Engine = EngineConfig{
		ExactDeadlineMs:    10000,
		SemanticDeadlineMs: 8000,
		EMASmoothing:       0.1,
		CacheMinConfidence: 0.6,
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	// Breaker validation
	if c.Breaker.FailureThreshold < 1 {
		errs = append(errs, "breaker failure_threshold must be positive")
	}
	if c.Breaker.TimeoutMs < 1 {
		errs = append(errs, "breaker timeout_ms must be positive")
	}
	if c.Breaker.HalfOpenMaxAttempts < 1 {
		errs = append(errs, "breaker half_open_max_attempts must be positive")
	}

	// Cache validation
	validCacheTypes := map[string]bool{"memory": true, "redis": true}
	if !validCacheTypes[c.Cache.Type] {
		errs = append(errs, fmt.Sprintf("invalid cache type: %s (must be memory or redis)", c.Cache.Type))
	}
	if c.Cache.TTLMs < 1 {
		errs = append(errs, "cache ttl_ms must be positive")
	}
	if c.Cache.MaxEntries < 1 {
		errs = append(errs, "cache max_entries must be positive")
	}

	// Cost validation
	if c.Cost.MaxDailyCalls < 1 {
		errs = append(errs, "max_daily_calls must be positive")
	}
	if c.Cost.MaxDailyTokens < 1 {
		errs = append(errs, "max_daily_tokens must be positive")
	}
	if c.Cost.MaxDailyCostUSD <= 0 {
		errs = append(errs, "max_daily_cost_usd must be positive")
	}
	validLedgerTypes := map[string]bool{"memory": true, "redis": true}
	if !validLedgerTypes[c.Cost.LedgerType] {
		errs = append(errs, fmt.Sprintf("invalid ledger type: %s (must be memory or redis)", c.Cost.LedgerType))
	}

	// Model validation
	if c.Model.EmbedDim < 1 {
		errs = append(errs, "embed_dim must be positive")
	}
	if c.Model.RatePerSecond <= 0 {
		errs = append(errs, "rate_per_second must be positive")
	}

	// Bus validation
	validBusTypes := map[string]bool{"memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be memory or kafka)", c.Bus.Type))
	}

	// Engine validation
	if c.Engine.ExactDeadlineMs < 1 || c.Engine.SemanticDeadlineMs < 1 {
		errs = append(errs, "backend deadlines must be positive")
	}
	if c.Engine.EMASmoothing <= 0 || c.Engine.EMASmoothing > 1 {
		errs = append(errs, "ema_smoothing must be in (0, 1]")
	}
	if c.Engine.CacheMinConfidence < 0 || c.Engine.CacheMinConfidence > 1 {
		errs = append(errs, "cache_min_confidence must be between 0 and 1")
	}

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// ExactDeadline returns the exact backend deadline as a duration.
func (c *EngineConfig) ExactDeadline() time.Duration {
	return time.Duration(c.ExactDeadlineMs) * time.Millisecond
}

// SemanticDeadline returns the semantic backend deadline as a duration.
func (c *EngineConfig) SemanticDeadline() time.Duration {
	return time.Duration(c.SemanticDeadlineMs) * time.Millisecond
}

// CacheTTL returns the answer cache TTL as a duration.
func (c *CacheConfig) CacheTTL() time.Duration {
	return time.Duration(c.TTLMs) * time.Millisecond
}

// BreakerTimeout returns the breaker open-state timeout as a duration.
func (c *BreakerConfig) BreakerTimeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Log.Level == "debug"
}
