// Package config loads the typed application configuration from viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/the-spice-must-learn/internal/common"
	"github.com/spf13/viper"
)

// Config is the complete application configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Rules      RulesConfig      `mapstructure:"rules"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
	Batch      BatchConfig      `mapstructure:"batch"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RulesConfig points at an optional YAML rule table loaded on top of the
// stored rules.
type RulesConfig struct {
	File string `mapstructure:"file"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider   string        `mapstructure:"provider"`
	Model      string        `mapstructure:"model"`
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Dimensions int           `mapstructure:"dimensions"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// LLMConfig configures the generative fallback. An empty provider disables it.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	MaxInFlight int64         `mapstructure:"max_in_flight"`
	RateLimit   int           `mapstructure:"rate_limit"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

// ThresholdsConfig holds every tunable confidence constant.
type ThresholdsConfig struct {
	RuleFloor           float64 `mapstructure:"rule_floor"`
	PersonalFloor       float64 `mapstructure:"personal_floor"`
	ContactFloor        float64 `mapstructure:"contact_floor"`
	EmbeddingFloor      float64 `mapstructure:"embedding_floor"`
	GlobalFloor         float64 `mapstructure:"global_floor"`
	AcceptanceFloor     float64 `mapstructure:"acceptance_floor"`
	GenerativeFloor     float64 `mapstructure:"generative_floor"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	MaxConfidence       float64 `mapstructure:"max_confidence"`
	ConsensusMinShare   float64 `mapstructure:"consensus_min_share"`
	ConsensusMinUsers   int     `mapstructure:"consensus_min_users"`
	TopK                int     `mapstructure:"top_k"`
}

// BatchConfig bounds batch categorization.
type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	// GenerativeBudgetPct is the largest share of a batch routed to the
	// generative tier, between 0 and 1.
	GenerativeBudgetPct float64 `mapstructure:"generative_budget_pct"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Path: "$HOME/.local/share/spice/spice.db"},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
		Embedding: EmbeddingConfig{
			Provider:   "hashing",
			Dimensions: 256,
			Timeout:    30 * time.Second,
		},
		LLM: LLMConfig{
			Temperature: 0.1,
			MaxTokens:   150,
			MaxInFlight: 4,
			RateLimit:   60,
			CacheTTL:    24 * time.Hour,
			Timeout:     10 * time.Second,
			RetryDelay:  500 * time.Millisecond,
		},
		Thresholds: ThresholdsConfig{
			RuleFloor:           0.90,
			PersonalFloor:       0.95,
			ContactFloor:        0.95,
			EmbeddingFloor:      0.75,
			GlobalFloor:         0.80,
			AcceptanceFloor:     0.60,
			GenerativeFloor:     0.70,
			SimilarityThreshold: 0.75,
			MaxConfidence:       0.95,
			ConsensusMinShare:   0.80,
			ConsensusMinUsers:   5,
			TopK:                5,
		},
		Batch: BatchConfig{
			Concurrency:         8,
			GenerativeBudgetPct: 0.10,
		},
	}
}

// SetDefaults registers every default with v so that config files and
// SPICE_* environment variables can override individual keys.
func SetDefaults(v *viper.Viper) {
	d := Default()
	defaults := map[string]any{
		"database.path":                   d.Database.Path,
		"logging.level":                   d.Logging.Level,
		"logging.format":                  d.Logging.Format,
		"rules.file":                      d.Rules.File,
		"embedding.provider":              d.Embedding.Provider,
		"embedding.model":                 d.Embedding.Model,
		"embedding.base_url":              d.Embedding.BaseURL,
		"embedding.api_key":               d.Embedding.APIKey,
		"embedding.dimensions":            d.Embedding.Dimensions,
		"embedding.timeout":               d.Embedding.Timeout,
		"llm.provider":                    d.LLM.Provider,
		"llm.model":                       d.LLM.Model,
		"llm.base_url":                    d.LLM.BaseURL,
		"llm.api_key":                     d.LLM.APIKey,
		"llm.temperature":                 d.LLM.Temperature,
		"llm.max_tokens":                  d.LLM.MaxTokens,
		"llm.max_in_flight":               d.LLM.MaxInFlight,
		"llm.rate_limit":                  d.LLM.RateLimit,
		"llm.cache_ttl":                   d.LLM.CacheTTL,
		"llm.timeout":                     d.LLM.Timeout,
		"llm.retry_delay":                 d.LLM.RetryDelay,
		"thresholds.rule_floor":           d.Thresholds.RuleFloor,
		"thresholds.personal_floor":       d.Thresholds.PersonalFloor,
		"thresholds.contact_floor":        d.Thresholds.ContactFloor,
		"thresholds.embedding_floor":      d.Thresholds.EmbeddingFloor,
		"thresholds.global_floor":         d.Thresholds.GlobalFloor,
		"thresholds.acceptance_floor":     d.Thresholds.AcceptanceFloor,
		"thresholds.generative_floor":     d.Thresholds.GenerativeFloor,
		"thresholds.similarity_threshold": d.Thresholds.SimilarityThreshold,
		"thresholds.max_confidence":       d.Thresholds.MaxConfidence,
		"thresholds.consensus_min_share":  d.Thresholds.ConsensusMinShare,
		"thresholds.consensus_min_users":  d.Thresholds.ConsensusMinUsers,
		"thresholds.top_k":                d.Thresholds.TopK,
		"batch.concurrency":               d.Batch.Concurrency,
		"batch.generative_budget_pct":     d.Batch.GenerativeBudgetPct,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// Load builds a validated Config from v. Provider API keys fall back to
// OPENAI_API_KEY and ANTHROPIC_API_KEY.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}

	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Rules.File = ExpandPath(cfg.Rules.File)
	cfg.LLM.APIKey = apiKeyFallback(cfg.LLM.Provider, cfg.LLM.APIKey)
	cfg.Embedding.APIKey = apiKeyFallback(cfg.Embedding.Provider, cfg.Embedding.APIKey)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func apiKeyFallback(provider, key string) string {
	if key != "" {
		return key
	}
	switch strings.ToLower(provider) {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return ""
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{common.ErrInvalidConfig}, args...)...))
	}

	if c.Database.Path == "" {
		fail("database.path is required")
	}

	t := c.Thresholds
	for name, value := range map[string]float64{
		"rule_floor":           t.RuleFloor,
		"personal_floor":       t.PersonalFloor,
		"contact_floor":        t.ContactFloor,
		"embedding_floor":      t.EmbeddingFloor,
		"global_floor":         t.GlobalFloor,
		"acceptance_floor":     t.AcceptanceFloor,
		"generative_floor":     t.GenerativeFloor,
		"similarity_threshold": t.SimilarityThreshold,
		"max_confidence":       t.MaxConfidence,
		"consensus_min_share":  t.ConsensusMinShare,
	} {
		if value < 0 || value > 1 {
			fail("thresholds.%s must be within [0, 1], got %v", name, value)
		}
	}
	if t.RuleFloor < 0.90 {
		fail("thresholds.rule_floor must be at least 0.90, got %v", t.RuleFloor)
	}
	if t.ConsensusMinUsers < 1 {
		fail("thresholds.consensus_min_users must be positive, got %d", t.ConsensusMinUsers)
	}
	if t.TopK < 1 {
		fail("thresholds.top_k must be positive, got %d", t.TopK)
	}

	switch strings.ToLower(c.Embedding.Provider) {
	case "", "hashing", "ollama", "openai":
	default:
		fail("embedding.provider %q is not supported", c.Embedding.Provider)
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "":
	case "openai", "anthropic":
		if c.LLM.APIKey == "" {
			fail("llm.api_key is required for provider %s", c.LLM.Provider)
		}
	case "ollama":
		if c.LLM.Model == "" {
			fail("llm.model is required for provider ollama")
		}
	default:
		fail("llm.provider %q is not supported", c.LLM.Provider)
	}
	if c.LLM.MaxInFlight < 1 {
		fail("llm.max_in_flight must be positive, got %d", c.LLM.MaxInFlight)
	}

	if c.Batch.Concurrency < 1 {
		fail("batch.concurrency must be positive, got %d", c.Batch.Concurrency)
	}
	if c.Batch.GenerativeBudgetPct < 0 || c.Batch.GenerativeBudgetPct > 1 {
		fail("batch.generative_budget_pct must be within [0, 1], got %v", c.Batch.GenerativeBudgetPct)
	}

	return errors.Join(errs...)
}

// GenerativeEnabled reports whether a fallback provider is configured.
func (c Config) GenerativeEnabled() bool {
	return c.LLM.Provider != ""
}
