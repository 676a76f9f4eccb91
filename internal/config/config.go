package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/product-match/internal/matching"
	"github.com/sells-group/product-match/internal/model"
	"github.com/sells-group/product-match/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
	Matching      MatchingConfig      `yaml:"matching" mapstructure:"matching"`
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	Collaborators CollaboratorsConfig `yaml:"collaborators" mapstructure:"collaborators"`
	Research      ResearchConfig      `yaml:"research" mapstructure:"research"`
	Batch         BatchConfig         `yaml:"batch" mapstructure:"batch"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MatchingConfig selects the option profile and optional overrides. Zero
// overrides keep the profile's value.
type MatchingConfig struct {
	Profile        string   `yaml:"profile" mapstructure:"profile"`
	Threshold      float64  `yaml:"threshold" mapstructure:"threshold"`
	MaxResults     int      `yaml:"max_results" mapstructure:"max_results"`
	Strategies     []string `yaml:"strategies" mapstructure:"strategies"`
	Strict         bool     `yaml:"strict" mapstructure:"strict"`
	HeuristicsFile string   `yaml:"heuristics_file" mapstructure:"heuristics_file"`
}

// StoreConfig configures the mapping store backend.
type StoreConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CollaboratorsConfig configures timeouts, retries and circuit breaking for
// collaborator calls.
type CollaboratorsConfig struct {
	TimeoutMs        int `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	ResearchTimeout  int `yaml:"research_timeout_ms" mapstructure:"research_timeout_ms"`
	RetryAttempts    int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs   int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// ResearchConfig configures the LLM research enhancer.
type ResearchConfig struct {
	Enabled       bool    `yaml:"enabled" mapstructure:"enabled"`
	AnthropicKey  string  `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	Model         string  `yaml:"model" mapstructure:"model"`
	MaxTokens     int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	MaxCandidates int     `yaml:"max_candidates" mapstructure:"max_candidates"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	CatalogFile string   `yaml:"catalog_file" mapstructure:"catalog_file"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("matching.profile", matching.ProfileDefault)
	v.SetDefault("matching.threshold", 0)
	v.SetDefault("matching.max_results", 0)
	v.SetDefault("matching.strategies", []string{})
	v.SetDefault("matching.strict", false)
	v.SetDefault("matching.heuristics_file", "")
	v.SetDefault("store.enabled", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "product-match.db")
	v.SetDefault("collaborators.timeout_ms", 2000)
	v.SetDefault("collaborators.research_timeout_ms", 15000)
	v.SetDefault("collaborators.retry_attempts", 2)
	v.SetDefault("collaborators.retry_backoff_ms", 100)
	v.SetDefault("collaborators.breaker_threshold", 5)
	v.SetDefault("collaborators.breaker_reset_secs", 30)
	v.SetDefault("research.enabled", false)
	v.SetDefault("research.anthropic_key", "")
	v.SetDefault("research.model", "claude-haiku-4-5-20251001")
	v.SetDefault("research.max_tokens", 1024)
	v.SetDefault("research.rate_per_second", 2.0)
	v.SetDefault("research.max_candidates", 5)
	v.SetDefault("batch.max_concurrency", 8)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.catalog_file", "")

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

	return &cfg, nil
}

// Validation modes.
const (
	ModeMatch   = "match"
	ModeServe   = "serve"
	ModeMapping = "mapping"
)

// Validate checks the settings a command mode depends on and reports every
// problem in one error.
func (c *Config) Validate(mode string) error {
	var problems []string

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, "log.level "+err.Error())
	}
	if c.Batch.MaxConcurrency < 1 || c.Batch.MaxConcurrency > 64 {
		problems = append(problems, "batch.max_concurrency must be between 1 and 64")
	}

	storeNeeded := c.Store.Enabled
	switch mode {
	case ModeMatch:
	case ModeServe:
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
	case ModeMapping:
		storeNeeded = true
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if storeNeeded {
		switch c.Store.Driver {
		case "sqlite", "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required")
			}
		default:
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
	}
	if c.Research.Enabled && c.Research.AnthropicKey == "" {
		problems = append(problems, "research.anthropic_key is required when research is enabled")
	}
	if _, err := c.MatchingOptions(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// MatchingOptions resolves the configured profile and applies overrides.
func (c *Config) MatchingOptions() (model.MatchingOptions, error) {
	opts, err := matching.ProfileOptions(c.Matching.Profile)
	if err != nil {
		return opts, err
	}
	if c.Matching.Threshold > 0 {
		opts.ConfidenceThreshold = c.Matching.Threshold
	}
	if c.Matching.MaxResults > 0 {
		opts.MaxResults = c.Matching.MaxResults
	}
	if len(c.Matching.Strategies) > 0 {
		opts.Strategies = append([]string(nil), c.Matching.Strategies...)
	}
	if c.Matching.Strict {
		opts.StrictMode = true
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// Heuristics loads the configured heuristics file, or the defaults.
func (c *Config) Heuristics() (*matching.Heuristics, error) {
	if c.Matching.HeuristicsFile == "" {
		return matching.DefaultHeuristics(), nil
	}
	return matching.LoadHeuristics(c.Matching.HeuristicsFile)
}

// Guard builds the resilience guard for a named collaborator.
func (c *Config) Guard(name string) *resilience.Guard {
	timeout := time.Duration(c.Collaborators.TimeoutMs) * time.Millisecond
	if name == matching.CollaboratorResearch && c.Collaborators.ResearchTimeout > 0 {
		timeout = time.Duration(c.Collaborators.ResearchTimeout) * time.Millisecond
	}
	return resilience.NewGuard(resilience.GuardConfig{
		Name:    name,
		Timeout: timeout,
		Retry: resilience.RetryPolicy{
			Attempts: c.Collaborators.RetryAttempts,
			Backoff:  time.Duration(c.Collaborators.RetryBackoffMs) * time.Millisecond,
		},
		Breaker: resilience.BreakerConfig{
			FailureThreshold: c.Collaborators.BreakerThreshold,
			Cooldown:         time.Duration(c.Collaborators.BreakerResetSecs) * time.Second,
		},
	})
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
