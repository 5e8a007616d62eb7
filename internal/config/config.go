package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/leadmatch/internal/model"
	"github.com/sells-group/leadmatch/internal/resilience"
	"github.com/sells-group/leadmatch/internal/resolve"
	"github.com/sells-group/leadmatch/internal/slug"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig          `yaml:"store" mapstructure:"store"`
	Match  resolve.Config       `yaml:"match" mapstructure:"match"`
	Merge  resolve.MergeOptions `yaml:"merge" mapstructure:"merge"`
	Slug   slug.Config          `yaml:"slug" mapstructure:"slug"`
	Import ImportConfig         `yaml:"import" mapstructure:"import"`
	Server ServerConfig         `yaml:"server" mapstructure:"server"`
	Log    LogConfig            `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the canonical company store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`

	Retry resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// ImportConfig configures CSV/XLSX import parsing.
type ImportConfig struct {
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`
	Sheet     string `yaml:"sheet" mapstructure:"sheet"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.table", "companies")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.retry.max_attempts", 3)
	v.SetDefault("store.retry.initial_backoff", "200ms")
	v.SetDefault("store.retry.max_backoff", "5s")
	v.SetDefault("store.retry.multiplier", 2.0)
	v.SetDefault("store.retry.jitter_fraction", 0.25)
	v.SetDefault("match.fuzzy_threshold", 0.8)
	v.SetDefault("match.city_bonus", 0.2)
	v.SetDefault("match.phone_bonus", 0.3)
	v.SetDefault("match.exclusive", true)
	v.SetDefault("match.workers", 1)
	v.SetDefault("merge.carry", []string{"reviews_link"})
	v.SetDefault("merge.overwrite_tiers", []string{"key", "exact_name"})
	v.SetDefault("merge.overwrite_confidence", 1.0)
	v.SetDefault("merge.backfill_key", true)
	v.SetDefault("slug.placeholder_base", "business")
	v.SetDefault("slug.max_attempts", 10000)
	v.SetDefault("import.delimiter", ",")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Match.FuzzyThreshold < 0 {
		return eris.Errorf("config: match.fuzzy_threshold must be >= 0, got %v", c.Match.FuzzyThreshold)
	}
	if c.Match.CityBonus < 0 || c.Match.PhoneBonus < 0 {
		return eris.New("config: match bonuses must be >= 0")
	}
	if c.Slug.MaxAttempts < 1 {
		return eris.Errorf("config: slug.max_attempts must be >= 1, got %d", c.Slug.MaxAttempts)
	}
	for _, tier := range c.Merge.OverwriteTiers {
		if tier != model.TierKey && tier != model.TierExactName && tier != model.TierFuzzy {
			return eris.Errorf("config: merge.overwrite_tiers has unknown tier %q", tier)
		}
	}
	if len([]rune(c.Import.Delimiter)) != 1 {
		return eris.Errorf("config: import.delimiter must be one character, got %q", c.Import.Delimiter)
	}
	return nil
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
