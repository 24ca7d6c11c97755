package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/cyberrisk/internal/model"
	"github.com/sells-group/cyberrisk/internal/simulate"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Distribution DistributionConfig `yaml:"distribution" mapstructure:"distribution"`
	Simulation   SimulationConfig   `yaml:"simulation" mapstructure:"simulation"`
	Generate     GenerateConfig     `yaml:"generate" mapstructure:"generate"`
	Batch        BatchConfig        `yaml:"batch" mapstructure:"batch"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects the result store. DatabaseURL is a file path for
// sqlite and a connection string for postgres.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// DistributionConfig points at the (industry, revenue band) table. An empty
// path uses the built-in table.
type DistributionConfig struct {
	TablePath string `yaml:"table_path" mapstructure:"table_path"`
}

// SimulationConfig configures the engine.
type SimulationConfig struct {
	DefaultSimulations int    `yaml:"default_simulations" mapstructure:"default_simulations"`
	NegativeCostPolicy string `yaml:"negative_cost_policy" mapstructure:"negative_cost_policy"`
}

// GenerateConfig configures synthetic company generation.
type GenerateConfig struct {
	NumCompanies int    `yaml:"num_companies" mapstructure:"num_companies"`
	Seed         uint64 `yaml:"seed" mapstructure:"seed"`
}

// BatchConfig configures the simulation batch.
type BatchConfig struct {
	MaxConcurrentCompanies int         `yaml:"max_concurrent_companies" mapstructure:"max_concurrent_companies"`
	CompanyTimeoutSecs     int         `yaml:"company_timeout_secs" mapstructure:"company_timeout_secs"`
	Seed                   uint64      `yaml:"seed" mapstructure:"seed"`
	Retry                  RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig bounds store write retries.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// ServerConfig configures the query API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	ReloadIntervalSecs int      `yaml:"reload_interval_secs" mapstructure:"reload_interval_secs"`
	RateLimitRPS       float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst     int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path, or from config.yaml in the working
// directory when path is empty, then applies CYBERRISK_* environment
// overrides.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("CYBERRISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "cyberrisk.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("distribution.table_path", "")
	v.SetDefault("simulation.default_simulations", 10_000)
	v.SetDefault("simulation.negative_cost_policy", string(model.NegativeCostAllow))
	v.SetDefault("generate.num_companies", 1000)
	v.SetDefault("generate.seed", 42)
	v.SetDefault("batch.max_concurrent_companies", 5)
	v.SetDefault("batch.company_timeout_secs", 120)
	v.SetDefault("batch.seed", 2024)
	v.SetDefault("batch.retry.max_attempts", 3)
	v.SetDefault("batch.retry.initial_backoff_ms", 200)
	v.SetDefault("batch.retry.max_backoff_ms", 5000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.reload_interval_secs", 0)
	v.SetDefault("server.rate_limit_rps", 0)
	v.SetDefault("server.rate_limit_burst", 50)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional unless named explicitly)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of "store",
// "generate", "simulate" or "serve"; every mode includes the store checks.
func (c *Config) Validate(mode string) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		add("store.driver must be sqlite or postgres, got %q", c.Store.Driver)
	}
	if c.Store.DatabaseURL == "" {
		add("store.database_url is required")
	}

	switch mode {
	case "store":
	case "generate":
		if c.Generate.NumCompanies <= 0 {
			add("generate.num_companies must be positive")
		}
	case "simulate":
		if c.Simulation.DefaultSimulations <= 0 || c.Simulation.DefaultSimulations > simulate.MaxSimulations {
			add("simulation.default_simulations must be between 1 and %d", simulate.MaxSimulations)
		}
		if !model.NegativeCostPolicy(c.Simulation.NegativeCostPolicy).Valid() {
			add("simulation.negative_cost_policy must be allow or clamp, got %q", c.Simulation.NegativeCostPolicy)
		}
		if c.Batch.MaxConcurrentCompanies <= 0 {
			add("batch.max_concurrent_companies must be positive")
		}
		if c.Batch.CompanyTimeoutSecs < 0 {
			add("batch.company_timeout_secs must not be negative")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server.port must be between 1 and 65535, got %d", c.Server.Port)
		}
		if c.Server.RateLimitRPS < 0 {
			add("server.rate_limit_rps must not be negative")
		}
		if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst <= 0 {
			add("server.rate_limit_burst must be positive when rate limiting")
		}
	default:
		add("unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
