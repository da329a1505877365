package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Sync   SyncConfig   `yaml:"sync" mapstructure:"sync"`
	Batch  BatchConfig  `yaml:"batch" mapstructure:"batch"`
}

// StoreConfig configures the database backend. For the sqlite driver
// DatabaseURL is a file path.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the readiness HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	FixTimeoutSecs int      `yaml:"fix_timeout_secs" mapstructure:"fix_timeout_secs"`
	CORSOrigins    []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// SyncConfig configures the payment-provider price sync job client.
type SyncConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
	BatchSize   int     `yaml:"batch_size" mapstructure:"batch_size"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// BatchConfig configures multi-funnel commands.
type BatchConfig struct {
	MaxConcurrentFunnels int `yaml:"max_concurrent_funnels" mapstructure:"max_concurrent_funnels"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FUNNEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "funnels.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.fix_timeout_secs", 30)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("sync.base_url", "")
	v.SetDefault("sync.api_key", "")
	v.SetDefault("sync.timeout_secs", 30)
	v.SetDefault("sync.rate_limit", 5.0)
	v.SetDefault("sync.burst", 1)
	v.SetDefault("sync.batch_size", 100)
	v.SetDefault("sync.max_attempts", 3)
	v.SetDefault("batch.max_concurrent_funnels", 8)

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

// Validate checks the settings a command mode depends on:
//   - "local": file-only evaluation, nothing beyond the common checks
//   - "store": commands that read or write the store
//   - "sync": store plus the price sync job
//   - "serve": store plus the HTTP server
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Batch.MaxConcurrentFunnels < 1 || c.Batch.MaxConcurrentFunnels > 64 {
		errs = append(errs, "batch.max_concurrent_funnels must be between 1 and 64")
	}

	switch mode {
	case "local":
	case "store":
		errs = append(errs, c.validateStore()...)
	case "sync":
		errs = append(errs, c.validateStore()...)
		if c.Sync.BaseURL == "" {
			errs = append(errs, "sync.base_url is required")
		}
	case "serve":
		errs = append(errs, c.validateStore()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.FixTimeoutSecs <= 0 {
			errs = append(errs, "server.fix_timeout_secs must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, `store.driver must be "sqlite" or "postgres"`)
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
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
