// Package config loads service settings from a config file (viper), the
// environment (caarlos0/env) and command line flags bound by the caller.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	ipsum "github.com/grasp-labs/ds-spicyipsum-go/ipsum"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type App struct {
	Name    string `mapstructure:"name"`
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
}

type RateLimit struct {
	Threshold     int           `mapstructure:"threshold"`
	CounterTTL    time.Duration `mapstructure:"counter_ttl"`
	BlockDuration time.Duration `mapstructure:"block_duration"`
	Strict        bool          `mapstructure:"strict"`
}

type Cache struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type Database struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	// SSMParameter, when set, names the SSM parameter holding the DSN.
	SSMParameter string `mapstructure:"ssm_parameter"`
}

type CORS struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type Config struct {
	App             App       `mapstructure:"app"`
	UserAgentBlocks []string  `mapstructure:"user_agent_blocks"`
	TrustProxy      bool      `mapstructure:"trust_proxy"`
	RateLimit       RateLimit `mapstructure:"rate_limit"`
	Cache           Cache     `mapstructure:"cache"`
	Database        Database  `mapstructure:"database"`
	CORS            CORS      `mapstructure:"cors"`

	Env Env `mapstructure:"-"`
}

// Env holds settings that only come from the process environment.
type Env struct {
	Environment string `env:"SPICYIPSUM_ENV" envDefault:"production"`
	LogLevel    string `env:"SPICYIPSUM_LOG_LEVEL"`
	DSN         string `env:"SPICYIPSUM_DSN"`
}

// Development reports whether the service runs in the development environment.
func (e Env) Development() bool { return strings.EqualFold(e.Environment, "development") }

// Level picks the log level: explicit LogLevel, else debug in development,
// else info.
func (e Env) Level() (log.Level, error) {
	if e.LogLevel != "" {
		return log.ParseLevel(e.LogLevel)
	}
	if e.Development() {
		return log.DebugLevel, nil
	}
	return log.InfoLevel, nil
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	def := ipsum.DefaultLimiterConfig()

	v.SetDefault("app.name", "spicyipsum")
	v.SetDefault("app.address", "127.0.0.1")
	v.SetDefault("app.port", 8080)
	v.SetDefault("user_agent_blocks", []string{})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_limit.threshold", def.Threshold)
	v.SetDefault("rate_limit.counter_ttl", def.CounterTTL)
	v.SetDefault("rate_limit.block_duration", def.BlockDuration)
	v.SetDefault("rate_limit.strict", false)
	v.SetDefault("cache.sweep_interval", time.Minute)
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "spicyipsum.sqlite3")
	v.SetDefault("database.ssm_parameter", "")
	v.SetDefault("cors.allowed_origins", []string{})
}

// Load reads the config file (path, or spicyipsum.{yaml,json,toml} in the
// working directory when path is empty), applies SPICYIPSUM_* overrides and
// validates the result. A missing default config file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("spicyipsum")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("spicyipsum")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	e, err := env.ParseAs[Env]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Env = e
	if e.DSN != "" {
		cfg.Database.DSN = e.DSN
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("config app.port %d out of range", c.App.Port)
	}
	if c.RateLimit.Threshold <= 0 {
		return errors.New("config rate_limit.threshold must be positive")
	}
	if c.RateLimit.CounterTTL <= 0 || c.RateLimit.BlockDuration < time.Second {
		return errors.New("config rate_limit.counter_ttl must be positive and block_duration at least 1s")
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("config database.driver %q is not one of %s, %s", c.Database.Driver, DriverSQLite, DriverPostgres)
	}
	if c.Database.DSN == "" && c.Database.SSMParameter == "" {
		return errors.New("config database.dsn or database.ssm_parameter is required")
	}
	if _, err := c.Env.Level(); err != nil {
		return fmt.Errorf("SPICYIPSUM_LOG_LEVEL: %w", err)
	}
	return nil
}

// Limiter converts the rate_limit section.
func (c *Config) Limiter() ipsum.LimiterConfig {
	return ipsum.LimiterConfig{
		Threshold:     c.RateLimit.Threshold,
		CounterTTL:    c.RateLimit.CounterTTL,
		BlockDuration: c.RateLimit.BlockDuration,
		Strict:        c.RateLimit.Strict,
	}
}

// ListenAddr is address:port.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Address, c.App.Port)
}
