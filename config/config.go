/*
Package config loads the service configuration.

SOURCES (later wins):
  1. Defaults below
  2. lending.yml in the working directory or /etc/lending-engine,
     or the file named by -config
  3. Environment variables prefixed LENDING_, dots as underscores
     (LENDING_ENGINE_GRACE_DAYS=45)
  4. Command-line flags, applied by cmd/server

EXAMPLE lending.yml:
  server:
    port: 8080
  database:
    path: ./lending.db
  engine:
    grace_days: 30
    fines_daily_rate: "0.1"
  scheduler:
    enabled: true
    interval: 1h
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/warp/lending-engine/generic"
	"github.com/warp/lending-engine/loan"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// EngineConfig holds the externally supplied tracker rules.
type EngineConfig struct {
	// GraceDays is how long a loan may be overdue before it counts as defaulted.
	GraceDays int `mapstructure:"grace_days"`
	// FinesDailyRate is the percent of the overdue amount charged per day late.
	// Zero disables fines.
	FinesDailyRate string `mapstructure:"fines_daily_rate"`
	// FinesCap limits the fines on one installment. Zero means no cap.
	FinesCap string `mapstructure:"fines_cap"`
	// Workers bounds batch concurrency. Zero means GOMAXPROCS.
	Workers int `mapstructure:"workers"`
}

type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Path: "./lending.db"},
		Log:      LogConfig{Level: "info"},
		Engine: EngineConfig{
			GraceDays:      30,
			FinesDailyRate: "0",
			FinesCap:       "0",
		},
		Scheduler: SchedulerConfig{Enabled: true, Interval: time.Hour},
		CORS:      CORSConfig{AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"}},
	}
}

// Load reads the configuration. path names a config file; empty means
// search for lending.yml, which may be absent.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lending")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/lending-engine")
	}

	v.SetEnvPrefix("LENDING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("engine.grace_days", d.Engine.GraceDays)
	v.SetDefault("engine.fines_daily_rate", d.Engine.FinesDailyRate)
	v.SetDefault("engine.fines_cap", d.Engine.FinesCap)
	v.SetDefault("engine.workers", d.Engine.Workers)
	v.SetDefault("scheduler.enabled", d.Scheduler.Enabled)
	v.SetDefault("scheduler.interval", d.Scheduler.Interval)
	v.SetDefault("cors.allowed_origins", d.CORS.AllowedOrigins)
}

// Validate rejects values the service cannot run with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database.path cannot be empty")
	}
	if c.Engine.GraceDays < 0 {
		return fmt.Errorf("engine.grace_days cannot be negative, got %d", c.Engine.GraceDays)
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive, got %s", c.Scheduler.Interval)
	}
	if _, err := c.Engine.Policy(); err != nil {
		return err
	}
	return nil
}

// Policy builds the tracker policy from the engine settings.
func (e EngineConfig) Policy() (loan.Policy, error) {
	rate, err := parseNonNegative("engine.fines_daily_rate", e.FinesDailyRate)
	if err != nil {
		return loan.Policy{}, err
	}
	limit, err := parseNonNegative("engine.fines_cap", e.FinesCap)
	if err != nil {
		return loan.Policy{}, err
	}

	p := loan.Policy{GraceDays: e.GraceDays, Fines: loan.NoFines}
	if rate.IsPositive() {
		p.Fines = loan.DailyPercentFines(generic.Percent(rate))
		if limit.IsPositive() {
			p.Fines = loan.Capped(p.Fines, generic.Money(limit))
		}
	}
	return p, nil
}

func parseNonNegative(key, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q: %w", key, s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s cannot be negative, got %s", key, s)
	}
	return d, nil
}
