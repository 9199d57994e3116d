// Package config loads engine settings from defaults, an optional
// careerquest.yaml, a .env file and CAREERQUEST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/adaptive"
	"github.com/G-Zak/jobgate-career-quest-sub004/internal/scoring"
)

// EnvPrefix prefixes every environment override, e.g. CAREERQUEST_STORE_DRIVER.
const EnvPrefix = "CAREERQUEST"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config holds every setting.
type Config struct {
	// CooldownEnabled must be set explicitly; it is never inferred.
	CooldownEnabled bool `mapstructure:"cooldown_enabled"`

	// Seed fixes the random source when non-zero.
	Seed uint64 `mapstructure:"seed"`

	LogLevel string `mapstructure:"log_level"`

	Bank     BankConfig      `mapstructure:"bank"`
	Adaptive adaptive.Config `mapstructure:"adaptive"`
	Scoring  ScoringConfig   `mapstructure:"scoring"`
	Store    StoreConfig     `mapstructure:"store"`
	HTTP     HTTPConfig      `mapstructure:"http"`
}

type BankConfig struct {
	Path string `mapstructure:"path"`
}

type ScoringConfig struct {
	Bands map[string]scoring.BandTable `mapstructure:"bands"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`

	// DSN is a file path for sqlite, a redis:// URL or a postgres:// URL.
	// Empty for sqlite means the default data path.
	DSN string `mapstructure:"dsn"`

	// KeyPrefix namespaces Redis keys.
	KeyPrefix string `mapstructure:"key_prefix"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		CooldownEnabled: true,
		LogLevel:        "info",
		Adaptive:        adaptive.DefaultConfig(),
		Scoring:         ScoringConfig{Bands: scoring.DefaultBandTables()},
		Store:           StoreConfig{Driver: DriverSQLite, KeyPrefix: "careerquest:"},
		HTTP:            HTTPConfig{Addr: ":8080"},
	}
}

// Load reads configuration. path names a config file; when empty,
// careerquest.yaml is looked up in the working directory and is optional.
func Load(path string) (Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("careerquest")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers scalar keys so environment variables can override
// them; viper only consults the environment for keys it knows about.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("cooldown_enabled", d.CooldownEnabled)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("bank.path", d.Bank.Path)
	v.SetDefault("adaptive.fast_threshold", d.Adaptive.FastThreshold)
	v.SetDefault("adaptive.slow_threshold", d.Adaptive.SlowThreshold)
	v.SetDefault("adaptive.mastery.expert_accuracy", d.Adaptive.Mastery.ExpertAccuracy)
	v.SetDefault("adaptive.mastery.expert_latency", d.Adaptive.Mastery.ExpertLatency)
	v.SetDefault("adaptive.mastery.advanced_accuracy", d.Adaptive.Mastery.AdvancedAccuracy)
	v.SetDefault("adaptive.mastery.advanced_latency", d.Adaptive.Mastery.AdvancedLatency)
	v.SetDefault("adaptive.mastery.intermediate_accuracy", d.Adaptive.Mastery.IntermediateAccuracy)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("store.key_prefix", d.Store.KeyPrefix)
	v.SetDefault("http.addr", d.HTTP.Addr)
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverRedis, DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the %s driver", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	a := c.Adaptive
	if a.FastThreshold <= 0 || a.SlowThreshold <= 0 {
		return fmt.Errorf("adaptive thresholds must be positive")
	}
	if a.FastThreshold > a.SlowThreshold {
		return fmt.Errorf("adaptive.fast_threshold (%s) exceeds adaptive.slow_threshold (%s)",
			a.FastThreshold, a.SlowThreshold)
	}

	for name, table := range c.Scoring.Bands {
		if err := table.Validate(); err != nil {
			return fmt.Errorf("scoring.bands.%s: %w", name, err)
		}
	}
	return nil
}
