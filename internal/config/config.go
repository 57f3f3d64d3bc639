// Package config loads the orderbook core's per-exchange configuration
// via viper, grounded on the Config/AppConfig shape the exchange
// config loaders use (name, credentials, per-market symbol lists) but
// sourced from viper's layered file/env/default resolution instead of a
// single YAML read.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/MNS-Vic/marketprism-sub006/internal/markettype"
)

// ExchangeConfig is one exchange's tracked-symbol configuration.
type ExchangeConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Symbols    []SymbolConfig   `mapstructure:"symbols"`
	DepthLimit int              `mapstructure:"depth_limit"`
	APIKey     string           `mapstructure:"api_key"`
	APISecret  string           `mapstructure:"api_secret"`
	Heartbeat  time.Duration    `mapstructure:"heartbeat"`
}

// SymbolConfig is a single tracked instrument and the data types to
// subscribe to for it.
type SymbolConfig struct {
	Native     string   `mapstructure:"native"`
	MarketType string   `mapstructure:"market_type"`
	DataTypes  []string `mapstructure:"data_types"`
}

// Config is the top-level process configuration: one section per
// exchange, plus the shared NATS and health-server settings.
type Config struct {
	Exchanges map[string]ExchangeConfig `mapstructure:"exchanges"`
	NATSURL   string                    `mapstructure:"nats_url"`
	HealthAddr string                   `mapstructure:"health_addr"`
	Debug      bool                     `mapstructure:"debug"`
}

// Load reads configuration from environment variables prefixed
// ORDERBOOKD_, path (if non-empty), and the defaults below, in that order
// of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("orderbookd")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("nats_url", "nats://127.0.0.1:4222")
	v.SetDefault("health_addr", ":8080")
	v.SetDefault("debug", false)
}

func (c *Config) validate() error {
	for name, ex := range c.Exchanges {
		if !ex.Enabled {
			continue
		}
		if ex.DepthLimit <= 0 {
			return fmt.Errorf("exchange %s: depth_limit must be positive", name)
		}
		for _, s := range ex.Symbols {
			if s.Native == "" {
				return fmt.Errorf("exchange %s: symbol entry missing native name", name)
			}
			if _, err := markettype.New(s.MarketType); err != nil {
				return fmt.Errorf("exchange %s symbol %s: %w", name, s.Native, err)
			}
		}
	}
	return nil
}
