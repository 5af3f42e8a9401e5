// Package config loads the backlab YAML configuration and applies
// environment variable overrides.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"backlab/internal/backtest"
)

// Config is the top-level configuration for the backlab platform.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Server   Server         `yaml:"server"`
	Alpaca   Alpaca         `yaml:"alpaca"`
	Logging  Logging        `yaml:"logging"`
	Backtest BacktestConfig `yaml:"backtest"`
	Optimize OptimizeConfig `yaml:"optimize"`
	Fetch    FetchConfig    `yaml:"fetch"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration for the HTTP API.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BacktestConfig holds the default simulation parameters. Zero values fall
// back to the engine defaults at the call site.
type BacktestConfig struct {
	InitialCapital float64 `yaml:"initial_capital"`
	Commission     float64 `yaml:"commission"`
	Slippage       float64 `yaml:"slippage"`
	RiskFreeRate   float64 `yaml:"risk_free_rate"`
}

// OptimizeConfig controls grid-search execution.
type OptimizeConfig struct {
	MaxWorkers int    `yaml:"max_workers"`
	Metric     string `yaml:"metric"`
}

// FetchConfig controls market-data fetching.
type FetchConfig struct {
	RateLimitPerMin int `yaml:"rate_limit_per_min"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/backlab.db",
		},
		Server: Server{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Optimize: OptimizeConfig{
			Metric: "sharpe_ratio",
		},
		Fetch: FetchConfig{
			RateLimitPerMin: 200,
		},
	}
}

// RunConfig converts the backtest section into an engine configuration,
// filling unset fields from the engine defaults.
func (c *Config) RunConfig() backtest.Config {
	cfg := backtest.DefaultConfig()
	if c.Backtest.InitialCapital > 0 {
		cfg.InitialCapital = c.Backtest.InitialCapital
	}
	if c.Backtest.Commission > 0 {
		cfg.Commission = c.Backtest.Commission
	}
	if c.Backtest.Slippage > 0 {
		cfg.Slippage = c.Backtest.Slippage
	}
	if c.Backtest.RiskFreeRate > 0 {
		cfg.RiskFreeRate = c.Backtest.RiskFreeRate
	}
	return cfg
}

// Load reads the YAML configuration at path on top of the defaults and then
// applies environment variable overrides. An empty path loads defaults and
// overrides only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority, canonical names used by
	// the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
