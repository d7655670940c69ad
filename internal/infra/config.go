package infra

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting the connectivity layer needs. Secrets are
// overridden from the environment after the file loads, so keys never have to
// live on disk.
type Config struct {
	Venue struct {
		Name       string `yaml:"name"`
		RestURL    string `yaml:"rest_url"`
		WSURL      string `yaml:"ws_url"`
		AccessKey  string `yaml:"access_key"`
		SecretKey  string `yaml:"secret_key"`
		Passphrase string `yaml:"passphrase"`
		Sandbox    bool   `yaml:"sandbox"`
		MarketType string `yaml:"market_type"` // "spot" only, for now
		TimeoutSec int    `yaml:"timeout_sec"`
	} `yaml:"venue"`

	Trading struct {
		Paper      bool    `yaml:"paper"`
		Commission float64 `yaml:"commission"` // fraction, e.g. 0.001
		Currency   string  `yaml:"currency"`   // quote currency for cash queries
	} `yaml:"trading"`

	Feed struct {
		Symbol      string `yaml:"symbol"`
		Timeframe   string `yaml:"timeframe"`
		Backfill    int    `yaml:"backfill"`     // historical candles wanted; 0 skips backfill
		PageLimit   int    `yaml:"page_limit"`   // venue max candles per request
		TailWindow  int    `yaml:"tail_window"`  // candles per live poll
		UseAuxStore bool   `yaml:"use_aux_store"`
	} `yaml:"feed"`

	Storage struct {
		Path string `yaml:"path"` // sqlite bar cache; empty disables
	} `yaml:"storage"`

	Metrics struct {
		Addr string `yaml:"addr"` // ":9090"; empty disables
	} `yaml:"metrics"`

	Notifications struct {
		EmitAll bool `yaml:"emit_all"` // keep low-priority informational notices
	} `yaml:"notifications"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// VenueTimeout returns the bounded venue-call timeout.
func (c *Config) VenueTimeout() time.Duration {
	if c.Venue.TimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Venue.TimeoutSec) * time.Second
}

// LoadConfig reads and validates a yaml config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Venue.Name == "" {
		return fmt.Errorf("venue name is required")
	}
	if c.Feed.Symbol == "" {
		return fmt.Errorf("feed symbol is required")
	}
	if c.Feed.Timeframe == "" {
		return fmt.Errorf("feed timeframe is required")
	}
	if c.Feed.PageLimit <= 0 {
		return fmt.Errorf("feed page_limit must be positive")
	}
	if c.Trading.Commission < 0 || c.Trading.Commission >= 1 {
		return fmt.Errorf("commission must be in [0,1): %v", c.Trading.Commission)
	}
	if !c.Trading.Paper && (c.Venue.AccessKey == "" || c.Venue.SecretKey == "") {
		return fmt.Errorf("live trading requires venue credentials")
	}
	return nil
}

func applyDefaults(c *Config) {
	if c.Trading.Currency == "" {
		c.Trading.Currency = "USDT"
	}
	if c.Feed.TailWindow <= 0 {
		c.Feed.TailWindow = 5
	}
	if c.Venue.MarketType == "" {
		c.Venue.MarketType = "spot"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// overrideWithEnv lets the environment win over file values for secrets.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("VENUEGATE_ACCESS_KEY"); key != "" {
		cfg.Venue.AccessKey = key
	}
	if secret := os.Getenv("VENUEGATE_SECRET_KEY"); secret != "" {
		cfg.Venue.SecretKey = secret
	}
	if pass := os.Getenv("VENUEGATE_PASSPHRASE"); pass != "" {
		cfg.Venue.Passphrase = pass
	}
}
