package infra

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
venue:
  name: bitget
  rest_url: https://api.bitget.com
  sandbox: true
trading:
  paper: true
  commission: 0.001
feed:
  symbol: BTCUSDT
  timeframe: 1m
  backfill: 500
  page_limit: 1000
logging:
  level: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Venue.Name != "bitget" || !cfg.Trading.Paper {
		t.Errorf("parsed config = %+v", cfg)
	}
	// defaults
	if cfg.Trading.Currency != "USDT" {
		t.Errorf("Currency default = %q, want USDT", cfg.Trading.Currency)
	}
	if cfg.Feed.TailWindow != 5 {
		t.Errorf("TailWindow default = %d, want 5", cfg.Feed.TailWindow)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("VENUEGATE_ACCESS_KEY", "env-key")
	t.Setenv("VENUEGATE_SECRET_KEY", "env-secret")

	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Venue.AccessKey != "env-key" || cfg.Venue.SecretKey != "env-secret" {
		t.Errorf("env override not applied: %+v", cfg.Venue)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing symbol", func(c *Config) { c.Feed.Symbol = "" }, true},
		{"missing timeframe", func(c *Config) { c.Feed.Timeframe = "" }, true},
		{"zero page limit", func(c *Config) { c.Feed.PageLimit = 0 }, true},
		{"commission out of range", func(c *Config) { c.Trading.Commission = 1.5 }, true},
		{"live without credentials", func(c *Config) { c.Trading.Paper = false }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, validYAML))
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
