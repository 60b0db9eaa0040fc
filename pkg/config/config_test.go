package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model.MaxHistory != 20 {
		t.Errorf("MaxHistory = %d, want 20", cfg.Model.MaxHistory)
	}
	if cfg.Model.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", cfg.Model.Temperature)
	}
	if cfg.Store.CreateRefreshDelay.Duration != 2*time.Second {
		t.Errorf("CreateRefreshDelay = %v, want 2s", cfg.Store.CreateRefreshDelay)
	}
	if cfg.Store.MutateRefreshDelay.Duration != 3*time.Second {
		t.Errorf("MutateRefreshDelay = %v, want 3s", cfg.Store.MutateRefreshDelay)
	}
	if cfg.Bus.Kind != "memory" {
		t.Errorf("Bus.Kind = %q, want memory", cfg.Bus.Kind)
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
model:
  api_key: test-key
  model: gemini-2.5-flash
  max_history: 10
gateway:
  url: https://rows.example.com/exec
server:
  bind: "0.0.0.0:9000"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Model.APIKey != "test-key" {
		t.Errorf("APIKey = %q", cfg.Model.APIKey)
	}
	if cfg.Model.MaxHistory != 10 {
		t.Errorf("MaxHistory = %d, want 10", cfg.Model.MaxHistory)
	}
	if cfg.Server.Bind != "0.0.0.0:9000" {
		t.Errorf("Bind = %q", cfg.Server.Bind)
	}
	// Untouched sections keep defaults.
	if cfg.Store.CreateRefreshDelay.Duration != 2*time.Second {
		t.Errorf("CreateRefreshDelay = %v, want default 2s", cfg.Store.CreateRefreshDelay)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DESKMATE_MODEL_API_KEY", "env-key")
	t.Setenv("DESKMATE_GATEWAY_URL", "https://env.example.com/exec")
	t.Setenv("DESKMATE_MODEL_MAX_HISTORY", "5")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Model.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key", cfg.Model.APIKey)
	}
	if cfg.Gateway.URL != "https://env.example.com/exec" {
		t.Errorf("Gateway.URL = %q", cfg.Gateway.URL)
	}
	if cfg.Model.MaxHistory != 5 {
		t.Errorf("MaxHistory = %d, want 5", cfg.Model.MaxHistory)
	}
}

func TestValidate(t *testing.T) {
	valid := DefaultConfig()
	valid.Model.APIKey = "k"
	valid.Gateway.URL = "https://example.com"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing_api_key", func(c *Config) { c.Model.APIKey = "" }, true},
		{"missing_gateway_url", func(c *Config) { c.Gateway.URL = "" }, true},
		{"zero_history", func(c *Config) { c.Model.MaxHistory = 0 }, true},
		{"bad_temperature", func(c *Config) { c.Model.Temperature = 3 }, true},
		{"bad_bus_kind", func(c *Config) { c.Bus.Kind = "kafka" }, true},
		{"negative_delay", func(c *Config) { c.Store.MutateRefreshDelay = Duration{-time.Second} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
