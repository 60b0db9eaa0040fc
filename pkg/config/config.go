// Package config loads deskmate configuration from YAML files with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultModel       = "gemini-2.5-flash"
	defaultTemperature = 0.2
	defaultMaxHistory  = 20

	// DefaultBind is where the HTTP API listens when nothing else is configured.
	DefaultBind = "127.0.0.1:8465"
)

// ModelConfig configures the external model service.
type ModelConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	// MaxHistory bounds the conversation window sent per turn.
	MaxHistory int `yaml:"max_history"`
}

// GatewayConfig configures the remote record gateway.
type GatewayConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// StoreConfig tunes the optimistic store's reconciliation windows.
type StoreConfig struct {
	// CreateRefreshDelay is how long after an optimistic create the store
	// schedules a confirming snapshot read.
	CreateRefreshDelay Duration `yaml:"create_refresh_delay"`
	// MutateRefreshDelay is the same window for log appends and closes.
	MutateRefreshDelay Duration `yaml:"mutate_refresh_delay"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Bind string `yaml:"bind"`
}

// BusConfig selects the event bus backing store notifications.
type BusConfig struct {
	// Kind is "memory" or "nats".
	Kind string `yaml:"kind"`
	// URL is the NATS server URL, ignored for the memory bus.
	URL string `yaml:"url"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// Config represents the complete deskmate configuration
type Config struct {
	Model   ModelConfig   `yaml:"model"`
	Gateway GatewayConfig `yaml:"gateway"`
	Store   StoreConfig   `yaml:"store"`
	Server  ServerConfig  `yaml:"server"`
	Bus     BusConfig     `yaml:"bus"`
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the baseline configuration before files and
// environment are applied.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	logDir := filepath.Join(".", ".deskmate", "logs")
	if home != "" {
		logDir = filepath.Join(home, ".deskmate", "logs")
	}
	return &Config{
		Model: ModelConfig{
			Model:       defaultModel,
			Temperature: defaultTemperature,
			MaxHistory:  defaultMaxHistory,
		},
		Gateway: GatewayConfig{
			Timeout: Duration{30 * time.Second},
		},
		Store: StoreConfig{
			CreateRefreshDelay: Duration{2 * time.Second},
			MutateRefreshDelay: Duration{3 * time.Second},
		},
		Server: ServerConfig{
			Bind: DefaultBind,
		},
		Bus: BusConfig{
			Kind: "memory",
			URL:  "nats://localhost:4222",
		},
		Logging: LoggingConfig{
			Dir:   logDir,
			Level: "info",
		},
	}
}

// Load builds configuration from defaults, ~/.deskmate/config.yaml, a
// project-local .deskmate/config.yaml, then environment variables.
func Load() (*Config, error) {
	// .env convenience, ignored when absent
	_ = godotenv.Load(".env")

	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userPath := filepath.Join(home, ".deskmate", "config.yaml")
		if err := loadAndMerge(cfg, userPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading user config: %w", err)
		}
	}

	projectPath := filepath.Join(".", ".deskmate", "config.yaml")
	if err := loadAndMerge(cfg, projectPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from an explicit file, still honoring
// environment overrides.
func LoadFromPath(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := DefaultConfig()
	if err := loadAndMerge(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DESKMATE_MODEL_BASE_URL"); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := os.Getenv("DESKMATE_MODEL_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && cfg.Model.APIKey == "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("DESKMATE_MODEL"); v != "" {
		cfg.Model.Model = v
	}
	if v := os.Getenv("DESKMATE_MODEL_MAX_HISTORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Model.MaxHistory = n
		}
	}
	if v := os.Getenv("DESKMATE_GATEWAY_URL"); v != "" {
		cfg.Gateway.URL = v
	}
	if v := os.Getenv("DESKMATE_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("DESKMATE_BUS"); v != "" {
		cfg.Bus.Kind = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.Bus.URL = v
	}
	if v := os.Getenv("DESKMATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DESKMATE_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Model.APIKey == "" {
		return fmt.Errorf("model api_key is required (set DESKMATE_MODEL_API_KEY or GEMINI_API_KEY)")
	}
	if c.Gateway.URL == "" {
		return fmt.Errorf("gateway url is required (set DESKMATE_GATEWAY_URL)")
	}
	if c.Model.MaxHistory <= 0 {
		return fmt.Errorf("model max_history must be positive, got %d", c.Model.MaxHistory)
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("model temperature %.2f out of range [0, 2]", c.Model.Temperature)
	}
	switch c.Bus.Kind {
	case "memory", "nats":
	default:
		return fmt.Errorf("bus kind %q not supported (want memory or nats)", c.Bus.Kind)
	}
	if c.Store.CreateRefreshDelay.Duration < 0 || c.Store.MutateRefreshDelay.Duration < 0 {
		return fmt.Errorf("store refresh delays must not be negative")
	}
	return nil
}
