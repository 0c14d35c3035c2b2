// Package config provides client configuration from defaults, a YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ClientConfig holds configuration for the flow client and flowctl.
type ClientConfig struct {
	ServerURL    string        `yaml:"server_url"`
	APIKeyFile   string        `yaml:"api_key_file"`
	APIKey       string        `yaml:"-"`
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Retries      int           `yaml:"retries"`
	RateLimit    float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	TempDir      string        `yaml:"temp_dir"`   // empty = os.TempDir()
	MetricsAddr  string        `yaml:"metrics_addr"`

	Callback CallbackConfig `yaml:"callback"`
}

// CallbackConfig configures CloudEvents notifications for job milestones.
type CallbackConfig struct {
	URL     string        `yaml:"url"`
	KeyFile string        `yaml:"key_file"`
	Key     string        `yaml:"-"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

// DefaultClientConfig returns the built-in defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		ServerURL:    "http://127.0.0.1:9380",
		HTTPTimeout:  30 * time.Second,
		PollInterval: time.Second,
		Retries:      3,
		Callback: CallbackConfig{
			Timeout: 10 * time.Second,
			Retries: 3,
		},
	}
}

// LoadClientConfig builds the configuration from defaults, then the YAML file
// at path (skipped when path is empty), then environment variables.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := DefaultClientConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	cfg.ServerURL = GetEnv("FLOW_SERVER_URL", cfg.ServerURL)
	cfg.APIKeyFile = GetEnv("FLOW_API_KEY_FILE", cfg.APIKeyFile)
	cfg.HTTPTimeout = GetDurationEnv("FLOW_HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.PollInterval = GetDurationEnv("FLOW_POLL_INTERVAL", cfg.PollInterval)
	cfg.Retries = GetIntEnv("FLOW_RETRIES", cfg.Retries)
	cfg.RateLimit = GetFloatEnv("FLOW_RATE_LIMIT", cfg.RateLimit)
	cfg.TempDir = GetEnv("FLOW_TEMP_DIR", cfg.TempDir)
	cfg.MetricsAddr = GetEnv("FLOW_METRICS_ADDR", cfg.MetricsAddr)

	cfg.Callback.URL = GetEnv("FLOW_CALLBACK_URL", cfg.Callback.URL)
	cfg.Callback.KeyFile = GetEnv("FLOW_CALLBACK_KEY_FILE", cfg.Callback.KeyFile)
	cfg.Callback.Timeout = GetDurationEnv("FLOW_CALLBACK_TIMEOUT", cfg.Callback.Timeout)
	cfg.Callback.Retries = GetIntEnv("FLOW_CALLBACK_RETRIES", cfg.Callback.Retries)

	cfg.APIKey = GetSecretFile(cfg.APIKeyFile)
	cfg.Callback.Key = GetSecretFile(cfg.Callback.KeyFile)

	return cfg.withDefaults(), nil
}

// withDefaults fills in zero or negative values with defaults.
func (c *ClientConfig) withDefaults() *ClientConfig {
	d := DefaultClientConfig()
	if c.ServerURL == "" {
		c.ServerURL = d.ServerURL
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = d.HTTPTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.RateLimit < 0 {
		c.RateLimit = 0
	}
	if c.Callback.Timeout <= 0 {
		c.Callback.Timeout = d.Callback.Timeout
	}
	if c.Callback.Retries < 0 {
		c.Callback.Retries = 0
	}
	return c
}
