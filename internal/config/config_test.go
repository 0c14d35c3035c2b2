package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadClientConfig_Defaults(t *testing.T) {
	cfg, err := LoadClientConfig("")
	if err != nil {
		t.Fatalf("LoadClientConfig() error = %v", err)
	}

	if diff := cmp.Diff(DefaultClientConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadClientConfig_File(t *testing.T) {
	keyPath := writeFile(t, "key", "file-token\n")
	path := writeFile(t, "flow.yaml", `
server_url: http://flow.example.com:9380
api_key_file: `+keyPath+`
http_timeout: 5s
poll_interval: 250ms
retries: 1
rate_limit: 4
callback:
  url: http://hooks.example.com/flow
  retries: 0
`)

	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("LoadClientConfig() error = %v", err)
	}

	want := DefaultClientConfig()
	want.ServerURL = "http://flow.example.com:9380"
	want.APIKeyFile = keyPath
	want.APIKey = "file-token"
	want.HTTPTimeout = 5 * time.Second
	want.PollInterval = 250 * time.Millisecond
	want.Retries = 1
	want.RateLimit = 4
	want.Callback.URL = "http://hooks.example.com/flow"
	want.Callback.Retries = 0

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadClientConfig_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "flow.yaml", "server_url: http://from-file:9380\npoll_interval: 2s\n")
	t.Setenv("FLOW_SERVER_URL", "http://from-env:9380")
	t.Setenv("FLOW_POLL_INTERVAL", "3s")

	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("LoadClientConfig() error = %v", err)
	}

	if cfg.ServerURL != "http://from-env:9380" {
		t.Errorf("ServerURL = %q, want env value", cfg.ServerURL)
	}
	if cfg.PollInterval != 3*time.Second {
		t.Errorf("PollInterval = %v, want 3s", cfg.PollInterval)
	}
}

func TestLoadClientConfig_InvalidValuesFallBack(t *testing.T) {
	path := writeFile(t, "flow.yaml", "poll_interval: 0s\nretries: -4\nrate_limit: -1\n")

	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("LoadClientConfig() error = %v", err)
	}

	if cfg.PollInterval != time.Second {
		t.Errorf("PollInterval = %v, want default 1s", cfg.PollInterval)
	}
	if cfg.Retries != 0 {
		t.Errorf("Retries = %d, want 0", cfg.Retries)
	}
	if cfg.RateLimit != 0 {
		t.Errorf("RateLimit = %v, want 0", cfg.RateLimit)
	}
}

func TestLoadClientConfig_Errors(t *testing.T) {
	if _, err := LoadClientConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeFile(t, "bad.yaml", "server_url: [unterminated\n")
	if _, err := LoadClientConfig(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
