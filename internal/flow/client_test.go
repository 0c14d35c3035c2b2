package flow

import (
	"flowclient/internal/config"
	"flowclient/internal/testutil"
	"flowclient/pkg/backoff"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"
)

type testEnv struct {
	server  *testutil.FlowServer
	client  *Client
	tempDir string
}

// newTestEnv starts a fake service and a client with fast polling and retries.
func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	server := testutil.NewFlowServer(t)
	tempDir := t.TempDir()

	cfg := config.DefaultClientConfig()
	cfg.ServerURL = server.URL
	cfg.APIKey = "test-key"
	cfg.TempDir = tempDir
	cfg.PollInterval = time.Millisecond
	cfg.Retries = 2

	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithProgress(io.Discard),
		WithBackoff(&backoff.Config{Initial: time.Millisecond, Max: 2 * time.Millisecond}),
	}
	client, err := New(cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &testEnv{server: server, client: client, tempDir: tempDir}
}

// assertNoStaging fails when anything is left in the client's temp dir.
func (e *testEnv) assertNoStaging(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(e.tempDir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	for _, entry := range entries {
		t.Errorf("staging left behind: %s", entry.Name())
	}
}

func TestNew(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		url     string
		wantErr bool
		wantURL string
	}{
		{"valid", "http://127.0.0.1:9380", false, "http://127.0.0.1:9380"},
		{"trailing slash", "https://flow.example.com/", false, "https://flow.example.com"},
		{"with path", "http://gateway/fate/", false, "http://gateway/fate"},
		{"no scheme", "127.0.0.1:9380", true, ""},
		{"bad scheme", "ftp://flow", true, ""},
		{"empty host", "http://", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.DefaultClientConfig()
			cfg.ServerURL = tt.url
			c, err := New(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && c.BaseURL() != tt.wantURL {
				t.Errorf("BaseURL() = %q, want %q", c.BaseURL(), tt.wantURL)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()
	cfg := config.DefaultClientConfig()
	cfg.PollInterval = 0
	cfg.Retries = -1
	cfg.RateLimit = 0.5

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.pollInterval != time.Second {
		t.Errorf("pollInterval = %v, want 1s", c.pollInterval)
	}
	if c.retries != 0 {
		t.Errorf("retries = %d, want 0", c.retries)
	}
	if c.limiter == nil || c.limiter.Burst() != 1 {
		t.Error("expected limiter with burst 1")
	}
}

func TestNew_NilConfig(t *testing.T) {
	t.Parallel()
	c, err := New(nil)
	if err != nil {
		t.Fatalf("New(nil) error = %v", err)
	}
	if c.BaseURL() != "http://127.0.0.1:9380" {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}
}
