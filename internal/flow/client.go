// Package flow implements the job lifecycle client for a FATE-Flow style
// job-control API: submission, status polling and artifact retrieval.
package flow

import (
	"flowclient/internal/config"
	"flowclient/internal/observability"
	"flowclient/pkg/backoff"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Client talks to one job-control service. It holds no job state; every
// call re-reads what it needs from the service.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	retries      int
	backoff      *backoff.Config
	limiter      *rate.Limiter
	pollInterval time.Duration
	tempDir      string

	progress io.Writer
	logger   *slog.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client built from the configured timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables metric recording.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracer sets the tracer used for remote call spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithProgress sets where MonitorStatus writes progress lines (default: stdout).
func WithProgress(w io.Writer) Option {
	return func(c *Client) {
		if w != nil {
			c.progress = w
		}
	}
}

// WithBackoff sets the retry backoff for idempotent queries.
func WithBackoff(cfg *backoff.Config) Option {
	return func(c *Client) {
		c.backoff = cfg
	}
}

// WithClock overrides the time source used for elapsed time reporting.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a client from cfg.
func New(cfg *config.ClientConfig, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultClientConfig()
	}

	base, err := url.Parse(cfg.ServerURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", cfg.ServerURL)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", cfg.ServerURL)
	}

	c := &Client{
		baseURL:      strings.TrimRight(base.String(), "/"),
		apiKey:       cfg.APIKey,
		httpClient:   &http.Client{Timeout: cfg.HTTPTimeout},
		retries:      cfg.Retries,
		pollInterval: cfg.PollInterval,
		tempDir:      cfg.TempDir,
		progress:     os.Stdout,
		logger:       slog.Default().With("component", "flow"),
		tracer:       observability.Tracer(),
		now:          time.Now,
	}
	if c.pollInterval <= 0 {
		c.pollInterval = time.Second
	}
	if c.retries < 0 {
		c.retries = 0
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the service base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}
