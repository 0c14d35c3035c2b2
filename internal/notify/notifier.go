// Package notify delivers job lifecycle CloudEvents to a webhook.
package notify

import (
	"context"
	"errors"
	"flowclient/internal/observability"
	"flowclient/pkg/backoff"
	"flowclient/pkg/circuitbreaker"
	"flowclient/pkg/cloudevent"
	"log/slog"
	"net/http"
	"time"
)

// Config configures a Notifier.
type Config struct {
	URL     string        // webhook URL, empty disables notifications
	Key     string        // HMAC signing key, empty sends unsigned events
	Timeout time.Duration // per-attempt timeout (default: 10s)
	Retries int           // retries after the first attempt

	Backoff *backoff.Config
	Breaker circuitbreaker.Config
}

// Notifier sends events synchronously with retry behind a circuit breaker.
// A nil or disabled Notifier drops events.
type Notifier struct {
	url     string
	key     string
	retries int
	backoff *backoff.Config

	sender  *cloudevent.Sender
	breaker *circuitbreaker.Breaker
	metrics *observability.Metrics
	logger  *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithMetrics enables delivery metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(n *Notifier) {
		n.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithHTTPClient sets the HTTP client used for delivery.
func WithHTTPClient(hc *http.Client) Option {
	return func(n *Notifier) {
		if hc != nil {
			n.sender = cloudevent.NewSender(hc, 0)
		}
	}
}

// New creates a Notifier.
func New(cfg Config, opts ...Option) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	n := &Notifier{
		url:     cfg.URL,
		key:     cfg.Key,
		retries: cfg.Retries,
		backoff: cfg.Backoff,
		sender:  cloudevent.NewSender(nil, cfg.Timeout),
		breaker: circuitbreaker.New(cfg.Breaker),
		logger:  slog.Default().With("component", "notify"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Enabled reports whether events are delivered.
func (n *Notifier) Enabled() bool {
	return n != nil && n.url != ""
}

// BreakerState returns the state of the delivery circuit breaker.
func (n *Notifier) BreakerState() circuitbreaker.State {
	return n.breaker.State()
}

// Notify delivers event. Server errors and network failures are retried
// with backoff, client errors are not. The returned error is informational:
// callers log it and carry on.
func (n *Notifier) Notify(ctx context.Context, event *cloudevent.CloudEvent) error {
	if !n.Enabled() {
		return nil
	}
	logger := n.logger.With("type", event.Type, "jobId", event.Subject)

	if !n.breaker.Allow() {
		logger.Warn("Notification skipped, circuit open")
		n.record(ctx, event.Type, false)
		return circuitbreaker.ErrOpen
	}

	opts := cloudevent.SendOptions{SigningKey: n.key}
	err := backoff.Retry(ctx, n.retries, n.backoff, func(attempt int) (bool, error) {
		if attempt > 0 {
			logger.Debug("Retrying notification", "attempt", attempt)
		}
		err := n.sender.Send(ctx, n.url, event, opts)
		retryable := err != nil &&
			!cloudevent.IsClientError(err) &&
			!errors.Is(err, cloudevent.ErrInvalidEvent) &&
			!errors.Is(err, context.Canceled)
		return retryable, err
	})
	if err != nil {
		n.breaker.RecordFailure()
		n.record(ctx, event.Type, false)
		logger.Warn("Notification failed", "error", err)
		return err
	}

	n.breaker.RecordSuccess()
	n.record(ctx, event.Type, true)
	logger.Debug("Notification delivered")
	return nil
}

func (n *Notifier) record(ctx context.Context, eventType string, success bool) {
	if n.metrics != nil {
		n.metrics.RecordNotification(ctx, eventType, success)
	}
}
