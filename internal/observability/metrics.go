package observability

import (
	"context"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the flow client metrics:
// - Remote calls: latency, traffic, errors, retries per endpoint
// - Jobs: submissions, status polls, terminal outcomes
// - Artifacts: fetches by kind and whether anything was returned
// - Notifications: webhook deliveries
type Metrics struct {
	meter metric.Meter

	RemoteCallDuration metric.Float64Histogram
	RemoteCallsTotal   metric.Int64Counter
	RemoteErrorsTotal  metric.Int64Counter
	RemoteRetriesTotal metric.Int64Counter

	JobsSubmitted metric.Int64Counter
	JobPolls      metric.Int64Counter
	JobOutcomes   metric.Int64Counter
	JobDuration   metric.Float64Histogram

	ArtifactFetches metric.Int64Counter

	NotificationsTotal metric.Int64Counter
}

// NewMetrics creates all metrics backed by a Prometheus exporter on a private
// registry and returns the handler serving that registry.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("flowclient")
	m := &Metrics{meter: meter}

	m.RemoteCallDuration, err = meter.Float64Histogram(
		"flow_remote_call_duration_seconds",
		metric.WithDescription("Job-control API call latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RemoteCallsTotal, err = meter.Int64Counter(
		"flow_remote_calls_total",
		metric.WithDescription("Total number of job-control API calls"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RemoteErrorsTotal, err = meter.Int64Counter(
		"flow_remote_errors_total",
		metric.WithDescription("Total number of failed job-control API calls"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RemoteRetriesTotal, err = meter.Int64Counter(
		"flow_remote_retries_total",
		metric.WithDescription("Total number of retried job-control API calls"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsSubmitted, err = meter.Int64Counter(
		"flow_jobs_submitted_total",
		metric.WithDescription("Total number of jobs and uploads submitted"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobPolls, err = meter.Int64Counter(
		"flow_job_polls_total",
		metric.WithDescription("Total number of job status polls by observed status"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobOutcomes, err = meter.Int64Counter(
		"flow_job_outcomes_total",
		metric.WithDescription("Total number of monitored jobs by terminal outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobDuration, err = meter.Float64Histogram(
		"flow_job_wait_duration_seconds",
		metric.WithDescription("Time spent monitoring a job until its terminal state"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600, 7200),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ArtifactFetches, err = meter.Int64Counter(
		"flow_artifact_fetches_total",
		metric.WithDescription("Total number of artifact fetches by kind and presence"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotificationsTotal, err = meter.Int64Counter(
		"flow_notifications_total",
		metric.WithDescription("Total number of job notifications by delivery success"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// RecordRemoteCall records one job-control API call. statusCode is 0 when no
// HTTP response was received.
func (m *Metrics) RecordRemoteCall(ctx context.Context, endpoint string, statusCode int, durationSeconds float64, failed bool) {
	attrs := metric.WithAttributes(endpointAttr(endpoint), statusAttr(statusCode))

	m.RemoteCallDuration.Record(ctx, durationSeconds, attrs)
	m.RemoteCallsTotal.Add(ctx, 1, attrs)
	if failed {
		m.RemoteErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordRetry records a retried call.
func (m *Metrics) RecordRetry(ctx context.Context, endpoint string) {
	m.RemoteRetriesTotal.Add(ctx, 1, WithEndpoint(endpoint))
}

// RecordSubmitted records an accepted submission ("job" or "upload").
func (m *Metrics) RecordSubmitted(ctx context.Context, kind string) {
	m.JobsSubmitted.Add(ctx, 1, metric.WithAttributes(kindAttr(kind)))
}

// RecordPoll records one job status poll and the status it observed.
func (m *Metrics) RecordPoll(ctx context.Context, status string) {
	m.JobPolls.Add(ctx, 1, metric.WithAttributes(jobStatusAttr(status)))
}

// RecordOutcome records a monitored job reaching its terminal state.
func (m *Metrics) RecordOutcome(ctx context.Context, outcome string, durationSeconds float64) {
	attrs := metric.WithAttributes(outcomeAttr(outcome))
	m.JobOutcomes.Add(ctx, 1, attrs)
	m.JobDuration.Record(ctx, durationSeconds, attrs)
}

// RecordArtifact records an artifact fetch.
func (m *Metrics) RecordArtifact(ctx context.Context, kind string, present bool) {
	m.ArtifactFetches.Add(ctx, 1, metric.WithAttributes(kindAttr(kind), presentAttr(present)))
}

// RecordNotification records a webhook delivery attempt sequence.
func (m *Metrics) RecordNotification(ctx context.Context, eventType string, success bool) {
	m.NotificationsTotal.Add(ctx, 1, metric.WithAttributes(kindAttr(eventType), successAttr(success)))
}
