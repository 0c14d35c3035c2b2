package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flowclient/internal/apperrors"
	"flowclient/internal/observability"
	"flowclient/pkg/backoff"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Wire endpoints of the job-control API.
const (
	endpointSubmit      = "/v1/job/submit"
	endpointUpload      = "/v1/data/upload"
	endpointJobQuery    = "/v1/job/query"
	endpointTaskQuery   = "/v1/job/task/query"
	endpointOutputTable = "/v1/tracking/component/output/data/table"
	endpointOutputData  = "/v1/tracking/component/output/data/download"
	endpointOutputModel = "/v1/tracking/component/output/model"
	endpointMetrics     = "/v1/tracking/component/metric/all"
	endpointSummary     = "/v1/tracking/component/summary/download"
	endpointPredictDSL  = "/v1/job/dsl/generate"
)

// RequestIDHeader carries a per-call identifier for correlating client and server logs.
const RequestIDHeader = "X-Request-Id"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 256 << 20

// HTTPError is a non-2xx response from the job-control service.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	body := e.Body
	if len(body) > 256 {
		body = body[:256]
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, bytes.TrimSpace(body))
}

// call describes one request to the service.
type call struct {
	op          string // e.g. "job.query", also names the span
	endpoint    string // path with optional query string
	jobID       string
	contentType string
	body        []byte
	idempotent  bool // safe to resend on transport failure or 5xx
}

// reply is a fully read 2xx response.
type reply struct {
	statusCode  int
	contentType string
	body        []byte
}

// formFile is a staged document sent as a multipart file part.
type formFile struct {
	field string
	path  string
}

// postJSON sends body as JSON. Queries are idempotent and retried.
func (c *Client) postJSON(ctx context.Context, op, endpoint, jobID string, body any) (*reply, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.Internal(op, fmt.Errorf("encode request: %w", err))
	}
	return c.exchange(ctx, &call{
		op:          op,
		endpoint:    endpoint,
		jobID:       jobID,
		contentType: "application/json",
		body:        payload,
		idempotent:  true,
	})
}

// postMultipart sends staged files and plain fields as multipart/form-data.
// Submissions are never resent.
func (c *Client) postMultipart(ctx context.Context, op, endpoint string, files []formFile, fields [][2]string) (*reply, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, f := range files {
		if err := copyFilePart(mw, f); err != nil {
			return nil, apperrors.Internal(op, err)
		}
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return nil, apperrors.Internal(op, fmt.Errorf("write field %s: %w", kv[0], err))
		}
	}
	if err := mw.Close(); err != nil {
		return nil, apperrors.Internal(op, fmt.Errorf("close multipart body: %w", err))
	}

	return c.exchange(ctx, &call{
		op:          op,
		endpoint:    endpoint,
		contentType: mw.FormDataContentType(),
		body:        buf.Bytes(),
	})
}

func copyFilePart(mw *multipart.Writer, f formFile) error {
	src, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("open staged file: %w", err)
	}
	defer src.Close()

	part, err := mw.CreateFormFile(f.field, filepath.Base(f.path))
	if err != nil {
		return fmt.Errorf("create form file %s: %w", f.field, err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("copy staged file: %w", err)
	}
	return nil
}

// exchange performs the call with rate limiting, retries, tracing and metrics.
func (c *Client) exchange(ctx context.Context, cl *call) (*reply, error) {
	ctx, span := c.tracer.Start(ctx, "flow."+cl.op, trace.WithAttributes(
		attribute.String("flow.endpoint", cl.endpoint),
		attribute.String("flow.job.id", cl.jobID),
	))

	retries := 0
	if cl.idempotent {
		retries = c.retries
	}

	var rep *reply
	attempts := 0
	err := backoff.Retry(ctx, retries, c.backoff, func(attempt int) (bool, error) {
		attempts++
		if attempt > 0 {
			c.logger.Debug("Retrying request", "op", cl.op, "attempt", attempt)
			if c.metrics != nil {
				c.metrics.RecordRetry(ctx, cl.endpoint)
			}
		}
		var err error
		rep, err = c.send(ctx, cl)
		return ctx.Err() == nil && retryable(err), err
	})
	span.SetAttributes(attribute.Int("flow.attempts", attempts))
	if err != nil {
		observability.EndSpan(span, err)
		return nil, apperrors.Transport(cl.op, err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", rep.statusCode))
	observability.EndSpan(span, nil)
	return rep, nil
}

// send performs a single HTTP round trip.
func (c *Client) send(ctx context.Context, cl *call) (*reply, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+cl.endpoint, bytes.NewReader(cl.body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", cl.contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordCall(ctx, cl.endpoint, 0, start, true)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.recordCall(ctx, cl.endpoint, resp.StatusCode, start, true)
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.recordCall(ctx, cl.endpoint, resp.StatusCode, start, true)
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}

	c.recordCall(ctx, cl.endpoint, resp.StatusCode, start, false)
	return &reply{
		statusCode:  resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        body,
	}, nil
}

func (c *Client) recordCall(ctx context.Context, endpoint string, status int, start time.Time, failed bool) {
	if c.metrics != nil {
		c.metrics.RecordRemoteCall(ctx, endpoint, status, time.Since(start).Seconds(), failed)
	}
}

// retryable reports whether a failed round trip may be resent. Server errors
// and network failures are retried, client errors are not.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode >= 500
	}
	return true
}
