// Package observability provides metrics and tracing for the flow client.
package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys
const (
	attrEndpoint = "endpoint"
	attrStatus   = "status"
	attrOutcome  = "outcome"
	attrKind     = "kind"
	attrPresent  = "present"
	attrSuccess  = "success"
	attrJobState = "job_status"
)

func endpointAttr(endpoint string) attribute.KeyValue {
	return attribute.String(attrEndpoint, normalizeEndpoint(endpoint))
}

func statusAttr(code int) attribute.KeyValue {
	// 200-299 -> 2xx, 500-599 -> 5xx, 0 (no response) -> none
	if code <= 0 {
		return attribute.String(attrStatus, "none")
	}
	return attribute.String(attrStatus, fmt.Sprintf("%dxx", code/100))
}

func jobStatusAttr(status string) attribute.KeyValue {
	return attribute.String(attrJobState, status)
}

func outcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(attrOutcome, outcome)
}

func kindAttr(kind string) attribute.KeyValue {
	return attribute.String(attrKind, kind)
}

func presentAttr(present bool) attribute.KeyValue {
	return attribute.Bool(attrPresent, present)
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}

// normalizeEndpoint strips the API version prefix and any query string.
// /v1/data/upload?drop=1 -> data/upload
func normalizeEndpoint(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	endpoint = strings.TrimPrefix(endpoint, "/")
	endpoint = strings.TrimPrefix(endpoint, "v1/")
	return endpoint
}

// WithEndpoint returns a metric option with the endpoint attribute.
func WithEndpoint(endpoint string) metric.MeasurementOption {
	return metric.WithAttributes(endpointAttr(endpoint))
}
