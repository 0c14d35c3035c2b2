package flow

import (
	"context"
	"encoding/json"
)

// Artifact kinds, also used as metric labels.
const (
	artifactModel   = "model"
	artifactMetric  = "metric"
	artifactSummary = "summary"
)

// ModelParam fetches the model parameters of a component. Absence, malformed
// responses and transport failures are logged and reported as ok == false.
func (c *Client) ModelParam(ctx context.Context, jobID, component, role, partyID string) (json.RawMessage, bool) {
	return c.fetchArtifact(ctx, "output.model", artifactModel, endpointOutputModel, jobID, component, role, partyID)
}

// Metrics fetches all metrics of a component. Failures yield ok == false.
func (c *Client) Metrics(ctx context.Context, jobID, component, role, partyID string) (json.RawMessage, bool) {
	return c.fetchArtifact(ctx, "metric.all", artifactMetric, endpointMetrics, jobID, component, role, partyID)
}

// Summary fetches the summary of a component. Failures yield ok == false.
func (c *Client) Summary(ctx context.Context, jobID, component, role, partyID string) (json.RawMessage, bool) {
	return c.fetchArtifact(ctx, "summary.download", artifactSummary, endpointSummary, jobID, component, role, partyID)
}

// fetchArtifact never fails: a component without this artifact kind is normal.
// The data field is returned whenever present.
func (c *Client) fetchArtifact(ctx context.Context, op, kind, endpoint, jobID, component, role, partyID string) (json.RawMessage, bool) {
	logger := c.logger.With("jobId", jobID, "component", component, "artifact", kind)

	data, ok := func() (json.RawMessage, bool) {
		if err := validateComponentArgs(jobID, component); err != nil {
			logger.Warn("Artifact request rejected", "error", err)
			return nil, false
		}

		req := componentRequest{JobID: jobID, Role: role, PartyID: partyID, ComponentName: component}
		rep, err := c.postJSON(ctx, op, endpoint, jobID, req)
		if err != nil {
			logger.Warn("Artifact fetch failed", "error", err)
			return nil, false
		}
		env, err := decodeEnvelope(op, rep.body)
		if err != nil {
			logger.Warn("Artifact response undecodable", "error", err)
			return nil, false
		}
		if !env.hasData() {
			logger.Info("No artifact data", "retcode", env.retCode(), "retmsg", env.RetMsg)
			return nil, false
		}
		if env.retCode() != 0 {
			logger.Warn("Artifact returned with non-zero retcode", "retcode", env.retCode(), "retmsg", env.RetMsg)
		}
		return env.Data, true
	}()

	if c.metrics != nil {
		c.metrics.RecordArtifact(ctx, kind, ok)
	}
	return data, ok
}
