package flow

import (
	"context"
	"encoding/json"
	"flowclient/internal/apperrors"
	"strings"
)

// PredictDSL asks the service to derive a prediction descriptor from a
// training descriptor, keeping only the listed components. Any failure is
// returned; a non-zero retcode is an ErrRemote.
func (c *Client) PredictDSL(ctx context.Context, trainDSL any, components []string, version string) (json.RawMessage, error) {
	const op = "dsl.generate"
	if trainDSL == nil {
		return nil, apperrors.Validation("trainDsl", "training descriptor is required")
	}
	if len(components) == 0 {
		return nil, apperrors.Validation("components", "at least one component is required")
	}

	dir, err := c.stage("predict-dsl")
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	defer dir.Close()

	dslPath, err := dir.writeJSON(trainDSLFile, trainDSL)
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}

	fields := [][2]string{
		{"cpn_str", strings.Join(components, ",")},
		{"version", version},
	}
	rep, err := c.postMultipart(ctx, op, endpointPredictDSL, []formFile{{field: "train_dsl", path: dslPath}}, fields)
	if err != nil {
		return nil, err
	}
	env, err := decodeEnvelope(op, rep.body)
	if err != nil {
		return nil, err
	}
	if err := env.requireSuccess(op); err != nil {
		return nil, err
	}
	if !env.hasData() {
		return nil, apperrors.Protocol(op, "missing data", rep.body)
	}

	c.logger.Info("Predict descriptor generated", "components", len(components), "version", version)
	return env.Data, nil
}
