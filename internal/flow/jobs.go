package flow

import (
	"context"
	"encoding/json"
	"flowclient/internal/apperrors"
	"fmt"
)

// Submit stages the runtime configuration and optional job descriptor and
// submits them. The response must carry a zero retcode and a job id.
func (c *Client) Submit(ctx context.Context, dsl, conf any) (*Submission, error) {
	const op = "job.submit"
	if conf == nil {
		return nil, apperrors.Validation("conf", "runtime configuration is required")
	}

	dir, err := c.stage("submit")
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	defer dir.Close()

	confPath, err := dir.writeJSON(runtimeConfFile, conf)
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	files := []formFile{{field: "job_runtime_conf", path: confPath}}
	if dsl != nil {
		dslPath, err := dir.writeJSON(jobDSLFile, dsl)
		if err != nil {
			return nil, apperrors.Internal(op, err)
		}
		files = append(files, formFile{field: "job_dsl", path: dslPath})
	}

	rep, err := c.postMultipart(ctx, op, endpointSubmit, files, nil)
	if err != nil {
		return nil, err
	}
	sub, err := decodeSubmission(op, rep.body)
	if err != nil {
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.RecordSubmitted(ctx, "job")
	}
	c.logger.Info("Job submitted", "jobId", sub.JobID)
	return sub, nil
}

// UploadData submits a data upload job. drop is forwarded unchanged and
// tells the service whether to overwrite existing data at the target.
func (c *Client) UploadData(ctx context.Context, conf any, drop int) (*Submission, error) {
	const op = "data.upload"
	if conf == nil {
		return nil, apperrors.Validation("conf", "upload configuration is required")
	}

	dir, err := c.stage("upload")
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	defer dir.Close()

	confPath, err := dir.writeJSON(runtimeConfFile, conf)
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}

	endpoint := fmt.Sprintf("%s?drop=%d", endpointUpload, drop)
	rep, err := c.postMultipart(ctx, op, endpoint, []formFile{{field: "conf", path: confPath}}, nil)
	if err != nil {
		return nil, err
	}
	sub, err := decodeSubmission(op, rep.body)
	if err != nil {
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.RecordSubmitted(ctx, "upload")
	}
	c.logger.Info("Data upload submitted", "jobId", sub.JobID, "drop", drop)
	return sub, nil
}

func decodeSubmission(op string, body []byte) (*Submission, error) {
	env, err := decodeEnvelope(op, body)
	if err != nil {
		return nil, err
	}
	if err := env.requireSuccess(op); err != nil {
		return nil, err
	}
	if env.JobID == nil || *env.JobID == "" {
		return nil, apperrors.Protocol(op, "missing jobId", body)
	}
	sub := &Submission{JobID: *env.JobID}
	if env.hasData() {
		sub.Data = env.Data
	}
	return sub, nil
}

// QueryJob fetches the status record of a job from the viewpoint of one party.
// A missing retcode, an empty data list or a record without status is a
// protocol error.
func (c *Client) QueryJob(ctx context.Context, jobID, role, partyID string) (*JobQuery, error) {
	const op = "job.query"
	if jobID == "" {
		return nil, apperrors.Validation("jobId", "job id is required")
	}

	rep, err := c.postJSON(ctx, op, endpointJobQuery, jobID, queryRequest{JobID: jobID, Role: role, PartyID: partyID})
	if err != nil {
		return nil, err
	}
	env, err := decodeEnvelope(op, rep.body)
	if err != nil {
		return nil, err
	}
	if env.RetCode == nil {
		return nil, apperrors.Protocol(op, "missing retcode", rep.body)
	}

	var records []map[string]any
	if env.hasData() {
		if err := json.Unmarshal(env.Data, &records); err != nil {
			return nil, apperrors.Protocol(op, "data is not a list of objects", rep.body)
		}
	}
	if len(records) == 0 {
		if *env.RetCode != 0 {
			return nil, apperrors.Remote(op, *env.RetCode, env.RetMsg, rep.body)
		}
		return nil, apperrors.Protocol(op, "empty data list", rep.body)
	}

	status, ok := records[0][fieldStatus].(string)
	if !ok {
		return nil, apperrors.Protocol(op, "job record has no "+fieldStatus, rep.body)
	}
	return &JobQuery{
		RetCode: *env.RetCode,
		RetMsg:  env.RetMsg,
		Job:     JobRecord{Status: JobStatus(status), Fields: records[0]},
	}, nil
}

// QueryTask fetches the tasks of a job, filtered by status when status is
// non-empty. A non-zero retcode is not an error; Tasks is then nil.
func (c *Client) QueryTask(ctx context.Context, jobID, role, partyID string, status JobStatus) (*TaskQuery, error) {
	const op = "task.query"
	if jobID == "" {
		return nil, apperrors.Validation("jobId", "job id is required")
	}

	req := queryRequest{JobID: jobID, Role: role, PartyID: partyID, Status: string(status)}
	rep, err := c.postJSON(ctx, op, endpointTaskQuery, jobID, req)
	if err != nil {
		return nil, err
	}
	env, err := decodeEnvelope(op, rep.body)
	if err != nil {
		return nil, err
	}
	if env.RetCode == nil {
		return nil, apperrors.Protocol(op, "missing retcode", rep.body)
	}

	q := &TaskQuery{RetCode: *env.RetCode, RetMsg: env.RetMsg}
	if q.RetCode != 0 {
		c.logger.Debug("Task query returned non-zero retcode", "jobId", jobID, "retcode", q.RetCode, "retmsg", q.RetMsg)
		return q, nil
	}
	if !env.hasData() {
		return q, nil
	}

	var records []map[string]any
	if err := json.Unmarshal(env.Data, &records); err != nil {
		return nil, apperrors.Protocol(op, "data is not a list of objects", rep.body)
	}
	q.Tasks = make([]TaskRecord, 0, len(records))
	for _, r := range records {
		name, _ := r[fieldComponent].(string)
		st, _ := r[fieldStatus].(string)
		q.Tasks = append(q.Tasks, TaskRecord{Component: name, Status: JobStatus(st), Fields: r})
	}
	return q, nil
}
