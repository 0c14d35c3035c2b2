package flow

import "encoding/json"

// JobStatus is the status of a job or task as reported by the service.
type JobStatus string

const (
	StatusWaiting  JobStatus = "waiting"
	StatusRunning  JobStatus = "running"
	StatusComplete JobStatus = "success"
	StatusFailed   JobStatus = "failed"
)

// Terminal reports whether no further transition is expected.
func (s JobStatus) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// StatusCode is the terminal outcome of a monitored job.
type StatusCode int

const (
	StatusSuccess StatusCode = 0
	StatusFail    StatusCode = 1
)

func (c StatusCode) String() string {
	if c == StatusSuccess {
		return "SUCCESS"
	}
	return "FAIL"
}

// Submission is the accepted result of a job submission or data upload.
type Submission struct {
	JobID string          `json:"jobId"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JobRecord is the status record of a job seen from one party.
type JobRecord struct {
	Status JobStatus      `json:"status"`
	Fields map[string]any `json:"fields"`
}

// JobQuery is the result of a job status query.
type JobQuery struct {
	RetCode int       `json:"retcode"`
	RetMsg  string    `json:"retmsg"`
	Job     JobRecord `json:"job"`
}

// TaskRecord is one task of a job.
type TaskRecord struct {
	Component string         `json:"component"`
	Status    JobStatus      `json:"status"`
	Fields    map[string]any `json:"fields"`
}

// TaskQuery is the result of a task query. Tasks is nil when the service
// answered with a non-zero return code.
type TaskQuery struct {
	RetCode int          `json:"retcode"`
	RetMsg  string       `json:"retmsg"`
	Tasks   []TaskRecord `json:"tasks"`
}

// DataSample is the downloaded sample of one component output: data lines
// (header included) and, when a meta file was readable, its header columns.
type DataSample struct {
	Data    []string `json:"data"`
	Meta    []string `json:"meta,omitempty"`
	HasMeta bool     `json:"-"`
}

// Record field names used by the service.
const (
	fieldStatus    = "f_status"
	fieldComponent = "f_component_name"
)

type queryRequest struct {
	JobID   string `json:"job_id"`
	Role    string `json:"role,omitempty"`
	PartyID string `json:"party_id,omitempty"`
	Status  string `json:"status,omitempty"`
}

type componentRequest struct {
	JobID         string `json:"job_id"`
	Role          string `json:"role"`
	PartyID       string `json:"party_id"`
	ComponentName string `json:"component_name"`
	Limit         int    `json:"limit,omitempty"`
}
