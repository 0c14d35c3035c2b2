package notify

import (
	"encoding/json"
	"flowclient/internal/flow"
	"flowclient/pkg/cloudevent"

	"github.com/google/uuid"
)

// Event types for job lifecycle notifications
const (
	EventTypeSubmitted = "flowclient.job.submitted"
	EventTypeExit      = "flowclient.job.exit"
)

// DefaultSource is the CloudEvents source of events emitted by flowctl.
const DefaultSource = "flowclient/flowctl"

// EventBuilder builds CloudEvents for one job.
type EventBuilder struct {
	source  string
	subject string
}

// NewEventBuilder creates a new EventBuilder.
func NewEventBuilder(jobID, source string) *EventBuilder {
	if source == "" {
		source = DefaultSource
	}
	return &EventBuilder{source: source, subject: jobID}
}

// Build creates a new CloudEvent with the given type and data.
func (b *EventBuilder) Build(eventType string, data map[string]any) *cloudevent.CloudEvent {
	return cloudevent.New(eventType, b.source, b.subject, uuid.NewString(), data)
}

// BuildSubmittedEvent creates a job submitted event carrying the auxiliary
// data returned by the service.
func (b *EventBuilder) BuildSubmittedEvent(data json.RawMessage) *cloudevent.CloudEvent {
	payload := map[string]any{"jobId": b.subject}
	if len(data) > 0 {
		payload["data"] = data
	}
	return b.Build(EventTypeSubmitted, payload)
}

// BuildExitEvent creates a job exit event with the monitored outcome.
func (b *EventBuilder) BuildExitEvent(role, partyID string, code flow.StatusCode) *cloudevent.CloudEvent {
	return b.Build(EventTypeExit, map[string]any{
		"jobId":   b.subject,
		"role":    role,
		"partyId": partyID,
		"status":  code.String(),
	})
}
