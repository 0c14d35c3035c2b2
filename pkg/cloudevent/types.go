// Package cloudevent provides CloudEvents 1.0 types and an HTTP sender.
package cloudevent

import (
	"errors"
	"fmt"
	"time"
)

// SpecVersion is the CloudEvents specification version produced by New.
const SpecVersion = "1.0"

// ErrInvalidEvent is returned when an event lacks a required attribute.
var ErrInvalidEvent = errors.New("invalid cloudevent")

// CloudEvent is a structured-mode CloudEvent with a JSON object payload.
type CloudEvent struct {
	SpecVersion     string         `json:"specversion"`
	Type            string         `json:"type"`
	Source          string         `json:"source"`
	Subject         string         `json:"subject,omitempty"`
	ID              string         `json:"id"`
	Time            time.Time      `json:"time"`
	DataContentType string         `json:"datacontenttype"`
	Data            map[string]any `json:"data,omitempty"`
}

// New creates an event stamped with the current UTC time.
func New(eventType, source, subject, id string, data map[string]any) *CloudEvent {
	return &CloudEvent{
		SpecVersion:     SpecVersion,
		Type:            eventType,
		Source:          source,
		Subject:         subject,
		ID:              id,
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}
}

// Validate checks the attributes every CloudEvent must carry.
func (e *CloudEvent) Validate() error {
	switch {
	case e == nil:
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	case e.SpecVersion == "":
		return fmt.Errorf("%w: specversion is required", ErrInvalidEvent)
	case e.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidEvent)
	case e.Source == "":
		return fmt.Errorf("%w: source is required", ErrInvalidEvent)
	case e.Type == "":
		return fmt.Errorf("%w: type is required", ErrInvalidEvent)
	}
	return nil
}
