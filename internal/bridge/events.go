// Package bridge exposes a small HTTP surface for the call-automation
// collaborator: automation systems POST events describing completed touches
// and requested stage moves, and the bridge turns them into activity records
// and store updates.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// ProtocolVersion identifies the bridge contract exposed via /health.
	ProtocolVersion = "1.0.0"
	// EventSchemaVersion is the currently supported inbound event version.
	EventSchemaVersion = 1
)

// Event types accepted on /events.
const (
	EventActivityRecorded = "activity.recorded"
	EventStageTransition  = "stage.transition"
)

// Event is a single notification from an automation system.
type Event struct {
	Version    int             `json:"version"`
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	ClientTime time.Time       `json:"client_time"`
	ServerTime time.Time       `json:"server_time"`
	Source     string          `json:"source"`
	Payload    json.RawMessage `json:"payload"`
}

// StagePayload is the payload shape for stage.transition events. Activity
// payloads decode directly into schema.ActivityInput.
type StagePayload struct {
	ProspectID string `json:"prospectId"`
	From       string `json:"from,omitempty"`
	To         string `json:"to"`
}

// Normalize applies defaults and canonical formatting before validation.
func (e *Event) Normalize() {
	if e == nil {
		return
	}
	if e.Version == 0 {
		e.Version = EventSchemaVersion
	}
	e.EventID = strings.TrimSpace(e.EventID)
	e.Type = strings.TrimSpace(e.Type)
	e.Source = strings.TrimSpace(e.Source)
}

// StampServerTime overwrites ServerTime with the supplied clock reading (UTC).
func (e *Event) StampServerTime(now time.Time) {
	if e == nil {
		return
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	e.ServerTime = now.UTC()
}

// Validate enforces baseline schema requirements for incoming events.
func (e Event) Validate() error {
	if e.Version != EventSchemaVersion {
		return fmt.Errorf("version %d not supported", e.Version)
	}
	if e.EventID == "" {
		return errors.New("event_id is required")
	}
	switch e.Type {
	case EventActivityRecorded, EventStageTransition:
	case "":
		return errors.New("type is required")
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.Source == "" {
		return errors.New("source is required")
	}
	if len(e.Payload) == 0 {
		return errors.New("payload is required")
	}
	return nil
}

// EventProcessor consumes validated events.
type EventProcessor interface {
	HandleEvent(Event) error
}

// EventProcessorFunc adapts a function into an EventProcessor.
type EventProcessorFunc func(Event) error

// HandleEvent executes f(e).
func (f EventProcessorFunc) HandleEvent(e Event) error {
	if f == nil {
		return nil
	}
	return f(e)
}

// Logger records bridge status information.
type Logger interface {
	Printf(format string, args ...any)
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type eventResponse struct {
	Status     string    `json:"status"`
	ServerTime time.Time `json:"server_time"`
}
