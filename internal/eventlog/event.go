package eventlog

import (
	"errors"
	"time"
)

// ErrFetchFailed wraps provider failures so callers can tell them apart from store errors.
var ErrFetchFailed = errors.New("history fetch failed")

// EventType defines the objective nature of a Jira state change.
type EventType string

const (
	// Created anchors the initial status at the item's creation time.
	Created EventType = "Created"
	// Change records a field moving from one value to another.
	Change EventType = "Change"
)

// Field names the tracked attribute an event changes.
type Field string

const (
	FieldStatus   Field = "status"
	FieldHealth   Field = "health"
	FieldAssignee Field = "assignee"
)

// IssueEvent represents a single atomic change in an issue's lifecycle.
// Logs are ascending by Timestamp per item and never mutated once appended.
type IssueEvent struct {
	IssueKey  string    `json:"issueKey"`
	EventType EventType `json:"eventType"`
	Field     Field     `json:"field"`
	FromValue string    `json:"from,omitempty"`
	ToValue   string    `json:"to"`
	Timestamp time.Time `json:"ts"`
}

// identity computes a unique string identifier for an event to aid deduplication.
func (e IssueEvent) identity() string {
	return e.IssueKey + "|" + e.Timestamp.UTC().Format(time.RFC3339Nano) + "|" + string(e.EventType) + "|" + string(e.Field) + "|" + e.ToValue
}

// FilterField returns the events of a single field, preserving order.
func FilterField(events []IssueEvent, field Field) []IssueEvent {
	var out []IssueEvent
	for _, e := range events {
		if e.Field == field {
			out = append(out, e)
		}
	}
	return out
}
