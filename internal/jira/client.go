package jira

import (
	"context"
	"time"

	"jira-dashboard/internal/workflow"
)

// UnassignedName is reported for items without an assignee.
const UnassignedName = "Unassigned"

// WorkItem is the current-state view of a tracked discovery item.
type WorkItem struct {
	Key        string              `json:"key"`
	Summary    string              `json:"summary,omitempty"`
	Status     string              `json:"status"`
	Health     string              `json:"health,omitempty"`
	Assignee   string              `json:"assignee"`
	Complexity workflow.Complexity `json:"complexity"`
	Archived   bool                `json:"archived"`
	ArchivedAt *time.Time          `json:"archived_at,omitempty"`
	Created    time.Time           `json:"created"`
	Updated    time.Time           `json:"updated"`
}

// Client is the interface for interacting with Jira.
type Client interface {
	SearchIssuesWithHistory(ctx context.Context, jql string, startAt int, maxResults int) (*SearchResponse, error)
	GetIssueWithHistory(ctx context.Context, key string) (*IssueDTO, error)
}

// Config holds the authentication and connection settings for Jira.
type Config struct {
	BaseURL string
	Token   string

	// Data Center Cookies
	XsrfToken  string
	SessionID  string
	RememberMe string

	// Load Balancer Cookies
	GCILB string
	GCLB  string

	// Performance Settings
	RequestDelay time.Duration

	Fields FieldMap
}

// FieldMap names the custom fields that carry health, complexity and archive state.
// Each entry accepts the field id (customfield_12345) and the display name used in changelogs.
type FieldMap struct {
	HealthID            string
	HealthName          string
	ComplexityID        string
	ArchivedID          string
	ArchivedDateID      string
	ArchivedStatusNames []string
}

// IDs returns the custom field ids to request alongside the standard fields.
func (f FieldMap) IDs() []string {
	var ids []string
	for _, id := range []string{f.HealthID, f.ComplexityID, f.ArchivedID, f.ArchivedDateID} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// NewClient creates a new Jira client based on the provided configuration.
func NewClient(cfg Config) Client {
	return NewDataCenterClient(cfg)
}
