package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"jira-dashboard/internal/workflow"
)

const sampleIssue = `{
	"key": "DISC-7",
	"fields": {
		"summary": "Onboarding revamp",
		"status": {"id": "3", "name": "Problem Discovery"},
		"assignee": {"name": "jdoe", "displayName": "Jane Doe"},
		"created": "2025-01-02T09:00:00.000+0000",
		"updated": "2025-02-10T10:00:00.000+0000",
		"customfield_100": {"value": "At Risk", "id": "42"},
		"customfield_200": [{"value": "Medium"}],
		"customfield_300": null
	},
	"changelog": {
		"histories": [
			{"id": "1", "created": "2025-01-05T10:00:00.000+0000", "items": [
				{"field": "status", "fromString": "Inbox", "toString": "Problem Discovery", "from": "1", "to": "3"}
			]}
		]
	}
}`

func testFields() FieldMap {
	return FieldMap{
		HealthID:       "customfield_100",
		HealthName:     "Health",
		ComplexityID:   "customfield_200",
		ArchivedID:     "customfield_300",
		ArchivedDateID: "customfield_400",
	}
}

func TestFieldsDTO_Custom(t *testing.T) {
	var dto IssueDTO
	if err := json.Unmarshal([]byte(sampleIssue), &dto); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	tests := []struct {
		id   string
		want string
	}{
		{"customfield_100", "At Risk"},
		{"customfield_200", "Medium"},
		{"customfield_300", ""},
		{"customfield_999", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := dto.Fields.Custom(tt.id); got != tt.want {
			t.Errorf("Custom(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
	if dto.Fields.Status.Name != "Problem Discovery" {
		t.Errorf("Expected status to decode, got %q", dto.Fields.Status.Name)
	}
}

func TestMapWorkItem(t *testing.T) {
	var dto IssueDTO
	if err := json.Unmarshal([]byte(sampleIssue), &dto); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	item := MapWorkItem(dto, testFields(), workflow.Default())

	if item.Assignee != "Jane Doe" {
		t.Errorf("Expected assignee Jane Doe, got %q", item.Assignee)
	}
	if item.Health != "At Risk" {
		t.Errorf("Expected health At Risk, got %q", item.Health)
	}
	if item.Complexity != workflow.ComplexityStandard {
		t.Errorf("Expected complexity Standard, got %q", item.Complexity)
	}
	if item.Archived {
		t.Error("Expected item not to be archived")
	}
	if !item.Created.Equal(time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected created time %v", item.Created)
	}
}

func TestMapWorkItem_Defaults(t *testing.T) {
	dto := IssueDTO{Key: "DISC-1"}
	dto.Fields.Status.Name = "Inbox"

	item := MapWorkItem(dto, testFields(), workflow.Default())
	if item.Assignee != UnassignedName {
		t.Errorf("Expected %q, got %q", UnassignedName, item.Assignee)
	}
	if item.Complexity != workflow.ComplexityNotSet {
		t.Errorf("Expected Not Set, got %q", item.Complexity)
	}
}

func TestMapWorkItem_ArchivedByStatus(t *testing.T) {
	dto := IssueDTO{Key: "DISC-2"}
	dto.Fields.Status.Name = "Archived"
	dto.Changelog = &ChangelogDTO{Histories: []HistoryDTO{
		{Created: "2025-03-01T12:00:00.000+0000", Items: []ItemDTO{{Field: "status", FromString: "Problem Discovery", ToString: "Archived"}}},
	}}
	fields := testFields()
	fields.ArchivedStatusNames = []string{"archived"}

	item := MapWorkItem(dto, fields, workflow.Default())
	if !item.Archived {
		t.Fatal("Expected item to be archived")
	}
	if item.ArchivedAt == nil || !item.ArchivedAt.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected archive date from changelog, got %v", item.ArchivedAt)
	}
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{"2025-01-05T10:00:00.000+0000", "2025-01-05T10:00:00Z", "2025-01-05"} {
		if _, err := ParseTime(s); err != nil {
			t.Errorf("ParseTime(%q) error = %v", s, err)
		}
	}
	if _, err := ParseTime("yesterday"); err == nil {
		t.Error("Expected error for unparseable time")
	}
}

func TestDCClient_GetIssueWithHistory(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Expected bearer auth, got %q", got)
		}
		if !strings.Contains(r.URL.Query().Get("fields"), "customfield_100") {
			t.Errorf("Expected custom fields in request, got %q", r.URL.Query().Get("fields"))
		}
		if r.URL.Query().Get("expand") != "changelog" {
			t.Errorf("Expected changelog expansion")
		}
		_, _ = w.Write([]byte(sampleIssue))
	}))
	defer srv.Close()

	client := NewDataCenterClient(Config{
		BaseURL:      srv.URL,
		Token:        "secret",
		RequestDelay: time.Millisecond,
		Fields:       testFields(),
	})

	ctx := context.Background()
	dto, err := client.GetIssueWithHistory(ctx, "DISC-7")
	if err != nil {
		t.Fatalf("GetIssueWithHistory() error = %v", err)
	}
	if dto.Key != "DISC-7" || dto.Changelog == nil || len(dto.Changelog.Histories) != 1 {
		t.Errorf("Unexpected issue payload: %+v", dto)
	}

	if _, err := client.GetIssueWithHistory(ctx, "DISC-7"); err != nil {
		t.Fatalf("second GetIssueWithHistory() error = %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("Expected cached second call, got %d requests", hits.Load())
	}
}

func TestDCClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewDataCenterClient(Config{BaseURL: srv.URL, RequestDelay: time.Millisecond})
	_, err := client.SearchIssuesWithHistory(context.Background(), "project = DISC", 0, 50)
	if err == nil || !strings.Contains(err.Error(), "authentication") {
		t.Errorf("Expected authentication error, got %v", err)
	}
}
