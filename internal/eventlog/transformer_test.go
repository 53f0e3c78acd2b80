package eventlog

import (
	"testing"
	"time"

	"jira-dashboard/internal/jira"
	"jira-dashboard/internal/workflow"
)

func healthFields() jira.FieldMap {
	return jira.FieldMap{HealthID: "customfield_100", HealthName: "Health"}
}

func TestTransformIssue_StatusHealthAssignee(t *testing.T) {
	dto := jira.IssueDTO{Key: "DISC-1"}
	dto.Fields.Status.Name = "Build"
	dto.Fields.Created = "2025-01-02T09:00:00.000+0000"
	dto.Fields.Updated = "2025-02-10T10:00:00.000+0000"
	dto.Changelog = &jira.ChangelogDTO{
		// Newest first, as Jira returns them.
		Histories: []jira.HistoryDTO{
			{Created: "2025-02-10T10:00:00.000+0000", Items: []jira.ItemDTO{
				{Field: "status", FromString: "Problem Discovery", ToString: "Build"},
			}},
			{Created: "2025-01-20T08:00:00.000+0000", Items: []jira.ItemDTO{
				{Field: "Health", FieldID: "customfield_100", FromString: "On Track", ToString: "On Hold"},
				{Field: "assignee", FromString: "", ToString: "Ana"},
				{Field: "description", FromString: "a", ToString: "b"},
			}},
			{Created: "2025-01-05T10:00:00.000+0000", Items: []jira.ItemDTO{
				{Field: "status", FromString: "Inbox", ToString: "Problem Discovery"},
			}},
		},
	}

	item, events := TransformIssue(dto, healthFields(), workflow.Default())

	if item.Key != "DISC-1" || item.Status != "Build" {
		t.Errorf("Unexpected item %+v", item)
	}
	if len(events) != 5 {
		t.Fatalf("Expected 5 events (created + 4 changes), got %d", len(events))
	}

	first := events[0]
	if first.EventType != Created || first.ToValue != "Inbox" || first.Field != FieldStatus {
		t.Errorf("Expected Created anchor in Inbox, got %+v", first)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			t.Fatalf("Events not ascending at %d", i)
		}
	}

	health := FilterField(events, FieldHealth)
	if len(health) != 1 || health[0].ToValue != "On Hold" {
		t.Errorf("Expected one health change to On Hold, got %+v", health)
	}
	if got := FilterField(events, FieldAssignee); len(got) != 1 || got[0].ToValue != "Ana" {
		t.Errorf("Expected assignee change, got %+v", got)
	}
}

func TestTransformIssue_NoChangelog(t *testing.T) {
	dto := jira.IssueDTO{Key: "DISC-2"}
	dto.Fields.Status.Name = "Solution Discovery"
	dto.Fields.Created = "2025-03-01T09:00:00.000+0000"

	_, events := TransformIssue(dto, healthFields(), workflow.Default())
	if len(events) != 1 {
		t.Fatalf("Expected only the Created event, got %d", len(events))
	}
	if events[0].ToValue != "Solution Discovery" {
		t.Errorf("Expected creation in current status, got %q", events[0].ToValue)
	}
	if !events[0].Timestamp.Equal(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected created timestamp %v", events[0].Timestamp)
	}
}

func TestTransformIssue_HealthMatchedByName(t *testing.T) {
	dto := jira.IssueDTO{Key: "DISC-3"}
	dto.Fields.Status.Name = "Inbox"
	dto.Fields.Created = "2025-03-01T09:00:00.000+0000"
	dto.Changelog = &jira.ChangelogDTO{Histories: []jira.HistoryDTO{
		{Created: "2025-03-02T09:00:00.000+0000", Items: []jira.ItemDTO{{Field: "health", ToString: "At Risk"}}},
	}}

	_, events := TransformIssue(dto, healthFields(), workflow.Default())
	if got := FilterField(events, FieldHealth); len(got) != 1 {
		t.Errorf("Expected health change matched by field name, got %d", len(got))
	}
}
