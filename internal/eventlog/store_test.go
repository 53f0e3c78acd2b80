package eventlog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"jira-dashboard/internal/jira"
)

func day(d int) time.Time {
	return time.Date(2025, 1, d, 9, 0, 0, 0, time.UTC)
}

func TestEventStore_AppendOrdersAndDeduplicates(t *testing.T) {
	store := NewEventStore()

	store.Append("DISC-1", []IssueEvent{
		{IssueKey: "DISC-1", EventType: Change, Field: FieldStatus, FromValue: "Inbox", ToValue: "Problem Discovery", Timestamp: day(5)},
		{IssueKey: "DISC-1", EventType: Created, Field: FieldStatus, ToValue: "Inbox", Timestamp: day(2)},
	})
	store.Append("DISC-1", []IssueEvent{
		{IssueKey: "DISC-1", EventType: Change, Field: FieldStatus, FromValue: "Inbox", ToValue: "Problem Discovery", Timestamp: day(5)},
	})

	events := store.GetEventsForIssue("DISC-1")
	if len(events) != 2 {
		t.Fatalf("Expected 2 events after dedup, got %d", len(events))
	}
	if events[0].EventType != Created {
		t.Errorf("Expected Created first, got %s", events[0].EventType)
	}
	if !store.GetLatestTimestamp().Equal(day(5)) {
		t.Errorf("Expected latest timestamp %v, got %v", day(5), store.GetLatestTimestamp())
	}
}

func TestEventStore_CreatedSortsFirstOnTie(t *testing.T) {
	store := NewEventStore()
	store.Append("DISC-1", []IssueEvent{
		{IssueKey: "DISC-1", EventType: Change, Field: FieldHealth, ToValue: "On Track", Timestamp: day(2)},
		{IssueKey: "DISC-1", EventType: Created, Field: FieldStatus, ToValue: "Inbox", Timestamp: day(2)},
	})

	events := store.GetEventsForIssue("DISC-1")
	if events[0].EventType != Created {
		t.Errorf("Expected Created to sort ahead of a same-time change")
	}
}

func TestEventStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")

	store1 := NewEventStore()
	store1.PutItems(jira.WorkItem{Key: "DISC-1", Status: "Build", Assignee: "Ana", Created: day(2), Updated: day(9)})
	store1.Append("DISC-1", []IssueEvent{
		{IssueKey: "DISC-1", EventType: Created, Field: FieldStatus, ToValue: "Inbox", Timestamp: day(2)},
		{IssueKey: "DISC-1", EventType: Change, Field: FieldStatus, FromValue: "Inbox", ToValue: "Build", Timestamp: day(9)},
	})

	if err := store1.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Cache file does not exist: %v", err)
	}

	store2 := NewEventStore()
	if err := store2.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if store2.Count() != 2 {
		t.Errorf("Expected 2 events, got %d", store2.Count())
	}
	item, ok := store2.Item("DISC-1")
	if !ok || item.Assignee != "Ana" {
		t.Errorf("Expected item to round-trip, got %+v", item)
	}
	if !store2.GetEventsForIssue("DISC-1")[1].Timestamp.Equal(day(9)) {
		t.Error("Expected timestamps to survive persistence")
	}
}

func TestEventStore_LoadMissingFile(t *testing.T) {
	store := NewEventStore()
	if err := store.Load(filepath.Join(t.TempDir(), "nope.jsonl")); err != nil {
		t.Errorf("Expected missing cache to be ignored, got %v", err)
	}
}

func TestEventStore_GetTransitionLog(t *testing.T) {
	store := NewEventStore()
	store.PutItems(jira.WorkItem{Key: "DISC-1"})
	store.Append("DISC-1", nil)

	events, err := store.GetTransitionLog(context.Background(), "DISC-1")
	if err != nil {
		t.Fatalf("Expected empty log for known item, got %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected no events, got %d", len(events))
	}

	if _, err := store.GetTransitionLog(context.Background(), "DISC-404"); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("Expected ErrFetchFailed for unknown key, got %v", err)
	}
}

func TestFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.jsonl")
	seed := NewEventStore()
	seed.PutItems(jira.WorkItem{Key: "DISC-2", Status: "Inbox", Created: day(1), Updated: day(1)})
	seed.Append("DISC-2", []IssueEvent{{IssueKey: "DISC-2", EventType: Created, Field: FieldStatus, ToValue: "Inbox", Timestamp: day(1)}})
	if err := seed.Save(path); err != nil {
		t.Fatal(err)
	}

	p, err := NewFileProvider(path)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v", err)
	}
	items, _ := p.ListItems(context.Background())
	if len(items) != 1 || items[0].Key != "DISC-2" {
		t.Errorf("Unexpected items %+v", items)
	}
	if err := p.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if p.Count() != 1 {
		t.Errorf("Expected 1 event after reload, got %d", p.Count())
	}

	if _, err := NewFileProvider(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("Expected error for missing fixture file")
	}
}
