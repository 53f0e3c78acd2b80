package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"jira-dashboard/internal/eventlog"
	"jira-dashboard/internal/stats/discovery"
	"jira-dashboard/internal/workflow"
)

func TestGenerate_LogsAreOrderedAndBounded(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, scenario := range []string{"mild", "chaos", "drift"} {
		for _, dist := range []string{"uniform", "weibull"} {
			ds := Generate(GeneratorConfig{Scenario: scenario, Distribution: dist, Count: 60, Now: now, Seed: 7})
			if len(ds.Items) != 60 {
				t.Fatalf("%s/%s: expected 60 items, got %d", scenario, dist, len(ds.Items))
			}
			for _, it := range ds.Items {
				events := ds.Events[it.Key]
				if len(events) == 0 || events[0].EventType != eventlog.Created {
					t.Fatalf("%s: log must start with a Created event", it.Key)
				}
				for i, e := range events {
					if e.Timestamp.After(now) {
						t.Errorf("%s: event after now: %v", it.Key, e.Timestamp)
					}
					if i > 0 && e.Timestamp.Before(events[i-1].Timestamp) {
						t.Errorf("%s: events out of order at %d", it.Key, i)
					}
				}
			}
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := Generate(GeneratorConfig{Count: 20, Now: now, Seed: 42})
	b := Generate(GeneratorConfig{Count: 20, Now: now, Seed: 42})
	for i := range a.Items {
		if a.Items[i].Status != b.Items[i].Status || a.Items[i].Assignee != b.Items[i].Assignee {
			t.Fatalf("Item %d differs between runs with the same seed", i)
		}
	}
}

func TestSave_RoundTripsThroughFileProvider(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ds := Generate(GeneratorConfig{Count: 120, Now: now, Seed: 3, Members: []string{"Ana"}})
	path := filepath.Join(t.TempDir(), "out", "history.jsonl")
	if err := Save(path, ds); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	p, err := eventlog.NewFileProvider(path)
	if err != nil {
		t.Fatalf("NewFileProvider failed: %v", err)
	}
	items, err := p.ListItems(context.Background())
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(items) != len(ds.Items) {
		t.Fatalf("Expected %d items, got %d", len(ds.Items), len(items))
	}

	tax := workflow.Default()
	completed := 0
	for _, it := range items {
		events, err := p.GetTransitionLog(context.Background(), it.Key)
		if err != nil {
			t.Fatalf("GetTransitionLog(%s) failed: %v", it.Key, err)
		}
		rec := discovery.Compute(it, events, tax)
		if rec.HasDates() {
			completed++
		}
	}
	if completed == 0 {
		t.Error("Expected some generated items to have a computable discovery cycle")
	}
}
