package stats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"jira-dashboard/internal/eventlog"
	"jira-dashboard/internal/jira"
	"jira-dashboard/internal/workflow"
)

func d(day int) time.Time {
	return time.Date(2025, 3, day, 12, 0, 0, 0, time.UTC)
}

func statusChange(key, from, to string, ts time.Time) eventlog.IssueEvent {
	return eventlog.IssueEvent{IssueKey: key, EventType: eventlog.Change, Field: eventlog.FieldStatus, FromValue: from, ToValue: to, Timestamp: ts}
}

func healthChange(key, from, to string, ts time.Time) eventlog.IssueEvent {
	return eventlog.IssueEvent{IssueKey: key, EventType: eventlog.Change, Field: eventlog.FieldHealth, FromValue: from, ToValue: to, Timestamp: ts}
}

func TestValueAt(t *testing.T) {
	item := jira.WorkItem{Key: "R-1", Status: "Build", Health: "Off Track", Created: d(1)}
	events := []eventlog.IssueEvent{
		{IssueKey: "R-1", EventType: eventlog.Created, Field: eventlog.FieldStatus, ToValue: "Inbox", Timestamp: d(1)},
		healthChange("R-1", "On Track", "At Risk", d(5)),
		statusChange("R-1", "Inbox", "Problem Discovery", d(5)),
		healthChange("R-1", "At Risk", "Off Track", d(10)),
		statusChange("R-1", "Problem Discovery", "Build", d(12)),
	}

	tests := []struct {
		name   string
		field  eventlog.Field
		asOf   time.Time
		want   string
		wantOK bool
	}{
		{"before creation", eventlog.FieldStatus, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), "", false},
		{"status at creation", eventlog.FieldStatus, d(1), "Inbox", true},
		{"status inclusive of change time", eventlog.FieldStatus, d(5), "Problem Discovery", true},
		{"status between changes", eventlog.FieldStatus, d(11), "Problem Discovery", true},
		{"status after last change", eventlog.FieldStatus, d(20), "Build", true},
		{"health before first change uses old value", eventlog.FieldHealth, d(3), "On Track", true},
		{"health last change wins", eventlog.FieldHealth, d(11), "Off Track", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ValueAt(item, events, tt.field, tt.asOf)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ValueAt() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestValueAt_NoChangesFallsBackToCurrent(t *testing.T) {
	item := jira.WorkItem{Key: "R-2", Status: "Beta", Health: "Mystery", Created: d(1)}
	got, ok := ValueAt(item, nil, eventlog.FieldHealth, d(15))
	if !ok || got != "Mystery" {
		t.Errorf("Expected current health fallback, got %q, %v", got, ok)
	}
}

func TestReconstructor_UnknownValues(t *testing.T) {
	r := NewReconstructor(workflow.Default())
	item := jira.WorkItem{Key: "R-3", Status: "Parking Lot", Health: "Sideways", Created: d(1)}

	h, _ := r.HealthAt(item, nil, d(2))
	if h != workflow.HealthUnknown {
		t.Errorf("Expected Unknown health, got %q", h)
	}
	p, _ := r.StatusAt(item, nil, d(2))
	if p != workflow.PhaseUnknown {
		t.Errorf("Expected Unknown phase, got %q", p)
	}
}

// fixture builds a store with several members' items.
func fixture() (*eventlog.EventStore, []jira.WorkItem) {
	store := eventlog.NewEventStore()
	var items []jira.WorkItem
	healths := []string{"On Track", "At Risk", "Off Track", "On Hold", "", "Mystery"}
	for i := range 12 {
		key := fmt.Sprintf("W-%d", i)
		member := []string{"Ana", "Ben", "Cy"}[i%3]
		item := jira.WorkItem{
			Key:      key,
			Status:   "Build",
			Health:   "Complete",
			Assignee: member,
			Created:  d(1 + i%4),
		}
		items = append(items, item)
		store.PutItems(item)
		store.Append(key, []eventlog.IssueEvent{
			{IssueKey: key, EventType: eventlog.Created, Field: eventlog.FieldStatus, ToValue: "Inbox", Timestamp: item.Created},
			statusChange(key, "Inbox", "Problem Discovery", d(6+i%5)),
			healthChange(key, "", healths[i%len(healths)], d(7+i%3)),
			statusChange(key, "Problem Discovery", "Build", d(15+i%6)),
			healthChange(key, healths[i%len(healths)], "Complete", d(25)),
		})
	}
	return store, items
}

func TestSnapshotMatchesPerMemberReconstruction(t *testing.T) {
	store, items := fixture()
	r := NewReconstructor(workflow.Default())
	ctx := context.Background()

	for _, asOf := range []time.Time{d(2), d(8), d(16), d(30)} {
		snap, err := r.NewSnapshot(ctx, store, asOf, items)
		if err != nil {
			t.Fatalf("NewSnapshot() error = %v", err)
		}
		for _, member := range []string{"Ana", "Ben", "Cy", "Nobody", ""} {
			want, err := r.ReconstructHealthBreakdown(ctx, store, member, asOf, items)
			if err != nil {
				t.Fatal(err)
			}
			if got := snap.HealthBreakdown(member); got != want {
				t.Errorf("asOf %v member %q: snapshot %+v != reconstruction %+v", asOf, member, got, want)
			}

			wantStatus, _ := r.ReconstructStatusBreakdown(ctx, store, member, asOf, items)
			if got := snap.StatusBreakdown(member); got != wantStatus {
				t.Errorf("asOf %v member %q: status mismatch %+v != %+v", asOf, member, got, wantStatus)
			}

			wantActive, _ := r.ActiveWorkload(ctx, store, member, asOf, items)
			if got := snap.ActiveWorkload(member); got != wantActive {
				t.Errorf("asOf %v member %q: workload mismatch %+v != %+v", asOf, member, got, wantActive)
			}
		}
	}
}

func TestBreakdownTotalsMatchIncludedItems(t *testing.T) {
	store, items := fixture()
	r := NewReconstructor(workflow.Default())

	b, err := r.ReconstructHealthBreakdown(context.Background(), store, "Ana", d(30), items)
	if err != nil {
		t.Fatal(err)
	}
	if b.Total() != 4 {
		t.Errorf("Expected 4 items for Ana, got %d", b.Total())
	}
	if b.Complete != 4 {
		t.Errorf("Expected all Complete by d(30), got %+v", b)
	}

	early, _ := r.ReconstructHealthBreakdown(context.Background(), store, "", d(1), items)
	if early.Total() != 3 {
		t.Errorf("Expected only items created by d(1), got %d", early.Total())
	}
}

func TestActiveWorkloadExcludesArchived(t *testing.T) {
	r := NewReconstructor(workflow.Default())
	archivedAt := d(10)
	item := jira.WorkItem{Key: "A-1", Status: "Problem Discovery", Assignee: "Ana", Created: d(1), Archived: true, ArchivedAt: &archivedAt}
	events := []eventlog.IssueEvent{
		{IssueKey: "A-1", EventType: eventlog.Created, Field: eventlog.FieldStatus, ToValue: "Problem Discovery", Timestamp: d(1)},
	}

	if !r.ActiveAt(item, events, d(5)) {
		t.Error("Expected item active before archiving")
	}
	if r.ActiveAt(item, events, d(10)) {
		t.Error("Expected item inactive once archived")
	}
}

func TestActiveAt_ArchivedWithoutDateUsesHistory(t *testing.T) {
	r := NewReconstructor(workflow.Default())
	day := func(m time.Month, d int) time.Time { return time.Date(2025, m, d, 12, 0, 0, 0, time.UTC) }
	item := jira.WorkItem{Key: "A-2", Status: "Live", Assignee: "Ana", Created: day(1, 1), Updated: day(6, 1), Archived: true}
	events := []eventlog.IssueEvent{
		{IssueKey: "A-2", EventType: eventlog.Created, Field: eventlog.FieldStatus, ToValue: "Inbox", Timestamp: day(1, 1)},
		statusChange("A-2", "Inbox", "Generative Discovery", day(1, 5)),
		statusChange("A-2", "Generative Discovery", "Live", day(6, 1)),
	}

	if !r.ActiveAt(item, events, day(3, 1)) {
		t.Error("Expected archived item to count as active while it was in discovery")
	}
	if r.ActiveAt(item, events, day(6, 2)) {
		t.Error("Expected archived item inactive after its last recorded event")
	}

	noHistory := jira.WorkItem{Key: "A-3", Status: "Build", Created: day(1, 1), Updated: day(4, 1), Archived: true}
	at, ok := ArchivedAt(noHistory, nil)
	if !ok || !at.Equal(day(4, 1)) {
		t.Errorf("Expected Updated as archive moment, got %v (ok=%v)", at, ok)
	}
	if _, ok := ArchivedAt(jira.WorkItem{Key: "A-4"}, nil); ok {
		t.Error("Expected no archive moment for a live item")
	}
}

type failingSource struct{}

func (failingSource) ListItems(context.Context) ([]jira.WorkItem, error) { return nil, nil }
func (failingSource) GetTransitionLog(context.Context, string) ([]eventlog.IssueEvent, error) {
	return nil, fmt.Errorf("%w: offline", eventlog.ErrFetchFailed)
}

func TestReconstructPropagatesFetchErrors(t *testing.T) {
	r := NewReconstructor(workflow.Default())
	items := []jira.WorkItem{{Key: "F-1", Assignee: "Ana"}}

	if _, err := r.ReconstructHealthBreakdown(context.Background(), failingSource{}, "Ana", d(1), items); err == nil {
		t.Error("Expected fetch error to propagate")
	}
	if _, err := r.NewSnapshot(context.Background(), failingSource{}, d(1), items); err == nil {
		t.Error("Expected snapshot fetch error to propagate")
	}
}

func TestHealthBreakdownPlus(t *testing.T) {
	a := HealthBreakdown{OnTrack: 1, Unknown: 2}
	b := HealthBreakdown{OnTrack: 3, OnHold: 1}
	sum := a.Plus(b)
	if sum.OnTrack != 4 || sum.Total() != 7 {
		t.Errorf("Unexpected sum %+v", sum)
	}
}
