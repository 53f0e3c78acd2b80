package capacity

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"jira-dashboard/internal/eventlog"
	"jira-dashboard/internal/jira"
	"jira-dashboard/internal/stats"
	"jira-dashboard/internal/workflow"
)

type staticItems []jira.WorkItem

func (s staticItems) Get(context.Context) ([]jira.WorkItem, error) { return s, nil }

// flakyHistory fails every log fetch for keys with the given prefix.
type flakyHistory struct {
	*eventlog.EventStore
	failPrefix string
}

func (f flakyHistory) GetTransitionLog(ctx context.Context, key string) ([]eventlog.IssueEvent, error) {
	if strings.HasPrefix(key, f.failPrefix) {
		return nil, fmt.Errorf("%w: %s", eventlog.ErrFetchFailed, key)
	}
	return f.EventStore.GetTransitionLog(ctx, key)
}

func teamFixture() (*eventlog.EventStore, staticItems) {
	es := eventlog.NewEventStore()
	created := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	items := staticItems{
		{Key: "A-1", Status: "Problem Discovery", Health: "On Track", Assignee: "Ana", Created: created},
		{Key: "A-2", Status: "Build", Health: "At Risk", Assignee: "Ana", Created: created},
		{Key: "A-3", Status: "Live", Health: "Complete", Assignee: "Ana", Created: created},
		{Key: "B-1", Status: "Solution Discovery", Health: "Off Track", Assignee: "Ben", Created: created},
	}
	for _, it := range items {
		es.PutItems(it)
		es.Append(it.Key, []eventlog.IssueEvent{
			{IssueKey: it.Key, EventType: eventlog.Created, Field: eventlog.FieldStatus, ToValue: it.Status, Timestamp: created},
		})
	}
	return es, items
}

func TestTeamReconstructor(t *testing.T) {
	es, items := teamFixture()
	tr := NewTeamReconstructor(items, es, stats.NewReconstructor(workflow.Default()))

	got, err := tr.Reconstruct(context.Background(), time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), []string{"Ana", "Ben", "Cy"})
	if err != nil {
		t.Fatal(err)
	}
	if got["Ana"].Total() != 2 || got["Ana"].OnTrack != 1 || got["Ana"].AtRisk != 1 {
		t.Errorf("Expected Ana's two active items, got %+v", got["Ana"])
	}
	if got["Ben"].OffTrack != 1 {
		t.Errorf("Expected Ben off track, got %+v", got["Ben"])
	}
	if got["Cy"].Total() != 0 {
		t.Errorf("Expected empty workload for Cy, got %+v", got["Cy"])
	}
}

func TestTeamReconstructor_MemberFailureIsAbsorbed(t *testing.T) {
	es, items := teamFixture()
	tr := NewTeamReconstructor(items, flakyHistory{EventStore: es, failPrefix: "B-"}, stats.NewReconstructor(workflow.Default()))

	got, err := tr.Reconstruct(context.Background(), time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), []string{"Ana", "Ben"})
	if err != nil {
		t.Fatalf("Expected member failure to be absorbed, got %v", err)
	}
	if got["Ben"].Total() != 0 {
		t.Errorf("Expected zero breakdown for failed member, got %+v", got["Ben"])
	}
	if got["Ana"].Total() != 2 {
		t.Errorf("Expected Ana unaffected, got %+v", got["Ana"])
	}
}

func TestTeamReconstructor_CancelledContext(t *testing.T) {
	es, items := teamFixture()
	tr := NewTeamReconstructor(items, es, stats.NewReconstructor(workflow.Default()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tr.Reconstruct(ctx, time.Now(), []string{"Ana"}); err == nil {
		t.Error("Expected cancellation error")
	}
}
