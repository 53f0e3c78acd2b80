package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"jira-dashboard/internal/dashboard"
	"jira-dashboard/internal/eventlog"
	"jira-dashboard/internal/jira"
	"jira-dashboard/internal/store"
	"jira-dashboard/internal/workflow"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(m time.Month, d int) time.Time { return time.Date(2025, m, d, 9, 0, 0, 0, time.UTC) }

func newTestSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	es := eventlog.NewEventStore()
	for _, it := range []struct {
		key        string
		start, end time.Time
	}{
		{"M-1", day(1, 6), day(1, 16)},
		{"M-2", day(2, 3), day(4, 14)},
		{"M-3", day(3, 3), time.Time{}},
	} {
		status := "Problem Discovery"
		events := []eventlog.IssueEvent{
			{IssueKey: it.key, EventType: eventlog.Created, Field: eventlog.FieldStatus, ToValue: "Inbox", Timestamp: day(1, 1)},
			{IssueKey: it.key, EventType: eventlog.Change, Field: eventlog.FieldStatus, FromValue: "Inbox", ToValue: "Problem Discovery", Timestamp: it.start},
		}
		if !it.end.IsZero() {
			status = "Build"
			events = append(events, eventlog.IssueEvent{IssueKey: it.key, EventType: eventlog.Change, Field: eventlog.FieldStatus, FromValue: "Problem Discovery", ToValue: "Build", Timestamp: it.end})
		}
		es.PutItems(jira.WorkItem{Key: it.key, Status: status, Health: "On Track", Assignee: "Ana", Created: day(1, 1)})
		es.Append(it.key, events)
	}

	svc := dashboard.New(store.NewMemory(), es, workflow.Default(), dashboard.Options{BatchDelay: time.Nanosecond})
	srv := NewServer(svc, "test")

	ctx := context.Background()
	clientT, serverT := mcp.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, serverT)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func call(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	return res, text.Text
}

func TestServer_ListsTools(t *testing.T) {
	cs := newTestSession(t)
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"process_item", "run_batch", "get_progress", "get_quarter_distribution",
		"get_complexity_cohorts", "get_breakdown", "get_weekly_workload", "get_workload_trend",
		"backfill_snapshots", "toggle_exclusion", "list_exclusions", "clear_cache"} {
		assert.True(t, names[want], "missing tool %s", want)
	}
}

func TestServer_BatchAndDistribution(t *testing.T) {
	cs := newTestSession(t)

	res, text := call(t, cs, "run_batch", map[string]any{"chunk_size": 2})
	require.False(t, res.IsError, text)
	var rep struct {
		Processed  int  `json:"processed"`
		NextOffset int  `json:"next_offset"`
		HasMore    bool `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &rep))
	assert.Equal(t, 2, rep.Processed)
	assert.Equal(t, 2, rep.NextOffset)
	assert.True(t, rep.HasMore)

	res, text = call(t, cs, "run_batch", map[string]any{"offset": rep.NextOffset, "chunk_size": 2})
	require.False(t, res.IsError, text)

	res, text = call(t, cs, "get_progress", map[string]any{})
	require.False(t, res.IsError, text)
	assert.Contains(t, text, `"percent": 100`)

	res, text = call(t, cs, "get_quarter_distribution", map[string]any{"time_type": "calendar"})
	require.False(t, res.IsError, text)
	assert.Contains(t, text, "Q1_2025")
	assert.Contains(t, text, "Q2_2025")

	res, text = call(t, cs, "get_quarter_distribution", map[string]any{"time_type": "weekly"})
	assert.True(t, res.IsError, text)
}

func TestServer_ToolErrorsAreResults(t *testing.T) {
	cs := newTestSession(t)

	res, text := call(t, cs, "process_item", map[string]any{"issue_key": "NOPE-1"})
	assert.True(t, res.IsError)
	assert.Contains(t, text, "NOPE-1")

	res, _ = call(t, cs, "get_breakdown", map[string]any{"date": "21/05/2025"})
	assert.True(t, res.IsError)

	res, _ = call(t, cs, "get_workload_trend", map[string]any{"to": "2025-03-01"})
	assert.True(t, res.IsError)

	res, _ = call(t, cs, "clear_cache", map[string]any{"quarter": "2025Q9"})
	assert.True(t, res.IsError)
}

func TestServer_BreakdownAndExclusions(t *testing.T) {
	cs := newTestSession(t)

	res, text := call(t, cs, "get_breakdown", map[string]any{"member": "Ana", "date": "2025-03-10", "kind": "status"})
	require.False(t, res.IsError, text)
	var st struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &st))
	assert.Equal(t, 3, st.Total)

	res, text = call(t, cs, "toggle_exclusion", map[string]any{"issue_key": "M-1", "excluded_by": "ana"})
	require.False(t, res.IsError, text)
	assert.Contains(t, text, `"excluded": true`)

	res, text = call(t, cs, "list_exclusions", map[string]any{})
	require.False(t, res.IsError, text)
	assert.Contains(t, text, "M-1")

	res, text = call(t, cs, "toggle_exclusion", map[string]any{"issue_key": "M-1"})
	require.False(t, res.IsError, text)
	assert.Contains(t, text, `"excluded": false`)
}

func TestServer_WeeklyWorkload(t *testing.T) {
	cs := newTestSession(t)

	res, text := call(t, cs, "get_weekly_workload", map[string]any{"week": "2025-03-12"})
	require.False(t, res.IsError, text)
	var wk struct {
		Source string `json:"source"`
		Total  int    `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &wk))
	assert.Equal(t, "reconstruction", wk.Source)
	// M-1 is in Build, M-2 and M-3 are in discovery; all three count as active.
	assert.Equal(t, 3, wk.Total)
}

func TestParseDate(t *testing.T) {
	fallback := day(5, 1)
	got, err := parseDate("date", "", fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, got)

	got, err = parseDate("date", " 2025-02-03 ", fallback)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), got)

	_, err = parseDate("date", "Feb 3", fallback)
	assert.Error(t, err)
}
