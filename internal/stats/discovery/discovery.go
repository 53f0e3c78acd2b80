package discovery

import (
	"fmt"
	"slices"
	"time"

	"jira-dashboard/internal/eventlog"
	"jira-dashboard/internal/jira"
	"jira-dashboard/internal/workflow"
)

// EndDateLogic is the terminal classification of a discovery cycle.
type EndDateLogic string

const (
	NoDiscovery      EndDateLogic = "No Discovery"
	DirectToBuild    EndDateLogic = "Direct to Build"
	ReachedBuild     EndDateLogic = "Reached Build"
	ReachedBeta      EndDateLogic = "Reached Beta"
	ReachedLive      EndDateLogic = "Reached Live"
	WontDo           EndDateLogic = "Won't Do"
	Archived         EndDateLogic = "Archived"
	StillInDiscovery EndDateLogic = "Still in Discovery"
	Unknown          EndDateLogic = "Unknown"
)

// Completed reports whether the logic denotes a finished cycle eligible for statistics.
func (l EndDateLogic) Completed() bool {
	switch l {
	case StillInDiscovery, NoDiscovery, DirectToBuild:
		return false
	}
	return true
}

// Record is the computed discovery cycle of one work item.
type Record struct {
	IssueKey                string              `json:"issue_key"`
	DiscoveryStartDate      *time.Time          `json:"discovery_start_date,omitempty"`
	DiscoveryEndDate        *time.Time          `json:"discovery_end_date,omitempty"`
	EndDateLogic            EndDateLogic        `json:"end_date_logic"`
	CalendarDaysInDiscovery *int                `json:"calendar_days_in_discovery,omitempty"`
	ActiveDaysInDiscovery   *int                `json:"active_days_in_discovery,omitempty"`
	CompletionQuarter       string              `json:"completion_quarter,omitempty"`
	Complexity              workflow.Complexity `json:"complexity"`
	Assignee                string              `json:"assignee"`
	CalculatedAt            time.Time           `json:"calculated_at"`
}

// HasDates reports whether both start and end dates are present.
func (r Record) HasDates() bool {
	return r.DiscoveryStartDate != nil && r.DiscoveryEndDate != nil
}

// terminalRule maps the phase of the first post-discovery transition to a tag.
type terminalRule struct {
	tag   EndDateLogic
	match func(workflow.Phase) bool
}

func tierIs(t workflow.Tier) func(workflow.Phase) bool {
	return func(p workflow.Phase) bool { return p.Tier() == t }
}

// Evaluated in order; the first match wins.
var terminalRules = []terminalRule{
	{ReachedBuild, tierIs(workflow.TierBuild)},
	{ReachedBeta, tierIs(workflow.TierBeta)},
	{ReachedLive, tierIs(workflow.TierLive)},
	{WontDo, tierIs(workflow.TierClosed)},
}

func matchTerminal(p workflow.Phase) (EndDateLogic, bool) {
	for _, r := range terminalRules {
		if r.match(p) {
			return r.tag, true
		}
	}
	return "", false
}

// Compute classifies the discovery cycle of item from its ascending event log.
// It is pure: CalculatedAt is left zero for the cache to stamp.
func Compute(item jira.WorkItem, events []eventlog.IssueEvent, tax *workflow.Taxonomy) Record {
	rec := Record{
		IssueKey:     item.Key,
		EndDateLogic: Unknown,
		Complexity:   item.Complexity,
		Assignee:     item.Assignee,
	}
	if rec.Complexity == "" {
		rec.Complexity = workflow.ComplexityNotSet
	}
	if rec.Assignee == "" {
		rec.Assignee = jira.UnassignedName
	}

	if len(events) == 0 {
		rec.EndDateLogic = NoDiscovery
		return rec
	}

	statuses := eventlog.FilterField(events, eventlog.FieldStatus)
	slices.SortStableFunc(statuses, func(a, b eventlog.IssueEvent) int { return a.Timestamp.Compare(b.Timestamp) })

	startIdx := slices.IndexFunc(statuses, func(e eventlog.IssueEvent) bool {
		return tax.PhaseOf(e.ToValue).IsDiscovery()
	})

	if startIdx < 0 {
		rec.EndDateLogic = NoDiscovery
		if reachedDelivery(statuses, item.Status, tax) {
			rec.EndDateLogic = DirectToBuild
		}
		return rec
	}

	start := statuses[startIdx].Timestamp.UTC()
	rec.DiscoveryStartDate = &start

	var end *time.Time
	for _, e := range statuses[startIdx+1:] {
		tag, ok := matchTerminal(tax.PhaseOf(e.ToValue))
		if !ok {
			continue
		}
		ts := e.Timestamp.UTC()
		end = &ts
		rec.EndDateLogic = tag
		break
	}

	// Archiving during discovery ends the cycle unless a terminal move came first.
	if item.Archived && item.ArchivedAt != nil && !item.ArchivedAt.Before(start) {
		if end == nil || item.ArchivedAt.Before(*end) {
			ts := item.ArchivedAt.UTC()
			end = &ts
			rec.EndDateLogic = Archived
		}
	}

	if end == nil {
		current := item.Status
		if current == "" {
			current = statuses[len(statuses)-1].ToValue
		}
		switch {
		case item.Archived:
			rec.EndDateLogic = Archived
		case tax.PhaseOf(current).IsDiscovery():
			rec.EndDateLogic = StillInDiscovery
		default:
			rec.EndDateLogic = Unknown
		}
		return rec
	}

	rec.DiscoveryEndDate = end
	calendar := CalendarDays(start, *end)
	paused := PausedDays(item, events, start, *end, tax)
	active := min(max(calendar-paused, 0), calendar)
	rec.CalendarDaysInDiscovery = &calendar
	rec.ActiveDaysInDiscovery = &active
	rec.CompletionQuarter = QuarterOf(*end)
	return rec
}

func reachedDelivery(statuses []eventlog.IssueEvent, current string, tax *workflow.Taxonomy) bool {
	isDelivery := func(status string) bool {
		switch tax.PhaseOf(status).Tier() {
		case workflow.TierBuild, workflow.TierBeta, workflow.TierLive:
			return true
		}
		return false
	}
	if isDelivery(current) {
		return true
	}
	return slices.ContainsFunc(statuses, func(e eventlog.IssueEvent) bool { return isDelivery(e.ToValue) })
}

func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CalendarDays is the whole-day difference between the UTC dates of start and end.
func CalendarDays(start, end time.Time) int {
	days := int(utcDay(end).Sub(utcDay(start)).Hours() / 24)
	return max(days, 0)
}

// PausedDays counts whole days inside [start, end] during which the item's health was paused.
func PausedDays(item jira.WorkItem, events []eventlog.IssueEvent, start, end time.Time, tax *workflow.Taxonomy) int {
	health := eventlog.FilterField(events, eventlog.FieldHealth)
	slices.SortStableFunc(health, func(a, b eventlog.IssueEvent) int { return a.Timestamp.Compare(b.Timestamp) })

	// Health in effect at start: last change at or before it, else the old value of the next change.
	current := item.Health
	idx := 0
	found := false
	for idx < len(health) && !health[idx].Timestamp.After(start) {
		current = health[idx].ToValue
		found = true
		idx++
	}
	if !found && idx < len(health) {
		current = health[idx].FromValue
	}

	var paused time.Duration
	cursor := start
	for ; idx < len(health) && health[idx].Timestamp.Before(end); idx++ {
		ts := health[idx].Timestamp
		if tax.IsPaused(current) {
			paused += ts.Sub(cursor)
		}
		cursor = ts
		current = health[idx].ToValue
	}
	if tax.IsPaused(current) {
		paused += end.Sub(cursor)
	}

	return int(paused.Hours() / 24)
}

// QuarterOf returns the Q{n}_{year} label of t's UTC calendar quarter.
func QuarterOf(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("Q%d_%d", (int(t.Month())-1)/3+1, t.Year())
}
