package stats

import (
	"context"
	"strings"
	"time"

	"jira-dashboard/internal/eventlog"
	"jira-dashboard/internal/jira"
	"jira-dashboard/internal/workflow"
)

// HealthBreakdown counts items per health value.
type HealthBreakdown struct {
	OnTrack  int `json:"on_track"`
	AtRisk   int `json:"at_risk"`
	OffTrack int `json:"off_track"`
	OnHold   int `json:"on_hold"`
	Mystery  int `json:"mystery"`
	Complete int `json:"complete"`
	Unknown  int `json:"unknown"`
}

// Add counts one item in the bucket for h.
func (b *HealthBreakdown) Add(h workflow.Health) {
	switch h {
	case workflow.HealthOnTrack:
		b.OnTrack++
	case workflow.HealthAtRisk:
		b.AtRisk++
	case workflow.HealthOffTrack:
		b.OffTrack++
	case workflow.HealthOnHold:
		b.OnHold++
	case workflow.HealthMystery:
		b.Mystery++
	case workflow.HealthComplete:
		b.Complete++
	default:
		b.Unknown++
	}
}

// Total is the number of items across all buckets.
func (b HealthBreakdown) Total() int {
	return b.OnTrack + b.AtRisk + b.OffTrack + b.OnHold + b.Mystery + b.Complete + b.Unknown
}

// Plus returns the bucket-wise sum.
func (b HealthBreakdown) Plus(o HealthBreakdown) HealthBreakdown {
	return HealthBreakdown{
		OnTrack:  b.OnTrack + o.OnTrack,
		AtRisk:   b.AtRisk + o.AtRisk,
		OffTrack: b.OffTrack + o.OffTrack,
		OnHold:   b.OnHold + o.OnHold,
		Mystery:  b.Mystery + o.Mystery,
		Complete: b.Complete + o.Complete,
		Unknown:  b.Unknown + o.Unknown,
	}
}

// StatusBreakdown counts items per workflow phase.
type StatusBreakdown struct {
	Inbox               int `json:"inbox"`
	GenerativeDiscovery int `json:"generative_discovery"`
	ProblemDiscovery    int `json:"problem_discovery"`
	SolutionDiscovery   int `json:"solution_discovery"`
	Build               int `json:"build"`
	Beta                int `json:"beta"`
	Live                int `json:"live"`
	WontDo              int `json:"wont_do"`
	Unknown             int `json:"unknown"`
}

// Add counts one item in the bucket for p.
func (b *StatusBreakdown) Add(p workflow.Phase) {
	switch p {
	case workflow.PhaseInbox:
		b.Inbox++
	case workflow.PhaseGenerativeDiscovery:
		b.GenerativeDiscovery++
	case workflow.PhaseProblemDiscovery:
		b.ProblemDiscovery++
	case workflow.PhaseSolutionDiscovery:
		b.SolutionDiscovery++
	case workflow.PhaseBuild:
		b.Build++
	case workflow.PhaseBeta:
		b.Beta++
	case workflow.PhaseLive:
		b.Live++
	case workflow.PhaseWontDo:
		b.WontDo++
	default:
		b.Unknown++
	}
}

// Total is the number of items across all buckets.
func (b StatusBreakdown) Total() int {
	return b.Inbox + b.GenerativeDiscovery + b.ProblemDiscovery + b.SolutionDiscovery +
		b.Build + b.Beta + b.Live + b.WontDo + b.Unknown
}

// ValueAt replays events to find the field's value at asOf (inclusive).
// When no change happened by then, the old value of the first later change is used,
// falling back to the item's current value. ok is false if the item did not exist yet.
func ValueAt(item jira.WorkItem, events []eventlog.IssueEvent, field eventlog.Field, asOf time.Time) (value string, ok bool) {
	if !existedAt(item, events, asOf) {
		return "", false
	}

	found := false
	for _, e := range events {
		if e.Field != field {
			continue
		}
		if e.Timestamp.After(asOf) {
			if !found {
				return e.FromValue, true
			}
			break
		}
		value, found = e.ToValue, true
	}
	if found {
		return value, true
	}
	return currentValue(item, field), true
}

func existedAt(item jira.WorkItem, events []eventlog.IssueEvent, asOf time.Time) bool {
	if !item.Created.IsZero() && !item.Created.After(asOf) {
		return true
	}
	return len(events) > 0 && !events[0].Timestamp.After(asOf)
}

func currentValue(item jira.WorkItem, field eventlog.Field) string {
	switch field {
	case eventlog.FieldStatus:
		return item.Status
	case eventlog.FieldHealth:
		return item.Health
	case eventlog.FieldAssignee:
		return item.Assignee
	}
	return ""
}

// Reconstructor answers point-in-time questions about items from their event logs.
type Reconstructor struct {
	tax *workflow.Taxonomy
}

func NewReconstructor(tax *workflow.Taxonomy) *Reconstructor {
	return &Reconstructor{tax: tax}
}

// HealthAt returns the item's health at asOf.
func (r *Reconstructor) HealthAt(item jira.WorkItem, events []eventlog.IssueEvent, asOf time.Time) (workflow.Health, bool) {
	v, ok := ValueAt(item, events, eventlog.FieldHealth, asOf)
	if !ok {
		return "", false
	}
	return r.tax.HealthOf(v), true
}

// StatusAt returns the item's workflow phase at asOf.
func (r *Reconstructor) StatusAt(item jira.WorkItem, events []eventlog.IssueEvent, asOf time.Time) (workflow.Phase, bool) {
	v, ok := ValueAt(item, events, eventlog.FieldStatus, asOf)
	if !ok {
		return "", false
	}
	return r.tax.PhaseOf(v), true
}

// ActiveAt reports whether the item was in a discovery or build phase at asOf and not yet archived.
func (r *Reconstructor) ActiveAt(item jira.WorkItem, events []eventlog.IssueEvent, asOf time.Time) bool {
	if at, ok := ArchivedAt(item, events); ok && !at.After(asOf) {
		return false
	}
	phase, ok := r.StatusAt(item, events, asOf)
	if !ok {
		return false
	}
	switch phase.Tier() {
	case workflow.TierDiscovery, workflow.TierBuild:
		return true
	}
	return false
}

// ArchivedAt returns when an archived item left the active set. Without an explicit archive
// date the last logged event is used, falling back to the item's Updated time; the item is
// never treated as archived before its history ends.
func ArchivedAt(item jira.WorkItem, events []eventlog.IssueEvent) (time.Time, bool) {
	if !item.Archived {
		return time.Time{}, false
	}
	if item.ArchivedAt != nil {
		return *item.ArchivedAt, true
	}
	if n := len(events); n > 0 {
		return events[n-1].Timestamp, true
	}
	if !item.Updated.IsZero() {
		return item.Updated, true
	}
	return item.Created, true
}

// AssignedTo reports whether item belongs to member. An empty member matches everyone.
func AssignedTo(item jira.WorkItem, member string) bool {
	member = strings.TrimSpace(member)
	return member == "" || strings.EqualFold(strings.TrimSpace(item.Assignee), member)
}

// ReconstructHealthBreakdown fetches each of the member's items' logs and counts health at asOf.
func (r *Reconstructor) ReconstructHealthBreakdown(ctx context.Context, src eventlog.HistoryProvider, member string, asOf time.Time, items []jira.WorkItem) (HealthBreakdown, error) {
	var b HealthBreakdown
	err := r.each(ctx, src, member, items, func(item jira.WorkItem, events []eventlog.IssueEvent) {
		if h, ok := r.HealthAt(item, events, asOf); ok {
			b.Add(h)
		}
	})
	return b, err
}

// ReconstructStatusBreakdown fetches each of the member's items' logs and counts phases at asOf.
func (r *Reconstructor) ReconstructStatusBreakdown(ctx context.Context, src eventlog.HistoryProvider, member string, asOf time.Time, items []jira.WorkItem) (StatusBreakdown, error) {
	var b StatusBreakdown
	err := r.each(ctx, src, member, items, func(item jira.WorkItem, events []eventlog.IssueEvent) {
		if p, ok := r.StatusAt(item, events, asOf); ok {
			b.Add(p)
		}
	})
	return b, err
}

// ActiveWorkload counts health at asOf over the member's items that were active then.
func (r *Reconstructor) ActiveWorkload(ctx context.Context, src eventlog.HistoryProvider, member string, asOf time.Time, items []jira.WorkItem) (HealthBreakdown, error) {
	var b HealthBreakdown
	err := r.each(ctx, src, member, items, func(item jira.WorkItem, events []eventlog.IssueEvent) {
		if !r.ActiveAt(item, events, asOf) {
			return
		}
		if h, ok := r.HealthAt(item, events, asOf); ok {
			b.Add(h)
		}
	})
	return b, err
}

func (r *Reconstructor) each(ctx context.Context, src eventlog.HistoryProvider, member string, items []jira.WorkItem, fn func(jira.WorkItem, []eventlog.IssueEvent)) error {
	for _, item := range items {
		if !AssignedTo(item, member) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		events, err := src.GetTransitionLog(ctx, item.Key)
		if err != nil {
			return err
		}
		fn(item, events)
	}
	return nil
}

// Snapshot holds every item and log prefetched once for a single date, so any number of
// members can be broken down without further fetches.
type Snapshot struct {
	r     *Reconstructor
	asOf  time.Time
	items []jira.WorkItem
	logs  map[string][]eventlog.IssueEvent
}

// NewSnapshot fetches the logs of all items once.
func (r *Reconstructor) NewSnapshot(ctx context.Context, src eventlog.HistoryProvider, asOf time.Time, items []jira.WorkItem) (*Snapshot, error) {
	logs := make(map[string][]eventlog.IssueEvent, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		events, err := src.GetTransitionLog(ctx, item.Key)
		if err != nil {
			return nil, err
		}
		logs[item.Key] = events
	}
	return &Snapshot{r: r, asOf: asOf, items: items, logs: logs}, nil
}

// AsOf is the date the snapshot answers for.
func (s *Snapshot) AsOf() time.Time { return s.asOf }

// HealthBreakdown counts health at the snapshot date for member.
func (s *Snapshot) HealthBreakdown(member string) HealthBreakdown {
	var b HealthBreakdown
	for _, item := range s.items {
		if !AssignedTo(item, member) {
			continue
		}
		if h, ok := s.r.HealthAt(item, s.logs[item.Key], s.asOf); ok {
			b.Add(h)
		}
	}
	return b
}

// StatusBreakdown counts phases at the snapshot date for member.
func (s *Snapshot) StatusBreakdown(member string) StatusBreakdown {
	var b StatusBreakdown
	for _, item := range s.items {
		if !AssignedTo(item, member) {
			continue
		}
		if p, ok := s.r.StatusAt(item, s.logs[item.Key], s.asOf); ok {
			b.Add(p)
		}
	}
	return b
}

// ActiveWorkload counts health at the snapshot date over member's active items.
func (s *Snapshot) ActiveWorkload(member string) HealthBreakdown {
	var b HealthBreakdown
	for _, item := range s.items {
		if !AssignedTo(item, member) {
			continue
		}
		events := s.logs[item.Key]
		if !s.r.ActiveAt(item, events, s.asOf) {
			continue
		}
		if h, ok := s.r.HealthAt(item, events, s.asOf); ok {
			b.Add(h)
		}
	}
	return b
}
