package capacity

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"jira-dashboard/internal/stats"
)

// DefaultRecentDays is how far back a week still counts as unsettled.
const DefaultRecentDays = 14

// Classify places a week (its Monday) relative to now. Weeks starting on or after the
// Sunday that opens the current Sunday-to-Saturday week are current.
func Classify(week, now time.Time, recentDays int) WeekAge {
	if recentDays <= 0 {
		recentDays = DefaultRecentDays
	}
	week = day(week)
	today := day(now)
	sunday := today.AddDate(0, 0, -int(today.Weekday()))
	if !week.Before(sunday) {
		return AgeCurrent
	}
	if !week.Before(today.AddDate(0, 0, -recentDays)) {
		return AgeRecent
	}
	return AgeHistorical
}

// Monday normalises t to the UTC Monday of its week.
func Monday(t time.Time) time.Time {
	return stats.SnapToStart(t.UTC(), "week")
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Decision is the source chosen for one week, with any stored rows it resolved to.
type Decision struct {
	Week      time.Time
	Age       WeekAge
	Source    Source
	Snapshots []WeeklySnapshot
	Baseline  *BaselinePoint
}

// Selector decides per week whether figures come from the baseline, a stored snapshot,
// or a reconstruction, and produces them.
type Selector struct {
	snapshots  SnapshotStore
	baseline   BaselineStore
	live       LiveSource
	recentDays int
}

func NewSelector(snapshots SnapshotStore, baseline BaselineStore, live LiveSource, recentDays int) *Selector {
	if recentDays <= 0 {
		recentDays = DefaultRecentDays
	}
	return &Selector{snapshots: snapshots, baseline: baseline, live: live, recentDays: recentDays}
}

// Select picks the data source for week without computing any figures.
func (s *Selector) Select(ctx context.Context, week, now time.Time) (Decision, error) {
	monday := Monday(week)
	d := Decision{Week: monday, Age: Classify(monday, now, s.recentDays)}
	if d.Age != AgeHistorical {
		d.Source = SourceLive
		return d, nil
	}

	if s.baseline != nil {
		points, err := s.baseline.ListBaseline(ctx)
		if err != nil {
			return d, fmt.Errorf("list baseline: %w", err)
		}
		if p, ok := baselineFor(points, monday); ok {
			d.Source = SourceBaseline
			d.Baseline = &p
			return d, nil
		}
	}

	if s.snapshots != nil {
		// Upstream rows are keyed by either Monday or the preceding Sunday.
		for _, key := range []time.Time{monday, monday.AddDate(0, 0, -1)} {
			snaps, err := s.snapshots.GetSnapshots(ctx, key)
			if err != nil {
				return d, fmt.Errorf("get snapshots: %w", err)
			}
			if len(snaps) > 0 {
				d.Source = SourceSnapshot
				d.Snapshots = snaps
				return d, nil
			}
		}
	}

	d.Source = SourceReconstruction
	return d, nil
}

// baselineFor returns the point matching monday, provided monday is not after the last point.
func baselineFor(points []BaselinePoint, monday time.Time) (BaselinePoint, bool) {
	if len(points) == 0 || monday.After(day(points[len(points)-1].Date)) {
		return BaselinePoint{}, false
	}
	sunday := monday.AddDate(0, 0, -1)
	for _, p := range points {
		if d := day(p.Date); d.Equal(monday) || d.Equal(sunday) {
			return p, true
		}
	}
	return BaselinePoint{}, false
}

// Week resolves the workload of members for week.
func (s *Selector) Week(ctx context.Context, week, now time.Time, members []string) (WeekResult, error) {
	d, err := s.Select(ctx, week, now)
	if err != nil {
		return WeekResult{}, err
	}
	res := WeekResult{
		Week:   d.Week,
		Label:  weekLabel(d.Week),
		Age:    d.Age,
		Source: d.Source,
	}

	switch d.Source {
	case SourceBaseline:
		res.Members = fromBaseline(*d.Baseline, members)
		if len(members) == 0 {
			if sum := sumTotals(res.Members); sum != d.Baseline.Total {
				return WeekResult{}, fmt.Errorf("baseline %s: total %d, members %d: %w",
					d.Week.Format(time.DateOnly), d.Baseline.Total, sum, ErrTotalMismatch)
			}
		}
	case SourceSnapshot:
		res.Members = fromSnapshots(d.Snapshots, members)
	default:
		asOf := now
		if d.Source == SourceReconstruction {
			asOf = stats.SnapToEnd(d.Week, "day")
			res.NeedsBackfill = true
		}
		if s.live == nil {
			return WeekResult{}, fmt.Errorf("no live source configured for %s week", d.Source)
		}
		byMember, err := s.live.Reconstruct(ctx, asOf, members)
		if err != nil {
			return WeekResult{}, fmt.Errorf("reconstruct week %s: %w", d.Week.Format(time.DateOnly), err)
		}
		for _, m := range members {
			h := byMember[m]
			res.Members = append(res.Members, MemberWorkload{Member: m, Total: h.Total(), Health: h})
		}
	}

	for _, m := range res.Members {
		res.Team = res.Team.Plus(m.Health)
		res.Total += m.Total
	}
	if err := Validate(res); err != nil {
		return WeekResult{}, err
	}
	return res, nil
}

// Validate checks every total against the sum of its breakdown.
func Validate(res WeekResult) error {
	for _, m := range res.Members {
		if m.Total != m.Health.Total() {
			return fmt.Errorf("week %s member %s: total %d, breakdown %d: %w",
				res.Week.Format(time.DateOnly), m.Member, m.Total, m.Health.Total(), ErrTotalMismatch)
		}
	}
	if res.Total != res.Team.Total() {
		return fmt.Errorf("week %s: total %d, breakdown %d: %w",
			res.Week.Format(time.DateOnly), res.Total, res.Team.Total(), ErrTotalMismatch)
	}
	return nil
}

// fromBaseline reports baseline counts under Unknown health; the baseline carries no health.
func fromBaseline(p BaselinePoint, members []string) []MemberWorkload {
	names := members
	if len(names) == 0 {
		names = make([]string, 0, len(p.Members))
		for name := range p.Members {
			names = append(names, name)
		}
		slices.Sort(names)
	}
	out := make([]MemberWorkload, 0, len(names))
	for _, name := range names {
		n := lookup(p.Members, name)
		out = append(out, MemberWorkload{Member: name, Total: n, Health: stats.HealthBreakdown{Unknown: n}})
	}
	return out
}

func lookup(m map[string]int, name string) int {
	if n, ok := m[name]; ok {
		return n
	}
	for k, n := range m {
		if strings.EqualFold(strings.TrimSpace(k), strings.TrimSpace(name)) {
			return n
		}
	}
	return 0
}

func fromSnapshots(snaps []WeeklySnapshot, members []string) []MemberWorkload {
	if len(members) == 0 {
		out := make([]MemberWorkload, 0, len(snaps))
		for _, s := range snaps {
			out = append(out, MemberWorkload{Member: s.Member, Total: s.Total, Health: s.Health})
		}
		return out
	}
	out := make([]MemberWorkload, 0, len(members))
	for _, name := range members {
		mw := MemberWorkload{Member: name}
		for _, s := range snaps {
			if strings.EqualFold(strings.TrimSpace(s.Member), strings.TrimSpace(name)) {
				mw.Total, mw.Health = s.Total, s.Health
				break
			}
		}
		out = append(out, mw)
	}
	return out
}

func sumTotals(ms []MemberWorkload) int {
	n := 0
	for _, m := range ms {
		n += m.Total
	}
	return n
}

func weekLabel(monday time.Time) string {
	return stats.NewAnalysisWindow(monday, monday, "week").GenerateLabel(monday)
}
