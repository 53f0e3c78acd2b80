package capacity

import (
	"context"
	"errors"
	"time"

	"jira-dashboard/internal/stats"
)

// ErrTotalMismatch is returned when a week's total differs from the sum of its breakdown.
var ErrTotalMismatch = errors.New("week total does not match breakdown sum")

// WeekAge classifies a target week relative to now.
type WeekAge string

const (
	AgeCurrent    WeekAge = "current"
	AgeRecent     WeekAge = "recent"
	AgeHistorical WeekAge = "historical"
)

// Source names where a week's figures came from.
type Source string

const (
	SourceLive           Source = "live"
	SourceSnapshot       Source = "snapshot"
	SourceReconstruction Source = "reconstruction"
	SourceBaseline       Source = "baseline"
)

// WeeklySnapshot is a persisted per-member health breakdown for one week.
type WeeklySnapshot struct {
	ID        string                `json:"id"`
	Week      time.Time             `json:"week"`
	Member    string                `json:"member"`
	Total     int                   `json:"total"`
	Health    stats.HealthBreakdown `json:"health"`
	CreatedAt time.Time             `json:"created_at"`
}

// BaselinePoint is one week of the static historical capacity table.
type BaselinePoint struct {
	Date    time.Time      `json:"date"`
	Members map[string]int `json:"members"`
	Total   int            `json:"total"`
}

// MemberWorkload is one member's figures for a week.
type MemberWorkload struct {
	Member string                `json:"member"`
	Total  int                   `json:"total"`
	Health stats.HealthBreakdown `json:"health"`
}

// WeekResult is the blended workload of the team for one week.
type WeekResult struct {
	Week          time.Time             `json:"week"`
	Label         string                `json:"label"`
	Age           WeekAge               `json:"age"`
	Source        Source                `json:"source"`
	Members       []MemberWorkload      `json:"members"`
	Team          stats.HealthBreakdown `json:"team"`
	Total         int                   `json:"total"`
	NeedsBackfill bool                  `json:"needs_backfill,omitempty"`
}

// SnapshotStore persists weekly snapshots.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, s WeeklySnapshot) error
	GetSnapshots(ctx context.Context, week time.Time) ([]WeeklySnapshot, error)
}

// BaselineStore serves the static capacity baseline, ascending by date.
type BaselineStore interface {
	ListBaseline(ctx context.Context) ([]BaselinePoint, error)
}

// LiveSource reconstructs per-member workload at a point in time.
type LiveSource interface {
	Reconstruct(ctx context.Context, asOf time.Time, members []string) (map[string]stats.HealthBreakdown, error)
}
