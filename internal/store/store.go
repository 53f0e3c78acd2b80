package store

import (
	"context"
	"errors"
	"time"

	"jira-dashboard/internal/capacity"
	"jira-dashboard/internal/stats/discovery"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// CycleTimeCache persists one discovery record per issue key.
// Put is an upsert stamped with the write time; clears are atomic with respect to readers.
type CycleTimeCache interface {
	Get(ctx context.Context, key string) (discovery.Record, bool, error)
	GetAll(ctx context.Context) ([]discovery.Record, error)
	GetByQuarter(ctx context.Context, quarter string) ([]discovery.Record, error)
	Put(ctx context.Context, key string, rec discovery.Record) error
	Clear(ctx context.Context) (int, error)
	ClearQuarter(ctx context.Context, quarter string) (int, error)
}

// Exclusion marks an issue as left out of aggregate statistics.
type Exclusion struct {
	IssueKey   string    `json:"issue_key"`
	ExcludedBy string    `json:"excluded_by"`
	Reason     string    `json:"reason,omitempty"`
	ToggledAt  time.Time `json:"toggled_at"`
}

// ExclusionStore tracks the exclusion set.
type ExclusionStore interface {
	// ToggleExclusion flips membership and reports whether the key is now excluded.
	ToggleExclusion(ctx context.Context, key, by, reason string) (bool, error)
	ListExclusions(ctx context.Context) ([]Exclusion, error)
	IsExcluded(ctx context.Context, key string) (bool, error)
}

// Store is everything the dashboard persists.
type Store interface {
	CycleTimeCache
	ExclusionStore
	capacity.SnapshotStore
	capacity.BaselineStore
	ListSnapshots(ctx context.Context) ([]capacity.WeeklySnapshot, error)
	ReplaceBaseline(ctx context.Context, points []capacity.BaselinePoint) error
	Close() error
}

// ExcludedSet returns the exclusion keys as a lookup set.
func ExcludedSet(ctx context.Context, s ExclusionStore) (map[string]bool, error) {
	list, err := s.ListExclusions(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(list))
	for _, e := range list {
		set[e.IssueKey] = true
	}
	return set, nil
}

// weekKey normalises a week date to its UTC calendar day.
func weekKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
