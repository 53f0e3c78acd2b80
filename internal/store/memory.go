package store

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"jira-dashboard/internal/capacity"
	"jira-dashboard/internal/stats/discovery"

	"github.com/google/uuid"
)

// Memory is an in-process Store guarded by a single RWMutex.
type Memory struct {
	mu         sync.RWMutex
	records    map[string]discovery.Record
	exclusions map[string]Exclusion
	snapshots  map[string]capacity.WeeklySnapshot // week|member
	baseline   []capacity.BaselinePoint
	now        func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		records:    make(map[string]discovery.Record),
		exclusions: make(map[string]Exclusion),
		snapshots:  make(map[string]capacity.WeeklySnapshot),
		now:        time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (discovery.Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	return rec, ok, nil
}

func (m *Memory) GetAll(_ context.Context) ([]discovery.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedRecords(slices.Collect(maps.Values(m.records))), nil
}

func (m *Memory) GetByQuarter(_ context.Context, quarter string) ([]discovery.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []discovery.Record
	for _, r := range m.records {
		if r.CompletionQuarter == quarter {
			out = append(out, r)
		}
	}
	return sortedRecords(out), nil
}

func (m *Memory) Put(_ context.Context, key string, rec discovery.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.IssueKey = key
	rec.CalculatedAt = m.now().UTC()
	m.records[key] = rec
	return nil
}

func (m *Memory) Clear(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.records)
	m.records = make(map[string]discovery.Record)
	return n, nil
}

func (m *Memory) ClearQuarter(_ context.Context, quarter string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, r := range m.records {
		if r.CompletionQuarter == quarter {
			delete(m.records, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) ToggleExclusion(_ context.Context, key, by, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exclusions[key]; ok {
		delete(m.exclusions, key)
		return false, nil
	}
	m.exclusions[key] = Exclusion{IssueKey: key, ExcludedBy: by, Reason: reason, ToggledAt: m.now().UTC()}
	return true, nil
}

func (m *Memory) ListExclusions(_ context.Context) ([]Exclusion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Collect(maps.Values(m.exclusions))
	slices.SortFunc(out, func(a, b Exclusion) int { return strings.Compare(a.IssueKey, b.IssueKey) })
	return out, nil
}

func (m *Memory) IsExcluded(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.exclusions[key]
	return ok, nil
}

func (m *Memory) PutSnapshot(_ context.Context, s capacity.WeeklySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := weekKey(s.Week) + "|" + s.Member
	if prev, ok := m.snapshots[k]; ok {
		s.ID = prev.ID
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now().UTC()
	}
	m.snapshots[k] = s
	return nil
}

func (m *Memory) GetSnapshots(_ context.Context, week time.Time) ([]capacity.WeeklySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := weekKey(week)
	var out []capacity.WeeklySnapshot
	for _, s := range m.snapshots {
		if weekKey(s.Week) == want {
			out = append(out, s)
		}
	}
	return sortedSnapshots(out), nil
}

func (m *Memory) ListSnapshots(_ context.Context) ([]capacity.WeeklySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedSnapshots(slices.Collect(maps.Values(m.snapshots))), nil
}

func (m *Memory) ReplaceBaseline(_ context.Context, points []capacity.BaselinePoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseline = sortedBaseline(slices.Clone(points))
	return nil
}

func (m *Memory) ListBaseline(_ context.Context) ([]capacity.BaselinePoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.baseline), nil
}

func (m *Memory) Close() error { return nil }

func sortedRecords(out []discovery.Record) []discovery.Record {
	slices.SortFunc(out, func(a, b discovery.Record) int { return strings.Compare(a.IssueKey, b.IssueKey) })
	return out
}

func sortedSnapshots(out []capacity.WeeklySnapshot) []capacity.WeeklySnapshot {
	slices.SortFunc(out, func(a, b capacity.WeeklySnapshot) int {
		if c := a.Week.Compare(b.Week); c != 0 {
			return c
		}
		return strings.Compare(a.Member, b.Member)
	})
	return out
}

func sortedBaseline(out []capacity.BaselinePoint) []capacity.BaselinePoint {
	slices.SortFunc(out, func(a, b capacity.BaselinePoint) int { return a.Date.Compare(b.Date) })
	return out
}
