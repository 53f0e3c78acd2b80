package dashboard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"jira-dashboard/internal/batch"
	"jira-dashboard/internal/capacity"
	"jira-dashboard/internal/eventlog"
	"jira-dashboard/internal/jira"
	"jira-dashboard/internal/stats"
	"jira-dashboard/internal/stats/discovery"
	"jira-dashboard/internal/store"
	"jira-dashboard/internal/workflow"

	"github.com/rs/zerolog/log"
)

// Options tunes the service; zero values fall back to package defaults.
type Options struct {
	Members        []string
	ChunkSize      int
	BatchDelay     time.Duration
	ItemListTTL    time.Duration
	RecentWeekDays int
}

// Service is the set of operations exposed to reporting layers.
type Service struct {
	store    store.Store
	history  eventlog.HistoryProvider
	items    *eventlog.ItemListCache
	recon    *stats.Reconstructor
	runner   *batch.Runner
	selector *capacity.Selector
	members  []string
	now      func() time.Time
}

func New(st store.Store, history eventlog.HistoryProvider, tax *workflow.Taxonomy, opts Options) *Service {
	items := eventlog.NewItemListCache(history, opts.ItemListTTL)
	recon := stats.NewReconstructor(tax)
	live := capacity.NewTeamReconstructor(items, history, recon)
	return &Service{
		store:    st,
		history:  history,
		items:    items,
		recon:    recon,
		runner:   batch.NewRunner(items, history, st, tax, opts.ChunkSize, opts.BatchDelay),
		selector: capacity.NewSelector(st, st, live, opts.RecentWeekDays),
		members:  slices.Clone(opts.Members),
		now:      time.Now,
	}
}

// Refresh drops the memoised item list.
func (s *Service) Refresh() {
	s.items.Invalidate()
}

// Members returns the configured team, or every assignee seen in the item list.
func (s *Service) Members(ctx context.Context) ([]string, error) {
	if len(s.members) > 0 {
		return slices.Clone(s.members), nil
	}
	items, err := s.items.Get(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, it := range items {
		name := strings.TrimSpace(it.Assignee)
		if name == "" || name == jira.UnassignedName || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	slices.Sort(out)
	return out, nil
}

func (s *Service) resolveMembers(ctx context.Context, members []string) ([]string, error) {
	if len(members) > 0 {
		return members, nil
	}
	return s.Members(ctx)
}

// ProcessItem computes and caches one item's discovery cycle.
func (s *Service) ProcessItem(ctx context.Context, key string) (discovery.Record, error) {
	return s.runner.ProcessItem(ctx, strings.TrimSpace(key))
}

// RunBatch processes one chunk of the population.
func (s *Service) RunBatch(ctx context.Context, opts batch.Options) (batch.Report, error) {
	return s.runner.Run(ctx, opts)
}

// RunAll processes the population chunk by chunk from opts.Offset.
func (s *Service) RunAll(ctx context.Context, opts batch.Options, onChunk func(batch.Report)) (batch.Report, error) {
	return s.runner.RunAll(ctx, opts, onChunk)
}

// Progress reports cached versus total items.
func (s *Service) Progress(ctx context.Context) (batch.Progress, error) {
	return s.runner.Progress(ctx)
}

func (s *Service) cachedWithExclusions(ctx context.Context) ([]discovery.Record, map[string]bool, error) {
	records, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read cycle time cache: %w", err)
	}
	excluded, err := store.ExcludedSet(ctx, s.store)
	if err != nil {
		return nil, nil, fmt.Errorf("read exclusions: %w", err)
	}
	return records, excluded, nil
}

// QuarterDistribution aggregates cached cycles per completion quarter.
func (s *Service) QuarterDistribution(ctx context.Context, tt stats.TimeType) (stats.QuarterDistribution, error) {
	records, excluded, err := s.cachedWithExclusions(ctx)
	if err != nil {
		return stats.QuarterDistribution{}, err
	}
	return stats.QuarterDistributionOf(records, excluded, tt), nil
}

// ComplexityCohorts aggregates cached cycles per complexity.
func (s *Service) ComplexityCohorts(ctx context.Context, tt stats.TimeType) (stats.ComplexityCohorts, error) {
	records, excluded, err := s.cachedWithExclusions(ctx)
	if err != nil {
		return stats.ComplexityCohorts{}, err
	}
	return stats.ComplexityCohortsOf(records, excluded, tt), nil
}

// HealthReport is a member's reconstructed health breakdown at a date.
type HealthReport struct {
	Member string                `json:"member"`
	AsOf   time.Time             `json:"as_of"`
	Total  int                   `json:"total"`
	Health stats.HealthBreakdown `json:"health"`
}

// StatusReport is a member's reconstructed phase breakdown at a date.
type StatusReport struct {
	Member string                `json:"member"`
	AsOf   time.Time             `json:"as_of"`
	Total  int                   `json:"total"`
	Status stats.StatusBreakdown `json:"status"`
}

// Breakdown reconstructs health at asOf over member's items. An empty member means the whole team.
func (s *Service) Breakdown(ctx context.Context, member string, asOf time.Time) (HealthReport, error) {
	items, err := s.items.Get(ctx)
	if err != nil {
		return HealthReport{}, err
	}
	b, err := s.recon.ReconstructHealthBreakdown(ctx, s.history, member, asOf, items)
	if err != nil {
		return HealthReport{}, fmt.Errorf("reconstruct health for %q: %w", member, err)
	}
	return HealthReport{Member: member, AsOf: asOf, Total: b.Total(), Health: b}, nil
}

// StatusBreakdown reconstructs workflow phases at asOf over member's items.
func (s *Service) StatusBreakdown(ctx context.Context, member string, asOf time.Time) (StatusReport, error) {
	items, err := s.items.Get(ctx)
	if err != nil {
		return StatusReport{}, err
	}
	b, err := s.recon.ReconstructStatusBreakdown(ctx, s.history, member, asOf, items)
	if err != nil {
		return StatusReport{}, fmt.Errorf("reconstruct status for %q: %w", member, err)
	}
	return StatusReport{Member: member, AsOf: asOf, Total: b.Total(), Status: b}, nil
}

// TeamBreakdown reconstructs health for every member from a single prefetch of the logs.
func (s *Service) TeamBreakdown(ctx context.Context, asOf time.Time) ([]HealthReport, error) {
	items, err := s.items.Get(ctx)
	if err != nil {
		return nil, err
	}
	members, err := s.Members(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := s.recon.NewSnapshot(ctx, s.history, asOf, items)
	if err != nil {
		return nil, fmt.Errorf("prefetch logs: %w", err)
	}
	out := make([]HealthReport, 0, len(members))
	for _, m := range members {
		b := snap.HealthBreakdown(m)
		out = append(out, HealthReport{Member: m, AsOf: asOf, Total: b.Total(), Health: b})
	}
	return out, nil
}

// WeeklyWorkload resolves the team's active workload for the week containing week.
func (s *Service) WeeklyWorkload(ctx context.Context, week time.Time, members []string) (capacity.WeekResult, error) {
	members, err := s.resolveMembers(ctx, members)
	if err != nil {
		return capacity.WeekResult{}, err
	}
	return s.selector.Week(ctx, week, s.now(), members)
}

// Trend resolves every week from from to to.
func (s *Service) Trend(ctx context.Context, from, to time.Time, members []string) ([]capacity.WeekResult, error) {
	members, err := s.resolveMembers(ctx, members)
	if err != nil {
		return nil, err
	}
	return s.selector.Trend(ctx, members, from, to, s.now())
}

// BackfillSnapshots persists reconstructed weeks between from and to.
func (s *Service) BackfillSnapshots(ctx context.Context, from, to time.Time) (capacity.BackfillReport, error) {
	members, err := s.Members(ctx)
	if err != nil {
		return capacity.BackfillReport{}, err
	}
	return s.selector.BackfillSnapshots(ctx, members, from, to, s.now())
}

// ExclusionResult reports the state of a key after a toggle.
type ExclusionResult struct {
	IssueKey string `json:"issue_key"`
	Excluded bool   `json:"excluded"`
}

// ToggleExclusion flips whether key is left out of aggregate statistics.
func (s *Service) ToggleExclusion(ctx context.Context, key, by, reason string) (ExclusionResult, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return ExclusionResult{}, errors.New("issue key is required")
	}
	excluded, err := s.store.ToggleExclusion(ctx, key, by, reason)
	if err != nil {
		return ExclusionResult{}, fmt.Errorf("toggle exclusion %s: %w", key, err)
	}
	log.Info().Str("key", key).Bool("excluded", excluded).Str("by", by).Msg("Exclusion toggled")
	return ExclusionResult{IssueKey: key, Excluded: excluded}, nil
}

// ListExclusions returns the current exclusion set.
func (s *Service) ListExclusions(ctx context.Context) ([]store.Exclusion, error) {
	return s.store.ListExclusions(ctx)
}

// ClearCache empties the cycle time cache, or one quarter of it when quarter is set.
func (s *Service) ClearCache(ctx context.Context, quarter string) (int, error) {
	quarter = strings.TrimSpace(quarter)
	if quarter == "" {
		n, err := s.store.Clear(ctx)
		if err == nil {
			log.Info().Int("removed", n).Msg("Cycle time cache cleared")
		}
		return n, err
	}
	q, err := stats.ParseQuarter(quarter)
	if err != nil {
		return 0, err
	}
	n, err := s.store.ClearQuarter(ctx, q.String())
	if err == nil {
		log.Info().Int("removed", n).Str("quarter", q.String()).Msg("Cycle time cache quarter cleared")
	}
	return n, err
}

// ImportBaseline replaces the stored capacity baseline with the contents of a YAML file.
func (s *Service) ImportBaseline(ctx context.Context, path string) (int, error) {
	points, err := capacity.LoadBaselineFile(path)
	if err != nil {
		return 0, err
	}
	if err := s.store.ReplaceBaseline(ctx, points); err != nil {
		return 0, fmt.Errorf("store baseline: %w", err)
	}
	log.Info().Int("weeks", len(points)).Str("path", path).Msg("Capacity baseline imported")
	return len(points), nil
}
