package mcp

import (
	"context"
	"errors"
	"strings"
	"time"

	"jira-dashboard/internal/batch"
	"jira-dashboard/internal/stats"
)

type processItemInput struct {
	IssueKey string `json:"issue_key" jsonschema:"the Jira issue key, e.g. DISC-42"`
}

type runBatchInput struct {
	Offset    int `json:"offset,omitempty" jsonschema:"position in the key-sorted item list to resume from"`
	ChunkSize int `json:"chunk_size,omitempty" jsonschema:"items to process in this call (default 50)"`
	DelayMS   int `json:"delay_ms,omitempty" jsonschema:"pause between items in milliseconds"`
}

type timeTypeInput struct {
	TimeType string `json:"time_type,omitempty" jsonschema:"calendar (default) or active"`
}

type breakdownInput struct {
	Member string `json:"member,omitempty" jsonschema:"assignee display name; empty means the whole team"`
	Date   string `json:"date,omitempty" jsonschema:"as-of date YYYY-MM-DD (default today)"`
	Kind   string `json:"kind,omitempty" jsonschema:"health (default), status or team"`
}

type weekInput struct {
	Week    string   `json:"week,omitempty" jsonschema:"any date inside the week YYYY-MM-DD (default today)"`
	Members []string `json:"members,omitempty" jsonschema:"restrict to these members"`
}

type rangeInput struct {
	From    string   `json:"from,omitempty" jsonschema:"first week YYYY-MM-DD (required)"`
	To      string   `json:"to,omitempty" jsonschema:"last week YYYY-MM-DD (default today)"`
	Members []string `json:"members,omitempty" jsonschema:"restrict to these members"`
}

type exclusionInput struct {
	IssueKey   string `json:"issue_key" jsonschema:"the Jira issue key to toggle"`
	ExcludedBy string `json:"excluded_by,omitempty" jsonschema:"who requested the change"`
	Reason     string `json:"reason,omitempty" jsonschema:"free-text reason"`
}

type clearCacheInput struct {
	Quarter string `json:"quarter,omitempty" jsonschema:"limit to one quarter, e.g. Q2_2025; empty clears everything"`
}

type emptyInput struct{}

func (s *Server) registerTools() {
	register(s.server, "process_item",
		"Compute and cache the discovery cycle of a single item.",
		s.handleProcessItem)
	register(s.server, "run_batch",
		"Process one chunk of items into the cycle time cache. Resume with next_offset while has_more is true.",
		s.handleRunBatch)
	register(s.server, "get_progress",
		"Report how many items have a cached discovery cycle.",
		s.handleProgress)
	register(s.server, "get_quarter_distribution",
		"Discovery cycle statistics grouped by completion quarter.",
		s.handleQuarterDistribution)
	register(s.server, "get_complexity_cohorts",
		"Discovery cycle statistics grouped by complexity.",
		s.handleComplexityCohorts)
	register(s.server, "get_breakdown",
		"Reconstruct the health or status breakdown of a member's items at a past date.",
		s.handleBreakdown)
	register(s.server, "get_weekly_workload",
		"Active workload of the team for one week, from the best available data source.",
		s.handleWeeklyWorkload)
	register(s.server, "get_workload_trend",
		"Weekly active workload series between two dates.",
		s.handleTrend)
	register(s.server, "backfill_snapshots",
		"Persist reconstructed weekly snapshots for weeks that have no stored data.",
		s.handleBackfill)
	register(s.server, "toggle_exclusion",
		"Exclude an item from aggregate statistics, or include it again.",
		s.handleToggleExclusion)
	register(s.server, "list_exclusions",
		"List items currently excluded from aggregate statistics.",
		s.handleListExclusions)
	register(s.server, "clear_cache",
		"Remove cached discovery cycles, optionally for one completion quarter.",
		s.handleClearCache)
}

func (s *Server) handleProcessItem(ctx context.Context, in processItemInput) (any, error) {
	if strings.TrimSpace(in.IssueKey) == "" {
		return nil, errors.New("issue_key is required")
	}
	return s.svc.ProcessItem(ctx, in.IssueKey)
}

func (s *Server) handleRunBatch(ctx context.Context, in runBatchInput) (any, error) {
	if in.Offset < 0 || in.ChunkSize < 0 || in.DelayMS < 0 {
		return nil, errors.New("offset, chunk_size and delay_ms must not be negative")
	}
	opts := batch.Options{
		Offset:    in.Offset,
		ChunkSize: in.ChunkSize,
		Delay:     time.Duration(in.DelayMS) * time.Millisecond,
	}
	return s.svc.RunBatch(ctx, opts)
}

func (s *Server) handleProgress(ctx context.Context, _ emptyInput) (any, error) {
	return s.svc.Progress(ctx)
}

func (s *Server) handleQuarterDistribution(ctx context.Context, in timeTypeInput) (any, error) {
	tt, err := stats.ParseTimeType(in.TimeType)
	if err != nil {
		return nil, err
	}
	return s.svc.QuarterDistribution(ctx, tt)
}

func (s *Server) handleComplexityCohorts(ctx context.Context, in timeTypeInput) (any, error) {
	tt, err := stats.ParseTimeType(in.TimeType)
	if err != nil {
		return nil, err
	}
	return s.svc.ComplexityCohorts(ctx, tt)
}

func (s *Server) handleBreakdown(ctx context.Context, in breakdownInput) (any, error) {
	asOf, err := parseDate("date", in.Date, s.now())
	if err != nil {
		return nil, err
	}
	if in.Date != "" {
		asOf = endOfDay(asOf)
	}
	switch strings.ToLower(strings.TrimSpace(in.Kind)) {
	case "", "health":
		return s.svc.Breakdown(ctx, strings.TrimSpace(in.Member), asOf)
	case "status":
		return s.svc.StatusBreakdown(ctx, strings.TrimSpace(in.Member), asOf)
	case "team":
		return s.svc.TeamBreakdown(ctx, asOf)
	default:
		return nil, errors.New("kind must be health, status or team")
	}
}

func (s *Server) handleWeeklyWorkload(ctx context.Context, in weekInput) (any, error) {
	week, err := parseDate("week", in.Week, s.now())
	if err != nil {
		return nil, err
	}
	return s.svc.WeeklyWorkload(ctx, week, in.Members)
}

func (s *Server) handleTrend(ctx context.Context, in rangeInput) (any, error) {
	from, to, err := s.parseRange(in.From, in.To)
	if err != nil {
		return nil, err
	}
	return s.svc.Trend(ctx, from, to, in.Members)
}

func (s *Server) handleBackfill(ctx context.Context, in rangeInput) (any, error) {
	from, to, err := s.parseRange(in.From, in.To)
	if err != nil {
		return nil, err
	}
	return s.svc.BackfillSnapshots(ctx, from, to)
}

func (s *Server) parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	if strings.TrimSpace(fromStr) == "" {
		return time.Time{}, time.Time{}, errors.New("from is required")
	}
	from, err := parseDate("from", fromStr, time.Time{})
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDate("to", toStr, s.now())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func (s *Server) handleToggleExclusion(ctx context.Context, in exclusionInput) (any, error) {
	return s.svc.ToggleExclusion(ctx, in.IssueKey, in.ExcludedBy, in.Reason)
}

func (s *Server) handleListExclusions(ctx context.Context, _ emptyInput) (any, error) {
	return s.svc.ListExclusions(ctx)
}

func (s *Server) handleClearCache(ctx context.Context, in clearCacheInput) (any, error) {
	n, err := s.svc.ClearCache(ctx, in.Quarter)
	if err != nil {
		return nil, err
	}
	return map[string]any{"removed": n, "quarter": strings.TrimSpace(in.Quarter)}, nil
}
