package capacity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jira-dashboard/internal/stats"

	"github.com/rs/zerolog/log"
)

// Trend resolves every week between from and to, each from its own source.
func (s *Selector) Trend(ctx context.Context, members []string, from, to, now time.Time) ([]WeekResult, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("trend range ends %s before it starts %s", to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	w := stats.NewAnalysisWindow(from.UTC(), to.UTC(), "week")

	var out []WeekResult
	for _, monday := range w.Subdivide() {
		res, err := s.Week(ctx, monday, now, members)
		if err != nil {
			return nil, err
		}
		res.Label = w.GenerateLabel(monday)
		out = append(out, res)
	}
	return out, nil
}

// BackfillReport summarises a snapshot backfill.
type BackfillReport struct {
	Weeks   int `json:"weeks"`
	Written int `json:"written"`
	Skipped int `json:"skipped"`
}

// BackfillSnapshots persists reconstructed figures for historical weeks that have neither
// a baseline row nor a snapshot, so later reads take the snapshot path.
func (s *Selector) BackfillSnapshots(ctx context.Context, members []string, from, to, now time.Time) (BackfillReport, error) {
	var rep BackfillReport
	if s.snapshots == nil {
		return rep, errors.New("no snapshot store configured")
	}
	w := stats.NewAnalysisWindow(from.UTC(), to.UTC(), "week")

	for _, monday := range w.Subdivide() {
		rep.Weeks++
		d, err := s.Select(ctx, monday, now)
		if err != nil {
			return rep, err
		}
		if d.Source != SourceReconstruction {
			rep.Skipped++
			continue
		}

		res, err := s.Week(ctx, monday, now, members)
		if err != nil {
			return rep, err
		}
		for _, m := range res.Members {
			snap := WeeklySnapshot{Week: res.Week, Member: m.Member, Total: m.Total, Health: m.Health, CreatedAt: now.UTC()}
			if err := s.snapshots.PutSnapshot(ctx, snap); err != nil {
				return rep, fmt.Errorf("store snapshot %s/%s: %w", res.Week.Format(time.DateOnly), m.Member, err)
			}
		}
		rep.Written++
		log.Info().Str("week", res.Label).Int("members", len(res.Members)).Int("total", res.Total).Msg("Snapshot backfilled")
	}
	return rep, nil
}
