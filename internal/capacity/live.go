package capacity

import (
	"context"
	"time"

	"jira-dashboard/internal/eventlog"
	"jira-dashboard/internal/jira"
	"jira-dashboard/internal/stats"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// maxMemberFanout bounds concurrent per-member reconstructions.
const maxMemberFanout = 4

// ItemLister supplies the current item population.
type ItemLister interface {
	Get(ctx context.Context) ([]jira.WorkItem, error)
}

// TeamReconstructor is the LiveSource that replays provider history per member.
type TeamReconstructor struct {
	items ItemLister
	src   eventlog.HistoryProvider
	r     *stats.Reconstructor
}

func NewTeamReconstructor(items ItemLister, src eventlog.HistoryProvider, r *stats.Reconstructor) *TeamReconstructor {
	return &TeamReconstructor{items: items, src: src, r: r}
}

// Reconstruct computes each member's active workload at asOf concurrently.
// A member whose reconstruction fails is logged and reported with an empty breakdown.
func (t *TeamReconstructor) Reconstruct(ctx context.Context, asOf time.Time, members []string) (map[string]stats.HealthBreakdown, error) {
	items, err := t.items.Get(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]stats.HealthBreakdown, len(members))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxMemberFanout)
	for i, member := range members {
		g.Go(func() error {
			b, err := t.r.ActiveWorkload(gctx, t.src, member, asOf, items)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Warn().
					Err(err).
					Str("member", member).
					Time("as_of", asOf).
					Msg("Member reconstruction failed, reporting empty workload")
				return nil
			}
			results[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]stats.HealthBreakdown, len(members))
	for i, member := range members {
		out[member] = results[i]
	}
	return out, nil
}
