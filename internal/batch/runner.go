package batch

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"jira-dashboard/internal/eventlog"
	"jira-dashboard/internal/jira"
	"jira-dashboard/internal/stats"
	"jira-dashboard/internal/stats/discovery"
	"jira-dashboard/internal/store"
	"jira-dashboard/internal/workflow"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultChunkSize = 50
	DefaultDelay     = 500 * time.Millisecond
)

// ErrUnknownItem is returned when a key is not in the item population.
var ErrUnknownItem = errors.New("unknown work item")

// ItemSource supplies the item population, normally an eventlog.ItemListCache.
type ItemSource interface {
	Get(ctx context.Context) ([]jira.WorkItem, error)
}

// Options selects the slice of the population a run covers.
type Options struct {
	Offset    int           `json:"offset"`
	ChunkSize int           `json:"chunk_size"`
	Delay     time.Duration `json:"delay"`
}

// Report summarises one run.
type Report struct {
	RunID      string        `json:"run_id"`
	Offset     int           `json:"offset"`
	Processed  int           `json:"processed"`
	Cached     int           `json:"cached"`
	Errors     int           `json:"errors"`
	Failed     []string      `json:"failed,omitempty"`
	NextOffset int           `json:"next_offset"`
	HasMore    bool          `json:"has_more"`
	Total      int           `json:"total"`
	Duration   time.Duration `json:"duration"`
}

// Progress compares the cache against the item population.
type Progress struct {
	Total     int     `json:"total"`
	Cached    int     `json:"cached"`
	Completed int     `json:"completed"`
	Remaining int     `json:"remaining"`
	Percent   float64 `json:"percent"`
}

// Runner computes discovery cycles for the population and writes them to the cache.
type Runner struct {
	items   ItemSource
	history eventlog.HistoryProvider
	cache   store.CycleTimeCache
	tax     *workflow.Taxonomy

	chunkSize int
	delay     time.Duration
	wait      func(ctx context.Context, d time.Duration) error
}

func NewRunner(items ItemSource, history eventlog.HistoryProvider, cache store.CycleTimeCache, tax *workflow.Taxonomy, chunkSize int, delay time.Duration) *Runner {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if delay < 0 {
		delay = 0
	}
	return &Runner{
		items:     items,
		history:   history,
		cache:     cache,
		tax:       tax,
		chunkSize: chunkSize,
		delay:     delay,
		wait:      sleep,
	}
}

// sleep blocks for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// population returns the items ordered by key so offsets are stable across runs.
func (r *Runner) population(ctx context.Context) ([]jira.WorkItem, error) {
	items, err := r.items.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	slices.SortFunc(items, func(a, b jira.WorkItem) int { return cmp.Compare(a.Key, b.Key) })
	return items, nil
}

// Run processes one chunk starting at opts.Offset. Per-item failures are logged and counted;
// the run continues. On cancellation the partial report is returned with NextOffset set
// to the first unprocessed item.
func (r *Runner) Run(ctx context.Context, opts Options) (Report, error) {
	started := time.Now()
	rep := Report{RunID: uuid.NewString(), Offset: max(opts.Offset, 0)}

	items, err := r.population(ctx)
	if err != nil {
		return rep, err
	}
	rep.Total = len(items)

	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = r.chunkSize
	}
	delay := opts.Delay
	if delay <= 0 {
		delay = r.delay
	}

	start := min(rep.Offset, len(items))
	end := min(start+chunk, len(items))
	rep.NextOffset = start

	logger := log.With().Str("run_id", rep.RunID).Logger()
	logger.Info().Int("offset", start).Int("end", end).Int("total", rep.Total).Msg("Batch run started")

	for i, item := range items[start:end] {
		if i > 0 {
			if err := r.wait(ctx, delay); err != nil {
				rep.HasMore = rep.NextOffset < rep.Total
				rep.Duration = time.Since(started)
				logger.Warn().Err(err).Int("next_offset", rep.NextOffset).Msg("Batch run interrupted")
				return rep, err
			}
		}

		rec, err := r.process(ctx, item)
		rep.Processed++
		rep.NextOffset = start + i + 1
		if err != nil {
			rep.Errors++
			rep.Failed = append(rep.Failed, item.Key)
			logger.Warn().Err(err).Str("key", item.Key).Msg("Item failed")
			continue
		}
		if rec.HasDates() {
			rep.Cached++
		}
		logger.Debug().Str("key", item.Key).Str("logic", string(rec.EndDateLogic)).Msg("Item processed")
	}

	rep.HasMore = rep.NextOffset < rep.Total
	rep.Duration = time.Since(started)
	logger.Info().
		Int("processed", rep.Processed).
		Int("cached", rep.Cached).
		Int("errors", rep.Errors).
		Int("next_offset", rep.NextOffset).
		Bool("has_more", rep.HasMore).
		Dur("duration", rep.Duration).
		Msg("Batch run finished")
	return rep, nil
}

// RunAll runs consecutive chunks from opts.Offset until the population is exhausted.
func (r *Runner) RunAll(ctx context.Context, opts Options, onChunk func(Report)) (Report, error) {
	total := Report{RunID: uuid.NewString(), Offset: max(opts.Offset, 0)}
	for {
		rep, err := r.Run(ctx, opts)
		total.Processed += rep.Processed
		total.Cached += rep.Cached
		total.Errors += rep.Errors
		total.Failed = append(total.Failed, rep.Failed...)
		total.NextOffset = rep.NextOffset
		total.HasMore = rep.HasMore
		total.Total = rep.Total
		total.Duration += rep.Duration
		if onChunk != nil {
			onChunk(rep)
		}
		if err != nil || !rep.HasMore || rep.Processed == 0 {
			return total, err
		}
		if err := r.wait(ctx, cmp.Or(opts.Delay, r.delay)); err != nil {
			return total, err
		}
		opts.Offset = rep.NextOffset
	}
}

// ProcessItem computes and caches a single item by key.
func (r *Runner) ProcessItem(ctx context.Context, key string) (discovery.Record, error) {
	items, err := r.items.Get(ctx)
	if err != nil {
		return discovery.Record{}, fmt.Errorf("list items: %w", err)
	}
	idx := slices.IndexFunc(items, func(it jira.WorkItem) bool { return it.Key == key })
	if idx < 0 {
		return discovery.Record{}, fmt.Errorf("%s: %w", key, ErrUnknownItem)
	}
	return r.process(ctx, items[idx])
}

func (r *Runner) process(ctx context.Context, item jira.WorkItem) (discovery.Record, error) {
	events, err := r.history.GetTransitionLog(ctx, item.Key)
	if err != nil {
		return discovery.Record{}, fmt.Errorf("fetch transition log for %s: %w", item.Key, err)
	}
	rec := discovery.Compute(item, events, r.tax)
	if err := r.cache.Put(ctx, item.Key, rec); err != nil {
		return discovery.Record{}, fmt.Errorf("cache %s: %w", item.Key, err)
	}
	if stored, ok, err := r.cache.Get(ctx, item.Key); err == nil && ok {
		return stored, nil
	}
	return rec, nil
}

// Progress reports how much of the population has a cached record.
func (r *Runner) Progress(ctx context.Context) (Progress, error) {
	items, err := r.items.Get(ctx)
	if err != nil {
		return Progress{}, fmt.Errorf("list items: %w", err)
	}
	records, err := r.cache.GetAll(ctx)
	if err != nil {
		return Progress{}, fmt.Errorf("read cache: %w", err)
	}

	byKey := make(map[string]discovery.Record, len(records))
	for _, rec := range records {
		byKey[rec.IssueKey] = rec
	}
	p := Progress{Total: len(items)}
	for _, it := range items {
		rec, ok := byKey[it.Key]
		if !ok {
			continue
		}
		p.Cached++
		if rec.HasDates() {
			p.Completed++
		}
	}
	p.Remaining = p.Total - p.Cached
	if p.Total > 0 {
		p.Percent = stats.Round1(float64(p.Cached) / float64(p.Total) * 100)
	}
	return p, nil
}
