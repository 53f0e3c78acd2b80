package eventlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"jira-dashboard/internal/jira"
	"jira-dashboard/internal/workflow"

	"github.com/rs/zerolog/log"
)

// HistoryProvider is the read-only source of work items and their transition logs.
type HistoryProvider interface {
	ListItems(ctx context.Context) ([]jira.WorkItem, error)
	GetTransitionLog(ctx context.Context, issueKey string) ([]IssueEvent, error)
}

const (
	historyFile = "history.jsonl"
	pageSize    = 100
	// Caches older than this are discarded and rebuilt from scratch.
	staleAfter = 60 * 24 * time.Hour
)

// LogProvider orchestrates Jira ingestion into an EventStore with a JSONL cache on disk.
type LogProvider struct {
	client   jira.Client
	store    *EventStore
	cacheDir string
	jql      string
	fields   jira.FieldMap
	tax      *workflow.Taxonomy

	mu     sync.Mutex
	loaded bool
}

func NewLogProvider(client jira.Client, store *EventStore, cacheDir, jql string, fields jira.FieldMap, tax *workflow.Taxonomy) *LogProvider {
	return &LogProvider{
		client:   client,
		store:    store,
		cacheDir: cacheDir,
		jql:      jql,
		fields:   fields,
		tax:      tax,
	}
}

func (p *LogProvider) cachePath() string {
	return filepath.Join(p.cacheDir, historyFile)
}

// Hydrate brings the store up to date: a full ingestion on first use, incremental afterwards.
func (p *LogProvider) Hydrate(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// 1. Try to Load from Cache
	if !p.loaded && p.cacheDir != "" {
		if err := p.store.Load(p.cachePath()); err != nil {
			log.Warn().Err(err).Msg("Hydrate: failed to load cache, starting fresh")
		}
	}
	p.loaded = true

	latest := p.store.GetLatestTimestamp()

	// 2. Validate Cache Recency
	if !latest.IsZero() && time.Since(latest) > staleAfter {
		log.Info().Time("latest", latest).Msg("Cache is older than 2 months, evicting and performing full re-ingestion")
		p.store.Clear()
		if p.cacheDir != "" {
			_ = os.Remove(p.cachePath())
		}
		latest = time.Time{}
	}

	isIncremental := !latest.IsZero()
	hydrateJQL := fmt.Sprintf("(%s) ORDER BY key ASC", p.jql)
	if isIncremental {
		tsStr := latest.Format("2006-01-02 15:04")
		hydrateJQL = fmt.Sprintf("(%s) AND updated >= \"%s\" ORDER BY updated ASC", p.jql, tsStr)
	}

	log.Info().Bool("incremental", isIncremental).Msg("Starting hydration process")

	fetched := 0
	for {
		resp, err := p.client.SearchIssuesWithHistory(ctx, hydrateJQL, fetched, pageSize)
		if err != nil {
			return fmt.Errorf("%w: hydration failed at offset %d: %w", ErrFetchFailed, fetched, err)
		}
		if len(resp.Issues) == 0 {
			break
		}

		for _, dto := range resp.Issues {
			p.ingest(dto)
		}
		fetched += len(resp.Issues)

		if len(resp.Issues) < pageSize || (resp.Total > 0 && fetched >= resp.Total) {
			break
		}
	}

	if p.cacheDir != "" && fetched > 0 {
		if err := p.store.Save(p.cachePath()); err != nil {
			log.Warn().Err(err).Msg("Hydrate: failed to save cache")
		}
	}

	log.Info().Int("fetched", fetched).Int("events", p.store.Count()).Msg("Hydration complete")
	return nil
}

func (p *LogProvider) ingest(dto jira.IssueDTO) {
	item, events := TransformIssue(dto, p.fields, p.tax)
	p.store.PutItems(item)
	p.store.Append(item.Key, events)
}

// ListItems syncs with Jira and returns every tracked item ordered by key.
func (p *LogProvider) ListItems(ctx context.Context) ([]jira.WorkItem, error) {
	if err := p.Hydrate(ctx); err != nil {
		return nil, err
	}
	return p.store.Items(), nil
}

// GetTransitionLog returns the stored log, fetching the single issue when it has not been ingested.
func (p *LogProvider) GetTransitionLog(ctx context.Context, issueKey string) ([]IssueEvent, error) {
	if p.store.HasLog(issueKey) {
		return p.store.GetEventsForIssue(issueKey), nil
	}

	dto, err := p.client.GetIssueWithHistory(ctx, issueKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, issueKey, err)
	}
	p.ingest(*dto)
	return p.store.GetEventsForIssue(issueKey), nil
}

// FileProvider serves history recorded in a JSONL file, such as the output of mockgen.
type FileProvider struct {
	*EventStore
	path string
}

// NewFileProvider loads the file at path; the file must exist.
func NewFileProvider(path string) (*FileProvider, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("history file: %w", err)
	}
	p := &FileProvider{EventStore: NewEventStore(), path: path}
	if err := p.Load(path); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload discards the in-memory state and re-reads the file.
func (p *FileProvider) Reload() error {
	p.Clear()
	return p.Load(p.path)
}
