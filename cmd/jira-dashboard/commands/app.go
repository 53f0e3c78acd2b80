package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jira-dashboard/internal/dashboard"
	"jira-dashboard/internal/eventlog"
	"jira-dashboard/internal/jira"
	"jira-dashboard/internal/store"
	"jira-dashboard/internal/workflow"

	"github.com/rs/zerolog/log"
)

// app bundles the dashboard service with the resources it holds open.
type app struct {
	svc   *dashboard.Service
	store *store.SQLite
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close database")
	}
}

func openApp(ctx context.Context) (*app, error) {
	tax, err := workflow.LoadTaxonomy(cfg.TaxonomyFile)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}

	history, err := openHistory(tax)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	svc := dashboard.New(st, history, tax, dashboard.Options{
		Members:        cfg.TeamMembers,
		ChunkSize:      cfg.BatchChunkSize,
		BatchDelay:     cfg.BatchDelay,
		ItemListTTL:    cfg.ItemListTTL,
		RecentWeekDays: cfg.RecentWeekDays,
	})

	if cfg.BaselineFile != "" {
		if _, err := svc.ImportBaseline(ctx, cfg.BaselineFile); err != nil {
			log.Warn().Err(err).Str("path", cfg.BaselineFile).Msg("Capacity baseline not imported")
		}
	}

	log.Debug().Str("db", cfg.DBPath).Msg("Dashboard service ready")
	return &app{svc: svc, store: st}, nil
}

func openHistory(tax *workflow.Taxonomy) (eventlog.HistoryProvider, error) {
	if cfg.HistoryFile != "" {
		log.Info().Str("path", cfg.HistoryFile).Msg("Serving history from file")
		return eventlog.NewFileProvider(cfg.HistoryFile)
	}
	if cfg.Jira.BaseURL == "" || cfg.JQL == "" {
		return nil, errors.New("JIRA_URL and JIRA_JQL are required unless HISTORY_FILE is set")
	}
	client := jira.NewClient(cfg.Jira)
	return eventlog.NewLogProvider(client, eventlog.NewEventStore(), cfg.CacheDir, cfg.JQL, cfg.Jira.Fields, tax), nil
}

func parseDay(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}
