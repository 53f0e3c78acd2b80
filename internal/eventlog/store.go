package eventlog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"jira-dashboard/internal/jira"

	"github.com/rs/zerolog/log"
)

// EventStore provides thread-safe storage of work items and their chronological event logs.
type EventStore struct {
	mu    sync.RWMutex
	items map[string]jira.WorkItem
	logs  map[string][]IssueEvent // Partitioned by issue key
}

// NewEventStore creates a new empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{
		items: make(map[string]jira.WorkItem),
		logs:  make(map[string][]IssueEvent),
	}
}

// cacheLine is one JSONL record: either an item snapshot or an event.
type cacheLine struct {
	Item  *jira.WorkItem `json:"item,omitempty"`
	Event *IssueEvent    `json:"event,omitempty"`
}

// PutItems stores or replaces current-state items.
func (s *EventStore) PutItems(items ...jira.WorkItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.items[it.Key] = it
	}
}

// Append adds new events to an issue's log, ensuring chronological order and deduplication.
func (s *EventStore) Append(issueKey string, events []IssueEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logData := s.logs[issueKey]

	existing := make(map[string]bool, len(logData))
	for _, e := range logData {
		existing[e.identity()] = true
	}

	newCount := 0
	for _, e := range events {
		id := e.identity()
		if !existing[id] {
			existing[id] = true
			logData = append(logData, e)
			newCount++
		}
	}

	if newCount == 0 {
		if _, ok := s.logs[issueKey]; !ok {
			s.logs[issueKey] = nil
		}
		return
	}

	// Created sorts ahead of changes sharing its timestamp.
	slices.SortStableFunc(logData, func(a, b IssueEvent) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		if a.EventType == b.EventType {
			return 0
		}
		if a.EventType == Created {
			return -1
		}
		if b.EventType == Created {
			return 1
		}
		return 0
	})

	s.logs[issueKey] = logData
}

// Items returns every stored item ordered by key.
func (s *EventStore) Items() []jira.WorkItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]jira.WorkItem, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	slices.SortFunc(out, func(a, b jira.WorkItem) int { return strings.Compare(a.Key, b.Key) })
	return out
}

// Item returns the stored item for a key.
func (s *EventStore) Item(key string) (jira.WorkItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[key]
	return it, ok
}

// HasLog reports whether a log (possibly empty) has been recorded for the issue.
func (s *EventStore) HasLog(issueKey string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.logs[issueKey]
	return ok
}

// GetEventsForIssue returns a copy of the full event history for a single issue.
func (s *EventStore) GetEventsForIssue(issueKey string) []IssueEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.logs[issueKey])
}

// ListItems implements HistoryProvider over the stored items.
func (s *EventStore) ListItems(_ context.Context) ([]jira.WorkItem, error) {
	return s.Items(), nil
}

// GetTransitionLog implements HistoryProvider over the stored logs.
func (s *EventStore) GetTransitionLog(_ context.Context, issueKey string) ([]IssueEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, hasItem := s.items[issueKey]
	logData, hasLog := s.logs[issueKey]
	if !hasItem && !hasLog {
		return nil, fmt.Errorf("%w: %s is not in the event store", ErrFetchFailed, issueKey)
	}
	return slices.Clone(logData), nil
}

// GetLatestTimestamp returns the most recent item update or event time.
func (s *EventStore) GetLatestTimestamp() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	for _, it := range s.items {
		if it.Updated.After(latest) {
			latest = it.Updated
		}
	}
	for _, logData := range s.logs {
		if n := len(logData); n > 0 && logData[n-1].Timestamp.After(latest) {
			latest = logData[n-1].Timestamp
		}
	}
	return latest
}

// Count returns the number of events in the store.
func (s *EventStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, logData := range s.logs {
		n += len(logData)
	}
	return n
}

// Clear drops every item and event.
func (s *EventStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]jira.WorkItem)
	s.logs = make(map[string][]IssueEvent)
}

// Load reads items and events from a JSONL file. A missing file is not an error.
func (s *EventStore) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer file.Close()

	var items []jira.WorkItem
	events := make(map[string][]IssueEvent)
	lines := 0

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var line cacheLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping invalid JSON line in cache")
			continue
		}
		switch {
		case line.Item != nil:
			items = append(items, *line.Item)
		case line.Event != nil:
			events[line.Event.IssueKey] = append(events[line.Event.IssueKey], *line.Event)
		}
		lines++
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading cache: %w", err)
	}

	s.PutItems(items...)
	for key, evts := range events {
		s.Append(key, evts)
	}
	for _, it := range items {
		s.Append(it.Key, nil)
	}

	log.Info().Str("path", path).Int("items", len(items)).Int("lines", lines).Msg("Loaded history from cache")
	return nil
}

// Save persists items and events to a JSONL file via a temp file and atomic rename.
func (s *EventStore) Save(path string) error {
	items := s.Items()

	s.mu.RLock()
	keys := make([]string, 0, len(s.logs))
	for k := range s.logs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	var events []IssueEvent
	for _, k := range keys {
		events = append(events, s.logs[k]...)
	}
	s.mu.RUnlock()

	if len(items) == 0 && len(events) == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	fail := func(err error) error {
		file.Close()
		os.Remove(tmpPath)
		return err
	}

	for i := range items {
		if err := encoder.Encode(cacheLine{Item: &items[i]}); err != nil {
			return fail(fmt.Errorf("failed to encode item: %w", err))
		}
	}
	for i := range events {
		if err := encoder.Encode(cacheLine{Event: &events[i]}); err != nil {
			return fail(fmt.Errorf("failed to encode event: %w", err))
		}
	}

	if err := writer.Flush(); err != nil {
		return fail(fmt.Errorf("failed to flush writer: %w", err))
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename cache file: %w", err)
	}

	log.Info().Str("path", path).Int("items", len(items)).Int("events", len(events)).Msg("History saved to cache")
	return nil
}
