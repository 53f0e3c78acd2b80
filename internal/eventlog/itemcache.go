package eventlog

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"jira-dashboard/internal/jira"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultItemListTTL is how long a fetched item list is served before refetching.
const DefaultItemListTTL = 5 * time.Minute

// ItemListCache memoises the full item list with a TTL.
// Concurrent misses share a single underlying fetch. A fetch started before Invalidate
// never repopulates the cache.
type ItemListCache struct {
	source HistoryProvider
	ttl    time.Duration
	now    func() time.Time

	mu        sync.RWMutex
	items     []jira.WorkItem
	fetchedAt time.Time
	valid     bool
	gen       uint64

	group singleflight.Group
}

// NewItemListCache wraps source; a non-positive ttl uses DefaultItemListTTL.
func NewItemListCache(source HistoryProvider, ttl time.Duration) *ItemListCache {
	if ttl <= 0 {
		ttl = DefaultItemListTTL
	}
	return &ItemListCache{
		source: source,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Get returns the memoised list, refetching when expired or invalidated.
// Callers receive their own copy.
func (c *ItemListCache) Get(ctx context.Context) ([]jira.WorkItem, error) {
	c.mu.RLock()
	if c.valid && c.now().Sub(c.fetchedAt) < c.ttl {
		items := slices.Clone(c.items)
		c.mu.RUnlock()
		return items, nil
	}
	gen := c.gen
	c.mu.RUnlock()

	// The shared fetch outlives any single caller; each caller still honours its own ctx.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan("items/"+strconv.FormatUint(gen, 10), func() (any, error) {
		items, err := c.source.ListItems(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.items = items
			c.fetchedAt = c.now()
			c.valid = true
		}
		c.mu.Unlock()
		log.Debug().Int("count", len(items)).Msg("Item list refreshed")
		return items, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			log.Trace().Msg("Item list fetch shared with concurrent caller")
		}
		return slices.Clone(res.Val.([]jira.WorkItem)), nil
	}
}

// Find returns the item with the given key from the memoised list.
func (c *ItemListCache) Find(ctx context.Context, key string) (jira.WorkItem, bool, error) {
	items, err := c.Get(ctx)
	if err != nil {
		return jira.WorkItem{}, false, err
	}
	for _, it := range items {
		if it.Key == key {
			return it, true, nil
		}
	}
	return jira.WorkItem{}, false, nil
}

// Invalidate forces the next Get to refetch.
func (c *ItemListCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
	c.items = nil
	c.gen++
}
