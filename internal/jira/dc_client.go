package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var standardFields = []string{"summary", "status", "assignee", "created", "updated"}

type dcClient struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter

	// Session Cache
	cache      map[string]*cacheEntry
	cacheMutex sync.Mutex
}

type cacheEntry struct {
	Value       any
	Expiration  time.Time
	AccessCount int
	OriginalTTL time.Duration
}

func NewDataCenterClient(cfg Config) Client {
	if cfg.RequestDelay == 0 {
		cfg.RequestDelay = 10 * time.Second
	}
	return &dcClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(cfg.RequestDelay), 1),
		cache:   make(map[string]*cacheEntry),
	}
}

func (c *dcClient) getFromCache(key string) (any, bool) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	entry, ok := c.cache[key]
	if !ok {
		log.Debug().Str("key", key).Msg("Cache miss")
		return nil, false
	}

	if time.Now().After(entry.Expiration) {
		delete(c.cache, key)
		return nil, false
	}
	log.Debug().Str("key", key).Msg("Cache hit")

	// Sliding window extension
	if entry.AccessCount < 6 {
		entry.Expiration = time.Now().Add(entry.OriginalTTL)
		entry.AccessCount++
		log.Trace().Str("key", key).Int("count", entry.AccessCount).Msg("Extended cache TTL")
	}

	return entry.Value, true
}

func (c *dcClient) addToCache(key string, value any, ttl time.Duration) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	c.cache[key] = &cacheEntry{
		Value:       value,
		Expiration:  time.Now().Add(ttl),
		OriginalTTL: ttl,
		AccessCount: 1,
	}
	log.Debug().Str("key", key).Dur("ttl", ttl).Msg("Added to cache")
}

func (c *dcClient) throttle(ctx context.Context) error {
	r := c.limiter.Reserve()
	if wait := r.Delay(); wait > 0 {
		log.Debug().Dur("wait", wait).Msg("Throttling Jira request")
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			r.Cancel()
			return ctx.Err()
		}
	}
	return nil
}

func (c *dcClient) authenticateRequest(req *http.Request) {
	// 1. Prioritize Personal Access Token (PAT)
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.Token))
		return
	}

	// 2. Fallback to session cookies
	cookies := []struct {
		name  string
		value string
	}{
		{"atlassian.xsrf.token", c.cfg.XsrfToken},
		{"JSESSIONID", c.cfg.SessionID},
		{"seraph.rememberme.cookie", c.cfg.RememberMe},
		{"GCILB", c.cfg.GCILB},
		{"GCLB", c.cfg.GCLB},
	}

	var cookiePairs []string
	for _, cookie := range cookies {
		if cookie.value != "" {
			// Built by hand: net/http's RFC 6265 validation drops GCLB values containing quotes.
			cookiePairs = append(cookiePairs, fmt.Sprintf("%s=%s", cookie.name, cookie.value))
		}
	}

	if len(cookiePairs) > 0 {
		req.Header.Set("Cookie", strings.Join(cookiePairs, "; "))
	}
}

func (c *dcClient) fieldList() string {
	return strings.Join(append(append([]string{}, standardFields...), c.cfg.Fields.IDs()...), ",")
}

func (c *dcClient) SearchIssuesWithHistory(ctx context.Context, jql string, startAt int, maxResults int) (*SearchResponse, error) {
	cacheKey := fmt.Sprintf("search:%s:%d:%d", jql, startAt, maxResults)
	if val, ok := c.getFromCache(cacheKey); ok {
		return val.(*SearchResponse), nil
	}

	params := url.Values{}
	params.Set("jql", jql)
	params.Set("startAt", strconv.Itoa(startAt))
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("fields", c.fieldList())
	params.Set("expand", "changelog")

	searchURL := fmt.Sprintf("%s/rest/api/2/search?%s", c.cfg.BaseURL, params.Encode())
	log.Info().Int("startAt", startAt).Msg("Requesting issues from Jira")
	log.Debug().Str("url", searchURL).Str("jql", jql).Msg("Jira search details")

	var result SearchResponse
	if err := c.get(ctx, searchURL, "search", &result); err != nil {
		return nil, err
	}

	c.addToCache(cacheKey, &result, 10*time.Minute)
	return &result, nil
}

func (c *dcClient) GetIssueWithHistory(ctx context.Context, key string) (*IssueDTO, error) {
	cacheKey := "issue:" + key
	if val, ok := c.getFromCache(cacheKey); ok {
		return val.(*IssueDTO), nil
	}

	params := url.Values{}
	params.Set("fields", c.fieldList())
	params.Set("expand", "changelog")

	issueURL := fmt.Sprintf("%s/rest/api/2/issue/%s?%s", c.cfg.BaseURL, url.PathEscape(key), params.Encode())

	var issue IssueDTO
	if err := c.get(ctx, issueURL, "issue "+key, &issue); err != nil {
		return nil, err
	}

	c.addToCache(cacheKey, &issue, 5*time.Minute)
	return &issue, nil
}

func (c *dcClient) get(ctx context.Context, target, what string, out any) error {
	if err := c.throttle(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	c.authenticateRequest(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s not found", what)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("jira authentication failed (%d): check token or session cookies", resp.StatusCode)
		case http.StatusTooManyRequests:
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				return fmt.Errorf("jira rate limit exceeded (429): retry after %s seconds", retryAfter)
			}
			return fmt.Errorf("jira rate limit exceeded (429)")
		default:
			return fmt.Errorf("jira API returned status %d for %s", resp.StatusCode, what)
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", what, err)
	}
	return nil
}
