package storage

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/scor-analyzer/internal/errors"
	"github.com/scor-analyzer/internal/logging"
	"github.com/scor-analyzer/internal/types"
)

// DefaultResultTTL is the validity window of a cached analysis
const DefaultResultTTL = 24 * time.Hour

// CacheEntry is one stored analysis. Entries are replaced, never mutated.
type CacheEntry struct {
	SubjectKey string           `json:"subjectKey"`
	Result     types.RiskResult `json:"result"`
	StoredAt   time.Time        `json:"storedAt"`
}

// CacheEntryInfo describes an entry for the stats view
type CacheEntryInfo struct {
	Subject    string    `json:"subject"`
	StoredAt   time.Time `json:"storedAt"`
	AgeMinutes int       `json:"ageMinutes"`
	IsExpired  bool      `json:"isExpired"`
}

// CacheStats summarises the cache contents
type CacheStats struct {
	Backend    string           `json:"backend"`
	TTL        string           `json:"ttl"`
	TotalItems int              `json:"totalItems"`
	Entries    []CacheEntryInfo `json:"entries"`
}

// ResultCache keeps at most one fresh analysis per subject. Expiry is judged
// against the injected clock; the store TTL only reclaims space.
type ResultCache struct {
	store   EntryStore
	backend string
	ttl     time.Duration
	now     func() time.Time
	logger  *logging.Logger
}

// NewResultCache creates a cache over store. A nil clock means time.Now.
func NewResultCache(store EntryStore, backend string, ttl time.Duration, now func() time.Time, logger *logging.Logger) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &ResultCache{
		store:   store,
		backend: backend,
		ttl:     ttl,
		now:     now,
		logger:  logger.WithComponent("result_cache"),
	}
}

// SubjectKey normalizes a subject identifier for use as a cache key
func SubjectKey(subject string) string {
	return strings.ToLower(strings.TrimSpace(subject))
}

// TTL returns the validity window
func (c *ResultCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the fresh entry for subject, or nil. An expired entry is evicted.
func (c *ResultCache) Get(ctx context.Context, subject string) (*CacheEntry, error) {
	key := SubjectKey(subject)

	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, errors.NewCacheUnavailableError("get", err)
	}
	if !ok {
		return nil, nil
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// unreadable entries are dropped and recomputed
		c.logger.WithError(err).WithField("subject", key).Warn("Discarding corrupt cache entry")
		_ = c.store.Delete(ctx, key)
		return nil, nil
	}

	if c.expired(entry.StoredAt) {
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.WithError(err).WithField("subject", key).Warn("Failed to evict expired cache entry")
		}
		return nil, nil
	}

	return &entry, nil
}

// Put stores result for subject, replacing any previous entry
func (c *ResultCache) Put(ctx context.Context, subject string, result *types.RiskResult) (*CacheEntry, error) {
	entry := &CacheEntry{
		SubjectKey: SubjectKey(subject),
		Result:     *result,
		StoredAt:   c.now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return nil, errors.NewInternalError("failed to encode cache entry", err)
	}
	if err := c.store.Set(ctx, entry.SubjectKey, data, c.ttl); err != nil {
		return nil, errors.NewCacheUnavailableError("put", err)
	}
	return entry, nil
}

// InvalidateAll drops every entry and returns how many were removed
func (c *ResultCache) InvalidateAll(ctx context.Context) (int, error) {
	n, err := c.store.DeleteAll(ctx)
	if err != nil {
		return n, errors.NewCacheUnavailableError("invalidate", err)
	}
	c.logger.WithField("removed", n).Info("Result cache cleared")
	return n, nil
}

// Stats lists every stored entry with its age, newest first
func (c *ResultCache) Stats(ctx context.Context) (*CacheStats, error) {
	keys, err := c.store.Keys(ctx)
	if err != nil {
		return nil, errors.NewCacheUnavailableError("stats", err)
	}

	now := c.now()
	stats := &CacheStats{
		Backend: c.backend,
		TTL:     c.ttl.String(),
		Entries: make([]CacheEntryInfo, 0, len(keys)),
	}
	for _, key := range keys {
		data, ok, err := c.store.Get(ctx, key)
		if err != nil {
			return nil, errors.NewCacheUnavailableError("stats", err)
		}
		if !ok {
			continue
		}
		var entry CacheEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		stats.Entries = append(stats.Entries, CacheEntryInfo{
			Subject:    entry.SubjectKey,
			StoredAt:   entry.StoredAt,
			AgeMinutes: int(now.Sub(entry.StoredAt).Minutes()),
			IsExpired:  c.expired(entry.StoredAt),
		})
	}

	sort.Slice(stats.Entries, func(i, j int) bool {
		return stats.Entries[i].StoredAt.After(stats.Entries[j].StoredAt)
	})
	stats.TotalItems = len(stats.Entries)
	return stats, nil
}

// Ping reports whether the backing store answers
func (c *ResultCache) Ping(ctx context.Context) error {
	if _, _, err := c.store.Get(ctx, "__ping__"); err != nil {
		return errors.NewCacheUnavailableError("ping", err)
	}
	return nil
}

func (c *ResultCache) expired(storedAt time.Time) bool {
	return c.now().Sub(storedAt) >= c.ttl
}
