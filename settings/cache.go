package settings

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a fetched settings snapshot stays fresh.
const DefaultTTL = 5 * time.Minute

// fetchTimeout bounds a single store fetch. Get runs on the chat read path,
// so an unresponsive store must degrade to stale/default settings instead of
// stalling message intake.
const fetchTimeout = 3 * time.Second

// Source is the read interface the pipeline consumes.
type Source interface {
	Get(ctx context.Context, channel string) ChannelSettings
}

// Fetcher is the slow store behind the cache.
type Fetcher interface {
	Get(ctx context.Context, channel string) (ChannelSettings, error)
}

type cached struct {
	settings  ChannelSettings
	fetchedAt time.Time
}

// Cache is a TTL cache over a Fetcher with a three-tier resolution order:
// fresh cached value → freshly fetched value → stale cached value → defaults.
// Get never fails; settings unavailability must not stall the pipeline.
// Concurrent fetches for the same channel are collapsed via singleflight.
type Cache struct {
	fetcher  Fetcher
	defaults ChannelSettings
	ttl      time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]cached

	group singleflight.Group
}

// NewCache builds a settings cache. ttl <= 0 selects DefaultTTL.
func NewCache(fetcher Fetcher, defaults ChannelSettings, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		fetcher:  fetcher,
		defaults: defaults,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]cached),
	}
}

// Get resolves settings for a channel. On store failure it logs and degrades:
// last-known value if one exists (however stale), else the defaults.
func (c *Cache) Get(ctx context.Context, channel string) ChannelSettings {
	c.mu.RLock()
	e, ok := c.entries[channel]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.fetchedAt) < c.ttl {
		return e.settings
	}

	v, err, _ := c.group.Do(channel, func() (any, error) {
		fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		st, err := c.fetcher.Get(fctx, channel)
		if err != nil {
			return ChannelSettings{}, err
		}
		c.mu.Lock()
		c.entries[channel] = cached{settings: st, fetchedAt: c.now()}
		c.mu.Unlock()
		return st, nil
	})
	if err == nil {
		return v.(ChannelSettings)
	}

	if errors.Is(err, sql.ErrNoRows) {
		// Channel not configured: defaults are authoritative. Cache them so we
		// don't hit the store on every message for unconfigured channels.
		c.mu.Lock()
		c.entries[channel] = cached{settings: c.defaults, fetchedAt: c.now()}
		c.mu.Unlock()
		return c.defaults
	}

	slog.Warn("settings fetch failed", slog.String("channel", channel), slog.Any("err", err))
	if ok {
		return e.settings // stale beats nothing
	}
	return c.defaults
}

// Sweep drops entries older than the TTL so unconfigured or departed channels
// don't pin memory. The next Get refetches.
func (c *Cache) Sweep() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch, e := range c.entries {
		if now.Sub(e.fetchedAt) >= c.ttl {
			delete(c.entries, ch)
		}
	}
}

// Len reports the number of cached channels.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
