package schema

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/patrickmn/go-cache"
)

// CacheConfig configures a Cache.
type CacheConfig struct {
	// TTL evicts schemas after this long. Zero keeps them for the lifetime
	// of the cache.
	TTL time.Duration

	Logger hclog.Logger
}

// FetchFunc loads the schema of one dialog from the service.
type FetchFunc func(ctx context.Context) (*Schema, error)

// Cache holds schemas keyed by dialog. Each dialog is fetched at most once
// at a time; concurrent callers for the same dialog wait for that fetch.
type Cache struct {
	items  *cache.Cache
	logger hclog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCache creates an empty cache.
func NewCache(cfg CacheConfig) *Cache {
	ttl := cache.NoExpiration
	cleanup := cache.NoExpiration
	if cfg.TTL > 0 {
		ttl = cfg.TTL
		cleanup = cfg.TTL
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	return &Cache{
		items:  cache.New(ttl, cleanup),
		logger: cfg.Logger.Named("schema"),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Get returns the cached schema of dialogID, calling fetch on a miss.
// Failed fetches are not cached.
func (c *Cache) Get(ctx context.Context, dialogID string, fetch FetchFunc) (*Schema, error) {
	if s, ok := c.lookup(dialogID); ok {
		return s, nil
	}

	lock := c.keyLock(dialogID)
	lock.Lock()
	defer lock.Unlock()

	if s, ok := c.lookup(dialogID); ok {
		return s, nil
	}

	s, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.items.Set(dialogID, s, cache.DefaultExpiration)
	c.logger.Debug("cached dialog schema", "dialog", dialogID, "fields", s.Len())
	return s, nil
}

// Invalidate drops the schema of dialogID.
func (c *Cache) Invalidate(dialogID string) {
	c.items.Delete(dialogID)
}

func (c *Cache) lookup(dialogID string) (*Schema, bool) {
	v, found := c.items.Get(dialogID)
	if !found {
		return nil, false
	}
	return v.(*Schema), true
}

func (c *Cache) keyLock(dialogID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.locks[dialogID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[dialogID] = lock
	}
	return lock
}
