// Package namecache layers a small TTL-bound read cache over a
// DisplayNameStore so snapshot enrichment does not hammer the registry
// on every recompute. Writes pass through and invalidate the cached
// entry, so a successful name update is visible immediately.
package namecache

import (
	"context"
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"rentfree/internal/domain"
	"rentfree/internal/observability"
	"rentfree/internal/storage"
)

// Default cache sizing.
const (
	DefaultMaxEntries = 1024
	DefaultTTL        = time.Minute
)

type cacheEntry struct {
	name     string
	found    bool // negative entries cache ErrNotFound too
	storedAt time.Time
}

// DisplayNameCache implements storage.DisplayNameStore with a
// read-through LRU cache in front of the underlying store.
type DisplayNameCache struct {
	inner storage.DisplayNameStore
	ttl   time.Duration

	mu    sync.RWMutex
	store *lru.Cache[string, cacheEntry]

	now func() time.Time
}

// New creates a DisplayNameCache over inner. maxEntries <= 0 falls back
// to DefaultMaxEntries; ttl <= 0 falls back to DefaultTTL.
func New(inner storage.DisplayNameStore, maxEntries int, ttl time.Duration) *DisplayNameCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	store, _ := lru.New[string, cacheEntry](maxEntries)
	return &DisplayNameCache{
		inner: inner,
		ttl:   ttl,
		store: store,
		now:   time.Now,
	}
}

// Compile-time interface check.
var _ storage.DisplayNameStore = (*DisplayNameCache)(nil)

// Upsert writes through to the underlying store and refreshes the
// cached entry on success.
func (c *DisplayNameCache) Upsert(ctx context.Context, wallet, name string, updatedAt int64) (*domain.DisplayNameRecord, error) {
	rec, err := c.inner.Upsert(ctx, wallet, name, updatedAt)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.store.Add(wallet, cacheEntry{name: rec.Name, found: true, storedAt: c.now()})
	c.mu.Unlock()

	return rec, nil
}

// Get retrieves the record for a wallet, serving from cache when fresh.
func (c *DisplayNameCache) Get(ctx context.Context, wallet string) (*domain.DisplayNameRecord, error) {
	if name, found, ok := c.lookup(wallet); ok {
		if !found {
			return nil, storage.ErrNotFound
		}
		return &domain.DisplayNameRecord{Wallet: wallet, Name: name}, nil
	}

	rec, err := c.inner.Get(ctx, wallet)
	if errors.Is(err, storage.ErrNotFound) {
		c.add(wallet, "", false)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	c.add(wallet, rec.Name, true)
	return rec, nil
}

// GetMany retrieves names for a set of wallets, fetching only the
// wallets the cache cannot answer.
func (c *DisplayNameCache) GetMany(ctx context.Context, wallets []string) (map[string]string, error) {
	names := make(map[string]string, len(wallets))
	var misses []string

	for _, w := range wallets {
		name, found, ok := c.lookup(w)
		switch {
		case ok && found:
			names[w] = name
		case ok && !found:
			// cached absence, nothing to fetch
		default:
			misses = append(misses, w)
		}
	}

	if len(misses) == 0 {
		return names, nil
	}

	fetched, err := c.inner.GetMany(ctx, misses)
	if err != nil {
		return nil, err
	}

	for _, w := range misses {
		name, found := fetched[w]
		c.add(w, name, found)
		if found {
			names[w] = name
		}
	}

	return names, nil
}

// lookup returns (name, found, ok): ok reports whether a fresh cache
// entry exists; found reports whether the wallet has a name.
func (c *DisplayNameCache) lookup(wallet string) (string, bool, bool) {
	c.mu.RLock()
	entry, ok := c.store.Get(wallet)
	c.mu.RUnlock()
	if !ok {
		observability.RecordNameCacheLookup(false)
		return "", false, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		c.mu.Lock()
		c.store.Remove(wallet)
		c.mu.Unlock()
		observability.RecordNameCacheLookup(false)
		return "", false, false
	}
	observability.RecordNameCacheLookup(true)
	return entry.name, entry.found, true
}

func (c *DisplayNameCache) add(wallet, name string, found bool) {
	c.mu.Lock()
	c.store.Add(wallet, cacheEntry{name: name, found: found, storedAt: c.now()})
	c.mu.Unlock()
}
