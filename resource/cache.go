package resource

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/pitabwire/util"
)

type cacheKey struct {
	kind       Kind
	businessID int64
	id         string
	query      string
}

func listKey(kind Kind, businessID int64, query url.Values) cacheKey {
	return cacheKey{kind: kind, businessID: businessID, query: query.Encode()}
}

func itemKey(kind Kind, businessID int64, id string) cacheKey {
	return cacheKey{kind: kind, businessID: businessID, id: id}
}

// Cache holds raw responses keyed by kind, business, record and query.
// A fetch that started before an invalidation returns its result to its
// caller but never populates the cache.
type Cache struct {
	mu          sync.Mutex
	entries     map[cacheKey]json.RawMessage
	generation  uint64
	kindEpochs  map[Kind]uint64
	fetches     atomic.Int64
	invalidated atomic.Int64
}

func NewCache() *Cache {
	return &Cache{
		entries:    map[cacheKey]json.RawMessage{},
		kindEpochs: map[Kind]uint64{},
	}
}

// Fetches counts calls that went to the backend.
func (c *Cache) Fetches() int64 {
	return c.fetches.Load()
}

// Invalidations counts InvalidateAll calls.
func (c *Cache) Invalidations() int64 {
	return c.invalidated.Load()
}

// Len is the number of cached responses.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// InvalidateAll drops every cached response.
func (c *Cache) InvalidateAll(ctx context.Context) {
	c.mu.Lock()
	dropped := len(c.entries)
	clear(c.entries)
	c.generation++
	c.mu.Unlock()

	c.invalidated.Add(1)
	util.Log(ctx).WithField("dropped", dropped).Debug("resource cache invalidated")
}

// InvalidateKind drops every cached response of kind.
func (c *Cache) InvalidateKind(kind Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.kind == kind {
			delete(c.entries, k)
		}
	}
	c.kindEpochs[kind]++
}

func (c *Cache) epoch(kind Kind) (uint64, uint64) {
	return c.generation, c.kindEpochs[kind]
}

func (c *Cache) fetch(
	ctx context.Context,
	key cacheKey,
	load func(ctx context.Context) (json.RawMessage, error),
) (json.RawMessage, error) {
	c.mu.Lock()
	if raw, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return raw, nil
	}
	gen, kindGen := c.epoch(key.kind)
	c.mu.Unlock()

	c.fetches.Add(1)
	raw, err := load(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if g, kg := c.epoch(key.kind); g == gen && kg == kindGen {
		c.entries[key] = raw
	}
	c.mu.Unlock()

	return raw, nil
}
