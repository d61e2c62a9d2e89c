package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type inMemoryItem struct {
	value      string
	expiration time.Time
}

func (i *inMemoryItem) isExpired() bool {
	if i.expiration.IsZero() {
		return false
	}
	return time.Now().After(i.expiration)
}

// InMemory is a thread-safe in-memory backend. It is the default for
// tab-scoped state and for tests.
type InMemory struct {
	items      sync.Map // map[string]*inMemoryItem
	maxAge     time.Duration
	cleanupMu  sync.Mutex
	stopClean  chan struct{}
	cleanupInt time.Duration
}

const defaultCleanupInterval = 5 * time.Minute

// NewInMemory creates a new in-memory backend.
func NewInMemory(opts ...Option) *InMemory {
	o := NewOptions(opts...)
	mem := &InMemory{
		maxAge:     o.MaxAge,
		stopClean:  make(chan struct{}),
		cleanupInt: defaultCleanupInterval,
	}

	if mem.maxAge > 0 {
		go mem.startCleanup()
	}

	return mem
}

func (c *InMemory) startCleanup() {
	ticker := time.NewTicker(c.cleanupInt)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopClean:
			return
		}
	}
}

func (c *InMemory) cleanup() {
	c.items.Range(func(key, value any) bool {
		item, ok := value.(*inMemoryItem)
		if ok && item.isExpired() {
			c.items.Delete(key)
		}
		return true
	})
}

func (c *InMemory) Get(_ context.Context, key string) (string, bool, error) {
	value, ok := c.items.Load(key)
	if !ok {
		return "", false, nil
	}

	item, ok := value.(*inMemoryItem)
	if !ok || item.isExpired() {
		c.items.Delete(key)
		return "", false, nil
	}

	return item.value, true, nil
}

func (c *InMemory) Set(_ context.Context, key string, value string) error {
	item := &inMemoryItem{value: value}
	if c.maxAge > 0 {
		item.expiration = time.Now().Add(c.maxAge)
	}

	c.items.Store(key, item)
	return nil
}

func (c *InMemory) Delete(_ context.Context, key string) error {
	c.items.Delete(key)
	return nil
}

func (c *InMemory) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	c.items.Range(func(key, value any) bool {
		k, _ := key.(string)
		item, ok := value.(*inMemoryItem)
		if ok && !item.isExpired() && strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
		return true
	})
	sort.Strings(keys)
	return keys, nil
}

// Close stops the cleanup goroutine.
func (c *InMemory) Close() error {
	c.cleanupMu.Lock()
	defer c.cleanupMu.Unlock()

	select {
	case <-c.stopClean:
		return nil
	default:
		close(c.stopClean)
	}

	return nil
}
