package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dsemenov/linkshrink/internal/entity"
)

type memoryEntry struct {
	url       entity.URL
	expiresAt time.Time
}

// Memory is a map-backed cache for tests and demo deployments.
type Memory struct {
	mu    sync.Mutex
	items map[string]memoryEntry
}

func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]memoryEntry),
	}
}

func (c *Memory) Get(_ context.Context, shortCode string) (*entity.URL, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[shortCode]
	if !ok {
		return nil, nil
	}

	if time.Now().After(entry.expiresAt) {
		delete(c.items, shortCode)
		return nil, nil
	}

	url := entry.url
	return &url, nil
}

func (c *Memory) Set(_ context.Context, url *entity.URL, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[url.ShortCode] = memoryEntry{
		url:       *url,
		expiresAt: time.Now().Add(ttl),
	}

	return nil
}
