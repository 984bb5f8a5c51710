package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	val        []byte
	insertedAt time.Time
}

// MemoryCache 进程内 TTL 缓存，容量超限时按插入时间最旧优先剔除。
// 过期条目读侧视为 miss，写侧顺带清理，不需要独立清理线程。
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[Key]*entry
	cfg     *Config
	stat    *Stat
	now     func() time.Time // 测试时可替换
}

func NewMemoryCache(cfg *Config) *MemoryCache {
	return &MemoryCache{
		entries: make(map[Key]*entry),
		cfg:     cfg.Normalize(),
		stat:    &Stat{},
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key Key) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.insertedAt) >= c.cfg.TTL {
		c.stat.miss()
		return nil, false
	}
	c.stat.hit()
	return e.val, true
}

func (c *MemoryCache) Put(ctx context.Context, key Key, val []byte) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	// 写侧顺带清理过期条目
	for k, e := range c.entries {
		if now.Sub(e.insertedAt) >= c.cfg.TTL {
			delete(c.entries, k)
		}
	}

	c.entries[key] = &entry{val: val, insertedAt: now}

	// 容量超限，剔除最旧条目
	for len(c.entries) > c.cfg.MaxSize {
		var oldest Key
		var oldestAt time.Time
		first := true
		for k, e := range c.entries {
			if first || e.insertedAt.Before(oldestAt) {
				oldest = k
				oldestAt = e.insertedAt
				first = false
			}
		}
		delete(c.entries, oldest)
	}
}

func (c *MemoryCache) Delete(ctx context.Context, key Key) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len 当前条目数（含尚未清理的过期条目）
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) Stat() StatSnapshot {
	return c.stat.snapshot()
}
