// internal/storage/local_cache.go
package storage

import (
	"sync"
	"time"
)

// LocalCache 本地快速缓存，按规范键存放自包含载荷
// 写入是last-write-wins；核心不做主动过期，条目只会被后续写入覆盖
type LocalCache struct {
	entries map[string]*CacheEntry
	mutex   sync.RWMutex
}

// CacheEntry 缓存条目
type CacheEntry struct {
	Key          string
	Payload      string // data URI形式的自包含载荷
	ResourceType string
	Timestamp    time.Time
}

// NewLocalCache 创建本地缓存
func NewLocalCache() *LocalCache {
	return &LocalCache{
		entries: make(map[string]*CacheEntry),
	}
}

// Get 按规范键查缓存
func (c *LocalCache) Get(key string) (*CacheEntry, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.entries[key]
	return entry, exists
}

// Put 写入缓存，覆盖同键旧值
func (c *LocalCache) Put(key, payload, resourceType string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = &CacheEntry{
		Key:          key,
		Payload:      payload,
		ResourceType: resourceType,
		Timestamp:    time.Now(),
	}
	return nil
}

// Delete 删除指定键
func (c *LocalCache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.entries, key)
}

// Len 当前条目数
func (c *LocalCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

// Clear 清空缓存
func (c *LocalCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries = make(map[string]*CacheEntry)
}
