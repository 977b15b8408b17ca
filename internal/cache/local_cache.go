package cache

import (
	"strings"
	"sync"
	"time"
)

// LocalCache 进程内缓存实现。
//
// 特点：
// - 使用 sync.Map 实现无锁读取
// - 支持 TTL 过期
// - 自动清理过期条目
type LocalCache struct {
	data sync.Map
	ttl  time.Duration
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewLocalCache 创建本地缓存，ttl 为默认过期时间。
func NewLocalCache(ttl time.Duration) *LocalCache {
	cache := &LocalCache{
		ttl: ttl,
	}

	// 启动定期清理
	go cache.cleanupLoop()

	return cache
}

// Get 获取缓存值
func (c *LocalCache) Get(key string) ([]byte, bool) {
	val, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}

	entry := val.(*cacheEntry)

	// 检查是否过期
	if time.Now().After(entry.expiresAt) {
		c.data.Delete(key)
		return nil, false
	}

	return entry.value, true
}

// Set 设置缓存值
func (c *LocalCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.ttl
	}

	entry := &cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}

	c.data.Store(key, entry)
}

// Invalidate 删除键名包含 pattern 的全部条目。
func (c *LocalCache) Invalidate(pattern string) {
	c.data.Range(func(key, _ interface{}) bool {
		if strings.Contains(key.(string), pattern) {
			c.data.Delete(key)
		}
		return true
	})
}

// Clear 清空所有缓存
func (c *LocalCache) Clear() {
	c.data.Range(func(key, _ interface{}) bool {
		c.data.Delete(key)
		return true
	})
}

// cleanupLoop 定期清理过期条目
func (c *LocalCache) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		c.data.Range(func(key, value interface{}) bool {
			entry := value.(*cacheEntry)
			if now.After(entry.expiresAt) {
				c.data.Delete(key)
			}
			return true
		})
	}
}
