package cache

import (
	"strings"
	"time"

	"github.com/fjfoyain/reservation-boss/internal/monitoring"
)

// MeteredCache 包装 Cache 并按视图记录命中率指标。
//
// 视图名取缓存键第一个冒号前的前缀，如 "week:..." 记为 week。
type MeteredCache struct {
	inner   Cache
	metrics *monitoring.Metrics
}

// NewMeteredCache 创建带指标记录的缓存。
func NewMeteredCache(inner Cache, metrics *monitoring.Metrics) *MeteredCache {
	return &MeteredCache{inner: inner, metrics: metrics}
}

// Get 读取缓存并记录命中或未命中。
func (m *MeteredCache) Get(key string) ([]byte, bool) {
	value, ok := m.inner.Get(key)
	if ok {
		m.metrics.RecordCacheHit(viewOf(key))
	} else {
		m.metrics.RecordCacheMiss(viewOf(key))
	}
	return value, ok
}

// Set 写入缓存。
func (m *MeteredCache) Set(key string, value []byte, ttl time.Duration) {
	m.inner.Set(key, value, ttl)
}

// Invalidate 按子串失效缓存键。
func (m *MeteredCache) Invalidate(pattern string) {
	m.inner.Invalidate(pattern)
}

// Clear 清空缓存。
func (m *MeteredCache) Clear() {
	m.inner.Clear()
}

func viewOf(key string) string {
	if i := strings.Index(key, ":"); i > 0 {
		return key[:i]
	}
	return key
}
