package cache

import "time"

// Cache 定义周视图与汇总响应的缓存接口。
//
// 实现可以是进程内缓存或 Redis；调用方统一以序列化后的
// 字节为值，失效按键名子串匹配。
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	// Invalidate 删除键名包含 pattern 的全部条目。
	Invalidate(pattern string)
	// Clear 清空全部条目。
	Clear()
}
