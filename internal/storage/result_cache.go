// internal/storage/result_cache.go
package storage

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/digimarketingai/keyterms-server/internal/models"
)

// ResultCache 按请求指纹缓存提取结果
// 相同的提供者+模型+文本+过滤器组合在TTL内复用结果，避免重复计费
type ResultCache struct {
	entries    map[string]*resultCacheEntry
	mutex      sync.RWMutex
	maxSize    int
	expiration time.Duration
}

type resultCacheEntry struct {
	result    *models.ExtractionResult
	createdAt time.Time
}

// NewResultCache 创建结果缓存
func NewResultCache(maxSize int, expiration time.Duration) *ResultCache {
	if maxSize <= 0 {
		maxSize = 200
	}
	if expiration <= 0 {
		expiration = 30 * time.Minute
	}

	return &ResultCache{
		entries:    make(map[string]*resultCacheEntry),
		maxSize:    maxSize,
		expiration: expiration,
	}
}

// CacheKey 计算请求指纹
func CacheKey(provider, model string, req models.ExtractionRequest) string {
	payload := fmt.Sprintf("%s|%s|%s|%s|%d",
		provider, model, req.SourceText, req.DomainFilter, req.MaxTerms)
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Get 查询缓存，过期条目视为未命中
func (c *ResultCache) Get(key string) (*models.ExtractionResult, bool) {
	c.mutex.RLock()
	entry, exists := c.entries[key]
	c.mutex.RUnlock()

	if !exists {
		return nil, false
	}

	if time.Since(entry.createdAt) > c.expiration {
		c.mutex.Lock()
		delete(c.entries, key)
		c.mutex.Unlock()
		return nil, false
	}

	// 返回副本，调用方的修改不会污染缓存
	return entry.result.Clone(), true
}

// Set 写入缓存，超过容量时淘汰最旧的条目
func (c *ResultCache) Set(key string, result *models.ExtractionResult) {
	if result == nil {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = &resultCacheEntry{
		result:    result.Clone(),
		createdAt: time.Now(),
	}
}

// Clear 清空缓存
func (c *ResultCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries = make(map[string]*resultCacheEntry)
}

// Len 返回当前缓存条目数
func (c *ResultCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

// evictOldest 淘汰创建时间最早的条目，调用方需持有写锁
func (c *ResultCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.createdAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.createdAt
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
