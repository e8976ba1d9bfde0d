// internal/api/middleware.go
package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDMiddleware 为每个请求分配追踪ID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// RateLimiter 基于令牌桶的简单限流器
type RateLimiter struct {
	buckets map[string]*tokenBucket
	mutex   sync.Mutex
}

type tokenBucket struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter 创建限流器并启动过期桶清理
func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*tokenBucket),
	}

	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mutex.Lock()
		for key, bucket := range rl.buckets {
			if time.Since(bucket.windowStart) > 10*time.Minute {
				delete(rl.buckets, key)
			}
		}
		rl.mutex.Unlock()
	}
}

// Allow 检查指定键在窗口内是否还有配额
func (rl *RateLimiter) Allow(key string, limit int, window time.Duration) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	bucket, exists := rl.buckets[key]

	if !exists || now.Sub(bucket.windowStart) > window {
		rl.buckets[key] = &tokenBucket{count: 1, windowStart: now}
		return true
	}

	if bucket.count >= limit {
		return false
	}

	bucket.count++
	return true
}

// Headers 返回限流响应头的取值：limit、remaining、reset时间戳
func (rl *RateLimiter) Headers(key string, limit int, window time.Duration) (int, int, int64) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	bucket, exists := rl.buckets[key]
	if !exists {
		return limit, limit, time.Now().Add(window).Unix()
	}

	remaining := limit - bucket.count
	if remaining < 0 {
		remaining = 0
	}
	return limit, remaining, bucket.windowStart.Add(window).Unix()
}

var rateLimiter = NewRateLimiter()

// RateLimitMiddleware 创建限流中间件
func RateLimitMiddleware(limit int, window time.Duration, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)

		if !rateLimiter.Allow(key, limit, window) {
			l, remaining, reset := rateLimiter.Headers(key, limit, window)
			c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", l))
			c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", reset))

			c.AbortWithStatusJSON(http.StatusTooManyRequests, &APIResponse{
				Success: false,
				Error: &APIError{
					Code:    "RATE_LIMITED",
					Message: "请求过于频繁，请稍后再试",
				},
				Timestamp: time.Now(),
			})
			return
		}

		l, remaining, reset := rateLimiter.Headers(key, limit, window)
		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", l))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", reset))

		c.Next()
	}
}

// RateLimitByIP 按客户端IP限流
func RateLimitByIP(limit int, window time.Duration) gin.HandlerFunc {
	return RateLimitMiddleware(limit, window, func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	})
}

// ExtractRateLimit 提取接口的限流，调用模型的接口配额更紧
func ExtractRateLimit() gin.HandlerFunc {
	return RateLimitByIP(20, time.Minute)
}

// DefaultRateLimit 普通接口的默认限流
func DefaultRateLimit() gin.HandlerFunc {
	return RateLimitByIP(100, time.Minute)
}
