package resilient

import (
	"time"

	"github.com/code-sigs/go-resilient/pkg/breaker"
	"github.com/code-sigs/go-resilient/pkg/cache"
)

type Option func(*Client)

// WithCache 启用响应缓存，传 nil 等同于关闭
func WithCache(c cache.Cache) Option {
	return func(cl *Client) {
		cl.cache = c
	}
}

// WithBreakerGroup 替换默认熔断器组
func WithBreakerGroup(g *breaker.Group) Option {
	return func(cl *Client) {
		if g != nil {
			cl.breakers = g
		}
	}
}

// WithFallback 设置降级值生成器
func WithFallback(f Fallback) Option {
	return func(cl *Client) {
		if f != nil {
			cl.fallback = f
		}
	}
}

// WithTimeout 设置单次远程调用超时
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}
