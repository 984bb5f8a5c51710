package cache

import (
	"context"
	"time"
)

// Key 缓存键：服务名 + 资源 id
type Key struct {
	Service  string
	Resource string
}

func (k Key) String() string {
	return k.Service + "/" + k.Resource
}

// Cache 短时响应缓存。纯优化层：任何路径在缓存缺失时都必须能正确(变慢)工作。
type Cache interface {
	Get(ctx context.Context, key Key) ([]byte, bool)
	Put(ctx context.Context, key Key, val []byte)
	Delete(ctx context.Context, key Key)
}

// Config 缓存配置
type Config struct {
	TTL     time.Duration `mapstructure:"ttl"`     // 条目存活时间
	MaxSize int           `mapstructure:"maxSize"` // 最大条目数
}

func DefaultConfig() *Config {
	return &Config{
		TTL:     60 * time.Second,
		MaxSize: 100,
	}
}

// Normalize 补齐零值字段
func (c *Config) Normalize() *Config {
	if c == nil {
		return DefaultConfig()
	}
	def := DefaultConfig()
	if c.TTL <= 0 {
		c.TTL = def.TTL
	}
	if c.MaxSize <= 0 {
		c.MaxSize = def.MaxSize
	}
	return c
}
