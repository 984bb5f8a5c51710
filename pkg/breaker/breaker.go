package breaker

import (
	"sync"
	"time"
)

// breaker: 依赖故障隔离，防止级联雪崩

// Breaker 单个依赖的熔断器。
// Allow 返回 false 表示请求应被短路，直接走降级；Success/Failure 上报
// 每次真实调用的结果，驱动状态迁移。实现必须支持多协程并发调用。
type Breaker interface {
	Allow() bool
	Success()
	Failure()
	State() State
}

// Config 滑动窗口熔断配置
type Config struct {
	Window       int           `mapstructure:"window"`       // 滑动窗口大小(最近 N 次调用)
	MinSamples   int           `mapstructure:"minSamples"`   // 触发熔断的最小样本数
	FailureRatio float64       `mapstructure:"failureRatio"` // 失败率阈值
	Cooldown     time.Duration `mapstructure:"cooldown"`     // Open 状态冷却时间
}

func DefaultConfig() *Config {
	return &Config{
		Window:       10,
		MinSamples:   4,
		FailureRatio: 0.5,
		Cooldown:     30 * time.Second,
	}
}

// Normalize 补齐零值字段
func (c *Config) Normalize() *Config {
	if c == nil {
		return DefaultConfig()
	}
	def := DefaultConfig()
	if c.Window <= 0 {
		c.Window = def.Window
	}
	if c.MinSamples <= 0 {
		c.MinSamples = def.MinSamples
	}
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		c.FailureRatio = def.FailureRatio
	}
	if c.Cooldown <= 0 {
		c.Cooldown = def.Cooldown
	}
	return c
}

// Group 按依赖名管理熔断器，锁粒度为单个依赖
type Group struct {
	breakers map[string]Breaker
	mu       sync.RWMutex
	factory  func(name string) Breaker
}

type Option func(*Group)

// WithFactory 替换默认的熔断器构造方式
func WithFactory(f func(name string) Breaker) Option {
	return func(g *Group) {
		g.factory = f
	}
}

func NewGroup(opts ...Option) *Group {
	g := &Group{
		breakers: make(map[string]Breaker),
		factory: func(string) Breaker {
			return NewWindowBreaker(nil)
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fetch 获取依赖对应的熔断器，不存在则创建
func (g *Group) Fetch(name string) Breaker {
	g.mu.RLock()
	b, ok := g.breakers[name]
	g.mu.RUnlock()
	if ok {
		return b
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok = g.breakers[name]; ok {
		return b
	}
	b = g.factory(name)
	g.breakers[name] = b
	return b
}
