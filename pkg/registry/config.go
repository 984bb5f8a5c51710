package registry

import "time"

// Config 注册表租约相关配置
type Config struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeatInterval"` // 心跳续约间隔
	LeaseTimeout      time.Duration `mapstructure:"leaseTimeout"`      // 租约超时时间
	SweepInterval     time.Duration `mapstructure:"sweepInterval"`     // 过期实例清理间隔
}

func DefaultConfig() *Config {
	return &Config{
		HeartbeatInterval: 30 * time.Second,
		LeaseTimeout:      90 * time.Second,
		SweepInterval:     10 * time.Second,
	}
}

// Normalize 补齐零值字段
func (c *Config) Normalize() *Config {
	if c == nil {
		return DefaultConfig()
	}
	def := DefaultConfig()
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.LeaseTimeout <= 0 {
		c.LeaseTimeout = def.LeaseTimeout
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	return c
}
