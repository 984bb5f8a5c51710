package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/code-sigs/go-resilient/pkg/cache"
	"github.com/code-sigs/go-resilient/pkg/errs"
	"github.com/code-sigs/go-resilient/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisConfig Redis配置
type RedisConfig struct {
	Address      []string `mapstructure:"address"`      // 地址 host:port
	Password     string   `mapstructure:"password"`     // 密码
	DB           int      `mapstructure:"db"`           // 数据库编号
	PoolSize     int      `mapstructure:"poolSize"`     // 连接池大小
	MinIdleConns int      `mapstructure:"minIdleConns"` // 最小空闲连接数
	KeyPrefix    string   `mapstructure:"keyPrefix"`    // 键前缀
}

// RedisCache 基于 redis 的响应缓存实现。
// TTL 由 redis 过期机制承载；容量上限不在此层强制，依赖 redis 自身的
// maxmemory 淘汰策略。
type RedisCache struct {
	client redis.UniversalClient
	cfg    *cache.Config
	prefix string
}

func NewRedisCache(rc *RedisConfig, cfg *cache.Config) (*RedisCache, error) {
	if rc == nil || len(rc.Address) == 0 {
		return nil, errs.New("redis cache: at least one address required")
	}
	var rdb redis.UniversalClient
	if len(rc.Address) > 1 {
		rdb = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        rc.Address,
			Password:     rc.Password,
			PoolSize:     rc.PoolSize,
			MinIdleConns: rc.MinIdleConns,
		})
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr:         rc.Address[0],
			Password:     rc.Password,
			DB:           rc.DB,
			PoolSize:     rc.PoolSize,
			MinIdleConns: rc.MinIdleConns,
		})
	}

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("connect to redis failed: %v", err)
	}

	prefix := rc.KeyPrefix
	if prefix == "" {
		prefix = "resilient:"
	}
	return &RedisCache{
		client: rdb,
		cfg:    cfg.Normalize(),
		prefix: prefix,
	}, nil
}

func (r *RedisCache) Get(ctx context.Context, key cache.Key) ([]byte, bool) {
	val, err := r.client.Get(ctx, r.prefix+key.String()).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warnw("redis cache get failed", "key", key.String(), "error", err)
		}
		return nil, false
	}
	return val, true
}

func (r *RedisCache) Put(ctx context.Context, key cache.Key, val []byte) {
	if err := r.client.Set(ctx, r.prefix+key.String(), val, r.cfg.TTL).Err(); err != nil {
		// 缓存写失败只降级，不影响调用方
		logger.Warnw("redis cache put failed", "key", key.String(), "error", err)
	}
}

func (r *RedisCache) Delete(ctx context.Context, key cache.Key) {
	if err := r.client.Del(ctx, r.prefix+key.String()).Err(); err != nil {
		logger.Warnw("redis cache delete failed", "key", key.String(), "error", err)
	}
}

// TTL 查询某个键的剩余存活时间
func (r *RedisCache) TTL(ctx context.Context, key cache.Key) (time.Duration, error) {
	return r.client.TTL(ctx, r.prefix+key.String()).Result()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
