package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCache_PutGet(t *testing.T) {
	c := NewMemoryCache(nil)
	ctx := context.Background()
	key := Key{Service: "patients", Resource: "42"}

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	c.Put(ctx, key, []byte("alice"))
	val, ok := c.Get(ctx, key)
	assert.True(t, ok)
	assert.Equal(t, []byte("alice"), val)

	// 覆盖写
	c.Put(ctx, key, []byte("bob"))
	val, _ = c.Get(ctx, key)
	assert.Equal(t, []byte("bob"), val)

	c.Delete(ctx, key)
	_, ok = c.Get(ctx, key)
	assert.False(t, ok)
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	c := NewMemoryCache(&Config{TTL: 60 * time.Second, MaxSize: 10})
	ctx := context.Background()
	key := Key{Service: "patients", Resource: "42"}

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Put(ctx, key, []byte("alice"))

	c.now = func() time.Time { return base.Add(59 * time.Second) }
	_, ok := c.Get(ctx, key)
	assert.True(t, ok)

	// 到达 TTL 即失效
	c.now = func() time.Time { return base.Add(60 * time.Second) }
	_, ok = c.Get(ctx, key)
	assert.False(t, ok)

	// 过期条目在下一次写入时被清理
	assert.Equal(t, 1, c.Len())
	c.Put(ctx, Key{Service: "patients", Resource: "43"}, []byte("bob"))
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_CapacityEviction(t *testing.T) {
	c := NewMemoryCache(&Config{TTL: time.Minute, MaxSize: 2})
	ctx := context.Background()

	base := time.Now()
	keyA := Key{Service: "patients", Resource: "a"}
	keyB := Key{Service: "patients", Resource: "b"}
	keyC := Key{Service: "patients", Resource: "c"}

	c.now = func() time.Time { return base }
	c.Put(ctx, keyA, []byte("a"))
	c.now = func() time.Time { return base.Add(time.Millisecond) }
	c.Put(ctx, keyB, []byte("b"))
	c.now = func() time.Time { return base.Add(2 * time.Millisecond) }
	c.Put(ctx, keyC, []byte("c"))

	// 最旧的 A 被剔除，B/C 仍命中
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(ctx, keyA)
	assert.False(t, ok)
	_, ok = c.Get(ctx, keyB)
	assert.True(t, ok)
	_, ok = c.Get(ctx, keyC)
	assert.True(t, ok)
}

func TestMemoryCache_OverwriteResetsAge(t *testing.T) {
	c := NewMemoryCache(&Config{TTL: time.Minute, MaxSize: 2})
	ctx := context.Background()

	base := time.Now()
	keyA := Key{Service: "patients", Resource: "a"}
	keyB := Key{Service: "patients", Resource: "b"}
	keyC := Key{Service: "patients", Resource: "c"}

	c.now = func() time.Time { return base }
	c.Put(ctx, keyA, []byte("a1"))
	c.now = func() time.Time { return base.Add(time.Millisecond) }
	c.Put(ctx, keyB, []byte("b"))

	// 重写 A 刷新 insertedAt，之后容量剔除的应是 B
	c.now = func() time.Time { return base.Add(2 * time.Millisecond) }
	c.Put(ctx, keyA, []byte("a2"))
	c.now = func() time.Time { return base.Add(3 * time.Millisecond) }
	c.Put(ctx, keyC, []byte("c"))

	_, ok := c.Get(ctx, keyB)
	assert.False(t, ok)
	val, ok := c.Get(ctx, keyA)
	assert.True(t, ok)
	assert.Equal(t, []byte("a2"), val)
}

func TestMemoryCache_Stat(t *testing.T) {
	c := NewMemoryCache(nil)
	ctx := context.Background()
	key := Key{Service: "patients", Resource: "42"}

	c.Get(ctx, key)
	c.Put(ctx, key, []byte("alice"))
	c.Get(ctx, key)

	stat := c.Stat()
	assert.Equal(t, uint64(1), stat.Hits)
	assert.Equal(t, uint64(1), stat.Misses)
	assert.InDelta(t, 0.5, stat.Ratio(), 0.001)
}
