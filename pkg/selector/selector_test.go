package selector

import (
	"context"
	"testing"
	"time"

	"github.com/code-sigs/go-resilient/pkg/errs"
	"github.com/code-sigs/go-resilient/pkg/registry"
	"github.com/code-sigs/go-resilient/pkg/registry/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, addrs ...string) *memory.MemoryRegistry {
	reg := memory.NewMemoryRegistry(&registry.Config{SweepInterval: time.Hour})
	t.Cleanup(func() { reg.Close() })
	for _, addr := range addrs {
		require.NoError(t, reg.Register(context.Background(), &registry.ServiceInstance{
			Name:    "patients",
			Address: addr,
		}))
	}
	return reg
}

func TestSelector_RoundRobin(t *testing.T) {
	reg := newTestRegistry(t, "x:1", "y:2", "z:3")
	sel := New(reg)
	ctx := context.Background()

	// N 次连续调用，每个实例恰好被选中一次，第 N+1 次回绕
	seen := make(map[string]int)
	var first string
	for i := 0; i < 3; i++ {
		ins, err := sel.Pick(ctx, "patients")
		require.NoError(t, err)
		if i == 0 {
			first = ins.Address
		}
		seen[ins.Address]++
	}
	assert.Len(t, seen, 3)
	for addr, n := range seen {
		assert.Equal(t, 1, n, "instance %s picked %d times", addr, n)
	}

	ins, err := sel.Pick(ctx, "patients")
	require.NoError(t, err)
	assert.Equal(t, first, ins.Address)
}

func TestSelector_NoInstance(t *testing.T) {
	reg := newTestRegistry(t)
	sel := New(reg)

	_, err := sel.Pick(context.Background(), "patients")
	assert.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.ErrorNoInstance))
}

func TestSelector_SkipsUnhealthy(t *testing.T) {
	reg := newTestRegistry(t, "x:1", "y:2")
	reg.SetHealthy("patients", "x:1", false)
	sel := New(reg)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		ins, err := sel.Pick(ctx, "patients")
		require.NoError(t, err)
		assert.Equal(t, "y:2", ins.Address)
	}
}

func TestSelector_InstanceSetChange(t *testing.T) {
	reg := newTestRegistry(t, "x:1", "y:2", "z:3")
	sel := New(reg)
	ctx := context.Background()

	_, err := sel.Pick(ctx, "patients")
	require.NoError(t, err)

	// 实例集合缩小后游标按新长度取模，不会越界
	require.NoError(t, reg.Unregister(ctx, "patients", "z:3"))
	for i := 0; i < 5; i++ {
		ins, err := sel.Pick(ctx, "patients")
		require.NoError(t, err)
		assert.Contains(t, []string{"x:1", "y:2"}, ins.Address)
	}
}

func TestSelector_IndependentCursors(t *testing.T) {
	reg := memory.NewMemoryRegistry(&registry.Config{SweepInterval: time.Hour})
	t.Cleanup(func() { reg.Close() })
	ctx := context.Background()
	for _, svc := range []string{"patients", "orders"} {
		for _, addr := range []string{"a:1", "b:2"} {
			require.NoError(t, reg.Register(ctx, &registry.ServiceInstance{Name: svc, Address: addr}))
		}
	}
	sel := New(reg)

	p1, _ := sel.Pick(ctx, "patients")
	o1, _ := sel.Pick(ctx, "orders")
	// 不同服务名游标互不影响，两者都从头开始
	assert.Equal(t, p1.Address, o1.Address)
}
