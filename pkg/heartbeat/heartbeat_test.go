package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/code-sigs/go-resilient/pkg/registry"
	"github.com/code-sigs/go-resilient/pkg/registry/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgent_RegistersAndRenews(t *testing.T) {
	cfg := &registry.Config{
		HeartbeatInterval: 20 * time.Millisecond,
		LeaseTimeout:      100 * time.Millisecond,
		SweepInterval:     10 * time.Millisecond,
	}
	reg := memory.NewMemoryRegistry(cfg)
	defer reg.Close()
	ctx := context.Background()

	agent := NewAgent(reg, &registry.ServiceInstance{Name: "patients", Address: "127.0.0.1:8081"}, cfg)
	require.NoError(t, agent.Start(ctx))

	// 多个 sweep 周期后实例仍然在线，说明续约生效
	time.Sleep(300 * time.Millisecond)
	instances, err := reg.Resolve(ctx, "patients")
	require.NoError(t, err)
	assert.Len(t, instances, 1)

	// Stop 后注销，实例消失
	require.NoError(t, agent.Stop(ctx))
	instances, _ = reg.Resolve(ctx, "patients")
	assert.Len(t, instances, 0)
}

func TestAgent_ReRegistersAfterEviction(t *testing.T) {
	cfg := &registry.Config{
		HeartbeatInterval: 30 * time.Millisecond,
		LeaseTimeout:      10 * time.Millisecond, // 租约短于心跳，必然过期
		SweepInterval:     5 * time.Millisecond,
	}
	reg := memory.NewMemoryRegistry(cfg)
	defer reg.Close()
	ctx := context.Background()

	agent := NewAgent(reg, &registry.ServiceInstance{Name: "patients", Address: "127.0.0.1:8081"}, cfg)
	require.NoError(t, agent.Start(ctx))
	defer agent.Stop(ctx)

	// 实例反复被剔除又被重新注册，最终应能观察到在线状态
	deadline := time.Now().Add(time.Second)
	seen := false
	for time.Now().Before(deadline) {
		instances, _ := reg.Resolve(ctx, "patients")
		if len(instances) == 1 {
			seen = true
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, seen, "agent should re-register after eviction")
}

func TestAgent_StopIdempotent(t *testing.T) {
	cfg := registry.DefaultConfig()
	cfg.HeartbeatInterval = 10 * time.Millisecond
	reg := memory.NewMemoryRegistry(cfg)
	defer reg.Close()
	ctx := context.Background()

	agent := NewAgent(reg, &registry.ServiceInstance{Name: "patients", Address: "127.0.0.1:8081"}, cfg)
	require.NoError(t, agent.Start(ctx))
	require.NoError(t, agent.Stop(ctx))
	require.NoError(t, agent.Stop(ctx))
}
