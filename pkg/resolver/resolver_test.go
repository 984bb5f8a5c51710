package resolver

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/code-sigs/go-resilient/pkg/registry"
	"github.com/code-sigs/go-resilient/pkg/registry/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/resolver"
	"google.golang.org/grpc/serviceconfig"
)

// fakeClientConn 记录 UpdateState 推送的地址
type fakeClientConn struct {
	mu     sync.Mutex
	states [][]string
}

func (f *fakeClientConn) UpdateState(state resolver.State) error {
	addrs := make([]string, 0, len(state.Addresses))
	for _, a := range state.Addresses {
		addrs = append(addrs, a.Addr)
	}
	f.mu.Lock()
	f.states = append(f.states, addrs)
	f.mu.Unlock()
	return nil
}

func (f *fakeClientConn) ReportError(error) {}

func (f *fakeClientConn) NewAddress([]resolver.Address) {}

func (f *fakeClientConn) ParseServiceConfig(string) *serviceconfig.ParseResult {
	return nil
}

func (f *fakeClientConn) last() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		return nil
	}
	return f.states[len(f.states)-1]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestResolver_PushesRegistryUpdates(t *testing.T) {
	reg := memory.NewMemoryRegistry(&registry.Config{SweepInterval: time.Hour})
	defer reg.Close()
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, &registry.ServiceInstance{Name: "patients", Address: "a:1"}))

	builder := NewBuilder(reg)
	assert.Equal(t, "memory", builder.Scheme())

	cc := &fakeClientConn{}
	target := resolver.Target{URL: mustParseURL(t, "memory:///patients")}
	r, err := builder.Build(target, cc, resolver.BuildOptions{})
	require.NoError(t, err)
	defer r.Close()

	waitFor(t, func() bool {
		last := cc.last()
		return len(last) == 1 && last[0] == "a:1"
	})

	// 新实例上线后推送更新
	require.NoError(t, reg.Register(ctx, &registry.ServiceInstance{Name: "patients", Address: "b:2"}))
	waitFor(t, func() bool {
		return len(cc.last()) == 2
	})

	// 实例下线后收敛
	require.NoError(t, reg.Unregister(ctx, "patients", "a:1"))
	waitFor(t, func() bool {
		last := cc.last()
		return len(last) == 1 && last[0] == "b:2"
	})

	r.ResolveNow(resolver.ResolveNowOptions{}) // no-op, 不应 panic
}

func mustParseURL(t *testing.T, s string) url.URL {
	t.Helper()
	u, err := url.Parse(s)
	require.NoError(t, err)
	return *u
}
