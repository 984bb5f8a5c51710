package resolver

import (
	"context"
	"fmt"

	"github.com/code-sigs/go-resilient/pkg/registry"
	"google.golang.org/grpc/resolver"
)

// ServiceResolverBuilder 把注册表的 Watch 接到 gRPC resolver 上，
// 让 grpc 客户端直接消费注册表的实例变更。
type ServiceResolverBuilder struct {
	Registry registry.Registry
}

func NewBuilder(reg registry.Registry) resolver.Builder {
	return &ServiceResolverBuilder{Registry: reg}
}

func (b *ServiceResolverBuilder) Build(target resolver.Target, cc resolver.ClientConn, opts resolver.BuildOptions) (resolver.Resolver, error) {
	serviceName := target.Endpoint() // target 形如 memory:///patients

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Registry.Watch(ctx, serviceName)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to watch service [%s]: %w", serviceName, err)
	}

	r := &serviceResolver{
		cc:     cc,
		ctx:    ctx,
		cancel: cancel,
		ch:     ch,
	}
	go r.watch()
	return r, nil
}

func (b *ServiceResolverBuilder) Scheme() string {
	return b.Registry.Name()
}

type serviceResolver struct {
	cc     resolver.ClientConn
	ctx    context.Context
	cancel context.CancelFunc
	ch     <-chan []*registry.ServiceInstance
}

func (r *serviceResolver) watch() {
	for {
		select {
		case <-r.ctx.Done():
			return
		case instances, ok := <-r.ch:
			if !ok {
				return
			}

			addrs := make([]resolver.Address, 0, len(instances))
			for _, ins := range instances {
				addrs = append(addrs, resolver.Address{Addr: ins.Address})
			}
			_ = r.cc.UpdateState(resolver.State{Addresses: addrs})
		}
	}
}

func (r *serviceResolver) ResolveNow(resolver.ResolveNowOptions) {
	// no-op: watch 长轮询驱动更新
}

func (r *serviceResolver) Close() {
	r.cancel()
}
