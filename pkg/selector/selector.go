package selector

import (
	"context"
	"sync"

	"github.com/code-sigs/go-resilient/pkg/errs"
	"github.com/code-sigs/go-resilient/pkg/registry"
)

// Selector 在注册表解析出的实例间做轮询负载均衡。
// 每个服务名维护独立游标，每次调用推进一位，调用失败不回退游标
// （失败处理是熔断器的职责）。实例数量变化时按新长度取模，可能跳过
// 或重复某个实例，属于可接受的最终公平。
type Selector struct {
	reg     registry.Registry
	mu      sync.Mutex
	cursors map[string]uint64
}

func New(reg registry.Registry) *Selector {
	return &Selector{
		reg:     reg,
		cursors: make(map[string]uint64),
	}
}

func (s *Selector) Pick(ctx context.Context, name string) (*registry.ServiceInstance, error) {
	instances, err := s.reg.Resolve(ctx, name)
	if err != nil {
		return nil, errs.Wrap(err, "resolve "+name)
	}
	cursor := s.next(name)
	if len(instances) == 0 {
		return nil, errs.NewCode(errs.ErrorNoInstance, "no instance available for "+name)
	}
	return instances[cursor%uint64(len(instances))], nil
}

func (s *Selector) next(name string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	cursor := s.cursors[name]
	s.cursors[name] = cursor + 1
	return cursor
}
