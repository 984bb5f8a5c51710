package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/code-sigs/go-resilient/pkg/errs"
	"github.com/code-sigs/go-resilient/pkg/logger"
	"github.com/code-sigs/go-resilient/pkg/registry"
	"github.com/google/uuid"
)

// MemoryRegistry 进程内注册表，带租约清理。
// 清理策略：直接剔除过期实例（而非标记不健康），已剔除的实例 Renew 返回
// errs.ErrorNotFound，需要重新 Register。
type MemoryRegistry struct {
	mu       sync.RWMutex
	services map[string]map[string]*registry.ServiceInstance // serviceName -> address -> instance
	watchers map[string][]chan []*registry.ServiceInstance
	cfg      *registry.Config
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time // 测试时可替换
}

func NewMemoryRegistry(cfg *registry.Config) *MemoryRegistry {
	m := &MemoryRegistry{
		services: make(map[string]map[string]*registry.ServiceInstance),
		watchers: make(map[string][]chan []*registry.ServiceInstance),
		cfg:      cfg.Normalize(),
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
	go m.sweepLoop()
	return m
}

func (m *MemoryRegistry) Register(ctx context.Context, ins *registry.ServiceInstance) error {
	if ins == nil || ins.Name == "" || ins.Address == "" {
		return errs.New("register: name and address required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.services[ins.Name] == nil {
		m.services[ins.Name] = make(map[string]*registry.ServiceInstance)
	}
	cp := *ins
	if prev, ok := m.services[ins.Name][ins.Address]; ok {
		cp.ID = prev.ID // 重复注册只刷新租约，不换 ID
	} else if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.LastRenewal = m.now()
	cp.Healthy = true
	m.services[ins.Name][ins.Address] = &cp
	m.notifyWatchers(ins.Name)
	return nil
}

func (m *MemoryRegistry) Unregister(ctx context.Context, name, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.services[name] != nil {
		delete(m.services[name], address)
		if len(m.services[name]) == 0 {
			delete(m.services, name)
		}
	}
	m.notifyWatchers(name)
	return nil
}

func (m *MemoryRegistry) Renew(ctx context.Context, name, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ins, ok := m.services[name][address]
	if !ok {
		return errs.NewCode(errs.ErrorNotFound, "renew: instance not registered or lease expired")
	}
	ins.LastRenewal = m.now()
	return nil
}

// SetHealthy 手动标记实例健康状态，不健康的实例对 Resolve 不可见
func (m *MemoryRegistry) SetHealthy(name, address string, healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ins, ok := m.services[name][address]; ok {
		ins.Healthy = healthy
	}
	m.notifyWatchers(name)
}

func (m *MemoryRegistry) Resolve(ctx context.Context, name string) ([]*registry.ServiceInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(name), nil
}

func (m *MemoryRegistry) Watch(ctx context.Context, name string) (<-chan []*registry.ServiceInstance, error) {
	ch := make(chan []*registry.ServiceInstance, 1)
	m.mu.Lock()
	// 先用当前实例列表填充缓冲再挂到 watchers 上，顺序反过来的话
	// 并发的 notifyWatchers 可能先占掉缓冲，首次推送就会永久阻塞
	ch <- m.snapshot(name)
	m.watchers[name] = append(m.watchers[name], ch)
	m.mu.Unlock()

	// 监听 context 关闭，自动移除 watcher
	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		watchers := m.watchers[name]
		for i, w := range watchers {
			if w == ch {
				m.watchers[name] = append(watchers[:i], watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

func (m *MemoryRegistry) Name() string {
	return "memory"
}

func (m *MemoryRegistry) Close() error {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	return nil
}

// snapshot 返回健康实例的副本，按地址排序保证轮询顺序稳定。调用方需持有锁。
func (m *MemoryRegistry) snapshot(name string) []*registry.ServiceInstance {
	instances := make([]*registry.ServiceInstance, 0, len(m.services[name]))
	for _, ins := range m.services[name] {
		if !ins.Healthy {
			continue
		}
		cp := *ins
		instances = append(instances, &cp)
	}
	sort.Slice(instances, func(i, j int) bool {
		return instances[i].Address < instances[j].Address
	})
	return instances
}

func (m *MemoryRegistry) notifyWatchers(name string) {
	instances := m.snapshot(name)
	for _, ch := range m.watchers[name] {
		// 非阻塞推送
		select {
		case ch <- instances:
		default:
		}
	}
}

func (m *MemoryRegistry) sweepLoop() {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopCh:
			return
		}
	}
}

// sweep 剔除租约过期的实例。两次 sweep 之间调用方可能短暂看到已失联的实例，
// 这是可接受的最终一致性。
func (m *MemoryRegistry) sweep() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, addrs := range m.services {
		evicted := false
		for addr, ins := range addrs {
			if now.Sub(ins.LastRenewal) > m.cfg.LeaseTimeout {
				delete(addrs, addr)
				evicted = true
				logger.Warnw("instance lease expired", "service", name, "address", addr)
			}
		}
		if len(addrs) == 0 {
			delete(m.services, name)
		}
		if evicted {
			m.notifyWatchers(name)
		}
	}
}
