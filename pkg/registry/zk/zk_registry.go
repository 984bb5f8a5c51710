package zk

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/code-sigs/go-resilient/pkg/errs"
	"github.com/code-sigs/go-resilient/pkg/registry"
	"github.com/go-zookeeper/zk"
	"github.com/google/uuid"
)

// ZkRegistry zookeeper 注册表后端。
// 实例写为临时节点，会话断开即消失；Renew 只校验节点仍然存在，
// 租约本身由 zk 会话维持。
type ZkRegistry struct {
	conn     *zk.Conn
	rootPath string
	cache    map[string][]*registry.ServiceInstance
	cacheMu  sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewZkRegistry(servers []string, rootPath string, timeout time.Duration) (*ZkRegistry, error) {
	conn, _, err := zk.Connect(servers, timeout)
	if err != nil {
		return nil, errs.Wrap(err, "connect zookeeper")
	}

	ctx, cancel := context.WithCancel(context.Background())
	reg := &ZkRegistry{
		conn:     conn,
		rootPath: strings.TrimRight(rootPath, "/"),
		cache:    make(map[string][]*registry.ServiceInstance),
		ctx:      ctx,
		cancel:   cancel,
	}

	// 初始化根路径
	if exists, _, _ := conn.Exists(reg.rootPath); !exists {
		_, err := conn.Create(reg.rootPath, nil, 0, zk.WorldACL(zk.PermAll))
		if err != nil && err != zk.ErrNodeExists {
			cancel()
			conn.Close()
			return nil, errs.Wrap(err, "create root path")
		}
	}
	return reg, nil
}

func (z *ZkRegistry) Register(ctx context.Context, ins *registry.ServiceInstance) error {
	if ins == nil || ins.Name == "" || ins.Address == "" {
		return errs.New("register: name and address required")
	}
	cp := *ins
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.LastRenewal = time.Now()
	cp.Healthy = true

	svcPath := z.servicePath(cp.Name)
	if exists, _, _ := z.conn.Exists(svcPath); !exists {
		_, err := z.conn.Create(svcPath, nil, 0, zk.WorldACL(zk.PermAll))
		if err != nil && err != zk.ErrNodeExists {
			return errs.Wrap(err, "create service path")
		}
	}

	data, err := json.Marshal(&cp)
	if err != nil {
		return errs.Wrap(err, "marshal instance")
	}

	path := z.instancePath(cp.Name, cp.Address)
	if exists, _, _ := z.conn.Exists(path); exists {
		_ = z.conn.Delete(path, -1)
	}
	_, err = z.conn.Create(path, data, zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
	return errs.Wrap(err)
}

func (z *ZkRegistry) Unregister(ctx context.Context, name, address string) error {
	err := z.conn.Delete(z.instancePath(name, address), -1)
	if err == zk.ErrNoNode {
		return nil
	}
	return errs.Wrap(err)
}

func (z *ZkRegistry) Renew(ctx context.Context, name, address string) error {
	exists, _, err := z.conn.Exists(z.instancePath(name, address))
	if err != nil {
		return errs.Wrap(err, "zk exists")
	}
	if !exists {
		return errs.NewCode(errs.ErrorNotFound, "renew: ephemeral node gone, re-register required")
	}
	return nil
}

func (z *ZkRegistry) Resolve(ctx context.Context, name string) ([]*registry.ServiceInstance, error) {
	z.cacheMu.RLock()
	cached, ok := z.cache[name]
	z.cacheMu.RUnlock()
	if ok {
		result := make([]*registry.ServiceInstance, len(cached))
		copy(result, cached)
		return result, nil
	}
	return z.loadInstances(name), nil
}

func (z *ZkRegistry) Watch(ctx context.Context, name string) (<-chan []*registry.ServiceInstance, error) {
	ch := make(chan []*registry.ServiceInstance)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-z.ctx.Done():
				return
			default:
			}

			_, _, events, err := z.conn.ChildrenW(z.servicePath(name))
			if err != nil {
				time.Sleep(time.Second * 2)
				continue
			}

			instances := z.loadInstances(name)
			z.cacheMu.Lock()
			z.cache[name] = instances
			z.cacheMu.Unlock()

			select {
			case ch <- instances:
			case <-ctx.Done():
				return
			}

			select {
			case <-events:
				continue
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

func (z *ZkRegistry) Name() string {
	return "resilient-zk"
}

func (z *ZkRegistry) Close() error {
	z.cancel()
	z.conn.Close()
	return nil
}

func (z *ZkRegistry) loadInstances(name string) []*registry.ServiceInstance {
	children, _, err := z.conn.Children(z.servicePath(name))
	if err != nil {
		return []*registry.ServiceInstance{}
	}
	instances := make([]*registry.ServiceInstance, 0, len(children))
	for _, child := range children {
		data, _, err := z.conn.Get(z.servicePath(name) + "/" + child)
		if err != nil {
			continue
		}
		var ins registry.ServiceInstance
		if err := json.Unmarshal(data, &ins); err != nil {
			continue // ignore bad data
		}
		if !ins.Healthy {
			continue
		}
		instances = append(instances, &ins)
	}
	sort.Slice(instances, func(i, j int) bool {
		return instances[i].Address < instances[j].Address
	})
	return instances
}

func (z *ZkRegistry) servicePath(service string) string {
	return fmt.Sprintf("%s/%s", z.rootPath, strings.Trim(service, "/"))
}

func (z *ZkRegistry) instancePath(service, address string) string {
	return fmt.Sprintf("%s/%s", z.servicePath(service), address)
}
