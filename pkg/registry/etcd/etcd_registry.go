package etcd

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/code-sigs/go-resilient/pkg/errs"
	"github.com/code-sigs/go-resilient/pkg/logger"
	"github.com/code-sigs/go-resilient/pkg/registry"
	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyPrefix = "/go-resilient/services/"

// EtcdRegistry etcd 注册表后端。
// 租约由 etcd lease 承载：Register 申请 lease 并写入带租约的 key，
// Renew 对 lease 做 KeepAliveOnce，lease 过期后 key 自动删除，Renew 返回 NotFound。
type EtcdRegistry struct {
	cli     *clientv3.Client
	cfg     *registry.Config
	leases  map[string]clientv3.LeaseID // name/address -> lease
	leaseMu sync.Mutex
	cache   map[string][]*registry.ServiceInstance
	cacheMu sync.RWMutex
	watched map[string]struct{}
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewEtcdRegistry(endpoints []string, dialTimeout time.Duration, cfg *registry.Config) (*EtcdRegistry, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, errs.Wrap(err, "connect etcd")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &EtcdRegistry{
		cli:     cli,
		cfg:     cfg.Normalize(),
		leases:  make(map[string]clientv3.LeaseID),
		cache:   make(map[string][]*registry.ServiceInstance),
		watched: make(map[string]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

func instanceKey(name, address string) string {
	return keyPrefix + name + "/" + address
}

func (e *EtcdRegistry) Register(ctx context.Context, ins *registry.ServiceInstance) error {
	if ins == nil || ins.Name == "" || ins.Address == "" {
		return errs.New("register: name and address required")
	}
	cp := *ins
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.LastRenewal = time.Now()
	cp.Healthy = true

	val, err := json.Marshal(&cp)
	if err != nil {
		return errs.Wrap(err, "marshal instance")
	}

	ttl := int64(e.cfg.LeaseTimeout / time.Second)
	if ttl < 1 {
		ttl = 1
	}
	leaseResp, err := e.cli.Grant(ctx, ttl)
	if err != nil {
		return errs.Wrap(err, "grant lease")
	}
	_, err = e.cli.Put(ctx, instanceKey(cp.Name, cp.Address), string(val), clientv3.WithLease(leaseResp.ID))
	if err != nil {
		_, _ = e.cli.Revoke(context.Background(), leaseResp.ID)
		return errs.Wrap(err, "put instance")
	}

	e.leaseMu.Lock()
	e.leases[cp.Name+"/"+cp.Address] = leaseResp.ID
	e.leaseMu.Unlock()
	return nil
}

func (e *EtcdRegistry) Unregister(ctx context.Context, name, address string) error {
	e.leaseMu.Lock()
	leaseID, ok := e.leases[name+"/"+address]
	delete(e.leases, name+"/"+address)
	e.leaseMu.Unlock()

	_, err := e.cli.Delete(ctx, instanceKey(name, address))
	if ok {
		_, _ = e.cli.Revoke(ctx, leaseID)
	}
	return errs.Wrap(err)
}

func (e *EtcdRegistry) Renew(ctx context.Context, name, address string) error {
	e.leaseMu.Lock()
	leaseID, ok := e.leases[name+"/"+address]
	e.leaseMu.Unlock()
	if !ok {
		return errs.NewCode(errs.ErrorNotFound, "renew: instance not registered")
	}
	_, err := e.cli.KeepAliveOnce(ctx, leaseID)
	if err != nil {
		// lease 已过期，key 已被 etcd 删除，调用方需重新注册
		e.leaseMu.Lock()
		delete(e.leases, name+"/"+address)
		e.leaseMu.Unlock()
		return errs.NewCode(errs.ErrorNotFound, "renew: lease expired")
	}
	return nil
}

func (e *EtcdRegistry) Resolve(ctx context.Context, name string) ([]*registry.ServiceInstance, error) {
	e.ensureWatch(name)

	e.cacheMu.RLock()
	cached, ok := e.cache[name]
	e.cacheMu.RUnlock()
	if ok {
		result := make([]*registry.ServiceInstance, len(cached))
		copy(result, cached)
		return result, nil
	}
	// 缓存未建立前直接查询
	instances, err := e.loadInstances(ctx, name)
	if err != nil {
		return nil, err
	}
	return instances, nil
}

func (e *EtcdRegistry) Watch(ctx context.Context, name string) (<-chan []*registry.ServiceInstance, error) {
	out := make(chan []*registry.ServiceInstance, 10) // 缓冲防止阻塞

	go func() {
		defer close(out)

		send := func(insts []*registry.ServiceInstance) {
			select {
			case out <- insts:
			case <-ctx.Done():
			default:
				// 丢弃防止阻塞
			}
		}

		instances, err := e.loadInstances(ctx, name)
		if err != nil {
			logger.Errorw("etcd initial load failed", "service", name, "error", err)
			return
		}
		e.updateCache(name, instances)
		send(instances)

		backoff := time.Second
		prefix := keyPrefix + name + "/"
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.ctx.Done():
				return
			default:
			}

			watchChan := e.cli.Watch(ctx, prefix, clientv3.WithPrefix())
			for watchResp := range watchChan {
				if watchResp.Err() != nil {
					break
				}
				instances, err := e.loadInstances(ctx, name)
				if err != nil {
					break
				}
				e.updateCache(name, instances)
				send(instances)
			}

			time.Sleep(backoff)
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
		}
	}()

	return out, nil
}

func (e *EtcdRegistry) Name() string {
	return "resilient-etcd"
}

func (e *EtcdRegistry) Close() error {
	e.cancel()
	return e.cli.Close()
}

// ensureWatch 按需启动后台 watch，维持本地实例缓存
func (e *EtcdRegistry) ensureWatch(name string) {
	e.cacheMu.Lock()
	if _, ok := e.watched[name]; ok {
		e.cacheMu.Unlock()
		return
	}
	e.watched[name] = struct{}{}
	e.cacheMu.Unlock()

	ch, err := e.Watch(e.ctx, name)
	if err != nil {
		return
	}
	go func() {
		for range ch {
			// 消费事件，缓存更新在 Watch 内部完成
		}
	}()
}

func (e *EtcdRegistry) loadInstances(ctx context.Context, name string) ([]*registry.ServiceInstance, error) {
	resp, err := e.cli.Get(ctx, keyPrefix+name+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, errs.Wrap(err, "etcd get")
	}
	addrSet := make(map[string]struct{})
	var instances []*registry.ServiceInstance
	for _, kv := range resp.Kvs {
		var ins registry.ServiceInstance
		if err := json.Unmarshal(kv.Value, &ins); err != nil {
			continue // ignore bad data
		}
		if _, ok := addrSet[ins.Address]; ok {
			continue
		}
		if !ins.Healthy {
			continue
		}
		addrSet[ins.Address] = struct{}{}
		instances = append(instances, &ins)
	}
	return instances, nil
}

func (e *EtcdRegistry) updateCache(name string, instances []*registry.ServiceInstance) {
	e.cacheMu.Lock()
	e.cache[name] = instances
	e.cacheMu.Unlock()
}
