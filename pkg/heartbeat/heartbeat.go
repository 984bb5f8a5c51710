package heartbeat

import (
	"context"
	"sync"
	"time"

	"github.com/code-sigs/go-resilient/pkg/errs"
	"github.com/code-sigs/go-resilient/pkg/logger"
	"github.com/code-sigs/go-resilient/pkg/registry"
)

// Agent 服务实例心跳上报。
// 启动时注册实例，之后按 HeartbeatInterval 续约；续约遇到 NotFound
// （租约已过期被剔除）时自动重新注册。Stop 停止心跳并注销实例。
type Agent struct {
	reg      registry.Registry
	ins      *registry.ServiceInstance
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

func NewAgent(reg registry.Registry, ins *registry.ServiceInstance, cfg *registry.Config) *Agent {
	return &Agent{
		reg:      reg,
		ins:      ins,
		interval: cfg.Normalize().HeartbeatInterval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start 注册实例并启动心跳循环
func (a *Agent) Start(ctx context.Context) error {
	if err := a.reg.Register(ctx, a.ins); err != nil {
		return errs.Wrap(err, "initial register")
	}
	go a.loop()
	return nil
}

// Stop 停止心跳并注销实例
func (a *Agent) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		close(a.stopCh)
	})
	<-a.doneCh
	return a.reg.Unregister(ctx, a.ins.Name, a.ins.Address)
}

func (a *Agent) loop() {
	defer close(a.doneCh)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.beat()
		case <-a.stopCh:
			return
		}
	}
}

func (a *Agent) beat() {
	ctx, cancel := context.WithTimeout(context.Background(), a.interval)
	defer cancel()
	err := a.reg.Renew(ctx, a.ins.Name, a.ins.Address)
	if err == nil {
		return
	}
	if !errs.IsCode(err, errs.ErrorNotFound) {
		logger.Warnw("renew failed", "service", a.ins.Name, "address", a.ins.Address, "error", err)
		return
	}
	// 租约已过期，重新注册
	logger.Infow("lease expired, re-registering", "service", a.ins.Name, "address", a.ins.Address)
	if err := a.reg.Register(ctx, a.ins); err != nil {
		logger.Errorw("re-register failed", "service", a.ins.Name, "address", a.ins.Address, "error", err)
	}
}
