package resilient

import (
	"context"
	"errors"
	"time"

	"github.com/code-sigs/go-resilient/pkg/breaker"
	"github.com/code-sigs/go-resilient/pkg/cache"
	"github.com/code-sigs/go-resilient/pkg/errs"
	"github.com/code-sigs/go-resilient/pkg/logger"
	"github.com/code-sigs/go-resilient/pkg/registry"
	"github.com/code-sigs/go-resilient/pkg/selector"
)

// Source 标记返回数据的来源，降级数据必须能和真实数据区分开
type Source string

const (
	SourceRemote   Source = "remote"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

// Result Fetch 的返回值。Source 为 fallback 时 Cause 记录降级原因
// （熔断短路/无实例/调用失败），便于观测，但不向上传播为错误。
type Result struct {
	Data   []byte
	Source Source
	Cause  error
}

// Client 弹性调用编排：缓存 → 熔断 → 选址 → 远程调用 → 降级。
// 自身不持久化任何状态，只编排注册表、缓存与熔断器；这三者各自
// 并发安全，Client 可被任意多协程同时使用。
type Client struct {
	sel      *selector.Selector
	caller   Caller
	cache    cache.Cache // 可为 nil，缓存只是优化
	breakers *breaker.Group
	fallback Fallback
	timeout  time.Duration
}

func NewClient(reg registry.Registry, caller Caller, opts ...Option) (*Client, error) {
	if reg == nil || caller == nil {
		return nil, errs.New("resilient: registry and caller required")
	}
	c := &Client{
		sel:      selector.New(reg),
		caller:   caller,
		breakers: breaker.NewGroup(),
		fallback: func(string, string) []byte { return nil },
		timeout:  3 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch 获取远程资源。除参数错误外不返回错误：远程失败一律吸收为降级返回。
func (c *Client) Fetch(ctx context.Context, service, resource string) (*Result, error) {
	if service == "" || resource == "" {
		return nil, errs.New("fetch: service and resource required")
	}

	key := cache.Key{Service: service, Resource: resource}
	if c.cache != nil {
		if val, ok := c.cache.Get(ctx, key); ok {
			return &Result{Data: val, Source: SourceCache}, nil
		}
	}

	br := c.breakers.Fetch(service)
	if !br.Allow() {
		cause := errs.NewCode(errs.ErrorBreakerOpen, "breaker open for "+service)
		logger.Warnw("request short-circuited", "service", service, "resource", resource, "state", br.State().String())
		return c.fallbackResult(service, resource, cause), nil
	}

	ins, err := c.sel.Pick(ctx, service)
	if err != nil {
		br.Failure()
		logger.Warnw("no instance available", "service", service, "error", err)
		return c.fallbackResult(service, resource, err), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	val, err := c.caller.Call(callCtx, ins.Address, resource)
	if err != nil {
		br.Failure()
		cause := classify(err)
		logger.Warnw("remote call failed", "service", service, "address", ins.Address,
			"resource", resource, "error", cause)
		return c.fallbackResult(service, resource, cause), nil
	}

	br.Success()
	if c.cache != nil {
		c.cache.Put(ctx, key, val)
	}
	return &Result{Data: val, Source: SourceRemote}, nil
}

// Breaker 暴露某个依赖的熔断器状态，供观测使用
func (c *Client) Breaker(service string) breaker.Breaker {
	return c.breakers.Fetch(service)
}

func (c *Client) fallbackResult(service, resource string, cause error) *Result {
	// 降级数据不写缓存
	return &Result{
		Data:   c.fallback(service, resource),
		Source: SourceFallback,
		Cause:  cause,
	}
}

// classify 区分超时/取消和普通调用失败
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.WithCode(err, errs.ErrorCallTimeout)
	}
	return errs.WithCode(err, errs.ErrorCallFailed)
}
