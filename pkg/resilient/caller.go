package resilient

import "context"

// Caller 远程调用抽象，由外层 HTTP/RPC 服务提供实现。
// 实现必须尊重 ctx 的超时与取消。
type Caller interface {
	Call(ctx context.Context, address, resource string) ([]byte, error)
}

// CallerFunc 函数适配器
type CallerFunc func(ctx context.Context, address, resource string) ([]byte, error)

func (f CallerFunc) Call(ctx context.Context, address, resource string) ([]byte, error) {
	return f(ctx, address, resource)
}

// Fallback 降级值生成器，按服务名和资源 id 返回兜底数据
type Fallback func(service, resource string) []byte
