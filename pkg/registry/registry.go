package registry

import (
	"context"
	"time"
)

// ServiceInstance 注册表中的一个服务实例
type ServiceInstance struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Address     string            `json:"address"` // host:port
	Metadata    map[string]string `json:"metadata,omitempty"`
	LastRenewal time.Time         `json:"lastRenewal"`
	Healthy     bool              `json:"healthy"`
}

// Registry 服务注册与发现接口
//
// Resolve 返回健康实例的快照副本，未知服务名或无健康实例时返回空切片而非错误，
// 调用方应将空结果视为"暂时不可用"。
// Renew 对已被剔除的实例返回 errs.ErrorNotFound，调用方需重新 Register。
type Registry interface {
	Register(ctx context.Context, ins *ServiceInstance) error
	Unregister(ctx context.Context, name, address string) error
	Renew(ctx context.Context, name, address string) error
	Resolve(ctx context.Context, name string) ([]*ServiceInstance, error)
	Watch(ctx context.Context, name string) (<-chan []*ServiceInstance, error)
	Name() string
	Close() error
}
