package rpc

import (
	"context"
	"time"

	"github.com/code-sigs/go-resilient/pkg/errs"
	"github.com/code-sigs/go-resilient/pkg/logger"
	"github.com/code-sigs/go-resilient/pkg/registry"
	"github.com/code-sigs/go-resilient/pkg/resolver"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// NewConn 创建走注册表解析的 gRPC 连接，grpc 自带 round_robin 做连接级均衡
func NewConn(ctx context.Context, serviceName string, reg registry.Registry) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(
		reg.Name()+":///"+serviceName,
		grpc.WithResolvers(resolver.NewBuilder(reg)),
		grpc.WithTransportCredentials(insecure.NewCredentials()), // 注意：生产环境中请使用安全连接
		grpc.WithUnaryInterceptor(clientLogInterceptor()),
		grpc.WithDefaultServiceConfig(`{"loadBalancingPolicy":"round_robin"}`),
	)
	if err != nil {
		return nil, errs.Wrap(err, "grpc dial "+serviceName)
	}
	return conn, nil
}

// clientLogInterceptor 记录调用耗时和错误
func clientLogInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		if err != nil {
			logger.Warnw("grpc call failed", "method", method, "cost", time.Since(start), "error", err)
		} else {
			logger.Debugw("grpc call", "method", method, "cost", time.Since(start))
		}
		return err
	}
}
