package rpc

import (
	"context"
	"fmt"
	"sync"

	"github.com/code-sigs/go-resilient/pkg/errs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// GRPCCaller 针对指定地址发起 unary 调用的 resilient.Caller 实现。
// 请求体为资源 id 的原始字节，响应体原样返回，方法名由业务方给定
// （例如 /patients.Patients/Get）。连接按地址缓存复用。
type GRPCCaller struct {
	method string
	mu     sync.Mutex
	conns  map[string]*grpc.ClientConn
}

func NewGRPCCaller(method string) *GRPCCaller {
	return &GRPCCaller{
		method: method,
		conns:  make(map[string]*grpc.ClientConn),
	}
}

func (g *GRPCCaller) Call(ctx context.Context, address, resource string) ([]byte, error) {
	conn, err := g.conn(address)
	if err != nil {
		return nil, err
	}
	req := []byte(resource)
	var reply []byte
	err = conn.Invoke(ctx, g.method, &req, &reply, grpc.ForceCodec(rawCodec{}))
	if err != nil {
		return nil, errs.Wrap(err, "invoke "+g.method)
	}
	return reply, nil
}

// Close 关闭全部缓存连接
func (g *GRPCCaller) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var firstErr error
	for addr, conn := range g.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(g.conns, addr)
	}
	return firstErr
}

func (g *GRPCCaller) conn(address string) (*grpc.ClientConn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if conn, ok := g.conns[address]; ok {
		return conn, nil
	}
	conn, err := grpc.NewClient(
		address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, errs.Wrap(err, "grpc dial "+address)
	}
	g.conns[address] = conn
	return conn, nil
}

// rawCodec 原始字节编解码，避免为每种资源定义 proto
type rawCodec struct{}

func (rawCodec) Marshal(v interface{}) ([]byte, error) {
	b, ok := v.(*[]byte)
	if !ok {
		return nil, fmt.Errorf("rawCodec: unexpected type %T", v)
	}
	return *b, nil
}

func (rawCodec) Unmarshal(data []byte, v interface{}) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("rawCodec: unexpected type %T", v)
	}
	*b = data
	return nil
}

func (rawCodec) Name() string {
	return "raw"
}
