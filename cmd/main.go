package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/code-sigs/go-resilient/pkg/breaker"
	"github.com/code-sigs/go-resilient/pkg/cache"
	"github.com/code-sigs/go-resilient/pkg/config"
	"github.com/code-sigs/go-resilient/pkg/errs"
	"github.com/code-sigs/go-resilient/pkg/heartbeat"
	"github.com/code-sigs/go-resilient/pkg/logger"
	"github.com/code-sigs/go-resilient/pkg/registry"
	"github.com/code-sigs/go-resilient/pkg/registry_factory"
	"github.com/code-sigs/go-resilient/pkg/resilient"
	"github.com/gin-gonic/gin"
)

// 演示：prescriptions 服务经弹性链路(缓存/熔断/轮询)调用 patients 服务。
// 内置两个模拟 patients 后端，便于单进程体验完整调用路径。

func main() {
	logger.Init("./logs", logger.WithLogLevel("info"))
	defer logger.Sync()

	cfg, err := config.LoadResilient("", "resilient", "RESILIENT")
	if err != nil {
		logger.Errorf("load config: %v", err)
		return
	}

	reg, err := registry_factory.NewRegistry(&registry_factory.RegistryOption{
		Type:  registry_factory.MemoryType,
		Lease: &cfg.Registry,
	})
	if err != nil {
		logger.Errorf("new registry: %v", err)
		return
	}
	defer reg.Close()
	ctx := context.Background()

	// 启动两个模拟 patients 后端并接入心跳
	for i := 0; i < 2; i++ {
		addr, err := startPatientsBackend()
		if err != nil {
			logger.Errorf("start backend: %v", err)
			return
		}
		agent := heartbeat.NewAgent(reg, &registry.ServiceInstance{
			Name:    "patients",
			Address: addr,
		}, &cfg.Registry)
		if err = agent.Start(ctx); err != nil {
			logger.Errorf("start heartbeat: %v", err)
			return
		}
		defer agent.Stop(ctx)
	}

	cli, err := resilient.NewClient(reg, httpCaller(),
		resilient.WithCache(cache.NewMemoryCache(&cfg.Cache)),
		resilient.WithBreakerGroup(breaker.NewGroup(breaker.WithFactory(func(string) breaker.Breaker {
			return breaker.NewWindowBreaker(&cfg.Breaker)
		}))),
		resilient.WithFallback(func(service, resource string) []byte {
			return []byte(fmt.Sprintf(`{"id":%q,"name":"unknown","note":"patients service unavailable"}`, resource))
		}),
		resilient.WithTimeout(cfg.Client.Timeout),
	)
	if err != nil {
		logger.Errorf("new client: %v", err)
		return
	}

	r := gin.Default()
	r.GET("/prescriptions/:id", func(c *gin.Context) {
		id := c.Param("id")
		res, err := cli.Fetch(c.Request.Context(), "patients", id)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"prescription": gin.H{"id": id, "drug": "amoxicillin", "dosage": "500mg"},
			"patient":      string(res.Data),
			"source":       res.Source,
		})
	})
	if err = r.Run(":8080"); err != nil {
		logger.Errorf("serve: %v", err)
	}
}

// httpCaller 把远程调用抽象接到 patients 的 HTTP 接口上
func httpCaller() resilient.Caller {
	return resilient.CallerFunc(func(ctx context.Context, address, resource string) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("http://%s/patients/%s", address, resource), nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, errs.NewCode(errs.ErrorCallFailed, fmt.Sprintf("patients returned %d", resp.StatusCode))
		}
		return io.ReadAll(resp.Body)
	})
}

// startPatientsBackend 在随机端口启动一个模拟 patients 后端
func startPatientsBackend() (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/patients/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/patients/"):]
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":%q,"name":"patient-%s","servedBy":%q}`, id, id, ln.Addr().String())
	})
	go func() {
		_ = http.Serve(ln, mux)
	}()
	return ln.Addr().String(), nil
}
