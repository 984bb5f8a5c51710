package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/code-sigs/go-resilient/pkg/breaker"
	"github.com/code-sigs/go-resilient/pkg/cache"
	"github.com/code-sigs/go-resilient/pkg/registry"
	"github.com/spf13/viper"
)

// ResilientConfig 弹性调用相关的全部配置
type ResilientConfig struct {
	Registry registry.Config `mapstructure:"registry"`
	Cache    cache.Config    `mapstructure:"cache"`
	Breaker  breaker.Config  `mapstructure:"breaker"`
	Client   ClientConfig    `mapstructure:"client"`
}

type ClientConfig struct {
	Timeout time.Duration `mapstructure:"timeout"` // 单次远程调用超时
}

// Load 泛型配置加载：yaml 文件 + 环境变量覆盖(前缀 envPrefix)，
// 加载 configKey 下的配置到任意结构体
func Load[T any](configPath, fileName, envPrefix, configKey string) (*T, error) {
	v := viper.New()

	// 自动读取环境变量（如 RESILIENT_CLIENT_TIMEOUT=5s）
	v.AutomaticEnv()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.AddConfigPath(configPath)
	} else {
		v.AddConfigPath(".")
	}
	v.SetConfigName(fileName)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// 配置文件缺失时只依赖默认值和环境变量
	}

	cfg := new(T)
	if configKey == "" {
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("unable to decode config into struct: %w", err)
		}
		return cfg, nil
	}
	if err := v.UnmarshalKey(configKey, cfg); err != nil {
		return nil, fmt.Errorf("unable to decode '%s' into struct: %w", configKey, err)
	}
	return cfg, nil
}

// LoadResilient 加载并补齐默认值
func LoadResilient(configPath, fileName, envPrefix string) (*ResilientConfig, error) {
	cfg, err := Load[ResilientConfig](configPath, fileName, envPrefix, "resilient")
	if err != nil {
		return nil, err
	}
	cfg.Registry.Normalize()
	cfg.Cache.Normalize()
	cfg.Breaker.Normalize()
	if cfg.Client.Timeout <= 0 {
		cfg.Client.Timeout = 3 * time.Second
	}
	return cfg, nil
}
