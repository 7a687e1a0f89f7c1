// =============================================================================
// 📦 默认配置
// =============================================================================
package config

import (
	"time"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/cache"
	llmconfig "github.com/sunflowermm/XRK-Yunzai-sub003/llm/config"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/retry"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Providers: make(map[string]llmconfig.ProviderConfig),
		Retry:     retry.DefaultPolicy(),
		Log:       DefaultLogConfig(),
		Cache:     DefaultCacheConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stderr"},
	}
}

// DefaultCacheConfig 返回默认图片缓存配置（仅进程内）
func DefaultCacheConfig() CacheConfig {
	def := cache.DefaultStoreConfig()
	return CacheConfig{
		LocalMaxSize: def.LocalMaxSize,
		TTL:          5 * time.Minute,
		KeyPrefix:    def.KeyPrefix,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Namespace: "llmchat",
	}
}

// StoreConfig 转换为 cache.StoreConfig
func (c CacheConfig) StoreConfig() cache.StoreConfig {
	return cache.StoreConfig{
		LocalMaxSize: c.LocalMaxSize,
		LocalTTL:     c.TTL,
		RedisTTL:     c.TTL,
		KeyPrefix:    c.KeyPrefix,
	}
}
