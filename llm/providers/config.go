package providers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sunflowermm/XRK-Yunzai-sub003/internal/httpclient"
	"github.com/sunflowermm/XRK-Yunzai-sub003/internal/metrics"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/cache"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/config"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/multimodal"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/observability"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/tools"
)

// Deps 是所有 Provider 客户端共享的依赖，由工厂注入。
// 零值可用：没有工具注册表、私有 HTTP 连接池、内存图片缓存、不记录指标。
type Deps struct {
	Logger  *zap.Logger
	Tools   tools.Registry
	HTTP    *httpclient.Pool
	Images  cache.Store
	Metrics *metrics.Collector
	Tracer  *observability.Tracer
}

// WithDefaults fills nil dependencies. Vendors that keep their own state call it once so
// the image cache lives as long as the client.
func (d Deps) WithDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.HTTP == nil {
		d.HTTP = httpclient.NewPool()
	}
	if d.Images == nil {
		d.Images = cache.NewMemoryStore(256, cache.DefaultTTL)
	}
	return d
}

// HTTPClient returns the pooled client for the resolved timeout and proxy.
func (d Deps) HTTPClient(cfg config.ProviderConfig) (*http.Client, error) {
	pool := d.HTTP
	if pool == nil {
		pool = httpclient.NewPool()
	}
	return pool.Get(httpclient.Options{Timeout: cfg.Timeout, Proxy: cfg.Proxy})
}

// ImageResolver builds the resolver used by vendors that need inline images.
func (d Deps) ImageResolver(cfg config.ProviderConfig) *multimodal.ImageResolver {
	client, err := d.HTTPClient(cfg)
	if err != nil {
		client = nil
	}
	return multimodal.NewImageResolver(client, d.Images, cfg.DefaultImageMIME, d.Logger)
}

// ResolveAPIKey returns the API key, checking for context override first.
func ResolveAPIKey(ctx context.Context, cfg config.ProviderConfig) string {
	if c, ok := llm.CredentialOverrideFromContext(ctx); ok {
		if key := strings.TrimSpace(c.APIKey); key != "" {
			return key
		}
	}
	return strings.TrimSpace(cfg.APIKey)
}
