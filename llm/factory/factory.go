package factory

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/config"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/providers"
)

// Constructor builds a client from a fully merged configuration.
type Constructor func(cfg config.ProviderConfig, deps providers.Deps) (llm.Client, error)

// ConfigSource 提供外部（配置文件 / 环境变量）的 Provider 配置。
type ConfigSource interface {
	ProviderConfig(name string) (config.ProviderConfig, bool)
}

// DefaultNamer is optionally implemented by a ConfigSource that names a preferred provider.
type DefaultNamer interface {
	DefaultProviderName() string
}

type entry struct {
	ctor     Constructor
	defaults config.ProviderConfig
}

// Factory 是 Provider 名称到构造函数的注册表。
// Create 按优先级合并：厂商默认 < 外部配置 < 调用方配置。
type Factory struct {
	mu       sync.RWMutex
	order    []string
	entries  map[string]entry
	source   ConfigSource
	deps     providers.Deps
	fallback string
	logger   *zap.Logger
}

// Option configures a Factory.
type Option func(*Factory)

// WithConfigSource sets the external provider configuration.
func WithConfigSource(src ConfigSource) Option {
	return func(f *Factory) { f.source = src }
}

// WithFallback sets the provider name returned by DefaultProvider when nothing is enabled.
func WithFallback(name string) Option {
	return func(f *Factory) { f.fallback = name }
}

// New creates an empty factory. deps are shared by every client it creates.
func New(deps providers.Deps, opts ...Option) *Factory {
	deps = deps.WithDefaults()
	f := &Factory{
		entries:  make(map[string]entry),
		deps:     deps,
		fallback: config.DefaultProviderFallback,
		logger:   deps.Logger.With(zap.String("component", "llm_factory")),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewDefault creates a factory with every builtin provider registered.
func NewDefault(deps providers.Deps, opts ...Option) *Factory {
	f := New(deps, opts...)
	RegisterBuiltins(f)
	return f
}

// Register adds or replaces a provider. Replacing keeps the original registration position.
func (f *Factory) Register(name string, ctor Constructor, vendorDefaults config.ProviderConfig) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("provider name is required")
	}
	if ctor == nil {
		return fmt.Errorf("provider %s: constructor is nil", name)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.entries[name]; exists {
		f.logger.Debug("provider re-registered", zap.String("provider", name))
	} else {
		f.order = append(f.order, name)
	}
	f.entries[name] = entry{ctor: ctor, defaults: vendorDefaults}
	return nil
}

// Create 创建客户端。cfg.Provider 为空时使用 DefaultProvider()。
// 未注册的名称返回 *llm.ConfigError，不产生任何网络请求。
func (f *Factory) Create(cfg config.ProviderConfig) (llm.Client, error) {
	name := strings.TrimSpace(cfg.Provider)
	if name == "" {
		name = f.DefaultProvider()
	}

	f.mu.RLock()
	e, ok := f.entries[name]
	f.mu.RUnlock()
	if !ok {
		return nil, &llm.ConfigError{Provider: name, Field: "provider", Reason: "unknown provider"}
	}

	merged := config.Merge(e.defaults, f.external(name), cfg)
	merged.Provider = name

	client, err := e.ctor(merged, f.deps)
	if err != nil {
		return nil, fmt.Errorf("create provider %s: %w", name, err)
	}
	f.logger.Debug("provider created",
		zap.String("provider", name),
		zap.String("model", merged.Model))
	return client, nil
}

// ListProviders returns provider names in registration order.
func (f *Factory) ListProviders() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.order...)
}

// HasProvider reports whether name is registered.
func (f *Factory) HasProvider(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.entries[name]
	return ok
}

// DefaultProvider 返回默认 Provider：
// 外部配置指定且已注册的名称优先；否则取第一个未被显式禁用的已注册 Provider；否则返回兜底名称。
func (f *Factory) DefaultProvider() string {
	if namer, ok := f.source.(DefaultNamer); ok {
		if name := strings.TrimSpace(namer.DefaultProviderName()); name != "" && f.HasProvider(name) {
			return name
		}
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, name := range f.order {
		if !config.Merge(f.entries[name].defaults, f.external(name)).Disabled() {
			return name
		}
	}
	return f.fallback
}

func (f *Factory) external(name string) config.ProviderConfig {
	if f.source == nil {
		return config.ProviderConfig{}
	}
	cfg, ok := f.source.ProviderConfig(name)
	if !ok {
		return config.ProviderConfig{}
	}
	return cfg
}
