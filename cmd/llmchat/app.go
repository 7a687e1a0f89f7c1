package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sunflowermm/XRK-Yunzai-sub003/config"
	"github.com/sunflowermm/XRK-Yunzai-sub003/internal/httpclient"
	"github.com/sunflowermm/XRK-Yunzai-sub003/internal/metrics"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/cache"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/factory"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/gateway"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/observability"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/providers"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/tools"
)

// app 持有一次命令执行所需的全部组件
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	factory  *factory.Factory
	gateway  *gateway.Gateway
	redis    *redis.Client
}

func newApp(opts *globalOptions) (*app, error) {
	cfg, err := config.NewLoader().
		WithConfigPath(opts.configPath).
		WithEnvPrefix(opts.envPrefix).
		WithDotEnv(opts.envFile).
		WithProviders(factory.BuiltinNames()...).
		Load()
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	logger, err := cfg.Log.Build()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		collector = metrics.NewCollector(cfg.Metrics.Namespace, a.registry, logger)
	}

	if cfg.Cache.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
	}

	registry := tools.NewLocalRegistry(logger)
	if err := registerDemoTools(registry); err != nil {
		return nil, err
	}

	deps := providers.Deps{
		Logger:  logger,
		Tools:   registry,
		HTTP:    httpclient.NewPool(),
		Images:  cache.NewMultiLevelStore(a.redis, cfg.Cache.StoreConfig(), logger),
		Metrics: collector,
		Tracer:  observability.NewTracer(nil, logger),
	}

	a.factory = factory.NewDefault(deps, factory.WithConfigSource(cfg))
	a.gateway = gateway.New(a.factory, cfg.Retry,
		gateway.WithLogger(logger),
		gateway.WithMetrics(collector))

	logger.Debug("llmchat initialized",
		zap.String("version", Version),
		zap.Strings("providers", a.factory.ListProviders()),
		zap.String("default_provider", a.factory.DefaultProvider()),
		zap.Bool("redis_cache", a.redis != nil),
		zap.Bool("metrics", a.registry != nil))

	return a, nil
}

// close 释放资源，并在启用指标时输出指标摘要
func (a *app) close() {
	if a.registry != nil {
		dumpMetrics(a.logger, a.registry)
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis client", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// dumpMetrics 以日志形式输出计数器的当前值
func dumpMetrics(logger *zap.Logger, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		logger.Warn("failed to gather metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fields := []zap.Field{zap.String("metric", mf.GetName())}
			for _, lp := range m.GetLabel() {
				fields = append(fields, zap.String(lp.GetName(), lp.GetValue()))
			}
			switch {
			case m.GetCounter() != nil:
				fields = append(fields, zap.Float64("value", m.GetCounter().GetValue()))
			case m.GetHistogram() != nil:
				fields = append(fields,
					zap.Uint64("count", m.GetHistogram().GetSampleCount()),
					zap.Float64("sum", m.GetHistogram().GetSampleSum()))
			default:
				continue
			}
			logger.Info("metric", fields...)
		}
	}
}
