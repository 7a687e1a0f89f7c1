package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/retry"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.Empty(t, cfg.DefaultProvider)
	assert.NotNil(t, cfg.Providers)
	assert.Equal(t, retry.DefaultPolicy(), cfg.Retry)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"stderr"}, cfg.Log.OutputPaths)

	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Empty(t, cfg.Cache.RedisAddr)
	assert.False(t, cfg.Metrics.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestCacheConfig_StoreConfig(t *testing.T) {
	sc := CacheConfig{LocalMaxSize: 10, TTL: time.Minute, KeyPrefix: "img:"}.StoreConfig()
	assert.Equal(t, 10, sc.LocalMaxSize)
	assert.Equal(t, time.Minute, sc.LocalTTL)
	assert.Equal(t, time.Minute, sc.RedisTTL)
	assert.Equal(t, "img:", sc.KeyPrefix)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{" warn ", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestLogConfig_Build(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		t.Run("format="+format, func(t *testing.T) {
			logger, err := LogConfig{Level: "debug", Format: format, OutputPaths: []string{"stderr"}}.Build()
			require.NoError(t, err)
			require.NotNil(t, logger)
			assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
		})
	}

	logger, err := LogConfig{Level: "warn"}.Build()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
}
