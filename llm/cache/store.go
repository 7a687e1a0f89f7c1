package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store 字符串键值缓存，用于图片 URL → base64 数据的转换结果。
// 实现需保证并发安全；同一键的并发写入是无害的覆盖。
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// MemoryStore adapts a TTLCache to the Store interface.
type MemoryStore struct {
	local *TTLCache[string]
}

// NewMemoryStore creates an in-process store.
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{local: NewTTLCache[string](capacity, ttl)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool) { return s.local.Get(key) }

func (s *MemoryStore) Set(_ context.Context, key, value string) { s.local.Set(key, value) }

// StoreConfig 多级缓存配置
type StoreConfig struct {
	LocalMaxSize int           // 本地缓存最大条目数
	LocalTTL     time.Duration // 本地缓存 TTL
	RedisTTL     time.Duration // Redis 缓存 TTL
	KeyPrefix    string        // Redis 键前缀
}

// DefaultStoreConfig 默认配置
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		LocalMaxSize: 256,
		LocalTTL:     DefaultTTL,
		RedisTTL:     DefaultTTL,
		KeyPrefix:    "llm:image:",
	}
}

// MultiLevelStore 多级缓存：本地 TTL 缓存作为 L1，Redis 作为 L2，L2 命中时回填 L1。
// Redis 故障只记录日志，调用方退化为未命中。
type MultiLevelStore struct {
	local  *TTLCache[string]
	redis  *redis.Client
	cfg    StoreConfig
	logger *zap.Logger
}

// NewMultiLevelStore creates a store. rdb may be nil, in which case only L1 is used.
func NewMultiLevelStore(rdb *redis.Client, cfg StoreConfig, logger *zap.Logger) *MultiLevelStore {
	def := DefaultStoreConfig()
	if cfg.LocalTTL <= 0 {
		cfg.LocalTTL = def.LocalTTL
	}
	if cfg.RedisTTL <= 0 {
		cfg.RedisTTL = def.RedisTTL
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MultiLevelStore{
		local:  NewTTLCache[string](cfg.LocalMaxSize, cfg.LocalTTL),
		redis:  rdb,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "image_cache")),
	}
}

// Get 先查本地，再查 Redis。
func (s *MultiLevelStore) Get(ctx context.Context, key string) (string, bool) {
	if v, ok := s.local.Get(key); ok {
		return v, true
	}
	if s.redis == nil {
		return "", false
	}

	v, err := s.redis.Get(ctx, s.cfg.KeyPrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("redis get error", zap.Error(err))
		}
		return "", false
	}
	s.local.Set(key, v)
	s.logger.Debug("redis cache hit", zap.String("key", key))
	return v, true
}

// Set 同时写入本地与 Redis。
func (s *MultiLevelStore) Set(ctx context.Context, key, value string) {
	s.local.Set(key, value)
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, s.cfg.KeyPrefix+key, value, s.cfg.RedisTTL).Err(); err != nil {
		s.logger.Warn("redis set error", zap.Error(err))
	}
}
