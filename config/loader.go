// =============================================================================
// 📦 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("llm.yaml").
//	    WithEnvPrefix("XRK").
//	    WithProviders("openai", "gemini").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	llmconfig "github.com/sunflowermm/XRK-Yunzai-sub003/llm/config"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/retry"
)

// DefaultEnvPrefix 环境变量默认前缀
const DefaultEnvPrefix = "XRK"

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 完整配置结构
type Config struct {
	// DefaultProvider 默认 Provider 名称，为空时由工厂按注册顺序选择
	DefaultProvider string `yaml:"default_provider" env:"DEFAULT_PROVIDER"`

	// Providers 按 Provider 名称索引的外部配置
	Providers map[string]llmconfig.ProviderConfig `yaml:"providers" env:"-"`

	// Retry 调用重试策略
	Retry retry.Policy `yaml:"retry" env:"RETRY"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Cache 图片缓存配置
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
}

// CacheConfig 图片 base64 缓存配置。RedisAddr 为空时只使用进程内缓存。
type CacheConfig struct {
	LocalMaxSize  int           `yaml:"local_max_size" env:"LOCAL_MAX_SIZE"`
	TTL           time.Duration `yaml:"ttl" env:"TTL"`
	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"REDIS_DB"`
	KeyPrefix     string        `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// ProviderConfig 返回 name 对应的外部配置。实现 factory.ConfigSource。
func (c *Config) ProviderConfig(name string) (llmconfig.ProviderConfig, bool) {
	if c == nil {
		return llmconfig.ProviderConfig{}, false
	}
	pc, ok := c.Providers[name]
	return pc, ok
}

// DefaultProviderName 实现 factory.DefaultNamer。
func (c *Config) DefaultProviderName() string {
	if c == nil {
		return ""
	}
	return c.DefaultProvider
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	dotEnv     []string
	providers  []string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  DefaultEnvPrefix,
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithDotEnv 在读取环境变量前加载 .env 文件；不存在的文件被忽略，已存在的环境变量不会被覆盖。
func (l *Loader) WithDotEnv(paths ...string) *Loader {
	l.dotEnv = append(l.dotEnv, paths...)
	return l
}

// WithProviders 声明需要从环境变量读取凭据的 Provider 名称（配置文件中出现的名称总会被读取）。
func (l *Loader) WithProviders(names ...string) *Loader {
	l.providers = append(l.providers, names...)
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	for _, path := range l.dotEnv {
		if err := loadDotEnv(path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	if err := setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return err
	}
	l.loadProvidersFromEnv(cfg)
	return nil
}

// loadProvidersFromEnv 读取 <PREFIX>_<PROVIDER>_API_KEY / _BASE_URL / _MODEL。
func (l *Loader) loadProvidersFromEnv(cfg *Config) {
	names := make([]string, 0, len(cfg.Providers)+len(l.providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	names = append(names, l.providers...)

	for _, name := range names {
		key := EnvKey(l.envPrefix, name)
		apiKey := os.Getenv(key + "_API_KEY")
		baseURL := os.Getenv(key + "_BASE_URL")
		model := os.Getenv(key + "_MODEL")
		if apiKey == "" && baseURL == "" && model == "" {
			continue
		}

		if cfg.Providers == nil {
			cfg.Providers = make(map[string]llmconfig.ProviderConfig)
		}
		pc := cfg.Providers[name]
		if apiKey != "" {
			pc.APIKey = apiKey
		}
		if baseURL != "" {
			pc.BaseURL = baseURL
		}
		if model != "" {
			pc.Model = model
		}
		cfg.Providers[name] = pc
	}
}

// EnvKey 返回 Provider 的环境变量前缀，如 ("XRK", "azure_openai") → "XRK_AZURE_OPENAI"。
func EnvKey(prefix, provider string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(provider) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	if prefix == "" {
		return b.String()
	}
	return prefix + "_" + b.String()
}

// setFieldsFromEnv 递归设置结构体字段
func setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}
	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔；元素可以是 string 的具名类型（如 retry.Kind）
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			slice := reflect.MakeSlice(field.Type(), 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p == "" {
					continue
				}
				elem := reflect.New(field.Type().Elem()).Elem()
				elem.SetString(p)
				slice = reflect.Append(slice, elem)
			}
			field.Set(slice)
		}
	}
	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, "retry.max_attempts must not be negative")
	}
	if c.Retry.Delay < 0 || c.Retry.MaxDelay < 0 {
		errs = append(errs, "retry delays must not be negative")
	}
	for _, k := range c.Retry.RetryOn {
		if !retry.ValidKind(k) {
			errs = append(errs, fmt.Sprintf("unknown retry_on kind %q", k))
		}
	}
	for name, pc := range c.Providers {
		if pc.Provider != "" && pc.Provider != name {
			errs = append(errs, fmt.Sprintf("providers.%s: provider field %q does not match key", name, pc.Provider))
		}
		if pc.ContentMode != "" && pc.ContentMode != llmconfig.ModeMultimodal && pc.ContentMode != llmconfig.ModeTextOnly {
			errs = append(errs, fmt.Sprintf("providers.%s: unknown content_mode %q", name, pc.ContentMode))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
