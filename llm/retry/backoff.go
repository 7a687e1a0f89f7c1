package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// Kind 可重试的错误类别，用于 Policy.RetryOn。
type Kind string

const (
	KindTimeout   Kind = "timeout"
	KindNetwork   Kind = "network"
	Kind5xx       Kind = "5xx"
	KindRateLimit Kind = "rate_limit"
	KindAll       Kind = "all"
)

// ValidKind reports whether k is a known retry_on value.
func ValidKind(k Kind) bool {
	switch k {
	case KindTimeout, KindNetwork, Kind5xx, KindRateLimit, KindAll:
		return true
	}
	return false
}

// 默认值
const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 2 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultMultiplier  = 2.0
	DefaultJitter      = 0.1
)

// Policy 定义重试策略。
// 第 n 次失败后（从 1 开始）的等待时间为 min(Delay * Multiplier^(n-1), MaxDelay)，
// 再叠加 ±Jitter 比例的均匀抖动，最小为 0。
type Policy struct {
	Enabled     bool          `yaml:"enabled" json:"enabled" env:"ENABLED"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts" env:"MAX_ATTEMPTS"`                   // 总尝试次数（含首次）
	Delay       time.Duration `yaml:"delay" json:"delay" env:"DELAY"`                                        // 初始延迟
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay" env:"MAX_DELAY"`                            // 最大延迟
	Multiplier  float64       `yaml:"backoff_multiplier" json:"backoff_multiplier" env:"BACKOFF_MULTIPLIER"` // 指数退避倍数
	RetryOn     []Kind        `yaml:"retry_on" json:"retry_on" env:"RETRY_ON"`                               // 触发重试的错误类别
	Jitter      float64       `yaml:"jitter" json:"jitter" env:"JITTER"`                                     // 抖动比例，0 表示不抖动
}

// DefaultPolicy 返回默认的重试策略：3 次尝试，2s 起步，10s 封顶，超时/网络/5xx/限流均重试。
func DefaultPolicy() Policy {
	return Policy{
		Enabled:     true,
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultDelay,
		MaxDelay:    DefaultMaxDelay,
		Multiplier:  DefaultMultiplier,
		RetryOn:     []Kind{KindTimeout, KindNetwork, Kind5xx, KindRateLimit},
		Jitter:      DefaultJitter,
	}
}

// Normalize 修正非法参数。禁用的策略只尝试一次。
func (p Policy) Normalize() Policy {
	if !p.Enabled {
		p.MaxAttempts = 1
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultMultiplier
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Jitter > 1 {
		p.Jitter = 1
	}
	return p
}

// Allows reports whether an error of the given classification may be retried under p.
// Authentication failures are never retried.
func (p Policy) Allows(c Classification) bool {
	if c.Auth {
		return false
	}
	for _, k := range p.RetryOn {
		switch k {
		case KindAll:
			return true
		case KindTimeout:
			if c.Timeout {
				return true
			}
		case KindNetwork:
			if c.Network {
				return true
			}
		case Kind5xx:
			if c.Server {
				return true
			}
		case KindRateLimit:
			if c.RateLimit {
				return true
			}
		}
	}
	return false
}

// BaseDelay 计算第 attempt 次失败后的延迟（不含抖动）。
func (p Policy) BaseDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.Delay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) || math.IsInf(delay, 0) || math.IsNaN(delay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

// Backoff 计算实际等待时间：基础延迟与 Retry-After 取大者（仍受 MaxDelay 限制），再叠加抖动。
func (p Policy) Backoff(attempt int, retryAfter time.Duration) time.Duration {
	delay := float64(p.BaseDelay(attempt))
	if ra := float64(retryAfter); ra > delay {
		delay = math.Min(ra, float64(p.MaxDelay))
	}

	// 抖动：±Jitter 均匀分布
	if p.Jitter > 0 {
		delay += (rand.Float64()*2 - 1) * p.Jitter * delay
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
