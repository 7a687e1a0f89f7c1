package llm

import (
	"errors"
	"fmt"
	"time"
)

// 统一的 LLM 错误码，用于对齐 HTTP 状态与重试分类。
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "LLM_INVALID_REQUEST"    // 其他 4xx
	ErrUnauthorized      ErrorCode = "LLM_UNAUTHORIZED"       // 401
	ErrForbidden         ErrorCode = "LLM_FORBIDDEN"          // 403
	ErrRateLimited       ErrorCode = "LLM_RATE_LIMITED"       // 429
	ErrQuotaExceeded     ErrorCode = "LLM_QUOTA_EXCEEDED"     // 配额用尽
	ErrModelOverloaded   ErrorCode = "LLM_MODEL_OVERLOADED"   // 529
	ErrUpstreamTimeout   ErrorCode = "LLM_UPSTREAM_TIMEOUT"   // 上游超时
	ErrUpstreamError     ErrorCode = "LLM_UPSTREAM_ERROR"     // 5xx / 网络错误
	ErrMalformedResponse ErrorCode = "LLM_MALFORMED_RESPONSE" // 响应体无法解析
)

// Error is the provider-neutral failure raised by every client.
// Body keeps the raw response text so classification can inspect it later.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Body       string    `json:"body,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`

	// RetryAfter 来自 429/503 响应的 Retry-After 头，0 表示未提供。
	RetryAfter time.Duration `json:"-"`

	// Cause is the underlying transport error, if any.
	Cause error `json:"-"`
}

func (e *Error) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.HTTPStatus, e.Message)
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// StatusCode exposes the HTTP status for error classification.
func (e *Error) StatusCode() int { return e.HTTPStatus }

// ConfigError 配置错误：缺少 base URL / API key / deployment 等。
// 在任何网络请求之前同步返回，不参与重试。
type ConfigError struct {
	Provider string
	Field    string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("llm config error (%s): %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("llm config error (%s): %s: %s", e.Provider, e.Field, e.Reason)
}

// IsConfigError reports whether err is (or wraps) a configuration error.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
