package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
)

// maxErrorBody 读取错误响应体的上限
const maxErrorBody = 64 << 10

// MapHTTPError 将 HTTP 状态码映射为带有合适重试标记的 llm.Error
// 这是所有提供者使用的通用错误映射函数
func MapHTTPError(status int, msg string, provider string) *llm.Error {
	e := &llm.Error{
		Message:    msg,
		HTTPStatus: status,
		Provider:   provider,
	}
	switch {
	case status == http.StatusUnauthorized:
		e.Code = llm.ErrUnauthorized
	case status == http.StatusForbidden:
		e.Code = llm.ErrForbidden
	case status == http.StatusTooManyRequests:
		e.Code = llm.ErrRateLimited
		e.Retryable = true
	case status == http.StatusRequestTimeout:
		e.Code = llm.ErrUpstreamTimeout
		e.Retryable = true
	case status == http.StatusBadRequest:
		// 检查配额/信用关键字
		msgLower := strings.ToLower(msg)
		if strings.Contains(msgLower, "quota") ||
			strings.Contains(msgLower, "credit") ||
			strings.Contains(msgLower, "limit") {
			e.Code = llm.ErrQuotaExceeded
		} else {
			e.Code = llm.ErrInvalidRequest
		}
	case status == 529: // Model overloaded (used by some providers)
		e.Code = llm.ErrModelOverloaded
		e.Retryable = true
	case status == http.StatusGatewayTimeout:
		e.Code = llm.ErrUpstreamTimeout
		e.Retryable = true
	case status >= 500:
		e.Code = llm.ErrUpstreamError
		e.Retryable = true
	case status >= 400:
		e.Code = llm.ErrInvalidRequest
	default:
		e.Code = llm.ErrUpstreamError
	}
	return e
}

// ReadError 读取非 2xx 响应，返回携带状态码、原始响应体与 Retry-After 的 llm.Error。
func ReadError(resp *http.Response, provider string) *llm.Error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := ParseErrorMessage(data)
	if err != nil && msg == "" {
		msg = "failed to read error response"
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	e := MapHTTPError(resp.StatusCode, msg, provider)
	e.Body = string(data)
	e.RetryAfter = ParseRetryAfter(resp.Header.Get("Retry-After"))
	return e
}

// ParseErrorMessage 提取响应体中的错误消息
// 支持 {"error":{"message":...}}、{"error":"..."}、{"message":...}，失败则回退到原始文本
func ParseErrorMessage(data []byte) string {
	var errResp struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &errResp); err != nil {
		return strings.TrimSpace(string(data))
	}

	if len(errResp.Error) > 0 {
		var detail struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Status  string `json:"status"`
		}
		if err := json.Unmarshal(errResp.Error, &detail); err == nil && detail.Message != "" {
			kind := detail.Type
			if kind == "" {
				kind = detail.Status
			}
			if kind != "" {
				return fmt.Sprintf("%s (type: %s)", detail.Message, kind)
			}
			return detail.Message
		}
		var s string
		if err := json.Unmarshal(errResp.Error, &s); err == nil && s != "" {
			return s
		}
	}
	if errResp.Message != "" {
		return errResp.Message
	}
	return strings.TrimSpace(string(data))
}

// ParseRetryAfter parses a Retry-After header value (delta-seconds or HTTP-date).
// Returns 0 when the value is empty, malformed or already in the past.
func ParseRetryAfter(val string) time.Duration {
	val = strings.TrimSpace(val)
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(val); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// TransportError 把 http.Client.Do 或读取响应体时的错误包装成 llm.Error。
// 主动取消不可重试；超时归为 ErrUpstreamTimeout，其余归为网络错误。
func TransportError(err error, provider string) *llm.Error {
	e := &llm.Error{
		Code:      llm.ErrUpstreamError,
		Message:   err.Error(),
		Retryable: true,
		Provider:  provider,
		Cause:     err,
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		e.Retryable = false
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		e.Code = llm.ErrUpstreamTimeout
	}
	return e
}

// MalformedError 表示响应体无法解析。
func MalformedError(err error, provider string) *llm.Error {
	return &llm.Error{
		Code:     llm.ErrMalformedResponse,
		Message:  fmt.Sprintf("malformed response: %v", err),
		Provider: provider,
		Cause:    err,
	}
}

// SafeCloseBody 安全关闭 HTTP 响应体并忽略错误
func SafeCloseBody(body io.ReadCloser) {
	if body != nil {
		_ = body.Close()
	}
}
