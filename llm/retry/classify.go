package retry

import (
	"context"
	"errors"
	"net"
	"net/url"
	"regexp"
	"strings"
	"syscall"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
)

// ErrorDescription 是错误分类的输入：消息、错误码、HTTP 状态与错误名。
// 厂商错误没有统一类型，分类只能基于这几个字段做启发式判断。
type ErrorDescription struct {
	Message string
	Code    string
	Status  int
	Name    string
}

// Classification 错误分类结果。
type Classification struct {
	Timeout   bool
	Network   bool
	Server    bool // 5xx
	Client    bool // 4xx
	RateLimit bool
	Auth      bool
}

// Kinds returns the retryable kinds set in c.
func (c Classification) Kinds() []Kind {
	var out []Kind
	if c.Timeout {
		out = append(out, KindTimeout)
	}
	if c.Network {
		out = append(out, KindNetwork)
	}
	if c.Server {
		out = append(out, Kind5xx)
	}
	if c.RateLimit {
		out = append(out, KindRateLimit)
	}
	return out
}

var errnoCodes = map[syscall.Errno]string{
	syscall.ECONNREFUSED: "ECONNREFUSED",
	syscall.ECONNRESET:   "ECONNRESET",
	syscall.ECONNABORTED: "ECONNABORTED",
	syscall.ETIMEDOUT:    "ETIMEDOUT",
	syscall.EPIPE:        "EPIPE",
	syscall.ENETUNREACH:  "ENETUNREACH",
	syscall.EHOSTUNREACH: "EHOSTUNREACH",
}

// Describe 从错误链中提取分类所需的字段。
// 识别 *llm.Error、*llm.ConfigError、context.DeadlineExceeded、net.Error、*net.DNSError、
// syscall.Errno 与 *url.Error；其他错误只保留消息文本。
func Describe(err error) ErrorDescription {
	if err == nil {
		return ErrorDescription{}
	}
	d := ErrorDescription{Message: err.Error(), Name: "Error"}

	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		d.Code = string(llmErr.Code)
		d.Status = llmErr.HTTPStatus
		d.Name = "LLMError"
		if llmErr.Body != "" && !strings.Contains(d.Message, llmErr.Body) {
			d.Message += " " + llmErr.Body
		}
	}

	var cfgErr *llm.ConfigError
	if errors.As(err, &cfgErr) {
		d.Name = "ConfigError"
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if code, ok := errnoCodes[errno]; ok {
			d.Code = code
		}
		d.Name = "NetworkError"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		d.Code = "ENOTFOUND"
		d.Name = "NetworkError"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && d.Name != "NetworkError" {
		d.Name = "NetworkError"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && d.Name == "Error" {
		d.Name = "NetworkError"
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		d.Name = "TimeoutError"
		if d.Code == "" {
			d.Code = "ETIMEDOUT"
		}
	}

	if errors.Is(err, context.Canceled) {
		d.Name = "AbortError"
	}
	return d
}

var (
	timeoutPatterns   = []string{"timeout", "timed out", "deadline exceeded", "etimedout"}
	networkPatterns   = []string{"econnrefused", "econnreset", "econnaborted", "enotfound", "eai_again", "epipe", "enetunreach", "ehostunreach", "connection refused", "connection reset", "no such host", "broken pipe", "network", "socket hang up", "fetch failed", "unexpected eof"}
	rateLimitPatterns = []string{"rate limit", "rate_limit", "ratelimit", "too many requests"}
	authPatterns      = []string{"unauthorized", "invalid api key", "invalid_api_key", "incorrect api key", "authentication", "permission denied", "forbidden"}

	// 消息中出现的 HTTP 状态，例如 "HTTP 503"、"status 502"、"status code: 429"
	statusInMessage = regexp.MustCompile(`(?i)\b(?:http|status(?: code)?)[\s:]*([1-5]\d\d)\b`)
)

// Classify 对错误做启发式分类，纯函数。
func Classify(d ErrorDescription) Classification {
	msg := strings.ToLower(d.Message)
	code := strings.ToLower(d.Code)
	name := strings.ToLower(d.Name)

	status := d.Status
	if status == 0 {
		if m := statusInMessage.FindStringSubmatch(d.Message); m != nil {
			status = atoi(m[1])
		}
	}

	var c Classification
	c.Timeout = status == 408 || status == 504 ||
		strings.Contains(name, "timeout") ||
		code == "etimedout" || code == strings.ToLower(string(llm.ErrUpstreamTimeout)) ||
		containsAny(msg, timeoutPatterns)

	c.Network = name == "networkerror" ||
		containsAny(code, networkPatterns) ||
		containsAny(msg, networkPatterns)

	c.Server = status >= 500 && status <= 599
	c.Client = status >= 400 && status <= 499

	c.RateLimit = status == 429 ||
		code == strings.ToLower(string(llm.ErrRateLimited)) ||
		containsAny(msg, rateLimitPatterns)

	c.Auth = status == 401 || status == 403 ||
		code == strings.ToLower(string(llm.ErrUnauthorized)) ||
		code == strings.ToLower(string(llm.ErrForbidden)) ||
		containsAny(msg, authPatterns)

	// 主动取消不属于任何可重试类别
	if name == "aborterror" {
		c.Timeout, c.Network = false, false
	}
	return c
}

// ClassifyError is shorthand for Classify(Describe(err)).
func ClassifyError(err error) Classification {
	return Classify(Describe(err))
}

func containsAny(s string, patterns []string) bool {
	if s == "" {
		return false
	}
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
