package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
)

func TestDescribe(t *testing.T) {
	t.Run("llm error", func(t *testing.T) {
		d := Describe(fmt.Errorf("chat: %w", &llm.Error{
			Code: llm.ErrRateLimited, Message: "slow down", HTTPStatus: 429, Provider: "grok", Body: `{"error":"quota"}`,
		}))
		assert.Equal(t, 429, d.Status)
		assert.Equal(t, string(llm.ErrRateLimited), d.Code)
		assert.Equal(t, "LLMError", d.Name)
		assert.Contains(t, d.Message, `{"error":"quota"}`)
	})

	t.Run("deadline", func(t *testing.T) {
		d := Describe(fmt.Errorf("round 1: %w", context.DeadlineExceeded))
		assert.Equal(t, "TimeoutError", d.Name)
		assert.Equal(t, "ETIMEDOUT", d.Code)
	})

	t.Run("errno", func(t *testing.T) {
		err := &url.Error{Op: "Post", URL: "https://api.example.com", Err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}}
		d := Describe(err)
		assert.Equal(t, "ECONNREFUSED", d.Code)
		assert.Equal(t, "NetworkError", d.Name)
	})

	t.Run("dns", func(t *testing.T) {
		d := Describe(&net.DNSError{Err: "no such host", Name: "api.invalid", IsNotFound: true})
		assert.Equal(t, "ENOTFOUND", d.Code)
	})

	t.Run("canceled", func(t *testing.T) {
		d := Describe(context.Canceled)
		assert.Equal(t, "AbortError", d.Name)
		c := Classify(d)
		assert.False(t, c.Timeout)
		assert.False(t, c.Network)
	})

	t.Run("config", func(t *testing.T) {
		d := Describe(&llm.ConfigError{Provider: "x", Reason: "bad"})
		assert.Equal(t, "ConfigError", d.Name)
	})

	t.Run("nil", func(t *testing.T) {
		assert.Equal(t, ErrorDescription{}, Describe(nil))
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		d    ErrorDescription
		want Classification
	}{
		{"429 status", ErrorDescription{Status: 429}, Classification{Client: true, RateLimit: true}},
		{"rate limit text", ErrorDescription{Message: "Rate limit reached for requests"}, Classification{RateLimit: true}},
		{"503 status", ErrorDescription{Status: 503}, Classification{Server: true}},
		{"status in message", ErrorDescription{Message: "openai: HTTP 502: bad gateway"}, Classification{Server: true}},
		{"504 is timeout and 5xx", ErrorDescription{Status: 504}, Classification{Server: true, Timeout: true}},
		{"401", ErrorDescription{Status: 401}, Classification{Client: true, Auth: true}},
		{"403", ErrorDescription{Status: 403}, Classification{Client: true, Auth: true}},
		{"auth text", ErrorDescription{Message: "Incorrect API key provided"}, Classification{Auth: true}},
		{"400", ErrorDescription{Status: 400, Message: "messages is required"}, Classification{Client: true}},
		{"timeout name", ErrorDescription{Name: "TimeoutError"}, Classification{Timeout: true}},
		{"timeout text", ErrorDescription{Message: "request timed out"}, Classification{Timeout: true}},
		{"econnreset code", ErrorDescription{Code: "ECONNRESET"}, Classification{Network: true}},
		{"socket text", ErrorDescription{Message: "socket hang up"}, Classification{Network: true}},
		{"unknown", ErrorDescription{Message: "something odd"}, Classification{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.d))
		})
	}
}

func TestPolicy_Allows(t *testing.T) {
	p := Policy{RetryOn: []Kind{KindRateLimit}}
	assert.True(t, p.Allows(Classification{RateLimit: true}))
	assert.False(t, p.Allows(Classification{Server: true}))
	assert.False(t, p.Allows(Classification{RateLimit: true, Auth: true}))

	all := Policy{RetryOn: []Kind{KindAll}}
	assert.True(t, all.Allows(Classification{Client: true}))
	assert.False(t, all.Allows(Classification{Auth: true}))
	assert.False(t, Policy{}.Allows(Classification{Server: true}))
}

func TestProperty_ClassifyStatusRanges(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("5xx statuses are server errors and never client errors", prop.ForAll(
		func(status int) bool {
			c := Classify(ErrorDescription{Status: status})
			return c.Server && !c.Client && !c.Auth
		},
		gen.IntRange(500, 599),
	))

	properties.Property("4xx statuses are client errors", prop.ForAll(
		func(status int) bool {
			c := Classify(ErrorDescription{Status: status})
			return c.Client && !c.Server && c.RateLimit == (status == 429) && c.Auth == (status == 401 || status == 403)
		},
		gen.IntRange(400, 499),
	))

	properties.Property("auth errors are never allowed, whatever retry_on says", prop.ForAll(
		func(pick int, mask int) bool {
			status := []int{401, 403}[pick]
			p := Policy{RetryOn: []Kind{KindAll}}
			for i, k := range []Kind{KindTimeout, KindNetwork, Kind5xx, KindRateLimit} {
				if mask&(1<<i) != 0 {
					p.RetryOn = append(p.RetryOn, k)
				}
			}
			return !p.Allows(Classify(ErrorDescription{Status: status, Message: "anything"}))
		},
		gen.IntRange(0, 1),
		gen.IntRange(0, 15),
	))

	properties.Property("status embedded in a message is recognized", prop.ForAll(
		func(status int, provider string) bool {
			err := &llm.Error{Message: "failure", HTTPStatus: status, Provider: provider}
			c := Classify(ErrorDescription{Message: err.Error()})
			return c.Server
		},
		gen.IntRange(500, 599),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestClassifyError_WrappedNetError(t *testing.T) {
	err := fmt.Errorf("round 2: %w", &url.Error{Op: "Post", URL: "https://x", Err: errors.New("read: connection reset by peer")})
	c := ClassifyError(err)
	assert.True(t, c.Network)
	assert.False(t, c.Auth)
}
