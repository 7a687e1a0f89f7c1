package llm

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap/zapcore"
)

const maskedSecret = "***"

type credentialKey struct{}

// CredentialOverride 替换单次请求使用的 API Key，其余配置不变。
// 只经由 context 传递；打印、JSON 与 zap 日志中均只显示掩码。
type CredentialOverride struct {
	APIKey string
}

// IsZero reports whether the override carries no usable key.
func (c CredentialOverride) IsZero() bool {
	return strings.TrimSpace(c.APIKey) == ""
}

func (c CredentialOverride) masked() string {
	if c.IsZero() {
		return ""
	}
	return maskedSecret
}

func (c CredentialOverride) String() string {
	if c.IsZero() {
		return "CredentialOverride{}"
	}
	return "CredentialOverride{APIKey:" + c.masked() + "}"
}

func (c CredentialOverride) MarshalJSON() ([]byte, error) {
	out := map[string]string{}
	if !c.IsZero() {
		out["api_key"] = c.masked()
	}
	return json.Marshal(out)
}

// MarshalLogObject 实现 zapcore.ObjectMarshaler。
func (c CredentialOverride) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddBool("api_key_set", !c.IsZero())
	return nil
}

// WithCredentialOverride returns ctx carrying c. A blank key leaves ctx unchanged
// so callers can pass optional input straight through.
func WithCredentialOverride(ctx context.Context, c CredentialOverride) context.Context {
	if c.IsZero() {
		return ctx
	}
	c.APIKey = strings.TrimSpace(c.APIKey)
	return context.WithValue(ctx, credentialKey{}, c)
}

// CredentialOverrideFromContext returns the override stored by WithCredentialOverride.
func CredentialOverrideFromContext(ctx context.Context) (CredentialOverride, bool) {
	c, ok := ctx.Value(credentialKey{}).(CredentialOverride)
	return c, ok
}
