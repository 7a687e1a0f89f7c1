package providers

import (
	"net/http"
	"strings"
)

// 鉴权模式
const (
	AuthBearer  = "bearer"    // Authorization: Bearer <key>
	AuthAPIKey  = "api-key"   // api-key: <key>（Azure OpenAI）
	AuthXAPIKey = "x-api-key" // x-api-key: <key>（Anthropic）
	AuthQuery   = "query"     // ?key=<key>（Gemini）
	AuthNone    = "none"

	// AuthHeaderPrefix 形如 "header:X-Goog-Api-Key"，把密钥放进任意请求头。
	AuthHeaderPrefix = "header:"
)

// ApplyAuth sets credentials on req according to mode. An empty mode falls back to
// defaultMode, then to bearer. A blank key leaves the request untouched.
func ApplyAuth(req *http.Request, mode, defaultMode, apiKey string) {
	if apiKey == "" {
		return
	}
	mode = strings.TrimSpace(mode)
	if mode == "" {
		mode = defaultMode
	}
	switch {
	case mode == AuthNone:
	case mode == AuthAPIKey:
		req.Header.Set("api-key", apiKey)
	case mode == AuthXAPIKey:
		req.Header.Set("x-api-key", apiKey)
	case mode == AuthQuery:
		q := req.URL.Query()
		q.Set("key", apiKey)
		req.URL.RawQuery = q.Encode()
	case strings.HasPrefix(strings.ToLower(mode), AuthHeaderPrefix):
		name := strings.TrimSpace(mode[len(AuthHeaderPrefix):])
		if name == "" {
			name = "Authorization"
		}
		req.Header.Set(name, apiKey)
	default:
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

// RequiresKey reports whether the auth mode needs an API key at all.
func RequiresKey(mode, defaultMode string) bool {
	if strings.TrimSpace(mode) == "" {
		mode = defaultMode
	}
	return mode != AuthNone
}
