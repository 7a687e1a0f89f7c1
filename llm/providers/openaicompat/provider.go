// =============================================================================
// OpenAI-Compatible Dialect
// =============================================================================
// Shared wire format for every OpenAI-style vendor.
// Vendors (openai, openai_compat, azure_openai, deepseek, grok) only differ in
// static defaults: base URL, default model, endpoint path, auth mode.
// =============================================================================

package openaicompat

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/config"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/providers"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/streaming"
)

// 内置厂商名
const (
	NameOpenAI      = "openai"
	NameCompat      = "openai_compat"
	NameAzureOpenAI = "azure_openai"
	NameDeepSeek    = "deepseek"
	NameGrok        = "grok"
)

// DefaultAzureAPIVersion is sent when the config has no api_version.
const DefaultAzureAPIVersion = "2024-10-21"

// Variant holds the static defaults of an OpenAI-compatible vendor.
type Variant struct {
	// Name is the unique identifier for this provider (e.g., "deepseek").
	Name string

	// BaseURL is the API base URL. Empty means the caller must supply one.
	BaseURL string

	// Model is used when neither the call nor the config names one.
	Model string

	// Path is the chat completions path relative to BaseURL. Defaults to "/chat/completions".
	Path string

	// AuthMode defaults to bearer.
	AuthMode string

	// ContentMode defaults to multimodal.
	ContentMode config.ContentMode

	// Azure switches to deployment-scoped URLs with a mandatory api-version query parameter.
	Azure bool
}

// Defaults converts the variant into the vendor default config layer.
func (v Variant) Defaults() config.ProviderConfig {
	cfg := config.ProviderConfig{
		Provider:    v.Name,
		BaseURL:     v.BaseURL,
		Model:       v.Model,
		AuthMode:    v.AuthMode,
		ContentMode: v.ContentMode,
	}
	if cfg.AuthMode == "" {
		cfg.AuthMode = providers.AuthBearer
	}
	if v.Azure {
		cfg.APIVersion = DefaultAzureAPIVersion
	}
	return cfg
}

// Variants returns the builtin vendors in registration order.
func Variants() []Variant {
	return []Variant{
		{Name: NameOpenAI, BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini"},
		{Name: NameCompat},
		{Name: NameAzureOpenAI, AuthMode: providers.AuthAPIKey, Azure: true},
		{Name: NameDeepSeek, BaseURL: "https://api.deepseek.com", Model: "deepseek-chat", ContentMode: config.ModeTextOnly},
		{Name: NameGrok, BaseURL: "https://api.x.ai/v1", Model: "grok-beta"},
	}
}

// Lookup finds a builtin variant by name.
func Lookup(name string) (Variant, bool) {
	for _, v := range Variants() {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// New creates a client speaking the OpenAI chat completions protocol.
func New(v Variant, cfg config.ProviderConfig, deps providers.Deps) *providers.Client {
	return providers.NewClient(v.Name, &Dialect{Variant: v}, cfg, deps)
}

// =============================================================================
// Dialect
// =============================================================================

// Dialect implements providers.Dialect for OpenAI-style APIs.
type Dialect struct {
	Variant Variant
}

// Defaults returns the vendor default layer.
func (d *Dialect) Defaults() config.ProviderConfig { return d.Variant.Defaults() }

// Validate checks base URL and, for Azure, the deployment.
func (d *Dialect) Validate(cfg config.ProviderConfig) error {
	if err := providers.RequireBaseURL(cfg, d.Variant.Name); err != nil {
		return err
	}
	if d.Variant.Azure && strings.TrimSpace(cfg.Deployment) == "" {
		return &llm.ConfigError{Provider: d.Variant.Name, Field: "deployment", Reason: "is required"}
	}
	return nil
}

// Endpoint builds the chat completions URL.
func (d *Dialect) Endpoint(cfg config.ProviderConfig, _ bool) (string, error) {
	if !d.Variant.Azure {
		path := cfg.Path
		if path == "" {
			path = d.Variant.Path
		}
		if path == "" {
			path = "/chat/completions"
		}
		return providers.JoinURL(cfg.BaseURL, path), nil
	}

	path := cfg.Path
	if path == "" {
		path = "/openai/deployments/" + url.PathEscape(strings.TrimSpace(cfg.Deployment)) + "/chat/completions"
	}
	version := cfg.APIVersion
	if version == "" {
		version = DefaultAzureAPIVersion
	}
	return providers.JoinURL(cfg.BaseURL, path) + "?api-version=" + url.QueryEscape(version), nil
}

// BuildRequest builds the OpenAI-style body and injects tools.
func (d *Dialect) BuildRequest(_ context.Context, req providers.Request) (any, error) {
	body := providers.BuildChatBody(wireMessages(req.Messages), req.Config, req.Overrides, d.Variant.Model)
	if req.Stream {
		body["stream"] = true
	}
	providers.ApplyTools(body, req.Config, req.Overrides, req.Tools)
	return body, nil
}

// wireMessages drops fields OpenAI rejects on tool messages.
func wireMessages(msgs []llm.Message) []llm.Message {
	out := make([]llm.Message, len(msgs))
	for i, m := range msgs {
		if m.Role == llm.RoleTool {
			m.Name = ""
		}
		out[i] = m
	}
	return out
}

// ConsumeStream reads one SSE round.
func (d *Dialect) ConsumeStream(ctx context.Context, body io.Reader, provider string, onText streaming.TextFunc) (streaming.Result, error) {
	return streaming.ConsumeOpenAI(ctx, body, provider, onText)
}

// =============================================================================
// 响应解析
// =============================================================================

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   llm.Content    `json:"content"`
			ToolCalls []wireToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// wireToolCall tolerates vendors that send arguments as an object instead of a string.
type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

// ParseResponse extracts the first choice. A body without choices is an empty round.
func (d *Dialect) ParseResponse(data []byte) (streaming.Result, error) {
	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return streaming.Result{}, err
	}
	if len(resp.Choices) == 0 {
		return streaming.Result{}, nil
	}

	choice := resp.Choices[0]
	res := streaming.Result{
		Content:      choice.Message.Content.PlainText(),
		FinishReason: choice.FinishReason,
	}
	for _, tc := range choice.Message.ToolCalls {
		if tc.Function.Name == "" {
			continue
		}
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		res.ToolCalls = append(res.ToolCalls, llm.NewToolCall(id, tc.Function.Name, argumentsString(tc.Function.Arguments)))
	}
	return res, nil
}

func argumentsString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "{}"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return "{}"
		}
		return s
	}
	return string(raw)
}
