package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/config"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/providers"
)

func newDialect() *Dialect {
	return &Dialect{deps: providers.Deps{}.WithDefaults(), logger: zap.NewNop()}
}

// roundTripJSON 把请求体序列化后再解析，断言线上格式而不是内部类型。
func roundTripJSON(t *testing.T, body any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestBuildRequest_SystemAndRoles(t *testing.T) {
	d := newDialect()
	msgs := []llm.Message{
		llm.SystemMessage("be brief"),
		llm.SystemMessage("answer in French"),
		llm.UserMessage("hi"),
		llm.UserMessage("again"),
		llm.AssistantMessage("bonjour"),
	}

	body, err := d.BuildRequest(context.Background(), providers.Request{Messages: msgs, Config: Defaults()})
	require.NoError(t, err)
	wire := roundTripJSON(t, body)

	assert.Equal(t, "be brief\n\nanswer in French", wire["system"])
	assert.Equal(t, defaultModel, wire["model"])
	assert.EqualValues(t, defaultMaxTokens, wire["max_tokens"])
	assert.Equal(t, 0.7, wire["temperature"])

	messages := wire["messages"].([]any)
	require.Len(t, messages, 2, "consecutive user messages are merged")
	first := messages[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Len(t, first["content"].([]any), 2)
	assert.Equal(t, "assistant", messages[1].(map[string]any)["role"])
}

func TestBuildRequest_ToolUseAndResult(t *testing.T) {
	d := newDialect()
	msgs := []llm.Message{
		llm.UserMessage("weather?"),
		{Role: llm.RoleAssistant, Content: llm.NullContent(), ToolCalls: []llm.ToolCall{
			llm.NewToolCall("toolu_1", "weather", `{"city":"Paris"}`),
		}},
		llm.ToolMessage("toolu_1", "weather", `{"forecast":"sunny"}`),
	}
	tools := []llm.Tool{{Type: "function", Function: llm.FunctionDefinition{
		Name: "weather", Description: "current weather",
		Parameters: json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}}}`),
	}}}

	body, err := d.BuildRequest(context.Background(), providers.Request{
		Messages:  msgs,
		Config:    config.ProviderConfig{ParallelToolCalls: config.Bool(false)},
		Overrides: llm.Overrides{Tools: tools, ToolChoice: "required"},
	})
	require.NoError(t, err)
	wire := roundTripJSON(t, body)

	messages := wire["messages"].([]any)
	require.Len(t, messages, 3)

	assistant := messages[1].(map[string]any)["content"].([]any)
	require.Len(t, assistant, 1)
	use := assistant[0].(map[string]any)
	assert.Equal(t, "tool_use", use["type"])
	assert.Equal(t, "toolu_1", use["id"])
	assert.Equal(t, map[string]any{"city": "Paris"}, use["input"])

	result := messages[2].(map[string]any)
	assert.Equal(t, "user", result["role"])
	block := result["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "tool_result", block["type"])
	assert.Equal(t, "toolu_1", block["tool_use_id"])
	assert.Equal(t, `{"forecast":"sunny"}`, block["content"])

	wireTools := wire["tools"].([]any)
	require.Len(t, wireTools, 1)
	assert.Contains(t, wireTools[0].(map[string]any), "input_schema")
	assert.Equal(t, map[string]any{"type": "any", "disable_parallel_tool_use": true}, wire["tool_choice"])
}

func TestToolChoice(t *testing.T) {
	assert.Equal(t, map[string]any{"type": "auto"}, toolChoice("auto", llm.Overrides{}, config.ProviderConfig{}))
	assert.Equal(t, map[string]any{"type": "none"}, toolChoice("none", llm.Overrides{}, config.ProviderConfig{ParallelToolCalls: config.Bool(false)}))
	assert.Equal(t, map[string]any{"type": "tool", "name": "weather"},
		toolChoice(map[string]any{"type": "function", "function": map[string]any{"name": "weather"}}, llm.Overrides{}, config.ProviderConfig{}))
	assert.Nil(t, toolChoice(42, llm.Overrides{}, config.ProviderConfig{}))
}

func TestBuildRequest_Images(t *testing.T) {
	imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok.png" {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("\x89PNG\r\n\x1a\nfake"))
			return
		}
		http.NotFound(w, r)
	}))
	defer imageServer.Close()

	d := newDialect()
	msg := llm.Message{Role: llm.RoleUser, Content: llm.PartsContent(
		llm.TextPart("compare"),
		llm.ImagePart(imageServer.URL+"/ok.png"),
		llm.ImagePart(imageServer.URL+"/missing.png"),
		llm.ImagePart("data:image/jpeg;base64,/9j/4AAQ"),
	)}

	body, err := d.BuildRequest(context.Background(), providers.Request{Messages: []llm.Message{msg}})
	require.NoError(t, err)
	wire := roundTripJSON(t, body)

	blocks := wire["messages"].([]any)[0].(map[string]any)["content"].([]any)
	require.Len(t, blocks, 4)

	inline := blocks[1].(map[string]any)["source"].(map[string]any)
	assert.Equal(t, "base64", inline["type"])
	assert.Equal(t, "image/png", inline["media_type"])

	fallback := blocks[2].(map[string]any)["source"].(map[string]any)
	assert.Equal(t, "url", fallback["type"])
	assert.Equal(t, imageServer.URL+"/missing.png", fallback["url"])

	data := blocks[3].(map[string]any)["source"].(map[string]any)
	assert.Equal(t, "base64", data["type"])
	assert.Equal(t, "image/jpeg", data["media_type"])
	assert.Equal(t, "/9j/4AAQ", data["data"])
}

func TestParseResponse(t *testing.T) {
	d := newDialect()
	res, err := d.ParseResponse([]byte(`{
		"content":[
			{"type":"text","text":"Let me "},
			{"type":"text","text":"check."},
			{"type":"tool_use","id":"toolu_9","name":"weather","input":{"city":"Rome"}}
		],
		"stop_reason":"tool_use"}`))
	require.NoError(t, err)
	assert.Equal(t, "Let me check.", res.Content)
	assert.Equal(t, "tool_use", res.FinishReason)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "toolu_9", res.ToolCalls[0].ID)
	assert.JSONEq(t, `{"city":"Rome"}`, res.ToolCalls[0].Function.Arguments)
}

func TestClient_HeadersAndEndpoint(t *testing.T) {
	var gotPath, gotKey, gotVersion, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"hello from claude"}],"stop_reason":"end_turn"}`))
	}))
	defer server.Close()

	client := New(config.ProviderConfig{BaseURL: server.URL, APIKey: "sk-ant"}, providers.Deps{})
	reply, err := client.Chat(context.Background(), []llm.Message{llm.UserMessage("hi")}, llm.Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "hello from claude", reply)
	assert.Equal(t, messagesPath, gotPath)
	assert.Equal(t, "sk-ant", gotKey)
	assert.Equal(t, APIVersion, gotVersion)
	assert.Empty(t, gotAuth)
}

func TestClient_StreamWithToolRound(t *testing.T) {
	var round atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := round.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		if n == 1 {
			fmt.Fprint(w, "event: content_block_start\ndata: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"tool_use\",\"id\":\"toolu_1\",\"name\":\"clock\",\"input\":{}}}\n\n")
			fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":\"{}\"}}\n\n")
			fmt.Fprint(w, "event: message_delta\ndata: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"tool_use\"}}\n\n")
			fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
			return
		}
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"noon\"}}\n\n")
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer server.Close()

	client := New(config.ProviderConfig{BaseURL: server.URL, APIKey: "sk-ant"}, providers.Deps{})

	var texts []string
	var metas int
	err := client.ChatStream(context.Background(), []llm.Message{llm.UserMessage("time?")},
		func(text string, meta *llm.DeltaMetadata) {
			if meta != nil {
				metas++
				return
			}
			texts = append(texts, text)
		}, llm.Overrides{})
	require.NoError(t, err)
	assert.Equal(t, []string{"noon"}, texts)
	assert.Equal(t, 1, metas)
	assert.EqualValues(t, 2, round.Load())
}
