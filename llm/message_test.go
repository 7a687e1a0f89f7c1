package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestContent_MarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		content Content
		want    string
	}{
		{"null", NullContent(), `null`},
		{"text", TextContent("hi"), `"hi"`},
		{"empty text is not null", TextContent(""), `""`},
		{"parts", PartsContent(TextPart("a"), ImagePart("https://x/1.png")),
			`[{"type":"text","text":"a"},{"type":"image_url","image_url":{"url":"https://x/1.png"}}]`},
		{"rich puts reply images first", RichContent("look", []string{"https://x/own.png"}, []string{"https://x/quoted.png"}),
			`[{"type":"text","text":"look"},{"type":"image_url","image_url":{"url":"https://x/quoted.png"}},{"type":"image_url","image_url":{"url":"https://x/own.png"}}]`},
		{"rich without images is text", RichContent("plain", nil, nil), `"plain"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.content)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestContent_UnmarshalJSON(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"assistant","content":null,"tool_calls":[{"id":"c1","type":"function","function":{"name":"f","arguments":"{}"}}]}`), &msg))
	assert.True(t, msg.Content.IsNull())
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "f", msg.ToolCalls[0].Function.Name)

	require.NoError(t, json.Unmarshal([]byte(`{"role":"user","content":"hello"}`), &msg))
	assert.Equal(t, "hello", msg.Content.PlainText())
	assert.False(t, msg.Content.IsParts())

	require.NoError(t, json.Unmarshal([]byte(`{"role":"user","content":[{"type":"text","text":"a"},{"type":"image_url","image_url":{"url":"u"}},{"type":"text","text":"b"}]}`), &msg))
	assert.True(t, msg.Content.IsParts())
	assert.Equal(t, "ab", msg.Content.PlainText())

	var c Content
	assert.Error(t, json.Unmarshal([]byte(`{"text":"object"}`), &c))
}

func TestContent_Predicates(t *testing.T) {
	assert.True(t, NullContent().IsNull())
	assert.False(t, TextContent("").IsNull())
	assert.True(t, RichContent("", nil, []string{"u"}).HasImages())
	assert.False(t, TextContent("x").HasImages())
	assert.Equal(t, "x", RichContent("x", []string{"u"}, nil).PlainText())
}

func TestToolCall_ParseArguments(t *testing.T) {
	tests := []struct {
		name string
		args string
		want map[string]any
	}{
		{"object", `{"city":"Oslo","days":3}`, map[string]any{"city": "Oslo", "days": float64(3)}},
		{"empty", ``, map[string]any{}},
		{"malformed", `{"city":`, map[string]any{"raw": `{"city":`}},
		{"array", `[1,2]`, map[string]any{"raw": `[1,2]`}},
		{"json null", `null`, map[string]any{"raw": `null`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewToolCall("id", "f", tt.args).ParseArguments())
		})
	}
}

func TestMessageConstructors(t *testing.T) {
	tm := ToolMessage("call_1", "weather", `{"ok":true}`)
	assert.Equal(t, RoleTool, tm.Role)
	assert.Equal(t, "call_1", tm.ToolCallID)
	assert.Equal(t, "weather", tm.Name)

	tc := NewToolCall("call_1", "weather", "{}")
	assert.Equal(t, "function", tc.Type)

	assert.Equal(t, RoleSystem, SystemMessage("s").Role)
	assert.Equal(t, RoleAssistant, AssistantMessage("a").Role)
}

// 属性测试：纯文本内容经过 JSON 往返后保持不变。
func TestProperty_TextContentRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.String().Draw(t, "text")
		data, err := json.Marshal(TextContent(text))
		if err != nil {
			t.Fatal(err)
		}
		var back Content
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatal(err)
		}
		if back.PlainText() != text || back.IsNull() {
			t.Fatalf("round trip changed %q into %q", text, back.PlainText())
		}
	})
}
