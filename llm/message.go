package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Role 消息角色
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentPart is one element of an OpenAI-style multimodal content array.
type ContentPart struct {
	Type     string    `json:"type"` // text | image_url
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL holds an http(s) URL or a data URI.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

// ImagePart builds an image_url content part.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: url}}
}

// Content 是消息内容，可能是以下几种形态之一：
//   - null（assistant 发起工具调用时常见）
//   - 纯文本
//   - 富内容 {Text, Images, ReplyImages}，ReplyImages 来自被引用的消息，展开时排在 Images 之前
//   - 已归一化的多模态数组 Parts
type Content struct {
	Text        string
	Images      []string
	ReplyImages []string
	Parts       []ContentPart

	set bool
}

// TextContent returns plain-text content.
func TextContent(text string) Content {
	return Content{Text: text, set: true}
}

// NullContent returns explicit null content.
func NullContent() Content {
	return Content{}
}

// RichContent returns content carrying images alongside text.
func RichContent(text string, images, replyImages []string) Content {
	return Content{Text: text, Images: images, ReplyImages: replyImages, set: true}
}

// PartsContent returns an already-normalized multimodal array.
func PartsContent(parts ...ContentPart) Content {
	return Content{Parts: parts, set: true}
}

// IsNull reports whether the content is null.
func (c Content) IsNull() bool {
	return !c.set && c.Text == "" && len(c.Parts) == 0 && !c.HasImages()
}

// HasImages reports whether the rich form carries any image.
func (c Content) HasImages() bool {
	return len(c.Images) > 0 || len(c.ReplyImages) > 0
}

// IsParts reports whether the content is an already-normalized part array.
func (c Content) IsParts() bool {
	return len(c.Parts) > 0
}

// PlainText returns the textual body: the text field, or the concatenated text parts.
func (c Content) PlainText() string {
	if !c.IsParts() {
		return c.Text
	}
	var buf bytes.Buffer
	for _, p := range c.Parts {
		if p.Type == "text" {
			buf.WriteString(p.Text)
		}
	}
	return buf.String()
}

// MarshalJSON encodes content the way OpenAI-style APIs expect it.
// Rich content that was never normalized is encoded as a part array.
func (c Content) MarshalJSON() ([]byte, error) {
	switch {
	case c.IsParts():
		return json.Marshal(c.Parts)
	case c.HasImages():
		parts := make([]ContentPart, 0, 1+len(c.ReplyImages)+len(c.Images))
		if c.Text != "" {
			parts = append(parts, TextPart(c.Text))
		}
		for _, u := range c.ReplyImages {
			parts = append(parts, ImagePart(u))
		}
		for _, u := range c.Images {
			parts = append(parts, ImagePart(u))
		}
		return json.Marshal(parts)
	case c.IsNull():
		return []byte("null"), nil
	default:
		return json.Marshal(c.Text)
	}
}

// UnmarshalJSON accepts null, a string, or a part array.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = NullContent()
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = TextContent(s)
		return nil
	case '[':
		var parts []ContentPart
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		*c = PartsContent(parts...)
		return nil
	default:
		return fmt.Errorf("unsupported content shape: %s", string(data[:1]))
	}
}

// FunctionCall 是工具调用的函数部分，Arguments 为 JSON 编码的字符串。
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall 使用 OpenAI 风格的 tool_calls 结构，作为内部规范表示。
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// NewToolCall builds a function-type tool call.
func NewToolCall(id, name, arguments string) ToolCall {
	return ToolCall{ID: id, Type: "function", Function: FunctionCall{Name: name, Arguments: arguments}}
}

// ParseArguments decodes the call arguments as a JSON object.
// Malformed or non-object arguments are wrapped as {"raw": <original>} instead of failing.
func (tc ToolCall) ParseArguments() map[string]any {
	raw := tc.Function.Arguments
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{"raw": raw}
	}
	return args
}

// Message 对话消息。role 为 tool 时必须携带 ToolCallID，指向此前某个 ToolCalls[i].ID。
type Message struct {
	Role       Role       `json:"role"`
	Content    Content    `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// SystemMessage, UserMessage and AssistantMessage are text-message shortcuts.
func SystemMessage(text string) Message { return Message{Role: RoleSystem, Content: TextContent(text)} }

func UserMessage(text string) Message { return Message{Role: RoleUser, Content: TextContent(text)} }

func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: TextContent(text)}
}

// ToolMessage builds the result message for a tool call.
func ToolMessage(callID, name, content string) Message {
	return Message{Role: RoleTool, ToolCallID: callID, Name: name, Content: TextContent(content)}
}
