package tools

import (
	"context"
	"encoding/json"
)

// Definition 是工具注册表对外暴露的工具描述。
// InputSchema 为 JSON-Schema 风格对象（type / properties / required / enum / default）。
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Call 是一次工具调用请求，Arguments 已解析为对象。
type Call struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ContentItem 是工具返回内容的一项。
type ContentItem struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

// CallResult 是注册表返回的调用结果。IsError 表示工具自身报告了失败。
type CallResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// Text joins all text items with newlines.
func (r CallResult) Text() string {
	switch len(r.Content) {
	case 0:
		return ""
	case 1:
		return r.Content[0].Text
	}
	out := r.Content[0].Text
	for _, item := range r.Content[1:] {
		out += "\n" + item.Text
	}
	return out
}

// Registry 是外部工具注册表的接口，实现方可以是本地注册表或 MCP 之类的远程服务。
// stream 为空表示列出全部工具，否则只列出属于该能力流的工具。
type Registry interface {
	ListTools(stream string) []Definition
	HandleToolCall(ctx context.Context, call Call) (CallResult, error)
}
