package streaming

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
)

// 流式响应的事件类型：message_start, content_block_start, content_block_delta,
// content_block_stop, message_delta, message_stop, ping, error
type anthropicEvent struct {
	Type         string `json:"type"`
	Index        int    `json:"index"`
	ContentBlock *struct {
		Type  string          `json:"type"` // text, tool_use
		Text  string          `json:"text,omitempty"`
		ID    string          `json:"id,omitempty"`
		Name  string          `json:"name,omitempty"`
		Input json.RawMessage `json:"input,omitempty"`
	} `json:"content_block,omitempty"`
	Delta *struct {
		Type        string `json:"type"` // text_delta, input_json_delta
		Text        string `json:"text,omitempty"`
		PartialJSON string `json:"partial_json,omitempty"`
		StopReason  string `json:"stop_reason,omitempty"`
	} `json:"delta,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ConsumeAnthropic reads a Messages API SSE body. Text arrives in content_block_start
// (content_block.text) and content_block_delta (delta.text); tool_use blocks are
// assembled from input_json_delta fragments keyed by block index.
func ConsumeAnthropic(ctx context.Context, body io.Reader, provider string, onText TextFunc) (Result, error) {
	var (
		content strings.Builder
		finish  string
		calls   = newToolCallAccumulator()
		inputs  = make(map[int]json.RawMessage)
	)

	emit := func(text string) {
		if text == "" {
			return
		}
		content.WriteString(text)
		if onText != nil {
			onText(text)
		}
	}

	err := ScanEvents(ctx, body, provider, func(ev Event) (bool, error) {
		if ev.Data == DoneSentinel {
			return true, nil
		}
		var event anthropicEvent
		if json.Unmarshal([]byte(ev.Data), &event) != nil {
			return false, nil
		}
		if event.Type == "" {
			event.Type = ev.Name
		}

		switch event.Type {
		case "content_block_start":
			if event.ContentBlock == nil {
				break
			}
			switch event.ContentBlock.Type {
			case "tool_use":
				calls.add(event.Index, event.ContentBlock.ID, "function", event.ContentBlock.Name, "")
				if len(event.ContentBlock.Input) > 0 {
					inputs[event.Index] = event.ContentBlock.Input
				}
			default:
				emit(event.ContentBlock.Text)
			}

		case "content_block_delta":
			if event.Delta == nil {
				break
			}
			switch event.Delta.Type {
			case "input_json_delta":
				calls.add(event.Index, "", "", "", event.Delta.PartialJSON)
				delete(inputs, event.Index)
			default:
				emit(event.Delta.Text)
			}

		case "message_delta":
			if event.Delta != nil && event.Delta.StopReason != "" {
				finish = event.Delta.StopReason
			}

		case "message_stop":
			return true, nil

		case "error":
			msg := "stream error"
			if event.Error != nil && event.Error.Message != "" {
				msg = event.Error.Message
			}
			code := llm.ErrUpstreamError
			status := http.StatusBadGateway
			if event.Error != nil && event.Error.Type == "overloaded_error" {
				code = llm.ErrModelOverloaded
				status = 529
			}
			return true, &llm.Error{Code: code, Message: msg, HTTPStatus: status, Retryable: true, Provider: provider}
		}
		return false, nil
	})
	if err != nil {
		return Result{Content: content.String()}, err
	}

	// tool_use 块若只在 start 中给出完整 input（无增量），直接采用
	for idx, input := range inputs {
		if string(input) != "{}" {
			calls.add(idx, "", "", "", string(input))
		}
	}

	return Result{Content: content.String(), ToolCalls: calls.result(), FinishReason: finish}, nil
}
