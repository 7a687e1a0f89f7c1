package streaming

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
)

type openAIChunk struct {
	Choices []struct {
		Index        int          `json:"index"`
		Delta        *openAIDelta `json:"delta,omitempty"`
		Message      *openAIDelta `json:"message,omitempty"`
		FinishReason string       `json:"finish_reason,omitempty"`
	} `json:"choices"`
	// 部分兼容服务把 delta 放在顶层
	Delta *openAIDelta `json:"delta,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type openAIDelta struct {
	Content   string `json:"content"`
	ToolCalls []struct {
		Index    *int   `json:"index,omitempty"`
		ID       string `json:"id,omitempty"`
		Type     string `json:"type,omitempty"`
		Function struct {
			Name      string `json:"name,omitempty"`
			Arguments string `json:"arguments,omitempty"`
		} `json:"function"`
	} `json:"tool_calls,omitempty"`
}

// ConsumeOpenAI reads an OpenAI-style SSE body ("data: {...}" frames, terminated by
// "data: [DONE]" or end of body). Text deltas are forwarded to onText immediately;
// tool-call fragments are accumulated by index. Non-JSON payloads are skipped.
func ConsumeOpenAI(ctx context.Context, body io.Reader, provider string, onText TextFunc) (Result, error) {
	var (
		content strings.Builder
		finish  string
		calls   = newToolCallAccumulator()
	)

	err := ScanEvents(ctx, body, provider, func(ev Event) (bool, error) {
		if ev.Data == DoneSentinel {
			return true, nil
		}
		var chunk openAIChunk
		if json.Unmarshal([]byte(ev.Data), &chunk) != nil {
			return false, nil
		}
		if chunk.Error != nil && chunk.Error.Message != "" {
			return true, &llm.Error{
				Code:       llm.ErrUpstreamError,
				Message:    chunk.Error.Message,
				HTTPStatus: http.StatusBadGateway,
				Retryable:  true,
				Provider:   provider,
			}
		}

		deltas := make([]*openAIDelta, 0, 1)
		if chunk.Delta != nil {
			deltas = append(deltas, chunk.Delta)
		}
		for _, choice := range chunk.Choices {
			if choice.Index != 0 {
				continue
			}
			if choice.Delta != nil {
				deltas = append(deltas, choice.Delta)
			} else if choice.Message != nil {
				deltas = append(deltas, choice.Message)
			}
			if choice.FinishReason != "" {
				finish = choice.FinishReason
			}
		}

		for _, d := range deltas {
			if d.Content != "" {
				content.WriteString(d.Content)
				if onText != nil {
					onText(d.Content)
				}
			}
			for pos, tc := range d.ToolCalls {
				idx := pos
				if tc.Index != nil {
					idx = *tc.Index
				}
				calls.add(idx, tc.ID, tc.Type, tc.Function.Name, tc.Function.Arguments)
			}
		}
		return false, nil
	})
	if err != nil {
		return Result{Content: content.String()}, err
	}

	return Result{Content: content.String(), ToolCalls: calls.result(), FinishReason: finish}, nil
}
