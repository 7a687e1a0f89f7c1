package streaming

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
)

// GeminiResponse is the shape of both generateContent responses and
// streamGenerateContent?alt=sse frames.
type GeminiResponse struct {
	Candidates []struct {
		Content struct {
			Role  string       `json:"role"`
			Parts []GeminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason,omitempty"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// GeminiPart is one response part. Thought parts carry reasoning and are not forwarded.
type GeminiPart struct {
	Text         string `json:"text,omitempty"`
	Thought      bool   `json:"thought,omitempty"`
	FunctionCall *struct {
		Name string         `json:"name"`
		Args map[string]any `json:"args,omitempty"`
	} `json:"functionCall,omitempty"`
}

// Text returns the concatenated non-thought text of the first candidate.
func (r GeminiResponse) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		if !p.Thought {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// ToolCalls converts functionCall parts of the first candidate. Gemini issues no call IDs,
// so one is generated per call.
func (r GeminiResponse) ToolCalls() []llm.ToolCall {
	if len(r.Candidates) == 0 {
		return nil
	}
	var out []llm.ToolCall
	for _, p := range r.Candidates[0].Content.Parts {
		if p.FunctionCall == nil || p.FunctionCall.Name == "" {
			continue
		}
		args := []byte("{}")
		if len(p.FunctionCall.Args) > 0 {
			if b, err := json.Marshal(p.FunctionCall.Args); err == nil {
				args = b
			}
		}
		out = append(out, llm.NewToolCall("call_"+uuid.NewString(), p.FunctionCall.Name, string(args)))
	}
	return out
}

// ConsumeGemini reads a streamGenerateContent?alt=sse body. Frames may carry cumulative
// text: when a frame's text extends what was already emitted only the new suffix is
// forwarded, otherwise the frame is treated as an incremental delta.
func ConsumeGemini(ctx context.Context, body io.Reader, provider string, onText TextFunc) (Result, error) {
	var (
		emitted string
		finish  string
		calls   []llm.ToolCall
		seen    = make(map[string]bool)
	)

	err := ScanEvents(ctx, body, provider, func(ev Event) (bool, error) {
		if ev.Data == DoneSentinel {
			return true, nil
		}
		var frame GeminiResponse
		if json.Unmarshal([]byte(ev.Data), &frame) != nil {
			return false, nil
		}
		if frame.Error != nil {
			return true, &llm.Error{
				Code:       llm.ErrUpstreamError,
				Message:    frame.Error.Message,
				HTTPStatus: http.StatusBadGateway,
				Retryable:  true,
				Provider:   provider,
			}
		}

		if text := frame.Text(); text != "" {
			var delta string
			if strings.HasPrefix(text, emitted) {
				delta = text[len(emitted):]
				emitted = text
			} else {
				delta = text
				emitted += text
			}
			if delta != "" && onText != nil {
				onText(delta)
			}
		}

		for i, tc := range frame.ToolCalls() {
			// 累积帧会在相同位置重复携带同一调用；同一帧内的相同调用按位置区分
			key := strconv.Itoa(i) + "\x00" + tc.Function.Name + "\x00" + tc.Function.Arguments
			if seen[key] {
				continue
			}
			seen[key] = true
			calls = append(calls, tc)
		}
		if len(frame.Candidates) > 0 && frame.Candidates[0].FinishReason != "" {
			finish = frame.Candidates[0].FinishReason
		}
		return false, nil
	})
	if err != nil {
		return Result{Content: emitted}, err
	}
	return Result{Content: emitted, ToolCalls: calls, FinishReason: finish}, nil
}
