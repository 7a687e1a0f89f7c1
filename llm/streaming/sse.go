package streaming

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
)

// DoneSentinel 是 OpenAI 风格流的结束标记（data: [DONE]）。
const DoneSentinel = "[DONE]"

// Event 是一条 SSE 事件。Name 来自最近的 "event:" 行，空行后重置。
type Event struct {
	Name string
	Data string
}

// errStop ends ScanEvents without an error.
var errStop = errors.New("stop")

// ScanEvents reads SSE lines from r and calls fn for every non-empty data line.
// Lines split across read chunks are buffered until complete; comment lines and
// unknown fields are ignored; a trailing line without newline is still delivered.
// fn returns stop=true to finish early (e.g. on a [DONE] sentinel).
func ScanEvents(ctx context.Context, r io.Reader, provider string, fn func(Event) (stop bool, err error)) error {
	reader := bufio.NewReader(r)
	var name string
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, readErr := reader.ReadString('\n')
		if line != "" {
			if err := dispatchLine(line, &name, fn); err != nil {
				if errors.Is(err, errStop) {
					return nil
				}
				return err
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &llm.Error{
				Code:       llm.ErrUpstreamError,
				Message:    readErr.Error(),
				HTTPStatus: http.StatusBadGateway,
				Retryable:  true,
				Provider:   provider,
				Cause:      readErr,
			}
		}
	}
}

func dispatchLine(line string, name *string, fn func(Event) (bool, error)) error {
	line = strings.TrimRight(line, "\r\n")
	switch {
	case strings.TrimSpace(line) == "":
		*name = ""
		return nil
	case strings.HasPrefix(line, ":"):
		return nil
	case strings.HasPrefix(line, "event:"):
		*name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		return nil
	case strings.HasPrefix(line, "data:"):
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			return nil
		}
		stop, err := fn(Event{Name: *name, Data: data})
		if err != nil {
			return err
		}
		if stop {
			return errStop
		}
	}
	return nil
}

// Result 是一轮流式响应累积后的结果，交由 Provider 客户端决定是否执行工具。
type Result struct {
	Content      string
	ToolCalls    []llm.ToolCall
	FinishReason string
}

// TextFunc receives each text delta as soon as it is decoded.
type TextFunc func(text string)
