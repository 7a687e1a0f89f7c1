package streaming

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
)

// toolCallAccumulator 按数组下标累积分片到达的工具调用，name 与 arguments 可能被拆成多段。
type toolCallAccumulator struct {
	calls map[int]*partialCall
}

type partialCall struct {
	id   string
	typ  string
	name strings.Builder
	args strings.Builder
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{calls: make(map[int]*partialCall)}
}

func (a *toolCallAccumulator) get(index int) *partialCall {
	pc, ok := a.calls[index]
	if !ok {
		pc = &partialCall{}
		a.calls[index] = pc
	}
	return pc
}

// add merges one fragment. Name and arguments are appended; id and type are set once.
func (a *toolCallAccumulator) add(index int, id, typ, name, args string) {
	pc := a.get(index)
	if id != "" && pc.id == "" {
		pc.id = id
	}
	if typ != "" && pc.typ == "" {
		pc.typ = typ
	}
	pc.name.WriteString(name)
	pc.args.WriteString(args)
}

// result returns the assembled calls ordered by index. Fragments without a name are dropped.
// A call that never received an id gets a generated one, so the tool message of the next
// round always has a tool_call_id to point at.
func (a *toolCallAccumulator) result() []llm.ToolCall {
	if len(a.calls) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(a.calls))
	for i := range a.calls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	out := make([]llm.ToolCall, 0, len(indexes))
	for _, i := range indexes {
		pc := a.calls[i]
		name := pc.name.String()
		if name == "" {
			continue
		}
		typ := pc.typ
		if typ == "" {
			typ = "function"
		}
		args := pc.args.String()
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		id := pc.id
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		out = append(out, llm.ToolCall{
			ID:       id,
			Type:     typ,
			Function: llm.FunctionCall{Name: name, Arguments: args},
		})
	}
	return out
}
