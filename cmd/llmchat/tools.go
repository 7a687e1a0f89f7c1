package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/tools"
)

var currentTimeSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "timezone": {"type": "string", "description": "IANA time zone, e.g. Asia/Shanghai. Defaults to local time."}
  }
}`)

// registerDemoTools 注册 CLI 内置的演示工具
func registerDemoTools(r *tools.LocalRegistry) error {
	return r.Register(tools.Spec{
		Name:        "current_time",
		Description: "Returns the current date and time, optionally in a given time zone.",
		InputSchema: currentTimeSchema,
		Timeout:     time.Second,
		RateLimit:   &tools.RateLimitConfig{MaxCalls: 10, Window: time.Minute},
	}, currentTime(time.Now))
}

func currentTime(now func() time.Time) tools.Handler {
	return func(_ context.Context, args map[string]any) tools.Result {
		t := now()
		if tz, _ := args["timezone"].(string); tz != "" {
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return tools.Fail("unknown timezone %q", tz)
			}
			t = t.In(loc)
		}
		return tools.OK(map[string]any{
			"time":     t.Format(time.RFC3339),
			"weekday":  t.Weekday().String(),
			"timezone": t.Location().String(),
		})
	}
}
