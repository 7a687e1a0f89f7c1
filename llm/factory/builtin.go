package factory

import (
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/config"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/providers"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/providers/anthropic"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/providers/gemini"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/providers/openaicompat"
)

// RegisterBuiltins registers the OpenAI-style variants, then anthropic and gemini.
// 注册顺序决定 DefaultProvider 的候选顺序。
func RegisterBuiltins(f *Factory) {
	for _, v := range openaicompat.Variants() {
		variant := v
		_ = f.Register(variant.Name, func(cfg config.ProviderConfig, deps providers.Deps) (llm.Client, error) {
			return openaicompat.New(variant, cfg, deps), nil
		}, variant.Defaults())
	}

	_ = f.Register(anthropic.Name, func(cfg config.ProviderConfig, deps providers.Deps) (llm.Client, error) {
		return anthropic.New(cfg, deps), nil
	}, anthropic.Defaults())

	_ = f.Register(gemini.Name, func(cfg config.ProviderConfig, deps providers.Deps) (llm.Client, error) {
		return gemini.New(cfg, deps), nil
	}, gemini.Defaults())
}

// BuiltinNames returns the builtin provider names in registration order.
func BuiltinNames() []string {
	f := New(providers.Deps{})
	RegisterBuiltins(f)
	return f.ListProviders()
}
