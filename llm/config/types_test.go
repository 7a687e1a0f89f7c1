package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestResolve_Defaults(t *testing.T) {
	cfg := Resolve()
	assert.Equal(t, 360*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.MaxToolRounds)
	assert.Equal(t, ModeMultimodal, cfg.ContentMode)
	assert.Equal(t, "image/png", cfg.DefaultImageMIME)
	assert.True(t, cfg.ToolsEnabled())
	assert.False(t, cfg.Disabled())
}

func TestResolve_LayerPriority(t *testing.T) {
	vendor := ProviderConfig{BaseURL: "https://vendor.example", Model: "vendor-model", MaxToolRounds: 3}
	instance := ProviderConfig{Model: "instance-model", Temperature: Float(0.2)}
	call := ProviderConfig{Temperature: Float(0.9)}

	cfg := Resolve(vendor, instance, call)
	assert.Equal(t, "https://vendor.example", cfg.BaseURL)
	assert.Equal(t, "instance-model", cfg.Model)
	assert.Equal(t, 0.9, *cfg.Temperature)
	assert.Equal(t, 3, cfg.MaxToolRounds)
}

func TestResolve_BlankStringsAreUnset(t *testing.T) {
	cfg := Resolve(
		ProviderConfig{BaseURL: "https://api.example", APIKey: "sk-1"},
		ProviderConfig{BaseURL: "   ", APIKey: ""},
	)
	assert.Equal(t, "https://api.example", cfg.BaseURL)
	assert.Equal(t, "sk-1", cfg.APIKey)
}

func TestResolve_MapsMergeKeyWise(t *testing.T) {
	cfg := Resolve(
		ProviderConfig{Headers: map[string]string{"A": "1", "B": "1"}, ExtraBody: map[string]any{"x": 1}},
		ProviderConfig{Headers: map[string]string{"B": "2"}, ExtraBody: map[string]any{"y": 2}},
	)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, cfg.Headers)
	assert.Equal(t, map[string]any{"x": 1, "y": 2}, cfg.ExtraBody)
}

func TestDisabled(t *testing.T) {
	assert.True(t, ProviderConfig{Enabled: Bool(false)}.Disabled())
	assert.False(t, ProviderConfig{Enabled: Bool(true)}.Disabled())
	assert.False(t, ProviderConfig{EnableTools: Bool(true)}.Disabled())
	assert.False(t, ProviderConfig{EnableTools: Bool(false)}.ToolsEnabled())
}

// For any field set in both layers, the higher layer wins.
func TestProperty_OverrideWins(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		instance := ProviderConfig{
			Model:         rapid.StringMatching(`[a-z]{1,8}`).Draw(rt, "instanceModel"),
			Temperature:   Float(rapid.Float64Range(0, 2).Draw(rt, "instanceTemp")),
			MaxTokens:     Int(rapid.IntRange(1, 4096).Draw(rt, "instanceMax")),
			MaxToolRounds: rapid.IntRange(1, 10).Draw(rt, "instanceRounds"),
			APIKey:        rapid.StringMatching(`sk-[a-z0-9]{4}`).Draw(rt, "instanceKey"),
		}
		override := ProviderConfig{
			Model:         rapid.StringMatching(`[a-z]{1,8}`).Draw(rt, "overrideModel"),
			Temperature:   Float(rapid.Float64Range(0, 2).Draw(rt, "overrideTemp")),
			MaxTokens:     Int(rapid.IntRange(1, 4096).Draw(rt, "overrideMax")),
			MaxToolRounds: rapid.IntRange(1, 10).Draw(rt, "overrideRounds"),
			APIKey:        rapid.StringMatching(`sk-[a-z0-9]{4}`).Draw(rt, "overrideKey"),
		}

		cfg := Resolve(instance, override)
		if cfg.Model != override.Model || *cfg.Temperature != *override.Temperature ||
			*cfg.MaxTokens != *override.MaxTokens || cfg.MaxToolRounds != override.MaxToolRounds ||
			cfg.APIKey != override.APIKey {
			rt.Fatalf("override lost: got %+v want %+v", cfg, override)
		}
	})
}
