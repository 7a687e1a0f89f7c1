// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

// Package openaicompat implements the OpenAI chat completions dialect shared by
// every OpenAI-compatible vendor.
//
// The builtin variants only differ in static defaults:
//
//   - openai       : https://api.openai.com/v1, bearer auth
//   - openai_compat: generic endpoint, base_url is required
//   - azure_openai : /openai/deployments/<deployment>/chat/completions?api-version=...,
//     "api-key" header, deployment is required
//   - deepseek     : https://api.deepseek.com, text-only content
//   - grok         : https://api.x.ai/v1
//
// Usage:
//
//	v, _ := openaicompat.Lookup(openaicompat.NameDeepSeek)
//	client := openaicompat.New(v, config.ProviderConfig{APIKey: key}, providers.Deps{Logger: logger})
//	reply, err := client.Chat(ctx, []llm.Message{llm.UserMessage("hi")}, llm.Overrides{})
package openaicompat
