// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

// Package factory 提供 LLM Provider 的集中式工厂，
// 通过名称映射创建客户端，打破 llm 包与各 provider 子包之间的循环依赖。
//
// 内置 Provider：openai、openai_compat、azure_openai、deepseek、grok、anthropic、gemini。
// Create 的配置合并顺序为：厂商默认 < ConfigSource（配置文件 / 环境变量）< 调用方配置。
package factory
