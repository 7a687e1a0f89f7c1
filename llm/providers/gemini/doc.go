// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 gemini 提供 Google Gemini generateContent API 的协议适配。该包直接对接
Gemini REST API（generativelanguage.googleapis.com），不依赖 openaicompat 兼容层；
轮次循环、工具执行与错误映射由 providers.Client 统一处理。

# 协议差异

  - 请求体为 contents[].parts[]，assistant 角色映射为 model
  - system 消息合并进 systemInstruction
  - 图片下载后作为 inlineData 内联，失败时退化为 "[image:<url>]" 占位文本
  - 工具调用映射为 functionCall，工具结果映射为 user 角色的 functionResponse
  - API Key 默认通过 key 查询参数传递（auth_mode 可改为 header:x-goog-api-key）
  - 流式端点 :streamGenerateContent?alt=sse，帧内文本可能是累积值，由 streaming.ConsumeGemini 做前缀差分
*/
package gemini
