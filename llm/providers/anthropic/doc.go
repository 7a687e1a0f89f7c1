// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 anthropic 提供 Anthropic Messages API（/v1/messages）的协议适配。
Claude API 与 OpenAI 格式有显著差异，本包只负责协议转换，
轮次循环、工具执行与错误映射由 providers.Client 统一处理。

# 协议差异

  - 认证使用 x-api-key 请求头，并必须携带 anthropic-version: 2023-06-01
  - system 消息从 messages 数组中提取，单独传递到 system 字段
  - 消息 content 为数组形式，支持 text / image / tool_use / tool_result 混合
  - 连续同角色消息合并为一条，Tool 结果包装为 user 角色的 tool_result 块
  - 图片优先下载并内联为 base64，失败时退化为 url 来源
  - max_tokens 为必填字段，默认 4096
  - 流式 SSE 事件结构独立（content_block_start / content_block_delta / message_stop）
*/
package anthropic
