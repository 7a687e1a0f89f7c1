// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 providers 是所有厂商客户端的公共基础层：共享的轮次循环、请求体构建、
鉴权、错误映射。各厂商子包（openaicompat、anthropic、gemini）只实现 Dialect，
描述各自的端点、请求体与响应格式。

# 核心类型

  - Client: 实现 llm.Client 的轮次循环：归一化 → 构建 → 发送 → 执行工具 → 重复，
    轮数受 MaxToolRounds 限制，达到上限时返回最后一次得到的文本
  - Dialect: 厂商协议接口（Defaults / Validate / Endpoint / BuildRequest / ParseResponse / ConsumeStream）
  - Deps: 共享依赖：工具注册表、HTTP 连接池、图片缓存、指标、追踪、日志
  - Request: 一轮请求的输入

# 核心函数

  - BuildChatBody / ApplyTools: OpenAI 风格请求体与工具注入
  - SelectTools: 显式 overrides.Tools 优先（空切片即禁用），否则取注册表工具
  - ApplyAuth: bearer / api-key / x-api-key / header:<Name> / query / none
  - MapHTTPError / ReadError: 将 HTTP 状态映射为 llm.Error（含响应体与 Retry-After）
  - TransportError: 网络与超时错误
*/
package providers
