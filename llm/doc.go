// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 定义多厂商 LLM 客户端层的公共数据模型与接口。

# 概述

上层业务只通过两种调用形态使用本层：Chat 返回最终文本，ChatStream 通过回调推送增量。
厂商差异（端点、鉴权、消息格式、流式协议、工具调用格式）全部收敛在 llm/providers 的各个 Dialect 中。

# 核心类型

  - [Message]：对话消息，role 为 system / user / assistant / tool
  - [Content]：null、纯文本、富内容 {Text, Images, ReplyImages} 或已归一化的 Parts 数组
  - [ToolCall]：OpenAI 风格 {id, type:"function", function:{name, arguments}}
  - [Overrides]：单次调用的生成参数、显式工具列表与配置覆盖
  - [DeltaFunc] / [DeltaMetadata]：流式增量回调与工具执行元数据
  - [Error]：厂商无关的错误，携带 HTTP 状态、响应体与 Retry-After
  - [ConfigError]：配置错误，在任何网络请求之前同步返回
  - [CredentialOverride]：单次请求凭据覆盖，通过 context 传递

# 核心接口

  - [Client]：Name / Chat / ChatStream
  - [ConfigChecker]：请求前校验解析后的配置

# 相关子包

  - llm/config：ProviderConfig 与分层解析
  - llm/multimodal：消息归一化与图片转换
  - llm/streaming：SSE 流式消费
  - llm/tools：工具注册表与适配层
  - llm/providers：轮次循环与各厂商 Dialect
  - llm/factory：Provider 工厂
  - llm/retry：错误分类、退避与重试
  - llm/gateway：面向调用方的入口，组合工厂与重试
*/
package llm
