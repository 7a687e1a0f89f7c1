// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 observability 为 Provider 客户端提供基于 OpenTelemetry 的分布式追踪。

# 概述

一次 chat 调用对应一个 llm.call span，其下每轮 HTTP 往返对应 llm.round，
每个工具调用对应 llm.tool。导出器由宿主进程通过全局 TracerProvider 配置，
本包只负责创建 span 与记录错误状态。指标采集见 internal/metrics。

# 核心接口

  - Tracer：StartCall / StartRound / StartTool，nil 接收者可用。
  - End：记录错误并结束 span。
*/
package observability
