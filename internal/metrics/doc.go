// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的 LLM 调用链指标采集能力。

# 概述

Collector 通过 promauto.With 注册到调用方给定的 Registerer（默认全局），
所有指标按 namespace 隔离。Record 方法对 nil Collector 是空操作，
未配置指标的组件可以直接持有 nil。

# 主要能力

  - 上游请求：每轮 HTTP 往返的计数与耗时，按 provider/model/status 分组，
    状态码归类为 2xx/3xx/4xx/5xx，传输层失败记为 error。
  - 调用结果：chat / chatStream 的最终结果（ok / exhausted / config_error）、
    每次调用使用的轮数、按错误类别统计的重试次数。
  - 工具执行：按工具名统计的调用次数、成功/失败与耗时。
*/
package metrics
