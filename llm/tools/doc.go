// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 tools 实现工具调用适配层：把外部工具注册表翻译为厂商的函数声明，
并发执行模型请求的工具调用，再把结果打包回消息列表。

# 核心接口

  - Registry：外部工具注册表接口，ListTools(stream) 与 HandleToolCall(ctx, Call)。
  - LocalRegistry：进程内实现，处理函数签名为 Handler(ctx, args) Result，
    支持能力流过滤、执行超时、基于 x/time/rate 的限流与 panic 隔离。
  - Adapter：
      - Declarations：生成 {type:"function", function:{name, description, parameters}}，
        不符合 ^[a-zA-Z0-9_-]{1,64}$ 的名称会被清洗，反向映射保存在 5 分钟 TTL 缓存中。
      - ExecuteAll：同一轮内全部调用并发执行（errgroup），结果按原顺序返回；
        单个失败只产生 {"success":false,"error":...}，不影响其他调用。
        未配置注册表时每个调用都得到 "tool service unavailable"。
  - Invocations：为流式 UI 生成 {name, arguments, result} 展示负载。
*/
package tools
