// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 streaming 将厂商的流式 HTTP 响应体解码为文本增量与工具调用片段。

# 概述

三种协议共用同一个 SSE 行读取器 ScanEvents，按行缓冲，跨读块的行会等待换行符后再处理。
非 JSON 或空的事件负载会被静默跳过；没有结束标记的提前断流视为完成。

  - ConsumeOpenAI：OpenAI 风格 "data: {...}"，以 "data: [DONE]" 结束；
    同时兼容 choices[0].delta 与顶层 delta。
  - ConsumeAnthropic：Messages API 事件流，文本来自 delta.text / content_block.text，
    工具参数由 input_json_delta 拼接。
  - ConsumeGemini：alt=sse 帧携带累积文本，按已发送前缀做差分，只转发新增后缀。

每个 Consume 函数在读取过程中立即回调 TextFunc，结束时返回累积的 Result{Content, ToolCalls}，
由 Provider 客户端决定执行工具还是结束本轮。
*/
package streaming
