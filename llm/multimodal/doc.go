// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 multimodal 负责消息内容的归一化与图片引用的解析。

# 概述

内部消息可能携带 {text, images, replyImages} 富内容。发送前需要按目标厂商的能力
转换为 OpenAI 风格的多模态数组，或展开为带占位符的纯文本。

# 核心接口

  - Normalize：按 ContentMode（multimodal / text_only）转换消息列表，纯函数。
  - WrapBase64 / IsBareBase64：识别无 scheme 的 base64 图片并包装为 data URI。
  - ParseDataURI / InlineImage：data URI 的拆分与重组。
  - ImageResolver：将 URL 下载并转换为内联 base64，结果写入 cache.Store（默认 5 分钟过期）。
*/
package multimodal
