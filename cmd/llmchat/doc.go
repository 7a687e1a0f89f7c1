// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

// Command llmchat 是 LLM 客户端层的命令行入口。
//
// 使用方法:
//
//	llmchat chat "你好"                          # 使用默认 Provider 单次对话
//	llmchat chat --stream -p gemini "讲个笑话"   # 流式输出
//	echo "总结一下" | llmchat chat -              # 从标准输入读取提示词
//	llmchat providers                            # 列出已注册的 Provider
//	llmchat version                              # 显示版本信息
//
// 配置来源：--config 指定的 YAML 文件、--env-file 指定的 .env 文件以及
// <PREFIX>_<PROVIDER>_API_KEY / _BASE_URL / _MODEL 等环境变量。
package main
