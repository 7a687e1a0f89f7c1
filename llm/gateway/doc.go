// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

// Package gateway 是调用方面向的入口：通过 factory 解析并创建客户端，
// 再用 retry 包的策略包装每一次 Chat / ChatStream。
//
// 调用方只会看到两类结果：
//   - 配置错误（*llm.ConfigError）同步返回，不发起任何网络请求；
//   - 其余失败在重试耗尽后变为哨兵值：Chat 返回 ok=false，ChatStream 推送 "[ERROR] <message>"。
package gateway
