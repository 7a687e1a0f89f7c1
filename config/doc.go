// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

// Package config 提供进程级配置：各 Provider 的外部配置、默认 Provider、重试策略、
// 日志与图片缓存设置。
//
// 加载优先级：默认值 → YAML 文件 → .env → 环境变量。
// *Config 实现 factory.ConfigSource 与 factory.DefaultNamer，可直接交给 Provider 工厂。
package config
