// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供 Provider 客户端实例级缓存。

  - TTLCache：有界的 key→(value, insertedAt) 缓存，查找时检查过期，无后台清理。
    用于工具名清洗映射等实例内状态。
  - Store：字符串缓存接口，用于图片 URL → base64 转换结果。
  - MemoryStore：基于 TTLCache 的进程内实现。
  - MultiLevelStore：本地 TTLCache 为 L1、Redis 为 L2，多个客户端实例可共享转换结果。

默认过期时间为 5 分钟（DefaultTTL）。

	store := cache.NewMultiLevelStore(redisClient, cache.DefaultStoreConfig(), logger)
	store.Set(ctx, url, "image/png;base64,....")
*/
package cache
