// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 httpclient 为各厂商 Provider 构建统一加固的 HTTP 客户端。

  - DefaultTLSConfig：TLS 1.2+，仅 AEAD 密码套件。
  - ProxyFunc：显式代理优先，否则按 golang.org/x/net/http/httpproxy 读取环境变量。
  - New / Pool：按 (Timeout, Proxy) 创建并复用 *http.Client。
*/
package httpclient
