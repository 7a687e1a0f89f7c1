// Package httpclient builds the HTTP clients used to reach LLM vendors.
// 安全加固：TLS 1.2+，仅 AEAD 密码套件；代理按配置或环境变量选择。
package httpclient

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/http/httpproxy"
)

// Options 控制客户端的超时与代理。
type Options struct {
	// Timeout 是单次请求（含流式响应体读取）的总时限，0 表示不限。
	Timeout time.Duration
	// Proxy 为空时读取 HTTP_PROXY / HTTPS_PROXY / NO_PROXY 环境变量。
	Proxy string
}

// DefaultTLSConfig returns a hardened TLS configuration.
// MinVersion TLS 1.2, AEAD-only cipher suites.
func DefaultTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}
}

// ProxyFunc returns the proxy selector for http.Transport.
// An explicit proxy applies to both http and https targets.
func ProxyFunc(proxy string) (func(*http.Request) (*url.URL, error), error) {
	cfg := httpproxy.FromEnvironment()
	if proxy != "" {
		if _, err := url.Parse(proxy); err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", proxy, err)
		}
		cfg = &httpproxy.Config{HTTPProxy: proxy, HTTPSProxy: proxy}
	}
	selector := cfg.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return selector(req.URL)
	}, nil
}

// SecureTransport returns an http.Transport with TLS hardening and proxy selection.
func SecureTransport(proxy string) (*http.Transport, error) {
	proxyFn, err := ProxyFunc(proxy)
	if err != nil {
		return nil, err
	}
	return &http.Transport{
		Proxy:           proxyFn,
		TLSClientConfig: DefaultTLSConfig(),
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}, nil
}

// New returns an http.Client with TLS hardening.
func New(opts Options) (*http.Client, error) {
	tr, err := SecureTransport(opts.Proxy)
	if err != nil {
		return nil, err
	}
	return &http.Client{Timeout: opts.Timeout, Transport: tr}, nil
}

// Pool 按 (Timeout, Proxy) 复用客户端，同一配置的 Provider 实例共享连接池。
type Pool struct {
	mu      sync.Mutex
	clients map[Options]*http.Client
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{clients: make(map[Options]*http.Client)}
}

// Get returns the shared client for opts, creating it on first use.
func (p *Pool) Get(opts Options) (*http.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[opts]; ok {
		return c, nil
	}
	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	p.clients[opts] = c
	return c, nil
}
