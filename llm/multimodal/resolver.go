package multimodal

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/cache"
)

// MaxImageBytes 单张远程图片的最大下载字节数。
const MaxImageBytes = 20 << 20

// ImageResolver 将图片引用（URL / data URI / 裸 base64）解析为内联 base64，
// 供 Anthropic 与 Gemini 这类要求内联图片的厂商使用。
// 远程下载结果按 URL 缓存，条目 5 分钟后过期。
type ImageResolver struct {
	client      *http.Client
	store       cache.Store
	defaultMIME string
	logger      *zap.Logger
}

// NewImageResolver creates a resolver. A nil store uses a private in-memory TTL cache;
// a nil client uses a 30s-timeout http.Client.
func NewImageResolver(client *http.Client, store cache.Store, defaultMIME string, logger *zap.Logger) *ImageResolver {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if store == nil {
		store = cache.NewMemoryStore(256, cache.DefaultTTL)
	}
	if defaultMIME == "" {
		defaultMIME = "image/png"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageResolver{
		client:      client,
		store:       store,
		defaultMIME: defaultMIME,
		logger:      logger.With(zap.String("component", "image_resolver")),
	}
}

// Resolve returns the inline form of ref. Only http(s) references cause network activity.
func (r *ImageResolver) Resolve(ctx context.Context, ref string) (InlineImage, error) {
	ref = WrapBase64(strings.TrimSpace(ref), r.defaultMIME)
	if img, ok := ParseDataURI(ref); ok {
		return img, nil
	}
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		return InlineImage{}, fmt.Errorf("unsupported image reference: %.32s", ref)
	}

	if cached, ok := r.store.Get(ctx, ref); ok {
		if img, ok := ParseDataURI(cached); ok {
			return img, nil
		}
	}

	img, err := r.fetch(ctx, ref)
	if err != nil {
		r.logger.Warn("image fetch failed", zap.String("url", ref), zap.Error(err))
		return InlineImage{}, err
	}
	r.store.Set(ctx, ref, img.DataURI())
	return img, nil
}

func (r *ImageResolver) fetch(ctx context.Context, url string) (InlineImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return InlineImage{}, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return InlineImage{}, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return InlineImage{}, fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return InlineImage{}, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) > MaxImageBytes {
		return InlineImage{}, fmt.Errorf("image exceeds %d bytes", MaxImageBytes)
	}

	mime := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	mime = strings.TrimSpace(mime)
	if !strings.HasPrefix(mime, "image/") {
		// 依据魔数探测
		mime = http.DetectContentType(data)
		if !strings.HasPrefix(mime, "image/") {
			mime = r.defaultMIME
		}
	}

	return InlineImage{MIMEType: mime, Data: base64.StdEncoding.EncodeToString(data)}, nil
}
