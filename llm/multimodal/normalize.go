package multimodal

import (
	"strings"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/config"
)

// =============================================================================
// 消息归一化
// =============================================================================

// Normalize 将内部消息列表转换为目标厂商可接受的形态。
//
//   - ModeMultimodal：富内容展开为 OpenAI 风格的 text / image_url 数组，已是数组的内容原样保留。
//   - ModeTextOnly：图片以 "[reply-image:<url>]" / "[image:<url>]" 占位符追加到正文之后。
//
// role 为 tool 的消息原样透传。裸 base64 图片会按 defaultMIME 包装成 data URI。
// 输入切片不会被修改。
func Normalize(messages []llm.Message, mode config.ContentMode, defaultMIME string) []llm.Message {
	if defaultMIME == "" {
		defaultMIME = config.DefaultImageMIME
	}
	out := make([]llm.Message, len(messages))
	for i, msg := range messages {
		if msg.Role == llm.RoleTool {
			out[i] = msg
			continue
		}
		switch mode {
		case config.ModeTextOnly:
			msg.Content = flatten(msg.Content, defaultMIME)
		default:
			msg.Content = expand(msg.Content, defaultMIME)
		}
		out[i] = msg
	}
	return out
}

// expand builds the multimodal part array. Already-normalized parts pass through unchanged.
func expand(c llm.Content, defaultMIME string) llm.Content {
	if c.IsParts() || !c.HasImages() {
		return c
	}
	parts := make([]llm.ContentPart, 0, 1+len(c.ReplyImages)+len(c.Images))
	if c.Text != "" {
		parts = append(parts, llm.TextPart(c.Text))
	}
	for _, u := range c.ReplyImages {
		if u = strings.TrimSpace(u); u != "" {
			parts = append(parts, llm.ImagePart(WrapBase64(u, defaultMIME)))
		}
	}
	for _, u := range c.Images {
		if u = strings.TrimSpace(u); u != "" {
			parts = append(parts, llm.ImagePart(WrapBase64(u, defaultMIME)))
		}
	}
	if len(parts) == 0 {
		return llm.TextContent("")
	}
	return llm.PartsContent(parts...)
}

// flatten renders content as plain text with bracketed image placeholders.
func flatten(c llm.Content, defaultMIME string) llm.Content {
	if c.IsNull() {
		return c
	}
	if !c.IsParts() && !c.HasImages() {
		return c
	}

	var b strings.Builder
	if c.IsParts() {
		for _, p := range c.Parts {
			switch {
			case p.Type == "text":
				appendWord(&b, p.Text)
			case p.ImageURL != nil:
				appendWord(&b, placeholder("image", p.ImageURL.URL, defaultMIME))
			}
		}
		return llm.TextContent(b.String())
	}

	appendWord(&b, c.Text)
	for _, u := range c.ReplyImages {
		if u = strings.TrimSpace(u); u != "" {
			appendWord(&b, placeholder("reply-image", u, defaultMIME))
		}
	}
	for _, u := range c.Images {
		if u = strings.TrimSpace(u); u != "" {
			appendWord(&b, placeholder("image", u, defaultMIME))
		}
	}
	return llm.TextContent(b.String())
}

// placeholder keeps http(s) URLs verbatim; inline data is reduced to its MIME type.
func placeholder(kind, ref, defaultMIME string) string {
	ref = WrapBase64(ref, defaultMIME)
	if img, ok := ParseDataURI(ref); ok {
		return "[" + kind + ":inline " + img.MIMEType + "]"
	}
	return "[" + kind + ":" + ref + "]"
}

func appendWord(b *strings.Builder, s string) {
	if s == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(s)
}
