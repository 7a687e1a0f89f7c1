package multimodal

import (
	"strings"
)

// minBareBase64Len 低于该长度的字符串不视为裸 base64，避免误判普通文本。
const minBareBase64Len = 64

// InlineImage is a decoded data-URI payload.
type InlineImage struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

// DataURI renders the image as data:<mime>;base64,<data>.
func (i InlineImage) DataURI() string {
	return "data:" + i.MIMEType + ";base64," + i.Data
}

// IsBareBase64 reports whether s looks like a base64 payload without any scheme:
// at least 64 characters, all from the standard or URL-safe base64 alphabet.
func IsBareBase64(s string) bool {
	if len(s) < minBareBase64Len || strings.Contains(s, "://") || strings.HasPrefix(s, "data:") {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '+', c == '/', c == '=', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// WrapBase64 turns a bare base64 payload into a data URI; anything else is returned unchanged.
func WrapBase64(s, mime string) string {
	s = strings.TrimSpace(s)
	if !IsBareBase64(s) {
		return s
	}
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + s
}

// ParseDataURI splits data:<mime>;base64,<data>. Non-base64 data URIs are rejected.
func ParseDataURI(s string) (InlineImage, bool) {
	if !strings.HasPrefix(s, "data:") {
		return InlineImage{}, false
	}
	meta, data, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return InlineImage{}, false
	}
	mime, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" {
		return InlineImage{}, false
	}
	if mime == "" {
		mime = "image/png"
	}
	return InlineImage{MIMEType: mime, Data: data}, true
}
