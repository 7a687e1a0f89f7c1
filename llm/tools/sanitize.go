package tools

import (
	"regexp"
	"strconv"
	"strings"
)

// 厂商要求的函数名格式
var validToolName = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

const maxToolNameLen = 64

// SanitizeName rewrites name so it matches ^[a-zA-Z0-9_-]{1,64}$.
// Invalid characters become '_'; the result is truncated to 64 characters.
func SanitizeName(name string) string {
	if validToolName.MatchString(name) {
		return name
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		out = "tool"
	}
	if len(out) > maxToolNameLen {
		out = out[:maxToolNameLen]
	}
	return out
}

// uniqueName appends _2, _3, ... until name is not in taken, staying within 64 characters.
func uniqueName(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	for i := 2; ; i++ {
		suffix := "_" + strconv.Itoa(i)
		base := name
		if len(base)+len(suffix) > maxToolNameLen {
			base = base[:maxToolNameLen-len(suffix)]
		}
		if candidate := base + suffix; !taken[candidate] {
			return candidate
		}
	}
}
