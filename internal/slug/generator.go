package slug

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
)

const (
	slugBytes = 5 // 5 bytes -> 8 chars when base32 (without padding)
	maxLen    = 80
)

// New 生成一个短小且URL友好的随机 slug。
func New() string {
	buf := make([]byte, slugBytes)
	_, err := rand.Read(buf)
	if err != nil {
		// 极端情况下 fallback 到固定值，这里返回一个静态 slug。
		return "entry"
	}
	return strings.ToLower(strings.TrimRight(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), "="))
}

// Normalize 把作者手填的 slug 收敛成小写字母、数字与连字符,
// 超出 80 字符截断;清洗后为空则退回随机 slug。
func Normalize(raw string) string {
	var b strings.Builder
	lastHyphen := true // 抑制开头的连字符
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case r == '-' || r == '_' || r == ' ':
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	s := strings.TrimRight(b.String(), "-")
	if len(s) > maxLen {
		s = strings.TrimRight(s[:maxLen], "-")
	}
	if s == "" {
		return New()
	}
	return s
}
