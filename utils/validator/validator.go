package validator

import (
	"strings"

	"github.com/google/uuid"
)

// ContentHashLength SHA-256 十六进制长度
const ContentHashLength = 64

// IsContentHash 校验是否为小写十六进制 SHA-256
func IsContentHash(s string) bool {
	if len(s) != ContentHashLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// IsUUID 是否为标准格式的 UUID（带连字符的 36 位）
func IsUUID(s string) bool {
	if len(s) != 36 || strings.Count(s, "-") != 4 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// IsIdentifier 链接三元组的字段：非空、无控制字符、不超过 255
func IsIdentifier(s string) bool {
	if s == "" || len(s) > 255 {
		return false
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
