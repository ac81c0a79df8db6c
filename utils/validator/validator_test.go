package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsContentHash(t *testing.T) {
	valid := "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
	assert.True(t, IsContentHash(valid))

	assert.False(t, IsContentHash(strings.ToUpper(valid)), "大写不合法")
	assert.False(t, IsContentHash(valid[:63]))
	assert.False(t, IsContentHash(valid+"0"))
	assert.False(t, IsContentHash(strings.Repeat("g", 64)))
	assert.False(t, IsContentHash(""))
}

func TestIsUUID(t *testing.T) {
	assert.True(t, IsUUID("4f1c7a52-9a8b-4d0e-8f0a-2b9c3d4e5f60"))
	assert.False(t, IsUUID("4f1c7a529a8b4d0e8f0a2b9c3d4e5f60"), "无连字符视为存储键")
	assert.False(t, IsUUID("content/2024/01/9f/abc.jpg"))
	assert.False(t, IsUUID("zzzzzzzz-9a8b-4d0e-8f0a-2b9c3d4e5f60"))
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, IsIdentifier("post"))
	assert.True(t, IsIdentifier("用户-42"))
	assert.False(t, IsIdentifier(""))
	assert.False(t, IsIdentifier("a\nb"))
	assert.False(t, IsIdentifier(strings.Repeat("a", 256)))
}
