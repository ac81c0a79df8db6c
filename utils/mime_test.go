package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSafeExtension(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/jpeg", ".jpg"},
		{"image/PNG", ".png"},
		{"image/webp; charset=binary", ".webp"},
		{"video/mp4", ".mp4"},
		{"application/pdf", ".pdf"},
		{"application/x-unknown", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			assert.Equal(t, tt.want, GetSafeExtension(tt.mime))
		})
	}
}

func TestIsImageMime(t *testing.T) {
	assert.True(t, IsImageMime("image/png"))
	assert.True(t, IsImageMime(" Image/JPEG "))
	assert.False(t, IsImageMime("video/mp4"))
	assert.False(t, IsImageMime("application/pdf"))
}

func TestSanitizeLogValue(t *testing.T) {
	assert.Equal(t, "abc", SanitizeLogValue("a\x00b\x07c"))
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, SanitizeLogValue(string(long)), 67)
}
