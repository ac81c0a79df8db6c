// Package pipeline 图片变体生成引擎
package pipeline

import (
	"context"
	"errors"
	"math"
	"strings"
)

// ErrUnsupportedFormat 输入或输出格式不受支持
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Options 缩放参数，宽高为上限（等比缩放到框内）
type Options struct {
	Width   int
	Height  int
	Quality int
	Format  string // webp / jpeg / png / avif
}

// Result 生成结果
type Result struct {
	Data   []byte
	Width  int
	Height int
	Format string // 实际输出格式，引擎不支持目标格式时可能与 Options.Format 不同
}

// Pipeline 图片处理引擎
type Pipeline interface {
	// Supports 是否能处理该 MIME 类型的输入
	Supports(mimeType string) bool
	// Resize 等比缩放到 Options 框内并编码，不放大
	Resize(ctx context.Context, src []byte, opts Options) (*Result, error)
	// Name 引擎名称
	Name() string
}

// FitInside 计算等比缩放到 maxW x maxH 框内的尺寸，不放大
// maxW 或 maxH 为 0 表示该方向不限制
func FitInside(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0
	}
	scale := 1.0
	if maxW > 0 && srcW > maxW {
		scale = math.Min(scale, float64(maxW)/float64(srcW))
	}
	if maxH > 0 && srcH > maxH {
		scale = math.Min(scale, float64(maxH)/float64(srcH))
	}
	if scale >= 1 {
		return srcW, srcH
	}
	w := int(math.Round(float64(srcW) * scale))
	h := int(math.Round(float64(srcH) * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// ContentType 输出格式对应的 MIME
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case "webp":
		return "image/webp"
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "avif":
		return "image/avif"
	case "gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

func normalizeFormat(format string) string {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "jpg" {
		return "jpeg"
	}
	if f == "" {
		return "webp"
	}
	return f
}

func baseMime(mimeType string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
}
