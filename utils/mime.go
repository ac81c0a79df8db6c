package utils

import "strings"

// mimeToExtMap MIME类型到安全扩展名的映射
var mimeToExtMap = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/bmp":       ".bmp",
	"image/avif":      ".avif",
	"image/heic":      ".heic",
	"image/tiff":      ".tiff",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/quicktime": ".mov",
	"application/pdf": ".pdf",
	"text/plain":      ".txt",
}

// NormalizeMimeType 去除参数并转为小写
func NormalizeMimeType(mimeType string) string {
	mimeType = strings.Split(mimeType, ";")[0]
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// GetSafeExtension 根据MIME类型返回安全的文件扩展名
// 未知类型返回空字符串，存储键不带扩展名
func GetSafeExtension(mimeType string) string {
	if ext, ok := mimeToExtMap[NormalizeMimeType(mimeType)]; ok {
		return ext
	}
	return ""
}

// IsImageMime 是否为图片类型
func IsImageMime(mimeType string) bool {
	return strings.HasPrefix(NormalizeMimeType(mimeType), "image/")
}
