package generator

import (
	"fmt"
	"time"
)

const (
	ContentPrefix = "content"
	VariantPrefix = "variants"
)

// PathGenerator 分层存储键生成器
type PathGenerator struct{}

// NewPathGenerator 创建路径生成器
func NewPathGenerator() *PathGenerator {
	return &PathGenerator{}
}

// OriginalKey 原始内容的存储键
// content/{yyyy}/{mm}/{hash[:2]}/{hash}{ext}
func (pg *PathGenerator) OriginalKey(hash, ext string, createdAt time.Time) string {
	return fmt.Sprintf("%s/%s/%s/%s%s", ContentPrefix, createdAt.UTC().Format("2006/01"), shard(hash), hash, ext)
}

// VariantKey 变体的存储键
// variants/{yyyy}/{mm}/{hash[:2]}/{hash}/{variantType}.{format}
func (pg *PathGenerator) VariantKey(hash, variantType, format string, createdAt time.Time) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s.%s", VariantPrefix, createdAt.UTC().Format("2006/01"), shard(hash), hash, variantType, format)
}

func shard(hash string) string {
	if len(hash) < 2 {
		return "00"
	}
	return hash[:2]
}
