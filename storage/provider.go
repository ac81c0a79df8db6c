package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound 对象不存在
var ErrObjectNotFound = errors.New("object not found")

// Provider 存储提供者接口
// 所有键都是相对路径，如 content/2024/01/9f/9f86...08.png
type Provider interface {
	// SaveWithContext 写入对象
	SaveWithContext(ctx context.Context, key string, data io.Reader, contentType string) error

	// GetWithContext 读取对象，不存在时返回 ErrObjectNotFound
	GetWithContext(ctx context.Context, key string) (io.ReadCloser, error)

	// DeleteWithContext 删除对象，对象不存在视为成功
	DeleteWithContext(ctx context.Context, key string) error

	// Exists 检查对象是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// PresignUpload 生成限定 Content-Type 的直传 URL
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)

	// PresignDownload 生成限时下载 URL
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Health 检查存储健康状态
	Health(ctx context.Context) error

	// Name 返回存储名称
	Name() string
}
