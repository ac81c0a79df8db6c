package files

import (
	"context"
	"errors"
	"time"

	"github.com/anoixa/asset-store/database/models"
)

// ErrFileNotFound 记录不存在
var ErrFileNotFound = errors.New("file not found")

// Changes 对 File 的部分更新，nil 字段不写入
// Variants 不在此列：变体只能通过 CompareAndSwapVariants 提交
type Changes struct {
	Status       *models.FileStatus
	Visibility   *models.Visibility
	Links        []models.FileLink // nil 表示不修改，空切片表示清空
	OriginalName *string
	Size         *int64
	MimeType     *string
	Metadata     map[string]interface{}
	CompletedAt  *time.Time
	DeletedAt    *time.Time
}

// RepositoryInterface 文件登记仓库
type RepositoryInterface interface {
	// Create 新建记录，Version 从 0 开始
	Create(ctx context.Context, file *models.File) error
	// GetByID 按 ID 获取
	GetByID(ctx context.Context, id string) (*models.File, error)
	// GetByStorageKey 按原始内容的存储键获取（旧标识兼容）
	GetByStorageKey(ctx context.Context, key string) (*models.File, error)
	// GetLiveByHash 获取同哈希最早创建的未删除记录
	GetLiveByHash(ctx context.Context, hash string) (*models.File, error)
	// ListLiveByHash 同哈希的所有未删除记录
	ListLiveByHash(ctx context.Context, hash string) ([]*models.File, error)
	// Update 写入指定字段并递增版本
	Update(ctx context.Context, id string, changes Changes) error
	// CompareAndSwapVariants 版本匹配时写入变体列表，返回是否写入
	CompareAndSwapVariants(ctx context.Context, id string, expectedVersion int64, variants []models.FileVariant) (bool, error)
	// ListCompletedImages 按 ID 游标分页列出已完成上传的图片
	ListCompletedImages(ctx context.Context, afterID string, limit int) ([]*models.File, error)
}

// 确保 Repository 实现了 RepositoryInterface
var _ RepositoryInterface = (*Repository)(nil)
