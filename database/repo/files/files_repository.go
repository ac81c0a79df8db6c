package files

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anoixa/asset-store/database/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Repository 文件仓库
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建仓库
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create 新建记录
func (r *Repository) Create(ctx context.Context, file *models.File) error {
	if file.Links == nil {
		file.Links = datatypes.NewJSONSlice([]models.FileLink{})
	}
	if file.Variants == nil {
		file.Variants = datatypes.NewJSONSlice([]models.FileVariant{})
	}
	file.Version = 0
	if err := r.db.WithContext(ctx).Create(file).Error; err != nil {
		return fmt.Errorf("failed to create file %s: %w", file.ID, err)
	}
	return nil
}

// GetByID 按 ID 获取
func (r *Repository) GetByID(ctx context.Context, id string) (*models.File, error) {
	var file models.File
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&file).Error
	if err != nil {
		return nil, translate(err)
	}
	return &file, nil
}

// GetByStorageKey 按存储键获取，存在多条时取最早的未删除记录
func (r *Repository) GetByStorageKey(ctx context.Context, key string) (*models.File, error) {
	var file models.File
	err := r.db.WithContext(ctx).
		Where("storage_key = ?", key).
		Order(statusOrder()).
		Order("created_at ASC").
		First(&file).Error
	if err != nil {
		return nil, translate(err)
	}
	return &file, nil
}

// GetLiveByHash 获取同哈希最早创建的未删除记录
func (r *Repository) GetLiveByHash(ctx context.Context, hash string) (*models.File, error) {
	var file models.File
	err := r.db.WithContext(ctx).
		Where("content_hash = ? AND status <> ?", hash, models.FileStatusDeleted).
		Order("created_at ASC").
		Order("id ASC").
		First(&file).Error
	if err != nil {
		return nil, translate(err)
	}
	return &file, nil
}

// ListLiveByHash 同哈希的所有未删除记录
func (r *Repository) ListLiveByHash(ctx context.Context, hash string) ([]*models.File, error) {
	var list []*models.File
	err := r.db.WithContext(ctx).
		Where("content_hash = ? AND status <> ?", hash, models.FileStatusDeleted).
		Order("created_at ASC").
		Order("id ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list files by hash: %w", err)
	}
	return list, nil
}

// Update 写入指定字段并递增版本
func (r *Repository) Update(ctx context.Context, id string, changes Changes) error {
	updates := changes.columns()
	updates["version"] = gorm.Expr("version + 1")
	updates["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).Model(&models.File{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update file %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrFileNotFound
	}
	return nil
}

// CompareAndSwapVariants 条件更新变体列表
func (r *Repository) CompareAndSwapVariants(ctx context.Context, id string, expectedVersion int64, variants []models.FileVariant) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.File{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"variants":   datatypes.NewJSONSlice(models.CloneVariants(variants)),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to commit variants for %s: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListCompletedImages 按 ID 游标分页
func (r *Repository) ListCompletedImages(ctx context.Context, afterID string, limit int) ([]*models.File, error) {
	if limit <= 0 {
		limit = 100
	}
	var list []*models.File
	err := r.db.WithContext(ctx).
		Where("id > ? AND status <> ? AND completed_at IS NOT NULL AND mime_type LIKE ?", afterID, models.FileStatusDeleted, "image/%").
		Order("id ASC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list completed images: %w", err)
	}
	return list, nil
}

func (c Changes) columns() map[string]interface{} {
	updates := make(map[string]interface{})
	if c.Status != nil {
		updates["status"] = *c.Status
	}
	if c.Visibility != nil {
		updates["visibility"] = *c.Visibility
	}
	if c.Links != nil {
		updates["links"] = datatypes.NewJSONSlice(models.CloneLinks(c.Links))
	}
	if c.OriginalName != nil {
		updates["original_name"] = *c.OriginalName
	}
	if c.Size != nil {
		updates["size"] = *c.Size
	}
	if c.MimeType != nil {
		updates["mime_type"] = *c.MimeType
	}
	if c.Metadata != nil {
		updates["metadata"] = datatypes.JSONMap(c.Metadata)
	}
	if c.CompletedAt != nil {
		updates["completed_at"] = *c.CompletedAt
	}
	if c.DeletedAt != nil {
		updates["deleted_at"] = *c.DeletedAt
	}
	return updates
}

// Apply 把变更套用到内存中的记录（不含版本）
func (c Changes) Apply(file *models.File) {
	if c.Status != nil {
		file.Status = *c.Status
	}
	if c.Visibility != nil {
		file.Visibility = *c.Visibility
	}
	if c.Links != nil {
		file.Links = datatypes.NewJSONSlice(models.CloneLinks(c.Links))
	}
	if c.OriginalName != nil {
		file.OriginalName = *c.OriginalName
	}
	if c.Size != nil {
		file.Size = *c.Size
	}
	if c.MimeType != nil {
		file.MimeType = *c.MimeType
	}
	if c.Metadata != nil {
		file.Metadata = datatypes.JSONMap(c.Metadata)
	}
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		file.CompletedAt = &t
	}
	if c.DeletedAt != nil {
		t := *c.DeletedAt
		file.DeletedAt = &t
	}
}

// statusOrder 活跃记录优先
func statusOrder() string {
	return "CASE status WHEN 'active' THEN 0 WHEN 'trash' THEN 1 ELSE 2 END"
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrFileNotFound
	}
	return err
}
