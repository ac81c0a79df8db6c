package models

import (
	"sort"
	"time"

	"gorm.io/datatypes"

	"github.com/anoixa/asset-store/utils"
)

// FileStatus 文件生命周期状态
type FileStatus string

const (
	FileStatusActive  FileStatus = "active"  // 有链接，或刚上传尚未链接
	FileStatusTrash   FileStatus = "trash"   // 最后一个链接被移除，可恢复
	FileStatusDeleted FileStatus = "deleted" // 终态，对象已清理
)

// Visibility 文件可见性
type Visibility string

const (
	VisibilityPrivate  Visibility = "private"
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
)

// IsValid 是否为已知的可见性
func (v Visibility) IsValid() bool {
	switch v {
	case VisibilityPrivate, VisibilityPublic, VisibilityUnlisted:
		return true
	}
	return false
}

// FileLink 应用实体对文件的一次引用，(App, EntityType, EntityID) 唯一
type FileLink struct {
	App        string    `json:"app"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	CreatedBy  string    `json:"created_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Matches 三元组是否相同
func (l FileLink) Matches(app, entityType, entityID string) bool {
	return l.App == app && l.EntityType == entityType && l.EntityID == entityID
}

// FileVariant 派生出的变体，ReadyAt 非空表示已写入存储
type FileVariant struct {
	Type     string                 `json:"type"`
	Key      string                 `json:"key"`
	Format   string                 `json:"format"`
	Width    int                    `json:"width"`
	Height   int                    `json:"height"`
	Size     int64                  `json:"size"`
	ReadyAt  *time.Time             `json:"ready_at,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// IsReady 变体记录是否完成
func (v FileVariant) IsReady() bool {
	return v.ReadyAt != nil && v.Key != ""
}

// File 内容寻址的文件记录
type File struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	ContentHash  string     `gorm:"size:64;not null;index:idx_files_hash_status,priority:1" json:"content_hash"`
	Status       FileStatus `gorm:"size:16;not null;default:active;index:idx_files_hash_status,priority:2" json:"status"`
	Size         int64      `gorm:"not null" json:"size"`
	MimeType     string     `gorm:"size:127;not null" json:"mime_type"`
	Extension    string     `gorm:"size:16" json:"extension"`
	OwnerID      string     `gorm:"size:64;index" json:"owner_id"`
	Visibility   Visibility `gorm:"size:16;not null;default:private" json:"visibility"`
	StorageKey   string     `gorm:"size:255;not null;index" json:"storage_key"`
	OriginalName string     `gorm:"size:255" json:"original_name,omitempty"`

	Links    datatypes.JSONSlice[FileLink]    `json:"links"`
	Variants datatypes.JSONSlice[FileVariant] `json:"variants"`
	Metadata datatypes.JSONMap                `json:"metadata,omitempty"`

	// Version 每次写入递增，变体提交以此做乐观并发控制
	Version int64 `gorm:"not null;default:0" json:"version"`

	CompletedAt *time.Time `gorm:"index" json:"completed_at,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (File) TableName() string {
	return "files"
}

// IsDeleted 是否为终态
func (f *File) IsDeleted() bool {
	return f.Status == FileStatusDeleted
}

// IsImage 是否为图片
func (f *File) IsImage() bool {
	return utils.IsImageMime(f.MimeType)
}

// LinkIndex 查找链接，不存在返回 -1
func (f *File) LinkIndex(app, entityType, entityID string) int {
	for i, l := range f.Links {
		if l.Matches(app, entityType, entityID) {
			return i
		}
	}
	return -1
}

// FindVariant 按类型查找变体
func (f *File) FindVariant(variantType string) (FileVariant, bool) {
	for _, v := range f.Variants {
		if v.Type == variantType {
			return v, true
		}
	}
	return FileVariant{}, false
}

// ReadyVariants 已完成的变体
func (f *File) ReadyVariants() []FileVariant {
	var out []FileVariant
	for _, v := range f.Variants {
		if v.IsReady() {
			out = append(out, v)
		}
	}
	return out
}

// CloneLinks 复制链接列表，避免共享底层数组
func CloneLinks(links []FileLink) []FileLink {
	if links == nil {
		return []FileLink{}
	}
	out := make([]FileLink, len(links))
	copy(out, links)
	return out
}

// CloneVariants 复制变体列表
func CloneVariants(variants []FileVariant) []FileVariant {
	if variants == nil {
		return []FileVariant{}
	}
	out := make([]FileVariant, len(variants))
	copy(out, variants)
	return out
}

// MergeVariants 按 Type 合并：incoming 中出现的类型覆盖 base，其余保留
// 结果按 Type 排序，保证同样的输入得到同样的列
func MergeVariants(base, incoming []FileVariant) []FileVariant {
	byType := make(map[string]FileVariant, len(base)+len(incoming))
	for _, v := range base {
		byType[v.Type] = v
	}
	for _, v := range incoming {
		byType[v.Type] = v
	}

	out := make([]FileVariant, 0, len(byType))
	for _, v := range byType {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
