// Package testhelpers 服务层测试用的内存实现
package testhelpers

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/anoixa/asset-store/database/models"
	"github.com/anoixa/asset-store/database/repo/files"
)

// Registry 内存版文件仓库，语义与 gorm 实现一致（版本号 CAS）
type Registry struct {
	mu    sync.Mutex
	files map[string]*models.File

	// BeforeCAS 在 CompareAndSwapVariants 比较版本前调用，用于制造并发冲突
	BeforeCAS func(id string)

	CASCalls  int
	CASMisses int
}

var _ files.RepositoryInterface = (*Registry)(nil)

// NewRegistry 创建空仓库
func NewRegistry() *Registry {
	return &Registry{files: make(map[string]*models.File)}
}

func (r *Registry) Create(_ context.Context, file *models.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now()
	}
	file.UpdatedAt = file.CreatedAt
	file.Version = 0
	if file.Links == nil {
		file.Links = datatypes.NewJSONSlice([]models.FileLink{})
	}
	if file.Variants == nil {
		file.Variants = datatypes.NewJSONSlice([]models.FileVariant{})
	}
	r.files[file.ID] = clone(file)
	return nil
}

func (r *Registry) GetByID(_ context.Context, id string) (*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[id]
	if !ok {
		return nil, files.ErrFileNotFound
	}
	return clone(f), nil
}

func (r *Registry) GetByStorageKey(_ context.Context, key string) (*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var match []*models.File
	for _, f := range r.files {
		if f.StorageKey == key {
			match = append(match, f)
		}
	}
	if len(match) == 0 {
		return nil, files.ErrFileNotFound
	}
	sort.Slice(match, func(i, j int) bool {
		if match[i].IsDeleted() != match[j].IsDeleted() {
			return !match[i].IsDeleted()
		}
		return match[i].CreatedAt.Before(match[j].CreatedAt)
	})
	return clone(match[0]), nil
}

func (r *Registry) GetLiveByHash(ctx context.Context, hash string) (*models.File, error) {
	list, err := r.ListLiveByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, files.ErrFileNotFound
	}
	return list[0], nil
}

func (r *Registry) ListLiveByHash(_ context.Context, hash string) ([]*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var list []*models.File
	for _, f := range r.files {
		if f.ContentHash == hash && !f.IsDeleted() {
			list = append(list, clone(f))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (r *Registry) Update(_ context.Context, id string, changes files.Changes) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[id]
	if !ok {
		return files.ErrFileNotFound
	}
	changes.Apply(f)
	f.Version++
	f.UpdatedAt = time.Now()
	return nil
}

func (r *Registry) CompareAndSwapVariants(_ context.Context, id string, expectedVersion int64, variants []models.FileVariant) (bool, error) {
	if r.BeforeCAS != nil {
		r.BeforeCAS(id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.CASCalls++
	f, ok := r.files[id]
	if !ok || f.Version != expectedVersion {
		r.CASMisses++
		return false, nil
	}
	f.Variants = datatypes.NewJSONSlice(models.CloneVariants(variants))
	f.Version++
	f.UpdatedAt = time.Now()
	return true, nil
}

func (r *Registry) ListCompletedImages(_ context.Context, afterID string, limit int) ([]*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	var list []*models.File
	for _, f := range r.files {
		if f.ID > afterID && !f.IsDeleted() && f.CompletedAt != nil && f.IsImage() {
			list = append(list, clone(f))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// Count 记录总数
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}

// Put 直接写入记录，保留调用方给出的版本和时间
func (r *Registry) Put(file *models.File) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[file.ID] = clone(file)
}

func clone(f *models.File) *models.File {
	c := *f
	c.Links = datatypes.NewJSONSlice(models.CloneLinks(f.Links))
	c.Variants = datatypes.NewJSONSlice(models.CloneVariants(f.Variants))
	if f.Metadata != nil {
		c.Metadata = make(datatypes.JSONMap, len(f.Metadata))
		for k, v := range f.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
