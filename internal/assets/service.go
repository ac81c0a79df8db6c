// Package assets 资产服务：上传协议、链接计数、删除、可见性和地址签发
package assets

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/anoixa/asset-store/cache"
	"github.com/anoixa/asset-store/database/models"
	"github.com/anoixa/asset-store/database/repo/files"
	"github.com/anoixa/asset-store/internal/access"
	"github.com/anoixa/asset-store/internal/errs"
	"github.com/anoixa/asset-store/internal/events"
	"github.com/anoixa/asset-store/internal/worker"
	"github.com/anoixa/asset-store/storage"
	"github.com/anoixa/asset-store/utils"
	"github.com/anoixa/asset-store/utils/generator"
)

const (
	defaultPresignTTL      = time.Hour
	defaultCacheTTL        = 10 * time.Minute
	defaultGenerateTimeout = 5 * time.Minute
)

// Variants 资产服务依赖的变体能力
type Variants interface {
	EnsureVariant(ctx context.Context, fileID, variantType string) (*models.FileVariant, error)
	GenerateAll(ctx context.Context, fileID string) error
}

// Options 服务参数，零值字段使用默认值
type Options struct {
	PresignTTL      time.Duration
	PublicEntity    PublicEntityPredicate
	Gate            access.Gate
	Publisher       events.Publisher
	Cache           cache.Provider // 可为空，不缓存文件记录
	CacheTTL        time.Duration
	Pool            *worker.Pool // 可为空，变体生成改用独立 goroutine
	GenerateTimeout time.Duration
}

// Service 资产服务
type Service struct {
	repo     files.RepositoryInterface
	storage  storage.Provider
	variants Variants
	paths    *generator.PathGenerator
	opts     Options

	flight singleflight.Group
	now    func() time.Time
}

// NewService 创建资产服务
func NewService(repo files.RepositoryInterface, store storage.Provider, variants Variants, opts Options) *Service {
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = defaultPresignTTL
	}
	if opts.PublicEntity == nil {
		opts.PublicEntity = EntityTypePredicate(nil)
	}
	if opts.Gate == nil {
		opts.Gate = access.OwnerGate{}
	}
	if opts.Publisher == nil {
		opts.Publisher = events.LogPublisher{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = defaultGenerateTimeout
	}

	return &Service{
		repo:     repo,
		storage:  store,
		variants: variants,
		paths:    generator.NewPathGenerator(),
		opts:     opts,
		now:      time.Now,
	}
}

// load 读取记录并把仓库错误转换为对外的错误类别
func (s *Service) load(ctx context.Context, op, fileID string) (*models.File, error) {
	file, err := s.repo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, files.ErrFileNotFound) {
			return nil, errs.NotFound(op, "file %s", fileID)
		}
		return nil, errs.Upstream(op, err)
	}
	return file, nil
}

// loadMutable 读取未删除的记录
func (s *Service) loadMutable(ctx context.Context, op, fileID string) (*models.File, error) {
	file, err := s.load(ctx, op, fileID)
	if err != nil {
		return nil, err
	}
	if file.IsDeleted() {
		return nil, errs.InvalidState(op, "file %s is deleted", fileID)
	}
	return file, nil
}

// update 写入变更，清除缓存并返回最新记录
func (s *Service) update(ctx context.Context, op, fileID string, changes files.Changes) (*models.File, error) {
	if err := s.repo.Update(ctx, fileID, changes); err != nil {
		if errors.Is(err, files.ErrFileNotFound) {
			return nil, errs.NotFound(op, "file %s", fileID)
		}
		return nil, errs.Upstream(op, err)
	}
	s.invalidate(ctx, fileID)
	return s.load(ctx, op, fileID)
}

func (s *Service) emit(ctx context.Context, eventType string, file *models.File, data map[string]interface{}) {
	events.Emit(ctx, s.opts.Publisher, events.New(eventType, file.ID, file.ContentHash, data))
}

// scheduleVariants 异步生成全部变体，失败只记录日志
func (s *Service) scheduleVariants(fileID string) {
	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.GenerateTimeout)
		defer cancel()
		if err := s.variants.GenerateAll(ctx, fileID); err != nil {
			log.Printf("[Assets] variant generation for %s failed: %v", fileID, err)
		}
	}

	if s.opts.Pool == nil {
		utils.SafeGo(task)
		return
	}
	if !s.opts.Pool.Submit(task) {
		log.Printf("[Assets] variant generation for %s not scheduled, worker pool unavailable", fileID)
	}
}

func ptr[T any](v T) *T {
	return &v
}
