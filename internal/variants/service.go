// Package variants 变体缓存：按需生成缩放后的派生文件并记录到文件登记表
package variants

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/anoixa/asset-store/cache"
	"github.com/anoixa/asset-store/config"
	"github.com/anoixa/asset-store/database/models"
	"github.com/anoixa/asset-store/database/repo/files"
	"github.com/anoixa/asset-store/internal/errs"
	"github.com/anoixa/asset-store/internal/events"
	"github.com/anoixa/asset-store/internal/metrics"
	"github.com/anoixa/asset-store/internal/pipeline"
	"github.com/anoixa/asset-store/storage"
	"github.com/anoixa/asset-store/utils"
	"github.com/anoixa/asset-store/utils/format"
	"github.com/anoixa/asset-store/utils/generator"
)

const (
	defaultCommitRetries = 5
	defaultMaxSource     = 50 << 20
)

// Options 服务参数
type Options struct {
	Presets        []config.VariantPreset
	CommitRetries  int   // 版本冲突后的最大重试次数
	Concurrency    int   // 同时运行的图片处理数
	MaxSourceBytes int64 // 超过此大小的原图不生成变体
	Publisher      events.Publisher
	Cache          cache.Provider // 提交后清除文件记录缓存，可为空
}

// Service 变体服务
type Service struct {
	repo      files.RepositoryInterface
	storage   storage.Provider
	pipeline  pipeline.Pipeline
	paths     *generator.PathGenerator
	publisher events.Publisher
	cache     cache.Provider

	presets   map[string]config.VariantPreset
	order     []config.VariantPreset
	retries   int
	maxSource int64

	sem    *semaphore.Weighted
	flight singleflight.Group
}

// NewService 创建变体服务
func NewService(repo files.RepositoryInterface, store storage.Provider, pipe pipeline.Pipeline, opts Options) *Service {
	if opts.CommitRetries <= 0 {
		opts.CommitRetries = defaultCommitRetries
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	if opts.MaxSourceBytes <= 0 {
		opts.MaxSourceBytes = defaultMaxSource
	}
	if len(opts.Presets) == 0 {
		opts.Presets = config.DefaultVariantPresets()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.LogPublisher{}
	}

	presets := make(map[string]config.VariantPreset, len(opts.Presets))
	for _, p := range opts.Presets {
		presets[p.Type] = p
	}

	return &Service{
		repo:      repo,
		storage:   store,
		pipeline:  pipe,
		paths:     generator.NewPathGenerator(),
		publisher: opts.Publisher,
		cache:     opts.Cache,
		presets:   presets,
		order:     opts.Presets,
		retries:   opts.CommitRetries,
		maxSource: opts.MaxSourceBytes,
		sem:       semaphore.NewWeighted(int64(opts.Concurrency)),
	}
}

// Presets 已配置的变体类型
func (s *Service) Presets() []config.VariantPreset {
	out := make([]config.VariantPreset, len(s.order))
	copy(out, s.order)
	return out
}

// Supports 文件是否有可用的变体流水线
func (s *Service) Supports(file *models.File) bool {
	return file.IsImage() && s.pipeline.Supports(file.MimeType)
}

// MissingPresets 尚未就绪的变体类型
func (s *Service) MissingPresets(file *models.File) []string {
	var missing []string
	for _, p := range s.order {
		if v, ok := file.FindVariant(p.Type); !ok || !v.IsReady() {
			missing = append(missing, p.Type)
		}
	}
	return missing
}

// EnsureVariant 返回就绪的变体，不存在时复用同内容文件的变体或生成
func (s *Service) EnsureVariant(ctx context.Context, fileID, variantType string) (*models.FileVariant, error) {
	const op = "variants.EnsureVariant"

	file, err := s.load(ctx, op, fileID)
	if err != nil {
		return nil, err
	}

	if v, ok := file.FindVariant(variantType); ok && v.IsReady() {
		exists, err := s.storage.Exists(ctx, v.Key)
		if err != nil {
			return nil, errs.Upstream(op, err)
		}
		if exists {
			metrics.VariantsTotal.WithLabelValues(metrics.VariantHit).Inc()
			return &v, nil
		}
		log.Printf("[Variants] %s/%s recorded as ready but object %s is missing, regenerating", file.ID, variantType, v.Key)
	}

	preset, ok := s.presets[variantType]
	if !ok {
		return nil, errs.UnsupportedVariant(op, "unknown variant type %q", variantType)
	}
	if !s.Supports(file) {
		return nil, errs.UnsupportedVariant(op, "no pipeline for %s", file.MimeType)
	}

	v, err := s.reuseFromSibling(ctx, file, variantType)
	if err != nil {
		return nil, errs.Upstream(op, err)
	}
	if v != nil {
		metrics.VariantsTotal.WithLabelValues(metrics.VariantReused).Inc()
	} else {
		v, err = s.generateShared(ctx, file, preset, nil)
		if err != nil {
			metrics.VariantsTotal.WithLabelValues(metrics.VariantFailed).Inc()
			return nil, err
		}
		metrics.VariantsTotal.WithLabelValues(metrics.VariantGenerated).Inc()
	}

	if err := s.commit(ctx, file, []models.FileVariant{*v}); err != nil {
		return nil, err
	}
	s.emitReady(ctx, file, *v)
	return v, nil
}

// GenerateAll 生成全部预设变体
// 同内容的其他文件有本文件尚未记录的就绪变体时整体复制，不再生成
func (s *Service) GenerateAll(ctx context.Context, fileID string) error {
	const op = "variants.GenerateAll"

	file, err := s.load(ctx, op, fileID)
	if err != nil {
		return err
	}
	if !s.Supports(file) {
		utils.LogIfDevf("[Variants] %s (%s) has no pipeline, skip", file.ID, file.MimeType)
		return nil
	}

	copied, err := s.copyFromSiblings(ctx, file)
	if err != nil {
		return errs.Upstream(op, err)
	}
	if len(copied) > 0 {
		if err := s.commit(ctx, file, copied); err != nil {
			return err
		}
		metrics.VariantsTotal.WithLabelValues(metrics.VariantReused).Add(float64(len(copied)))
		utils.LogIfDevf("[Variants] %s reused %d variants from siblings", file.ID, len(copied))
		for _, v := range copied {
			s.emitReady(ctx, file, v)
		}
		return nil
	}

	missing := s.MissingPresets(file)
	if len(missing) == 0 {
		return nil
	}

	src, err := s.readOriginal(ctx, op, file)
	if err != nil {
		return err
	}

	var (
		mu        sync.Mutex
		generated []models.FileVariant
		failures  []error
		g         errgroup.Group
	)
	for _, t := range missing {
		preset := s.presets[t]
		g.Go(func() error {
			v, err := s.generateShared(ctx, file, preset, src)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.VariantsTotal.WithLabelValues(metrics.VariantFailed).Inc()
				failures = append(failures, fmt.Errorf("%s: %w", preset.Type, err))
				return nil
			}
			metrics.VariantsTotal.WithLabelValues(metrics.VariantGenerated).Inc()
			generated = append(generated, *v)
			return nil
		})
	}
	_ = g.Wait()

	if len(generated) > 0 {
		if err := s.commit(ctx, file, generated); err != nil {
			return err
		}
		for _, v := range generated {
			s.emitReady(ctx, file, v)
		}
	}

	if len(failures) > 0 {
		return errs.Upstream(op, errors.Join(failures...))
	}
	return nil
}

func (s *Service) load(ctx context.Context, op, fileID string) (*models.File, error) {
	file, err := s.repo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, files.ErrFileNotFound) {
			return nil, errs.NotFound(op, "file %s", fileID)
		}
		return nil, errs.Upstream(op, err)
	}
	if file.IsDeleted() {
		return nil, errs.InvalidState(op, "file %s is deleted", fileID)
	}
	return file, nil
}

// siblings 同哈希的其他未删除文件
func (s *Service) siblings(ctx context.Context, file *models.File) ([]*models.File, error) {
	list, err := s.repo.ListLiveByHash(ctx, file.ContentHash)
	if err != nil {
		return nil, err
	}
	out := list[:0]
	for _, f := range list {
		if f.ID != file.ID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Service) reuseFromSibling(ctx context.Context, file *models.File, variantType string) (*models.FileVariant, error) {
	siblings, err := s.siblings(ctx, file)
	if err != nil {
		return nil, err
	}
	for _, sib := range siblings {
		v, ok := sib.FindVariant(variantType)
		if !ok || !v.IsReady() {
			continue
		}
		exists, err := s.storage.Exists(ctx, v.Key)
		if err != nil {
			return nil, err
		}
		if exists {
			utils.LogIfDevf("[Variants] %s/%s reused from %s", file.ID, variantType, sib.ID)
			return &v, nil
		}
	}
	return nil, nil
}

// copyFromSiblings 取第一个拥有新变体的同内容文件，返回其全部可用变体
// 本文件已有的同键就绪变体不计入，全部已有时返回空，由调用方继续生成缺失预设
func (s *Service) copyFromSiblings(ctx context.Context, file *models.File) ([]models.FileVariant, error) {
	siblings, err := s.siblings(ctx, file)
	if err != nil {
		return nil, err
	}
	for _, sib := range siblings {
		var usable []models.FileVariant
		for _, v := range sib.ReadyVariants() {
			if own, ok := file.FindVariant(v.Type); ok && own.IsReady() && own.Key == v.Key {
				continue
			}
			exists, err := s.storage.Exists(ctx, v.Key)
			if err != nil {
				return nil, err
			}
			if exists {
				usable = append(usable, v)
			}
		}
		if len(usable) > 0 {
			return usable, nil
		}
	}
	return nil, nil
}

// generateShared 同一内容同一类型的并发生成只执行一次
func (s *Service) generateShared(ctx context.Context, file *models.File, preset config.VariantPreset, src []byte) (*models.FileVariant, error) {
	key := file.ContentHash + ":" + preset.Type
	res, err, shared := s.flight.Do(key, func() (interface{}, error) {
		return s.generate(ctx, file, preset, src)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		utils.LogIfDevf("[Variants] %s/%s shared in-flight generation", file.ID, preset.Type)
	}
	v := *res.(*models.FileVariant)
	return &v, nil
}

func (s *Service) generate(ctx context.Context, file *models.File, preset config.VariantPreset, src []byte) (*models.FileVariant, error) {
	const op = "variants.generate"

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, errs.Upstream(op, err)
	}
	defer s.sem.Release(1)

	if src == nil {
		var err error
		if src, err = s.readOriginal(ctx, op, file); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	res, err := s.pipeline.Resize(ctx, src, pipeline.Options{
		Width:   preset.Width,
		Height:  preset.Height,
		Quality: preset.Quality,
		Format:  preset.Format,
	})
	metrics.PipelineDuration.WithLabelValues(s.pipeline.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, pipeline.ErrUnsupportedFormat) {
			return nil, errs.UnsupportedVariant(op, "%s: %v", preset.Type, err)
		}
		return nil, errs.Upstream(op, err)
	}

	key := s.paths.VariantKey(file.ContentHash, preset.Type, res.Format, file.CreatedAt)
	if err := s.storage.SaveWithContext(ctx, key, bytes.NewReader(res.Data), pipeline.ContentType(res.Format)); err != nil {
		return nil, errs.Upstream(op, err)
	}

	now := time.Now().UTC()
	utils.LogIfDevf("[Variants] generated %s (%dx%d, %d bytes) in %v", key, res.Width, res.Height, len(res.Data), time.Since(start))

	return &models.FileVariant{
		Type:    preset.Type,
		Key:     key,
		Format:  res.Format,
		Width:   res.Width,
		Height:  res.Height,
		Size:    int64(len(res.Data)),
		ReadyAt: &now,
		Metadata: map[string]interface{}{
			"engine":  s.pipeline.Name(),
			"quality": preset.Quality,
		},
	}, nil
}

func (s *Service) readOriginal(ctx context.Context, op string, file *models.File) ([]byte, error) {
	if file.Size > s.maxSource {
		return nil, errs.UnsupportedVariant(op, "source %s exceeds limit %s", format.HumanReadableSize(file.Size), format.HumanReadableSize(s.maxSource))
	}

	rc, err := s.storage.GetWithContext(ctx, file.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, errs.StorageInconsistency(op, "original %s is missing", file.StorageKey)
		}
		return nil, errs.Upstream(op, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, s.maxSource+1))
	if err != nil {
		return nil, errs.Upstream(op, err)
	}
	if int64(len(data)) > s.maxSource {
		return nil, errs.UnsupportedVariant(op, "source exceeds limit %s", format.HumanReadableSize(s.maxSource))
	}
	return data, nil
}

// commit 乐观并发写入变体列表
// 版本不匹配时重新读取，按类型合并后重试
func (s *Service) commit(ctx context.Context, file *models.File, incoming []models.FileVariant) error {
	const op = "variants.commit"

	current := file
	for attempt := 0; attempt <= s.retries; attempt++ {
		merged := models.MergeVariants(current.Variants, incoming)
		ok, err := s.repo.CompareAndSwapVariants(ctx, current.ID, current.Version, merged)
		if err != nil {
			return errs.Upstream(op, err)
		}
		if ok {
			s.invalidate(ctx, current.ID)
			return nil
		}

		metrics.VariantCommitConflicts.Inc()
		utils.LogIfDevf("[Variants] commit conflict on %s (version %d, attempt %d)", current.ID, current.Version, attempt+1)

		if current, err = s.load(ctx, op, file.ID); err != nil {
			return err
		}
	}

	return errs.Upstream(op, fmt.Errorf("file %s: variant commit gave up after %d retries", file.ID, s.retries))
}

func (s *Service) invalidate(ctx context.Context, fileID string) {
	if s.cache == nil {
		return
	}
	if err := cache.InvalidateFile(ctx, s.cache, fileID); err != nil {
		utils.LogIfDevf("[Variants] cache delete %s: %v", fileID, err)
	}
}

func (s *Service) emitReady(ctx context.Context, file *models.File, v models.FileVariant) {
	events.Emit(ctx, s.publisher, events.New(events.VariantReady, file.ID, file.ContentHash, map[string]interface{}{
		"type":   v.Type,
		"key":    v.Key,
		"width":  v.Width,
		"height": v.Height,
	}))
}
