package assets

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anoixa/asset-store/cache"
	"github.com/anoixa/asset-store/database/models"
	"github.com/anoixa/asset-store/database/repo/files"
	"github.com/anoixa/asset-store/internal/access"
	"github.com/anoixa/asset-store/internal/errs"
	"github.com/anoixa/asset-store/internal/pipeline"
	"github.com/anoixa/asset-store/utils"
	"github.com/anoixa/asset-store/utils/validator"
)

// DownloadRequest 下载地址参数
type DownloadRequest struct {
	FileRef  string // 文件 ID，兼容旧的存储键
	ViewerID string
	Variant  string // 为空表示原图
}

// DownloadResult 签发的下载地址
type DownloadResult struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	Variant   string    `json:"variant,omitempty"`
	MimeType  string    `json:"mime_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Get 按引用获取文件
// UUID 形式按 ID 查找，其他字符串视为旧版本客户端保存的存储键
// TODO: 旧客户端全部迁移到文件 ID 后删除存储键查找分支
func (s *Service) Get(ctx context.Context, ref string) (*models.File, error) {
	const op = "assets.Get"

	ref = strings.TrimSpace(ref)
	switch {
	case validator.IsUUID(ref):
		return s.getByID(ctx, op, ref)
	case ref != "" && !strings.HasPrefix(ref, "/"):
		file, err := s.repo.GetByStorageKey(ctx, ref)
		if err != nil {
			if errors.Is(err, files.ErrFileNotFound) {
				return nil, errs.NotFound(op, "file %s", utils.SanitizeLogValue(ref))
			}
			return nil, errs.Upstream(op, err)
		}
		return file, nil
	default:
		return nil, errs.InvalidArgument(op, "invalid file reference")
	}
}

// getByID 读穿缓存
func (s *Service) getByID(ctx context.Context, op, id string) (*models.File, error) {
	if s.opts.Cache != nil {
		var cached models.File
		err := s.opts.Cache.Get(ctx, cache.FileRecord.BuildID(id), &cached)
		if err == nil {
			return &cached, nil
		}
		if !cache.IsCacheMiss(err) {
			utils.LogIfDevf("[Assets] cache get %s: %v", id, err)
		}
	}

	var (
		fence     int64
		fenceRead bool
	)
	if s.opts.Cache != nil {
		f, err := cache.FileFenceOf(ctx, s.opts.Cache, id)
		if err != nil {
			utils.LogIfDevf("[Assets] cache fence %s: %v", id, err)
		} else {
			fence, fenceRead = f, true
		}
	}

	file, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}

	// 读不到失效标记时不回填
	if fenceRead {
		if err := cache.StoreFile(ctx, s.opts.Cache, id, fence, file, s.opts.CacheTTL); err != nil {
			utils.LogIfDevf("[Assets] cache set %s: %v", id, err)
		}
	}
	return file, nil
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if s.opts.Cache == nil {
		return
	}
	if err := cache.InvalidateFile(ctx, s.opts.Cache, id); err != nil {
		utils.LogIfDevf("[Assets] cache delete %s: %v", id, err)
	}
}

// DownloadURL 签发原图或变体的限时下载地址
// 非 public 文件需要通过访问判定
func (s *Service) DownloadURL(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	const op = "assets.DownloadURL"

	file, err := s.Get(ctx, req.FileRef)
	if err != nil {
		return nil, err
	}
	if file.IsDeleted() {
		return nil, errs.NotFound(op, "file %s", file.ID)
	}
	if file.CompletedAt == nil {
		return nil, errs.InvalidState(op, "file %s upload is not completed", file.ID)
	}

	if file.Visibility != models.VisibilityPublic {
		ok, err := s.opts.Gate.CanAccess(ctx, file, access.Request{ViewerID: req.ViewerID, Variant: req.Variant})
		if err != nil {
			return nil, errs.Upstream(op, err)
		}
		if !ok {
			return nil, errs.AccessDenied(op, "file %s", file.ID)
		}
	}

	key, mime := file.StorageKey, file.MimeType
	if req.Variant != "" {
		v, err := s.variants.EnsureVariant(ctx, file.ID, req.Variant)
		if err != nil {
			return nil, err
		}
		key = v.Key
		mime = pipeline.ContentType(v.Format)
	}

	url, err := s.storage.PresignDownload(ctx, key, s.opts.PresignTTL)
	if err != nil {
		return nil, errs.Upstream(op, err)
	}

	return &DownloadResult{
		URL:       url,
		Key:       key,
		Variant:   req.Variant,
		MimeType:  mime,
		ExpiresAt: s.now().Add(s.opts.PresignTTL),
	}, nil
}
