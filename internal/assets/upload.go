package assets

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/anoixa/asset-store/database/models"
	"github.com/anoixa/asset-store/database/repo/files"
	"github.com/anoixa/asset-store/internal/errs"
	"github.com/anoixa/asset-store/internal/events"
	"github.com/anoixa/asset-store/internal/metrics"
	"github.com/anoixa/asset-store/utils"
	"github.com/anoixa/asset-store/utils/validator"
)

const defaultMimeType = "application/octet-stream"

// InitRequest 上传初始化参数
type InitRequest struct {
	OwnerID     string
	ContentHash string
	Size        int64
	MimeType    string
}

// InitResult 上传地址和文件标识
type InitResult struct {
	UploadURL    string    `json:"upload_url"`
	FileID       string    `json:"file_id"`
	ContentHash  string    `json:"content_hash"`
	StorageKey   string    `json:"storage_key"`
	Deduplicated bool      `json:"deduplicated"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CompleteRequest 上传完成参数
type CompleteRequest struct {
	FileID       string
	OriginalName string
	Size         int64
	MimeType     string
	Visibility   *models.Visibility
	Metadata     map[string]interface{}
}

type initOutcome struct {
	file    *models.File
	created bool
}

// Init 登记上传
// 相同哈希已有未删除的记录时直接复用，只重新签发上传地址
func (s *Service) Init(ctx context.Context, req InitRequest) (*InitResult, error) {
	const op = "assets.Init"

	hash := strings.ToLower(strings.TrimSpace(req.ContentHash))
	if !validator.IsContentHash(hash) {
		return nil, errs.InvalidArgument(op, "content hash must be 64 hex characters")
	}
	if !validator.IsIdentifier(req.OwnerID) {
		return nil, errs.InvalidArgument(op, "owner id is required")
	}
	if req.Size < 0 {
		return nil, errs.InvalidArgument(op, "size must not be negative")
	}
	mime := utils.NormalizeMimeType(req.MimeType)
	if mime == "" {
		mime = defaultMimeType
	}

	// 同一哈希的等待者共享结果，首个调用方取消不影响其他人
	v, err, shared := s.flight.Do(hash, func() (interface{}, error) {
		return s.findOrCreate(context.WithoutCancel(ctx), op, req.OwnerID, hash, req.Size, mime)
	})
	if err != nil {
		return nil, err
	}
	outcome := v.(*initOutcome)
	file := outcome.file
	deduplicated := !outcome.created || shared

	uploadURL, err := s.storage.PresignUpload(ctx, file.StorageKey, file.MimeType, s.opts.PresignTTL)
	if err != nil {
		return nil, errs.Upstream(op, err)
	}

	if deduplicated {
		metrics.UploadsTotal.WithLabelValues(metrics.UploadDeduplicated).Inc()
		utils.LogIfDevf("[Assets] init %s deduplicated onto %s", hash, file.ID)
	} else {
		metrics.UploadsTotal.WithLabelValues(metrics.UploadCreated).Inc()
		s.emit(ctx, events.FileCreated, file, map[string]interface{}{"owner_id": file.OwnerID, "mime_type": file.MimeType})
	}

	return &InitResult{
		UploadURL:    uploadURL,
		FileID:       file.ID,
		ContentHash:  file.ContentHash,
		StorageKey:   file.StorageKey,
		Deduplicated: deduplicated,
		ExpiresAt:    s.now().Add(s.opts.PresignTTL),
	}, nil
}

func (s *Service) findOrCreate(ctx context.Context, op, ownerID, hash string, size int64, mime string) (*initOutcome, error) {
	existing, err := s.repo.GetLiveByHash(ctx, hash)
	if err == nil {
		return &initOutcome{file: existing}, nil
	}
	if !errors.Is(err, files.ErrFileNotFound) {
		return nil, errs.Upstream(op, err)
	}

	now := s.now().UTC()
	ext := utils.GetSafeExtension(mime)
	file := &models.File{
		ID:          uuid.NewString(),
		ContentHash: hash,
		Size:        size,
		MimeType:    mime,
		Extension:   ext,
		OwnerID:     ownerID,
		Status:      models.FileStatusActive,
		Visibility:  models.VisibilityPrivate,
		StorageKey:  s.paths.OriginalKey(hash, ext, now),
		CreatedAt:   now,
	}
	if err := s.repo.Create(ctx, file); err != nil {
		return nil, errs.Upstream(op, err)
	}
	return &initOutcome{file: file, created: true}, nil
}

// Complete 确认对象已写入存储后补全元数据，并异步生成变体
func (s *Service) Complete(ctx context.Context, req CompleteRequest) (*models.File, error) {
	const op = "assets.Complete"

	if req.Visibility != nil && !req.Visibility.IsValid() {
		return nil, errs.InvalidArgument(op, "unknown visibility %q", *req.Visibility)
	}
	if req.Size < 0 {
		return nil, errs.InvalidArgument(op, "size must not be negative")
	}

	file, err := s.loadMutable(ctx, op, req.FileID)
	if err != nil {
		return nil, err
	}

	exists, err := s.storage.Exists(ctx, file.StorageKey)
	if err != nil {
		return nil, errs.Upstream(op, err)
	}
	if !exists {
		return nil, errs.StorageInconsistency(op, "object %s has not been uploaded", file.StorageKey)
	}

	changes := files.Changes{
		Visibility:  req.Visibility,
		CompletedAt: ptr(s.now().UTC()),
	}
	if name := strings.TrimSpace(req.OriginalName); name != "" {
		changes.OriginalName = ptr(truncate(name, 255))
	}
	if req.Size > 0 {
		changes.Size = ptr(req.Size)
	}
	if mime := utils.NormalizeMimeType(req.MimeType); mime != "" {
		changes.MimeType = ptr(mime)
	}
	if req.Metadata != nil {
		changes.Metadata = req.Metadata
	}

	updated, err := s.update(ctx, op, file.ID, changes)
	if err != nil {
		return nil, err
	}

	s.scheduleVariants(updated.ID)
	s.emit(ctx, events.FileCompleted, updated, map[string]interface{}{"size": updated.Size, "mime_type": updated.MimeType})
	return updated, nil
}

// truncate 按字节截断，不切断多字节字符
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for i := n; i > 0; i-- {
		if utf8.RuneStart(s[i]) {
			return s[:i]
		}
	}
	return ""
}
