package assets

import (
	"context"

	"github.com/anoixa/asset-store/database/models"
	"github.com/anoixa/asset-store/database/repo/files"
	"github.com/anoixa/asset-store/internal/errs"
	"github.com/anoixa/asset-store/internal/events"
	"github.com/anoixa/asset-store/internal/metrics"
	"github.com/anoixa/asset-store/utils/validator"
)

// LinkRequest 链接参数，Visibility 为空时按实体类型推断
type LinkRequest struct {
	FileID     string
	App        string
	EntityType string
	EntityID   string
	CreatedBy  string
	Visibility *models.Visibility
}

// UnlinkRequest 取消链接参数
type UnlinkRequest struct {
	FileID     string
	App        string
	EntityType string
	EntityID   string
}

func validateTriple(op, app, entityType, entityID string) error {
	if !validator.IsIdentifier(app) || !validator.IsIdentifier(entityType) || !validator.IsIdentifier(entityID) {
		return errs.InvalidArgument(op, "app, entity type and entity id are required")
	}
	return nil
}

// Link 为文件增加一个引用
// 相同三元组已存在时不做任何修改；回收站中的文件恢复为 active
func (s *Service) Link(ctx context.Context, req LinkRequest) (*models.File, error) {
	const op = "assets.Link"

	if err := validateTriple(op, req.App, req.EntityType, req.EntityID); err != nil {
		return nil, err
	}
	if req.Visibility != nil && !req.Visibility.IsValid() {
		return nil, errs.InvalidArgument(op, "unknown visibility %q", *req.Visibility)
	}

	file, err := s.loadMutable(ctx, op, req.FileID)
	if err != nil {
		return nil, err
	}
	if file.LinkIndex(req.App, req.EntityType, req.EntityID) >= 0 {
		return file, nil
	}

	links := append(models.CloneLinks(file.Links), models.FileLink{
		App:        req.App,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		CreatedBy:  req.CreatedBy,
		CreatedAt:  s.now().UTC(),
	})
	changes := files.Changes{Links: links}

	// 推断只会提升为 public，不会把已公开的文件改回 private
	switch {
	case req.Visibility != nil:
		changes.Visibility = req.Visibility
	case s.opts.PublicEntity(req.App, req.EntityType):
		changes.Visibility = ptr(models.VisibilityPublic)
	}

	restored := file.Status == models.FileStatusTrash
	if restored {
		changes.Status = ptr(models.FileStatusActive)
	}

	updated, err := s.update(ctx, op, file.ID, changes)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.FileLinked, updated, map[string]interface{}{
		"app":         req.App,
		"entity_type": req.EntityType,
		"entity_id":   req.EntityID,
	})
	if restored {
		metrics.FileTransitions.WithLabelValues(string(models.FileStatusActive)).Inc()
		s.emit(ctx, events.FileRestored, updated, nil)
	}
	return updated, nil
}

// Unlink 移除引用，重复调用不报错
// 最后一个引用移除后 active 文件进入回收站
func (s *Service) Unlink(ctx context.Context, req UnlinkRequest) (*models.File, error) {
	const op = "assets.Unlink"

	if err := validateTriple(op, req.App, req.EntityType, req.EntityID); err != nil {
		return nil, err
	}

	file, err := s.loadMutable(ctx, op, req.FileID)
	if err != nil {
		return nil, err
	}

	idx := file.LinkIndex(req.App, req.EntityType, req.EntityID)
	if idx < 0 {
		return file, nil
	}

	links := models.CloneLinks(file.Links)
	links = append(links[:idx], links[idx+1:]...)
	changes := files.Changes{Links: links}

	trashed := len(links) == 0 && file.Status == models.FileStatusActive
	if trashed {
		changes.Status = ptr(models.FileStatusTrash)
	}

	updated, err := s.update(ctx, op, file.ID, changes)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.FileUnlinked, updated, map[string]interface{}{
		"app":         req.App,
		"entity_type": req.EntityType,
		"entity_id":   req.EntityID,
	})
	if trashed {
		metrics.FileTransitions.WithLabelValues(string(models.FileStatusTrash)).Inc()
		s.emit(ctx, events.FileTrashed, updated, nil)
	}
	return updated, nil
}

// Restore 把回收站中的文件恢复为 active
func (s *Service) Restore(ctx context.Context, fileID string) (*models.File, error) {
	const op = "assets.Restore"

	file, err := s.load(ctx, op, fileID)
	if err != nil {
		return nil, err
	}
	if file.Status != models.FileStatusTrash {
		return nil, errs.InvalidState(op, "file %s is %s, not trash", fileID, file.Status)
	}

	updated, err := s.update(ctx, op, fileID, files.Changes{Status: ptr(models.FileStatusActive)})
	if err != nil {
		return nil, err
	}

	metrics.FileTransitions.WithLabelValues(string(models.FileStatusActive)).Inc()
	s.emit(ctx, events.FileRestored, updated, nil)
	return updated, nil
}

// SetVisibility 直接设置可见性
func (s *Service) SetVisibility(ctx context.Context, fileID string, visibility models.Visibility) (*models.File, error) {
	const op = "assets.SetVisibility"

	if !visibility.IsValid() {
		return nil, errs.InvalidArgument(op, "unknown visibility %q", visibility)
	}

	file, err := s.loadMutable(ctx, op, fileID)
	if err != nil {
		return nil, err
	}
	if file.Visibility == visibility {
		return file, nil
	}

	return s.update(ctx, op, fileID, files.Changes{Visibility: &visibility})
}
