package assets

import (
	"context"
	"log"

	"github.com/anoixa/asset-store/database/models"
	"github.com/anoixa/asset-store/database/repo/files"
	"github.com/anoixa/asset-store/internal/errs"
	"github.com/anoixa/asset-store/internal/events"
	"github.com/anoixa/asset-store/internal/metrics"
	"github.com/anoixa/asset-store/utils"
)

// Impact 删除影响
type Impact struct {
	FileID                string            `json:"file_id"`
	LinkCount             int               `json:"link_count"`
	Links                 []models.FileLink `json:"links"`
	VariantCount          int               `json:"variant_count"`
	SharedContent         bool              `json:"shared_content"` // 还有其他文件引用同一内容
	CanDeleteWithoutForce bool              `json:"can_delete_without_force"`
}

// DeleteResult 删除结果
type DeleteResult struct {
	Impact         *Impact  `json:"impact"`
	RemovedKeys    []string `json:"removed_keys"`
	RetainedKeys   []string `json:"retained_keys,omitempty"` // 仍被同内容文件使用，未删除
	FailedKeys     []string `json:"failed_keys,omitempty"`
	AlreadyDeleted bool     `json:"already_deleted,omitempty"`
}

// DeletionImpact 删除前的影响评估
func (s *Service) DeletionImpact(ctx context.Context, fileID string) (*Impact, error) {
	const op = "assets.DeletionImpact"

	file, err := s.loadMutable(ctx, op, fileID)
	if err != nil {
		return nil, err
	}
	siblings, err := s.liveSiblings(ctx, file)
	if err != nil {
		return nil, errs.Upstream(op, err)
	}
	return buildImpact(file, siblings), nil
}

func buildImpact(file *models.File, siblings []*models.File) *Impact {
	return &Impact{
		FileID:                file.ID,
		LinkCount:             len(file.Links),
		Links:                 models.CloneLinks(file.Links),
		VariantCount:          len(file.Variants),
		SharedContent:         len(siblings) > 0,
		CanDeleteWithoutForce: len(file.Links) == 0,
	}
}

// Delete 删除文件：清理原始对象和全部变体对象，状态置为 deleted
// 仍有链接且未强制时返回 Conflict；对象清理失败只记录日志
func (s *Service) Delete(ctx context.Context, fileID string, force bool) (*DeleteResult, error) {
	const op = "assets.Delete"

	file, err := s.load(ctx, op, fileID)
	if err != nil {
		return nil, err
	}
	if file.IsDeleted() {
		return &DeleteResult{Impact: buildImpact(file, nil), AlreadyDeleted: true}, nil
	}

	siblings, err := s.liveSiblings(ctx, file)
	if err != nil {
		return nil, errs.Upstream(op, err)
	}
	impact := buildImpact(file, siblings)
	if !impact.CanDeleteWithoutForce && !force {
		return nil, errs.Conflict(op, "file %s still has %d links", fileID, impact.LinkCount)
	}

	result := &DeleteResult{Impact: impact}
	inUse := keysInUse(siblings)
	for _, key := range objectKeys(file) {
		if _, shared := inUse[key]; shared {
			result.RetainedKeys = append(result.RetainedKeys, key)
			continue
		}
		if err := s.storage.DeleteWithContext(ctx, key); err != nil {
			metrics.BlobCleanupFailures.Inc()
			log.Printf("[Assets] failed to delete object %s of %s: %v", key, file.ID, err)
			result.FailedKeys = append(result.FailedKeys, key)
			continue
		}
		result.RemovedKeys = append(result.RemovedKeys, key)
	}

	if _, err := s.update(ctx, op, file.ID, files.Changes{
		Status:    ptr(models.FileStatusDeleted),
		DeletedAt: ptr(s.now().UTC()),
	}); err != nil {
		return nil, err
	}

	metrics.FileTransitions.WithLabelValues(string(models.FileStatusDeleted)).Inc()
	utils.LogIfDevf("[Assets] deleted %s (force=%v, removed=%d, retained=%d)", file.ID, force, len(result.RemovedKeys), len(result.RetainedKeys))
	s.emit(ctx, events.FileDeleted, file, map[string]interface{}{
		"force":      force,
		"link_count": impact.LinkCount,
	})
	return result, nil
}

// liveSiblings 同内容的其他未删除文件
func (s *Service) liveSiblings(ctx context.Context, file *models.File) ([]*models.File, error) {
	list, err := s.repo.ListLiveByHash(ctx, file.ContentHash)
	if err != nil {
		return nil, err
	}
	out := make([]*models.File, 0, len(list))
	for _, f := range list {
		if f.ID != file.ID {
			out = append(out, f)
		}
	}
	return out, nil
}

func objectKeys(file *models.File) []string {
	seen := make(map[string]struct{}, len(file.Variants)+1)
	keys := make([]string, 0, len(file.Variants)+1)
	add := func(k string) {
		if k == "" {
			return
		}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	add(file.StorageKey)
	for _, v := range file.Variants {
		add(v.Key)
	}
	return keys
}

func keysInUse(list []*models.File) map[string]struct{} {
	used := make(map[string]struct{})
	for _, f := range list {
		for _, k := range objectKeys(f) {
			used[k] = struct{}{}
		}
	}
	return used
}
