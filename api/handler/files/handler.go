package files

import (
	"context"

	"github.com/anoixa/asset-store/database/models"
	"github.com/anoixa/asset-store/internal/assets"
)

// AssetService 文件接口依赖的资产服务
type AssetService interface {
	Init(ctx context.Context, req assets.InitRequest) (*assets.InitResult, error)
	Complete(ctx context.Context, req assets.CompleteRequest) (*models.File, error)
	Get(ctx context.Context, ref string) (*models.File, error)
	Link(ctx context.Context, req assets.LinkRequest) (*models.File, error)
	Unlink(ctx context.Context, req assets.UnlinkRequest) (*models.File, error)
	Restore(ctx context.Context, fileID string) (*models.File, error)
	SetVisibility(ctx context.Context, fileID string, visibility models.Visibility) (*models.File, error)
	DeletionImpact(ctx context.Context, fileID string) (*assets.Impact, error)
	Delete(ctx context.Context, fileID string, force bool) (*assets.DeleteResult, error)
	DownloadURL(ctx context.Context, req assets.DownloadRequest) (*assets.DownloadResult, error)
}

// VariantService 变体接口依赖的变体服务
type VariantService interface {
	EnsureVariant(ctx context.Context, fileID, variantType string) (*models.FileVariant, error)
}

// Handler 文件接口处理器
type Handler struct {
	assets   AssetService
	variants VariantService
}

// NewHandler 创建文件接口处理器
func NewHandler(assetSvc AssetService, variantSvc VariantService) *Handler {
	return &Handler{
		assets:   assetSvc,
		variants: variantSvc,
	}
}
