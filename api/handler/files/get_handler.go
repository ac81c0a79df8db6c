package files

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anoixa/asset-store/api/common"
	"github.com/anoixa/asset-store/api/middleware"
	"github.com/anoixa/asset-store/internal/assets"
)

// GetFile 获取文件记录
// @Summary      Get file
// @Tags         files
// @Produce      json
// @Param        id   path      string  true  "File id"
// @Success      200  {object}  common.Response{data=models.File}
// @Failure      404  {object}  common.Response
// @Router       /files/{id} [get]
func (h *Handler) GetFile(c *gin.Context) {
	file, err := h.assets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.RespondErr(c, err)
		return
	}
	common.RespondSuccess(c, file)
}

// LookupFile 按 ref 查找，ref 可以是文件 ID 或旧的存储键
// @Summary      Lookup file
// @Tags         files
// @Produce      json
// @Param        ref  query     string  true  "File id or legacy storage key"
// @Success      200  {object}  common.Response{data=models.File}
// @Failure      400  {object}  common.Response
// @Failure      404  {object}  common.Response
// @Router       /files [get]
func (h *Handler) LookupFile(c *gin.Context) {
	ref := c.Query("ref")
	if ref == "" {
		common.RespondError(c, http.StatusBadRequest, "'ref' query parameter is required")
		return
	}
	file, err := h.assets.Get(c.Request.Context(), ref)
	if err != nil {
		common.RespondErr(c, err)
		return
	}
	common.RespondSuccess(c, file)
}

// DownloadURL 签发原图或变体的下载地址
// @Summary      Download URL
// @Tags         files
// @Produce      json
// @Param        id       path      string  true   "File id"
// @Param        variant  query     string  false  "Variant type, original when empty"
// @Success      200      {object}  common.Response{data=assets.DownloadResult}
// @Failure      403      {object}  common.Response
// @Failure      404      {object}  common.Response
// @Failure      422      {object}  common.Response  "Unsupported variant"
// @Router       /files/{id}/url [get]
func (h *Handler) DownloadURL(c *gin.Context) {
	result, err := h.assets.DownloadURL(c.Request.Context(), assets.DownloadRequest{
		FileRef:  c.Param("id"),
		ViewerID: middleware.UserID(c),
		Variant:  c.Query("variant"),
	})
	if err != nil {
		common.RespondErr(c, err)
		return
	}
	common.RespondSuccess(c, result)
}

// EnsureVariant 同步生成（或复用）指定类型的变体
// @Summary      Ensure variant
// @Tags         variants
// @Produce      json
// @Param        id    path      string  true  "File id"
// @Param        type  path      string  true  "Variant type"
// @Success      200   {object}  common.Response{data=models.FileVariant}
// @Failure      404   {object}  common.Response
// @Failure      422   {object}  common.Response
// @Failure      502   {object}  common.Response
// @Router       /files/{id}/variants/{type} [post]
func (h *Handler) EnsureVariant(c *gin.Context) {
	variant, err := h.variants.EnsureVariant(c.Request.Context(), c.Param("id"), c.Param("type"))
	if err != nil {
		common.RespondErr(c, err)
		return
	}
	common.RespondSuccess(c, variant)
}
