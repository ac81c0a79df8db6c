package files

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anoixa/asset-store/api/common"
	"github.com/anoixa/asset-store/api/middleware"
	"github.com/anoixa/asset-store/database/models"
	"github.com/anoixa/asset-store/internal/assets"
)

// InitUploadRequest 上传初始化请求
type InitUploadRequest struct {
	ContentHash string `json:"content_hash" binding:"required"`
	Size        int64  `json:"size"`
	MimeType    string `json:"mime_type"`
}

// CompleteUploadRequest 上传完成请求
type CompleteUploadRequest struct {
	OriginalName string                 `json:"original_name"`
	Size         int64                  `json:"size"`
	MimeType     string                 `json:"mime_type"`
	Visibility   *models.Visibility     `json:"visibility"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// InitUpload 登记上传并返回直传地址
// @Summary      Init upload
// @Description  Register an upload by content hash. Existing content is reused and only a new upload URL is issued.
// @Tags         files
// @Accept       json
// @Produce      json
// @Param        X-User-ID  header    string             true  "Caller id"
// @Param        request    body      InitUploadRequest  true  "Upload descriptor"
// @Success      200        {object}  common.Response{data=assets.InitResult}
// @Failure      400        {object}  common.Response
// @Failure      401        {object}  common.Response
// @Router       /files/init [post]
func (h *Handler) InitUpload(c *gin.Context) {
	ownerID := middleware.UserID(c)
	if ownerID == "" {
		common.RespondError(c, http.StatusUnauthorized, "X-User-ID header is required")
		return
	}

	var req InitUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.assets.Init(c.Request.Context(), assets.InitRequest{
		OwnerID:     ownerID,
		ContentHash: req.ContentHash,
		Size:        req.Size,
		MimeType:    req.MimeType,
	})
	if err != nil {
		common.RespondErr(c, err)
		return
	}
	common.RespondSuccess(c, result)
}

// CompleteUpload 确认对象已上传
// @Summary      Complete upload
// @Description  Confirm the object has been written to storage and fill in metadata. Variants are generated in the background.
// @Tags         files
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "File id"
// @Param        request  body      CompleteUploadRequest  false "Metadata"
// @Success      200      {object}  common.Response{data=models.File}
// @Failure      404      {object}  common.Response
// @Failure      409      {object}  common.Response
// @Failure      500      {object}  common.Response "Object missing from storage"
// @Router       /files/{id}/complete [post]
func (h *Handler) CompleteUpload(c *gin.Context) {
	var req CompleteUploadRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	file, err := h.assets.Complete(c.Request.Context(), assets.CompleteRequest{
		FileID:       c.Param("id"),
		OriginalName: req.OriginalName,
		Size:         req.Size,
		MimeType:     req.MimeType,
		Visibility:   req.Visibility,
		Metadata:     req.Metadata,
	})
	if err != nil {
		common.RespondErr(c, err)
		return
	}
	common.RespondSuccess(c, file)
}

// bindOptionalJSON 空请求体视为零值
func bindOptionalJSON(c *gin.Context, dest interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dest); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}
