package files

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anoixa/asset-store/api/common"
	"github.com/anoixa/asset-store/api/middleware"
	"github.com/anoixa/asset-store/database/models"
	"github.com/anoixa/asset-store/internal/assets"
)

// LinkBody 链接三元组
type LinkBody struct {
	App        string             `json:"app" binding:"required"`
	EntityType string             `json:"entity_type" binding:"required"`
	EntityID   string             `json:"entity_id" binding:"required"`
	Visibility *models.Visibility `json:"visibility"`
}

// VisibilityBody 可见性请求
type VisibilityBody struct {
	Visibility models.Visibility `json:"visibility" binding:"required"`
}

// AddLink 为文件增加引用
// @Summary      Link file
// @Tags         links
// @Accept       json
// @Produce      json
// @Param        id       path      string    true  "File id"
// @Param        request  body      LinkBody  true  "Entity reference"
// @Success      200      {object}  common.Response{data=models.File}
// @Failure      400      {object}  common.Response
// @Failure      404      {object}  common.Response
// @Router       /files/{id}/links [post]
func (h *Handler) AddLink(c *gin.Context) {
	var body LinkBody
	if err := c.ShouldBindJSON(&body); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	file, err := h.assets.Link(c.Request.Context(), assets.LinkRequest{
		FileID:     c.Param("id"),
		App:        body.App,
		EntityType: body.EntityType,
		EntityID:   body.EntityID,
		CreatedBy:  middleware.UserID(c),
		Visibility: body.Visibility,
	})
	if err != nil {
		common.RespondErr(c, err)
		return
	}
	common.RespondSuccess(c, file)
}

// RemoveLink 移除引用，最后一个引用移除后文件进入回收站
// @Summary      Unlink file
// @Tags         links
// @Accept       json
// @Produce      json
// @Param        id       path      string    true  "File id"
// @Param        request  body      LinkBody  true  "Entity reference"
// @Success      200      {object}  common.Response{data=models.File}
// @Failure      404      {object}  common.Response
// @Failure      409      {object}  common.Response
// @Router       /files/{id}/links [delete]
func (h *Handler) RemoveLink(c *gin.Context) {
	var body LinkBody
	if err := c.ShouldBindJSON(&body); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	file, err := h.assets.Unlink(c.Request.Context(), assets.UnlinkRequest{
		FileID:     c.Param("id"),
		App:        body.App,
		EntityType: body.EntityType,
		EntityID:   body.EntityID,
	})
	if err != nil {
		common.RespondErr(c, err)
		return
	}
	common.RespondSuccess(c, file)
}

// Restore 从回收站恢复
// @Summary      Restore file
// @Tags         files
// @Produce      json
// @Param        id   path      string  true  "File id"
// @Success      200  {object}  common.Response{data=models.File}
// @Failure      409  {object}  common.Response
// @Router       /files/{id}/restore [post]
func (h *Handler) Restore(c *gin.Context) {
	file, err := h.assets.Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.RespondErr(c, err)
		return
	}
	common.RespondSuccess(c, file)
}

// UpdateVisibility 设置可见性
// @Summary      Update visibility
// @Tags         files
// @Accept       json
// @Produce      json
// @Param        id       path      string          true  "File id"
// @Param        request  body      VisibilityBody  true  "public / private / unlisted"
// @Success      200      {object}  common.Response{data=models.File}
// @Failure      400      {object}  common.Response
// @Router       /files/{id}/visibility [patch]
func (h *Handler) UpdateVisibility(c *gin.Context) {
	var body VisibilityBody
	if err := c.ShouldBindJSON(&body); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body. 'visibility' field is required.")
		return
	}

	file, err := h.assets.SetVisibility(c.Request.Context(), c.Param("id"), body.Visibility)
	if err != nil {
		common.RespondErr(c, err)
		return
	}
	common.RespondSuccess(c, file)
}
