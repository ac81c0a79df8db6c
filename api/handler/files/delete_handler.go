package files

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/anoixa/asset-store/api/common"
)

// DeletionImpact 删除影响评估
// @Summary      Deletion impact
// @Tags         files
// @Produce      json
// @Param        id   path      string  true  "File id"
// @Success      200  {object}  common.Response{data=assets.Impact}
// @Failure      404  {object}  common.Response
// @Router       /files/{id}/deletion-impact [get]
func (h *Handler) DeletionImpact(c *gin.Context) {
	impact, err := h.assets.DeletionImpact(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.RespondErr(c, err)
		return
	}
	common.RespondSuccess(c, impact)
}

// DeleteFile 删除文件，仍有引用时需要 force=true
// @Summary      Delete file
// @Tags         files
// @Produce      json
// @Param        id     path      string  true   "File id"
// @Param        force  query     bool    false  "Delete even if links remain"
// @Success      200    {object}  common.Response{data=assets.DeleteResult}
// @Failure      409    {object}  common.Response  "File still has links"
// @Router       /files/{id} [delete]
func (h *Handler) DeleteFile(c *gin.Context) {
	force := false
	if raw := c.Query("force"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			common.RespondError(c, http.StatusBadRequest, "Invalid 'force' parameter")
			return
		}
		force = v
	}

	result, err := h.assets.Delete(c.Request.Context(), c.Param("id"), force)
	if err != nil {
		common.RespondErr(c, err)
		return
	}
	common.RespondSuccess(c, result)
}
