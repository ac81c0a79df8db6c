// Package blobs 承接 local / webdav / memory 后端的签名上传和下载
package blobs

import (
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anoixa/asset-store/api/common"
	"github.com/anoixa/asset-store/cache"
	"github.com/anoixa/asset-store/storage"
	"github.com/anoixa/asset-store/utils"
	"github.com/anoixa/asset-store/utils/format"
)

// Handler blob 处理器
type Handler struct {
	storage  storage.Provider
	signer   *storage.Signer
	cache    cache.Provider // 记录已使用的上传令牌，可为空
	maxBytes int64
}

// NewHandler 创建 blob 处理器，maxBytes <= 0 表示不限制
func NewHandler(store storage.Provider, signer *storage.Signer, cacheProvider cache.Provider, maxBytes int64) *Handler {
	return &Handler{
		storage:  store,
		signer:   signer,
		cache:    cacheProvider,
		maxBytes: maxBytes,
	}
}

// Upload 按签名地址写入对象，令牌只能使用一次
// @Summary      Upload blob
// @Tags         blobs
// @Accept       application/octet-stream
// @Produce      json
// @Param        key    path      string  true  "Storage key"
// @Param        token  query     string  true  "Signed token"
// @Success      201    {object}  common.Response
// @Failure      403    {object}  common.Response
// @Failure      409    {object}  common.Response  "Token already used"
// @Failure      413    {object}  common.Response
// @Failure      415    {object}  common.Response
// @Router       /blobs/{key} [put]
func (h *Handler) Upload(c *gin.Context) {
	key := blobKey(c)
	claims, err := h.signer.Verify(c.Query("token"), storage.OpUpload, key)
	if err != nil {
		utils.LogIfDevf("[Blobs] reject upload %s: %v", utils.SanitizeLogValue(key), err)
		common.RespondError(c, http.StatusForbidden, "Invalid or expired upload token")
		return
	}

	if claims.ContentType != "" {
		got := utils.NormalizeMimeType(c.ContentType())
		if got != "" && got != utils.NormalizeMimeType(claims.ContentType) {
			common.RespondError(c, http.StatusUnsupportedMediaType, "Content-Type does not match the upload token")
			return
		}
	}

	if !h.consume(c, claims) {
		return
	}

	body := io.Reader(c.Request.Body)
	if h.maxBytes > 0 {
		body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}

	if err := h.storage.SaveWithContext(c.Request.Context(), key, body, claims.ContentType); err != nil {
		// 写入失败时释放令牌，允许客户端重试
		h.release(c, claims)

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.RespondError(c, http.StatusRequestEntityTooLarge, "Object exceeds the size limit of "+format.HumanReadableSize(h.maxBytes))
			return
		}
		if utils.IsClientDisconnect(err) {
			utils.LogIfDevf("[Blobs] client disconnected while uploading %s", utils.SanitizeLogValue(key))
			c.Abort()
			return
		}
		log.Printf("[Blobs] failed to save %s: %v", utils.SanitizeLogValue(key), err)
		common.RespondError(c, http.StatusBadGateway, "Failed to store object")
		return
	}

	c.JSON(http.StatusCreated, common.Response{Status: "success", Data: gin.H{"key": key}})
}

// consume 记录令牌 ID，已使用过时返回 409
func (h *Handler) consume(c *gin.Context, claims *storage.BlobClaims) bool {
	if h.cache == nil || claims.ID == "" {
		return true
	}

	ttl := time.Hour
	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining + time.Minute
		}
	}

	ok, err := h.cache.SetNX(c.Request.Context(), cache.BlobToken.BuildID(claims.ID), claims.Key, ttl)
	if err != nil {
		log.Printf("[Blobs] failed to record upload token: %v", err)
		common.RespondError(c, http.StatusBadGateway, "Failed to verify upload token")
		return false
	}
	if !ok {
		common.RespondError(c, http.StatusConflict, "Upload token has already been used")
		return false
	}
	return true
}

func (h *Handler) release(c *gin.Context, claims *storage.BlobClaims) {
	if h.cache == nil || claims.ID == "" {
		return
	}
	if err := h.cache.Delete(c.Request.Context(), cache.BlobToken.BuildID(claims.ID)); err != nil {
		utils.LogIfDevf("[Blobs] failed to release upload token: %v", err)
	}
}

// Download 按签名地址读取对象
// @Summary      Download blob
// @Tags         blobs
// @Produce      application/octet-stream
// @Param        key    path   string  true  "Storage key"
// @Param        token  query  string  true  "Signed token"
// @Success      200
// @Failure      403    {object}  common.Response
// @Failure      404    {object}  common.Response
// @Router       /blobs/{key} [get]
func (h *Handler) Download(c *gin.Context) {
	key := blobKey(c)
	if _, err := h.signer.Verify(c.Query("token"), storage.OpDownload, key); err != nil {
		common.RespondError(c, http.StatusForbidden, "Invalid or expired download token")
		return
	}

	reader, err := h.storage.GetWithContext(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			common.RespondError(c, http.StatusNotFound, "Object not found")
			return
		}
		log.Printf("[Blobs] failed to read %s: %v", utils.SanitizeLogValue(key), err)
		common.RespondError(c, http.StatusBadGateway, "Failed to read object")
		return
	}
	defer reader.Close()

	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, -1, h.contentType(key), reader, nil)
}

// contentType 后端记录了类型时优先使用，否则按扩展名推断
func (h *Handler) contentType(key string) string {
	if typed, ok := h.storage.(interface{ ContentType(string) string }); ok {
		if ct := typed.ContentType(key); ct != "" {
			return ct
		}
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func blobKey(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("key"), "/")
}
