package core

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anoixa/asset-store/cache"
	"github.com/anoixa/asset-store/config"
	"github.com/anoixa/asset-store/database"
	"github.com/anoixa/asset-store/storage"
)

var startTime = time.Now()

// HealthHandler 健康检查
type HealthHandler struct {
	db      database.Provider
	storage storage.Provider
	cache   cache.Provider
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(db database.Provider, store storage.Provider, cacheProvider cache.Provider) *HealthHandler {
	return &HealthHandler{db: db, storage: store, cache: cacheProvider}
}

// Handle 任一依赖不可用时返回 503
func (h *HealthHandler) Handle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := gin.H{
		"database": checkDatabaseHealth(ctx, h.db),
		"cache":    checkCacheHealth(h.cache),
		"storage":  checkStorageHealth(ctx, h.storage),
	}

	httpStatus := http.StatusOK
	status := "ok"
	for _, checkResult := range checks {
		if result, ok := checkResult.(string); ok && result != "ok" {
			httpStatus = http.StatusServiceUnavailable
			status = "degraded"
			break
		}
	}

	c.JSON(httpStatus, gin.H{
		"status":  status,
		"uptime":  time.Since(startTime).Round(time.Second).String(),
		"version": config.Version,
		"checks":  checks,
	})
}

func checkDatabaseHealth(ctx context.Context, provider database.Provider) string {
	if provider == nil {
		return "not initialized"
	}
	if err := provider.Ping(ctx); err != nil {
		return "unavailable: " + err.Error()
	}
	return "ok"
}

func checkCacheHealth(provider cache.Provider) string {
	if provider == nil {
		return "not initialized"
	}
	return "ok"
}

func checkStorageHealth(ctx context.Context, provider storage.Provider) string {
	if provider == nil {
		return "not initialized"
	}
	if err := provider.Health(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
