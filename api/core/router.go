package core

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/anoixa/asset-store/api/common"
	"github.com/anoixa/asset-store/api/handler/blobs"
	handlerFiles "github.com/anoixa/asset-store/api/handler/files"
	"github.com/anoixa/asset-store/api/middleware"
	"github.com/anoixa/asset-store/cache"
	"github.com/anoixa/asset-store/config"
	"github.com/anoixa/asset-store/database"
	"github.com/anoixa/asset-store/storage"
)

// ServerVersion 版本信息
type ServerVersion struct {
	Version    string
	CommitHash string
}

// RouterDependencies 路由注册依赖
type RouterDependencies struct {
	Database      database.Provider
	Storage       storage.Provider
	Signer        *storage.Signer // minio 原生预签名时为 nil，不注册 /blobs
	CacheProvider cache.Provider
	Assets        handlerFiles.AssetService
	Variants      handlerFiles.VariantService
	RateLimiter   *middleware.CallerRateLimiter
	ServerVersion ServerVersion
	Config        *config.Config
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(router *gin.Engine, deps *RouterDependencies) {
	// 基础路由
	registerBasicRoutes(router, deps)

	// 签名 blob 路由
	registerBlobRoutes(router, deps)

	// API 路由
	registerAPIRoutes(router, deps)
}

// registerBasicRoutes 注册基础路由
func registerBasicRoutes(router *gin.Engine, deps *RouterDependencies) {
	healthHandler := NewHealthHandler(deps.Database, deps.Storage, deps.CacheProvider)
	router.GET("/health", healthHandler.Handle)

	router.GET("/version", func(context *gin.Context) {
		common.RespondSuccess(context, gin.H{
			"version": deps.ServerVersion.Version,
			"commit":  deps.ServerVersion.CommitHash,
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

func registerBlobRoutes(router *gin.Engine, deps *RouterDependencies) {
	if deps.Signer == nil {
		return
	}

	var maxBytes int64
	if deps.Config != nil {
		maxBytes = deps.Config.MaxBlobSizeMB << 20
	}
	blobHandler := blobs.NewHandler(deps.Storage, deps.Signer, deps.CacheProvider, maxBytes)

	blobGroup := router.Group("/blobs")
	{
		blobGroup.PUT("/*key", blobHandler.Upload)   // PUT /blobs/{key}?token=
		blobGroup.GET("/*key", blobHandler.Download) // GET /blobs/{key}?token=
	}
}

// registerAPIRoutes 注册 API 路由
func registerAPIRoutes(router *gin.Engine, deps *RouterDependencies) {
	fileHandler := handlerFiles.NewHandler(deps.Assets, deps.Variants)

	apiGroup := router.Group("/api")
	apiGroup.Use(func(context *gin.Context) { // 所有API禁止缓存
		context.Header("Cache-Control", "no-store")
		context.Next()
	})
	apiGroup.Use(middleware.Identity())
	if deps.RateLimiter != nil {
		apiGroup.Use(deps.RateLimiter.Middleware())
	}

	v1 := apiGroup.Group("/v1")
	{
		filesGroup := v1.Group("/files")
		{
			filesGroup.POST("/init", fileHandler.InitUpload)                   // POST /api/v1/files/init
			filesGroup.GET("", fileHandler.LookupFile)                         // GET /api/v1/files?ref=
			filesGroup.GET("/:id", fileHandler.GetFile)                        // GET /api/v1/files/{id}
			filesGroup.DELETE("/:id", fileHandler.DeleteFile)                  // DELETE /api/v1/files/{id}?force=
			filesGroup.POST("/:id/complete", fileHandler.CompleteUpload)       // POST /api/v1/files/{id}/complete
			filesGroup.POST("/:id/links", fileHandler.AddLink)                 // POST /api/v1/files/{id}/links
			filesGroup.DELETE("/:id/links", fileHandler.RemoveLink)            // DELETE /api/v1/files/{id}/links
			filesGroup.POST("/:id/restore", fileHandler.Restore)               // POST /api/v1/files/{id}/restore
			filesGroup.GET("/:id/deletion-impact", fileHandler.DeletionImpact) // GET /api/v1/files/{id}/deletion-impact
			filesGroup.PATCH("/:id/visibility", fileHandler.UpdateVisibility)  // PATCH /api/v1/files/{id}/visibility
			filesGroup.GET("/:id/url", fileHandler.DownloadURL)                // GET /api/v1/files/{id}/url?variant=
			filesGroup.POST("/:id/variants/:type", fileHandler.EnsureVariant)  // POST /api/v1/files/{id}/variants/{type}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		common.RespondError(c, http.StatusNotFound, "Route not found")
	})
}
