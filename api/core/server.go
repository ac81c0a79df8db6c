package core

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/anoixa/asset-store/api/middleware"
	"github.com/anoixa/asset-store/config"
)

// NewRouter 创建 gin 引擎并挂载中间件和路由，返回停止后台任务的清理函数
func NewRouter(deps *RouterDependencies) (*gin.Engine, func()) {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Get()
		deps.Config = cfg
	}

	// 仅在开发版本时启用 gin 日志
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if !config.IsProduction() {
		router.Use(gin.Logger())
	}
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.BaseURL()},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.HeaderUserID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	_ = router.SetTrustedProxies(nil)

	// 并发限制，blob 直传会占用较多内存
	concurrencyLimiter := middleware.NewConcurrencyLimiter(cfg.MaxConcurrentRequests)
	router.Use(concurrencyLimiter.Middleware())

	// 基础监控指标
	router.Use(middleware.Metrics())

	// 速率限制
	if deps.RateLimiter == nil {
		deps.RateLimiter = middleware.NewCallerRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimitExpire)
	}
	cleanup := func() {
		deps.RateLimiter.StopCleanup()
	}

	RegisterRoutes(router, deps)
	return router, cleanup
}

// StartServer 创建 http.Server
func StartServer(deps *RouterDependencies) (*http.Server, func()) {
	router, clean := NewRouter(deps)
	cfg := deps.Config

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return srv, clean
}
