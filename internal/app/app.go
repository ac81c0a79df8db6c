package app

import (
	"fmt"
	"log"

	"github.com/anoixa/asset-store/cache"
	"github.com/anoixa/asset-store/config"
	"github.com/anoixa/asset-store/database"
	"github.com/anoixa/asset-store/database/repo/files"
	"github.com/anoixa/asset-store/internal/access"
	"github.com/anoixa/asset-store/internal/assets"
	"github.com/anoixa/asset-store/internal/events"
	"github.com/anoixa/asset-store/internal/pipeline"
	"github.com/anoixa/asset-store/internal/scanner"
	"github.com/anoixa/asset-store/internal/variants"
	"github.com/anoixa/asset-store/internal/worker"
	"github.com/anoixa/asset-store/storage"
	"github.com/anoixa/asset-store/utils"
)

// Container 依赖注入容器 - 管理所有服务的生命周期
type Container struct {
	config          *config.Config
	databaseFactory *database.Factory
	storage         storage.Provider
	signer          *storage.Signer
	cache           cache.Provider
	publisher       events.Publisher
	pipeline        pipeline.Pipeline
	pool            *worker.Pool

	FilesRepo *files.Repository
	Variants  *variants.Service
	Assets    *assets.Service
	Backfill  *scanner.BackfillScanner
}

// NewContainer 创建新的依赖注入容器
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config: cfg,
	}
}

// Init 按依赖顺序初始化全部组件
func (c *Container) Init() error {
	if err := c.InitDatabase(); err != nil {
		return err
	}
	if err := c.InitServices(); err != nil {
		return err
	}
	return nil
}

// InitDatabase 初始化数据库并自动迁移
func (c *Container) InitDatabase() error {
	utils.LogIfDev("Initializing DI container...")

	factory, err := database.NewFactory(c.config)
	if err != nil {
		return fmt.Errorf("failed to initialize database factory: %w", err)
	}
	c.databaseFactory = factory

	if err := factory.AutoMigrate(); err != nil {
		return err
	}

	c.FilesRepo = files.NewRepository(factory.GetProvider().DB())
	utils.LogIfDev("Repositories initialized")
	return nil
}

// InitServices 初始化存储、缓存、事件和业务服务
func (c *Container) InitServices() error {
	if c.FilesRepo == nil {
		return fmt.Errorf("database is not initialized")
	}

	store, signer, err := storage.NewProvider(c.config)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.storage, c.signer = store, signer

	cacheProvider, err := cache.NewProvider(c.config)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	c.cache = cacheProvider

	publisher, err := events.NewPublisher(c.config)
	if err != nil {
		// 事件不影响主流程，降级为日志
		log.Printf("[Container] event publisher unavailable, falling back to log: %v", err)
		publisher = events.LogPublisher{}
	}
	c.publisher = publisher

	c.pipeline = newPipeline(c.config.VariantEngine)
	c.pool = worker.InitGlobalPool(c.config.GetWorkerCount(), c.config.WorkerQueueSize)

	c.Variants = variants.NewService(c.FilesRepo, c.storage, c.pipeline, variants.Options{
		Presets:        c.config.GetVariantPresets(),
		CommitRetries:  c.config.GetVariantCommitRetries(),
		Concurrency:    c.config.GetPipelineConcurrency(),
		MaxSourceBytes: int64(c.config.VariantMaxSourceMB) << 20,
		Publisher:      c.publisher,
		Cache:          c.cache,
	})

	c.Assets = assets.NewService(c.FilesRepo, c.storage, c.Variants, c.assetOptions(access.OwnerGate{}))

	c.Backfill = scanner.NewBackfillScanner(c.FilesRepo, c.Variants, c.pool, scanner.Config{
		Interval:  c.config.BackfillInterval,
		BatchSize: c.config.BackfillBatchSize,
		RPS:       c.config.BackfillRPS,
	})

	log.Printf("[Container] storage=%s cache=%s pipeline=%s", c.storage.Name(), c.cache.Name(), c.pipeline.Name())
	utils.LogIfDev("DI container initialized successfully")
	return nil
}

func (c *Container) assetOptions(gate access.Gate) assets.Options {
	return assets.Options{
		PresignTTL:   c.config.GetPresignTTL(),
		PublicEntity: assets.EntityTypePredicate(c.config.GetPublicEntityTypes()),
		Gate:         gate,
		Publisher:    c.publisher,
		Cache:        c.cache,
		CacheTTL:     c.config.CacheFileTTL,
		Pool:         c.pool,
	}
}

// OperatorAssets 运维命令使用的资产服务，不做访问判定
func (c *Container) OperatorAssets() *assets.Service {
	return assets.NewService(c.FilesRepo, c.storage, c.Variants, c.assetOptions(access.AllowAll{}))
}

// newPipeline 按配置选择图片引擎，未知值回退到纯 Go 实现
func newPipeline(engine string) pipeline.Pipeline {
	switch engine {
	case "vips":
		return pipeline.NewVipsPipeline()
	case "std", "":
		return pipeline.NewStdPipeline()
	default:
		log.Printf("[Container] unknown variant engine %q, using std", engine)
		return pipeline.NewStdPipeline()
	}
}

// GetConfig 获取配置
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetDatabaseProvider 获取数据库提供者
func (c *Container) GetDatabaseProvider() database.Provider {
	if c.databaseFactory == nil {
		return nil
	}
	return c.databaseFactory.GetProvider()
}

// GetStorage 获取存储提供者
func (c *Container) GetStorage() storage.Provider {
	return c.storage
}

// GetSigner 获取签名器，minio 使用原生预签名时为 nil
func (c *Container) GetSigner() *storage.Signer {
	return c.signer
}

// GetCache 获取缓存提供者
func (c *Container) GetCache() cache.Provider {
	return c.cache
}

// Close 关闭所有服务
func (c *Container) Close() error {
	utils.LogIfDev("Closing DI container...")

	if c.Backfill != nil {
		c.Backfill.Stop()
	}
	worker.StopGlobalPool()

	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			log.Printf("Error closing event publisher: %v", err)
		}
	}
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			log.Printf("Error closing cache: %v", err)
		}
	}
	if _, ok := c.pipeline.(*pipeline.VipsPipeline); ok {
		pipeline.ShutdownVips()
	}
	if c.databaseFactory != nil {
		if err := c.databaseFactory.Close(); err != nil {
			utils.LogIfDevf("Error closing database factory: %v", err)
		}
	}

	utils.LogIfDev("DI container closed")
	return nil
}
