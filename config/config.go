package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	globalConfig Config
	once         sync.Once
)

// Config 扁平化配置结构体
type Config struct {
	// 服务器配置
	ServerHost         string        `mapstructure:"server_host"`
	ServerPort         int           `mapstructure:"server_port"`
	ServerDomain       string        `mapstructure:"server_domain"`
	ServerReadTimeout  time.Duration `mapstructure:"server_read_timeout"`
	ServerWriteTimeout time.Duration `mapstructure:"server_write_timeout"`
	ServerIdleTimeout  time.Duration `mapstructure:"server_idle_timeout"`

	// 接口限流：按调用方（X-User-ID，缺省为 IP）计算
	RateLimitRPS          float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst        int           `mapstructure:"rate_limit_burst"`
	RateLimitExpire       time.Duration `mapstructure:"rate_limit_expire"`
	MaxConcurrentRequests int64         `mapstructure:"max_concurrent_requests"`
	MaxBlobSizeMB         int64         `mapstructure:"max_blob_size_mb"`

	// 数据库配置
	DBType            string `mapstructure:"db_type"`
	DBHost            string `mapstructure:"db_host"`
	DBPort            int    `mapstructure:"db_port"`
	DBUsername        string `mapstructure:"db_username"`
	DBPassword        string `mapstructure:"db_password"`
	DBName            string `mapstructure:"db_name"`
	DBFilePath        string `mapstructure:"db_file_path"`
	DBMaxOpenConns    int    `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns    int    `mapstructure:"db_max_idle_conns"`
	DBConnMaxLifetime int    `mapstructure:"db_conn_max_lifetime"`

	// 存储配置
	StorageType          string        `mapstructure:"storage_type"`
	StorageLocalPath     string        `mapstructure:"storage_local_path"`
	StorageSigningSecret string        `mapstructure:"storage_signing_secret"`
	PresignTTL           time.Duration `mapstructure:"presign_ttl"`

	MinioEndpoint        string `mapstructure:"minio_endpoint"`
	MinioAccessKeyID     string `mapstructure:"minio_access_key_id"`
	MinioSecretAccessKey string `mapstructure:"minio_secret_access_key"`
	MinioBucketName      string `mapstructure:"minio_bucket_name"`
	MinioUseSSL          bool   `mapstructure:"minio_use_ssl"`

	WebDAVURL      string        `mapstructure:"webdav_url"`
	WebDAVUsername string        `mapstructure:"webdav_username"`
	WebDAVPassword string        `mapstructure:"webdav_password"`
	WebDAVRootPath string        `mapstructure:"webdav_root_path"`
	WebDAVTimeout  time.Duration `mapstructure:"webdav_timeout"`

	// 缓存提供者配置
	CacheType          string        `mapstructure:"cache_type"`
	CacheRedisAddr     string        `mapstructure:"cache_redis_addr"`
	CacheRedisPassword string        `mapstructure:"cache_redis_password"`
	CacheRedisDB       int           `mapstructure:"cache_redis_db"`
	CacheMaxCostMB     int64         `mapstructure:"cache_max_cost_mb"`
	CacheFileTTL       time.Duration `mapstructure:"cache_file_ttl"`

	// Worker 配置
	WorkerCount         int `mapstructure:"worker_count"`
	WorkerQueueSize     int `mapstructure:"worker_queue_size"`
	PipelineConcurrency int `mapstructure:"pipeline_concurrency"`

	// 变体配置
	VariantEngine        string `mapstructure:"variant_engine"`
	VariantPresets       string `mapstructure:"variant_presets"`
	VariantCommitRetries int    `mapstructure:"variant_commit_retries"`
	VariantMaxSourceMB   int    `mapstructure:"variant_max_source_mb"`

	// 可见性推断：这些实体类型的链接会把文件提升为 public
	PublicEntityTypes string `mapstructure:"public_entity_types"`

	// 事件
	AMQPURL      string `mapstructure:"amqp_url"`
	AMQPExchange string `mapstructure:"amqp_exchange"`

	// 变体补齐扫描
	BackfillEnabled   bool          `mapstructure:"backfill_enabled"`
	BackfillInterval  time.Duration `mapstructure:"backfill_interval"`
	BackfillBatchSize int           `mapstructure:"backfill_batch_size"`
	BackfillRPS       float64       `mapstructure:"backfill_rps"`
}

// InitConfig Initialize configuration
func InitConfig() {
	once.Do(func() {
		loadConfig()
	})
}

func Get() *Config {
	return &globalConfig
}

// loadConfig Core configuration loading
func loadConfig() {
	setDefaults()

	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintln(os.Stderr, "Info: .env file not found, using defaults and environment variables")
	} else {
		fmt.Fprintln(os.Stderr, "Info: Loaded configuration from .env file")
	}

	viper.AutomaticEnv()
	for _, key := range viper.AllKeys() {
		_ = viper.BindEnv(key)
	}

	if err := viper.Unmarshal(&globalConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: Unable to unmarshal config, %v\n", err)
		os.Exit(1)
	}

	// WorkerCount: -1 = 使用 CPU 线程数, 0 = 使用默认值 (max(2, CPU核心数)), >0 = 使用指定值
	switch {
	case globalConfig.WorkerCount < 0:
		globalConfig.WorkerCount = runtime.GOMAXPROCS(0)
	case globalConfig.WorkerCount == 0:
		globalConfig.WorkerCount = getCpus()
	}
}

// setDefaults 设置默认值
func setDefaults() {
	viper.SetDefault("server_host", "127.0.0.1")
	viper.SetDefault("server_port", 8080)
	viper.SetDefault("server_domain", "")
	viper.SetDefault("server_read_timeout", "15s")
	viper.SetDefault("server_write_timeout", "30s")
	viper.SetDefault("server_idle_timeout", "120s")
	viper.SetDefault("rate_limit_rps", 20.0)
	viper.SetDefault("rate_limit_burst", 40)
	viper.SetDefault("rate_limit_expire", "10m")
	viper.SetDefault("max_concurrent_requests", 100)
	viper.SetDefault("max_blob_size_mb", 100)

	viper.SetDefault("db_type", "sqlite")
	viper.SetDefault("db_host", "localhost")
	viper.SetDefault("db_port", 5432)
	viper.SetDefault("db_username", "postgres")
	viper.SetDefault("db_password", "")
	viper.SetDefault("db_name", "asset-store")
	viper.SetDefault("db_file_path", "")
	viper.SetDefault("db_max_open_conns", 100)
	viper.SetDefault("db_max_idle_conns", 25)
	viper.SetDefault("db_conn_max_lifetime", 3600)

	viper.SetDefault("storage_type", "local")
	viper.SetDefault("storage_local_path", "./data/blobs")
	viper.SetDefault("storage_signing_secret", "")
	viper.SetDefault("presign_ttl", "1h")
	viper.SetDefault("minio_endpoint", "")
	viper.SetDefault("minio_access_key_id", "")
	viper.SetDefault("minio_secret_access_key", "")
	viper.SetDefault("minio_bucket_name", "assets")
	viper.SetDefault("minio_use_ssl", false)
	viper.SetDefault("webdav_url", "")
	viper.SetDefault("webdav_username", "")
	viper.SetDefault("webdav_password", "")
	viper.SetDefault("webdav_root_path", "")
	viper.SetDefault("webdav_timeout", "30s")

	viper.SetDefault("cache_type", "memory")
	viper.SetDefault("cache_redis_addr", "localhost:6379")
	viper.SetDefault("cache_redis_password", "")
	viper.SetDefault("cache_redis_db", 0)
	viper.SetDefault("cache_max_cost_mb", 64)
	viper.SetDefault("cache_file_ttl", "10m")

	viper.SetDefault("worker_count", 0) // 0 表示使用默认值
	viper.SetDefault("worker_queue_size", 1000)
	viper.SetDefault("pipeline_concurrency", 0)

	viper.SetDefault("variant_engine", "vips")
	viper.SetDefault("variant_presets", "")
	viper.SetDefault("variant_commit_retries", 5)
	viper.SetDefault("variant_max_source_mb", 50)

	viper.SetDefault("public_entity_types", "avatar,profile_banner")

	viper.SetDefault("amqp_url", "")
	viper.SetDefault("amqp_exchange", "asset-store.events")

	viper.SetDefault("backfill_enabled", false)
	viper.SetDefault("backfill_interval", "10m")
	viper.SetDefault("backfill_batch_size", 100)
	viper.SetDefault("backfill_rps", 2.0)
}

// Addr 返回监听地址，格式为 "host:port"
func (c *Config) Addr() string {
	host := c.ServerHost
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.ServerPort
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// BaseURL 返回基础 URL，用于生成签名下载/上传链接
func (c *Config) BaseURL() string {
	if c.ServerDomain != "" {
		return strings.TrimRight(c.ServerDomain, "/")
	}
	host := c.ServerHost
	if host == "0.0.0.0" || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, c.ServerPort)
}

// GetWorkerCount 返回 worker 数量
func (c *Config) GetWorkerCount() int {
	if c.WorkerCount <= 0 {
		return getCpus()
	}
	return c.WorkerCount
}

// GetPipelineConcurrency 同时运行的图像处理任务上限
func (c *Config) GetPipelineConcurrency() int {
	if c.PipelineConcurrency <= 0 {
		return getCpus()
	}
	return c.PipelineConcurrency
}

// GetPresignTTL 预签名 URL 有效期，默认一小时
func (c *Config) GetPresignTTL() time.Duration {
	if c.PresignTTL <= 0 {
		return time.Hour
	}
	return c.PresignTTL
}

// GetVariantCommitRetries 变体写入冲突时的最大重试次数
func (c *Config) GetVariantCommitRetries() int {
	if c.VariantCommitRetries <= 0 {
		return 5
	}
	return c.VariantCommitRetries
}

// GetPublicEntityTypes 解析逗号分隔的实体类型
func (c *Config) GetPublicEntityTypes() []string {
	return splitList(c.PublicEntityTypes)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getCpus 获取默认线程数量
func getCpus() int {
	n := runtime.GOMAXPROCS(0)
	if n < 2 {
		return 2
	}
	return n
}
