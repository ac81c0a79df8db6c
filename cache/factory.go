package cache

import (
	"fmt"
	"log"

	"github.com/anoixa/asset-store/cache/memory"
	"github.com/anoixa/asset-store/cache/redis"
	"github.com/anoixa/asset-store/config"
)

// NewProvider 根据配置创建缓存提供者
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.CacheType {
	case "redis":
		p, err := redis.NewRedis(cfg.CacheRedisAddr, cfg.CacheRedisPassword, cfg.CacheRedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect redis cache: %w", err)
		}
		log.Printf("[Cache] Using redis cache at %s", cfg.CacheRedisAddr)
		return p, nil
	case "memory", "":
		maxCost := cfg.CacheMaxCostMB
		if maxCost <= 0 {
			maxCost = 64
		}
		p, err := NewMemory(maxCost << 20)
		if err != nil {
			return nil, err
		}
		log.Printf("[Cache] Using memory cache, max %d MB", maxCost)
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.CacheType)
	}
}

// NewMemory 创建内存缓存，maxCost 单位为字节
func NewMemory(maxCost int64) (*memory.Memory, error) {
	p, err := memory.NewMemory(memory.Config{
		NumCounters: 100000,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return p, nil
}
