package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/anoixa/asset-store/cache/types"
	"github.com/dgraph-io/ristretto"
)

// Memory 内存缓存实现
// 值统一序列化为 JSON 保存，读取时反序列化到新对象，调用方之间不共享内存
type Memory struct {
	client *ristretto.Cache
	nxMu   sync.Mutex
}

// Config 内存缓存配置
type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

// NewMemory 创建新的内存缓存提供者
func NewMemory(config Config) (*Memory, error) {
	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: config.NumCounters,
		MaxCost:     config.MaxCost,
		BufferItems: config.BufferItems,
		Metrics:     config.Metrics,
	})
	if err != nil {
		return nil, err
	}

	return &Memory{
		client: client,
	}, nil
}

// Set 设置缓存项
func (m *Memory) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if m.client.SetWithTTL(key, data, int64(len(data)), expiration) {
		// 等待值被实际设置
		m.client.Wait()
	}
	return nil
}

// Get 获取缓存项
func (m *Memory) Get(ctx context.Context, key string, dest interface{}) error {
	value, found := m.client.Get(key)
	if !found {
		return types.ErrCacheMiss
	}
	data, ok := value.([]byte)
	if !ok {
		return types.ErrCacheMiss
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return types.ErrCacheMiss
	}
	return nil
}

// SetNX 键不存在时写入
func (m *Memory) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	m.nxMu.Lock()
	defer m.nxMu.Unlock()

	if _, found := m.client.Get(key); found {
		return false, nil
	}
	if err := m.Set(ctx, key, value, expiration); err != nil {
		return false, err
	}
	return true, nil
}

// Delete 删除缓存项
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.client.Del(key)
	return nil
}

// Close 关闭缓存连接
func (m *Memory) Close() error {
	m.client.Close()
	return nil
}

// Name 返回缓存提供者名称
func (m *Memory) Name() string {
	return "memory"
}
