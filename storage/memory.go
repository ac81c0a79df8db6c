package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// MemoryStorage 内存存储，用于测试和单机演示
type MemoryStorage struct {
	tokenPresigner
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryStorage 创建内存存储
func NewMemoryStorage(signer *Signer) *MemoryStorage {
	return &MemoryStorage{
		tokenPresigner: tokenPresigner{signer: signer},
		objects:        make(map[string]memoryObject),
	}
}

// SaveWithContext 写入对象
func (s *MemoryStorage) SaveWithContext(ctx context.Context, key string, data io.Reader, contentType string) error {
	if !IsValidStoragePath(key) {
		return fmt.Errorf("invalid storage path: %s", key)
	}
	buf, err := io.ReadAll(&ctxReader{ctx: ctx, r: data})
	if err != nil {
		return fmt.Errorf("failed to read object content: %w", err)
	}

	s.mu.Lock()
	s.objects[key] = memoryObject{data: buf, contentType: contentType}
	s.mu.Unlock()
	return nil
}

// GetWithContext 读取对象
func (s *MemoryStorage) GetWithContext(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// DeleteWithContext 删除对象
func (s *MemoryStorage) DeleteWithContext(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Exists 检查对象是否存在
func (s *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	_, ok := s.objects[key]
	s.mu.RUnlock()
	return ok, nil
}

// ContentType 返回写入时的 Content-Type
func (s *MemoryStorage) ContentType(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects[key].contentType
}

// Keys 返回所有键，已排序
func (s *MemoryStorage) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Health 检查存储健康状态
func (s *MemoryStorage) Health(ctx context.Context) error {
	return ctx.Err()
}

// Name 返回存储名称
func (s *MemoryStorage) Name() string {
	return "memory"
}
