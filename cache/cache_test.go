package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedRecord struct {
	ID   string   `json:"id"`
	Tags []string `json:"tags"`
}

func TestMemoryCache(t *testing.T) {
	c, err := NewMemory(1 << 20)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	key := FileRecord.BuildID("abc")
	assert.Equal(t, "file:abc", key)

	in := cachedRecord{ID: "abc", Tags: []string{"a", "b"}}
	require.NoError(t, c.Set(ctx, key, in, time.Minute))

	var out cachedRecord
	require.NoError(t, c.Get(ctx, key, &out))
	assert.Equal(t, in, out)

	// 读取到的是副本
	out.Tags[0] = "changed"
	var again cachedRecord
	require.NoError(t, c.Get(ctx, key, &again))
	assert.Equal(t, "a", again.Tags[0])

	require.NoError(t, c.Delete(ctx, key))
	err = c.Get(ctx, key, &out)
	assert.True(t, IsCacheMiss(err))
	assert.Equal(t, "memory", c.Name())
}

func TestMemoryCache_SetNX(t *testing.T) {
	c, err := NewMemory(1 << 20)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	key := BlobToken.BuildID("jti-1")

	ok, err := c.SetNX(ctx, key, true, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, key, true, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsCacheMiss(t *testing.T) {
	assert.True(t, IsCacheMiss(ErrCacheMiss))
	assert.True(t, IsCacheMiss(fmt.Errorf("wrap: %w", ErrCacheMiss)))
	assert.False(t, IsCacheMiss(nil))
	assert.False(t, IsCacheMiss(fmt.Errorf("other")))
}

func TestKeyBuilder(t *testing.T) {
	kb := NewKeyBuilder("file")
	assert.Equal(t, "file", kb.Build())
	assert.Equal(t, "file:key:content/a.png", kb.Build("key", "content/a.png"))
}

func TestStoreFile_DropsSnapshotAfterInvalidation(t *testing.T) {
	c, err := NewMemory(1 << 20)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	key := FileRecord.BuildID("f1")

	fence, err := FileFenceOf(ctx, c, "f1")
	require.NoError(t, err)
	assert.Zero(t, fence)

	require.NoError(t, StoreFile(ctx, c, "f1", fence, cachedRecord{ID: "f1", Tags: []string{"v1"}}, time.Minute))
	var out cachedRecord
	require.NoError(t, c.Get(ctx, key, &out))
	assert.Equal(t, []string{"v1"}, out.Tags)

	// 回填期间发生修改
	fence, err = FileFenceOf(ctx, c, "f1")
	require.NoError(t, err)
	require.NoError(t, InvalidateFile(ctx, c, "f1"))
	require.NoError(t, StoreFile(ctx, c, "f1", fence, cachedRecord{ID: "f1", Tags: []string{"v1"}}, time.Minute))
	assert.True(t, IsCacheMiss(c.Get(ctx, key, &out)))

	// 标记稳定后正常回填
	fence, err = FileFenceOf(ctx, c, "f1")
	require.NoError(t, err)
	assert.NotZero(t, fence)
	require.NoError(t, StoreFile(ctx, c, "f1", fence, cachedRecord{ID: "f1", Tags: []string{"v2"}}, time.Minute))
	require.NoError(t, c.Get(ctx, key, &out))
	assert.Equal(t, []string{"v2"}, out.Tags)
}
