package cache

import (
	"context"
	"time"
)

// FileFenceTTL 失效标记的保留时间，需长于一次回填的读库耗时
const FileFenceTTL = time.Hour

// InvalidateFile 更新失效标记后删除缓存的文件记录
// 正在进行的回填会在写入后发现标记变化并撤销自己的写入
func InvalidateFile(ctx context.Context, p Provider, id string) error {
	if err := p.Set(ctx, FileFence.BuildID(id), time.Now().UnixNano(), FileFenceTTL); err != nil {
		return err
	}
	return p.Delete(ctx, FileRecord.BuildID(id))
}

// FileFenceOf 读取失效标记，不存在时为 0
// 回填前调用，结果传给 StoreFile
func FileFenceOf(ctx context.Context, p Provider, id string) (int64, error) {
	var fence int64
	err := p.Get(ctx, FileFence.BuildID(id), &fence)
	if err != nil && !IsCacheMiss(err) {
		return 0, err
	}
	return fence, nil
}

// StoreFile 回填文件记录
// 读库期间记录被修改过（标记已变化）时删除刚写入的值，避免旧快照留在缓存中
func StoreFile(ctx context.Context, p Provider, id string, fence int64, value interface{}, ttl time.Duration) error {
	if err := p.Set(ctx, FileRecord.BuildID(id), value, ttl); err != nil {
		return err
	}
	current, err := FileFenceOf(ctx, p, id)
	if err != nil {
		_ = p.Delete(ctx, FileRecord.BuildID(id))
		return err
	}
	if current != fence {
		return p.Delete(ctx, FileRecord.BuildID(id))
	}
	return nil
}
