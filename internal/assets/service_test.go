package assets

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/anoixa/asset-store/cache"
	"github.com/anoixa/asset-store/config"
	"github.com/anoixa/asset-store/database/models"
	"github.com/anoixa/asset-store/database/repo/files"
	"github.com/anoixa/asset-store/internal/access"
	"github.com/anoixa/asset-store/internal/errs"
	"github.com/anoixa/asset-store/internal/events"
	"github.com/anoixa/asset-store/internal/testhelpers"
	"github.com/anoixa/asset-store/internal/variants"
	"github.com/anoixa/asset-store/internal/worker"
	"github.com/anoixa/asset-store/storage"
)

type fixture struct {
	svc      *Service
	repo     *testhelpers.Registry
	store    *storage.MemoryStorage
	pipe     *testhelpers.CountingPipeline
	pool     *worker.Pool
	image    []byte
	hash     string
	variants *variants.Service
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	signer, err := storage.NewSigner("test-secret", "http://assets.test")
	require.NoError(t, err)

	f := &fixture{
		repo:  testhelpers.NewRegistry(),
		store: storage.NewMemoryStorage(signer),
		pipe:  testhelpers.NewCountingPipeline(),
		pool:  worker.NewPool(2, 16),
		image: testhelpers.PNG(t, 300, 150),
	}
	t.Cleanup(f.pool.Stop)
	f.hash = testhelpers.Hash(f.image)
	f.variants = variants.NewService(f.repo, f.store, f.pipe, variants.Options{
		Presets: []config.VariantPreset{
			{Type: "thumb", Width: 50, Height: 50, Quality: 80, Format: "png"},
		},
	})

	opts := Options{
		PublicEntity: EntityTypePredicate([]string{"avatar", "profile_banner"}),
		Pool:         f.pool,
	}
	for _, m := range mutate {
		m(&opts)
	}
	f.svc = NewService(f.repo, f.store, f.variants, opts)
	return f
}

// upload 走完整的两阶段上传，并等待异步变体生成结束
// 之后的 Complete 不再调度变体生成
func (f *fixture) upload(t *testing.T, owner string) *models.File {
	t.Helper()
	ctx := context.Background()
	res, err := f.svc.Init(ctx, InitRequest{OwnerID: owner, ContentHash: f.hash, Size: int64(len(f.image)), MimeType: "image/png"})
	require.NoError(t, err)
	require.NoError(t, f.store.SaveWithContext(ctx, res.StorageKey, bytes.NewReader(f.image), "image/png"))
	file, err := f.svc.Complete(ctx, CompleteRequest{FileID: res.FileID, OriginalName: "cat.png"})
	require.NoError(t, err)
	f.pool.Stop()
	return file
}

func link(entityType, entityID string) LinkRequest {
	return LinkRequest{App: "mention", EntityType: entityType, EntityID: entityID, CreatedBy: "u1"}
}

func TestInit_Deduplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hash := strings.Repeat("ab", 32)

	first, err := f.svc.Init(ctx, InitRequest{OwnerID: "u1", ContentHash: hash, Size: 1024, MimeType: "image/png"})
	require.NoError(t, err)
	assert.False(t, first.Deduplicated)
	assert.NotEmpty(t, first.UploadURL)
	assert.True(t, strings.HasPrefix(first.StorageKey, "content/"))
	assert.True(t, strings.HasSuffix(first.StorageKey, "/ab/"+hash+".png"))

	file, err := f.repo.GetByID(ctx, first.FileID)
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusActive, file.Status)
	assert.Empty(t, file.Links)
	assert.Empty(t, file.Variants)
	assert.Equal(t, "u1", file.OwnerID)

	second, err := f.svc.Init(ctx, InitRequest{OwnerID: "u2", ContentHash: strings.ToUpper(hash), Size: 1024, MimeType: "image/png"})
	require.NoError(t, err)
	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.FileID, second.FileID)
	assert.Equal(t, first.StorageKey, second.StorageKey)
	assert.Equal(t, 1, f.repo.Count())
}

func TestInit_ConcurrentSameHash(t *testing.T) {
	f := newFixture(t)
	hash := strings.Repeat("cd", 32)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.Init(context.Background(), InitRequest{OwnerID: "u1", ContentHash: hash, MimeType: "image/jpeg"})
			if assert.NoError(t, err) {
				ids[i] = res.FileID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, f.repo.Count())
}

// blockingRepo 哈希查询阻塞到 release 关闭，遵守 ctx 取消
type blockingRepo struct {
	*testhelpers.Registry
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *blockingRepo) GetLiveByHash(ctx context.Context, hash string) (*models.File, error) {
	r.once.Do(func() { close(r.entered) })
	select {
	case <-r.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.Registry.GetLiveByHash(ctx, hash)
}

func TestInit_FirstCallerCancelDoesNotFailOthers(t *testing.T) {
	f := newFixture(t)
	repo := &blockingRepo{Registry: f.repo, entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(repo, f.store, f.variants, Options{Pool: f.pool})
	req := InitRequest{OwnerID: "u1", ContentHash: f.hash, Size: int64(len(f.image)), MimeType: "image/png"}

	ctx1, cancel := context.WithCancel(context.Background())
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, _ = svc.Init(ctx1, req)
	}()
	<-repo.entered

	var (
		second    *InitResult
		secondErr error
		wg        sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		second, secondErr = svc.Init(context.Background(), req)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	close(repo.release)
	wg.Wait()
	<-firstDone

	require.NoError(t, secondErr)
	assert.NotEmpty(t, second.FileID)
	assert.Equal(t, 1, f.repo.Count())
}

func TestInit_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Init(ctx, InitRequest{OwnerID: "u1", ContentHash: "abc"})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = f.svc.Init(ctx, InitRequest{ContentHash: strings.Repeat("a", 64)})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = f.svc.Init(ctx, InitRequest{OwnerID: "u1", ContentHash: strings.Repeat("a", 64), Size: -1})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Complete(ctx, CompleteRequest{FileID: "nope"})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	res, err := f.svc.Init(ctx, InitRequest{OwnerID: "u1", ContentHash: f.hash, MimeType: "image/png"})
	require.NoError(t, err)

	// 对象尚未上传
	_, err = f.svc.Complete(ctx, CompleteRequest{FileID: res.FileID})
	assert.ErrorIs(t, err, errs.ErrStorageInconsistency)

	require.NoError(t, f.store.SaveWithContext(ctx, res.StorageKey, bytes.NewReader(f.image), "image/png"))
	vis := models.VisibilityUnlisted
	file, err := f.svc.Complete(ctx, CompleteRequest{
		FileID:       res.FileID,
		OriginalName: "  cat.png ",
		Size:         int64(len(f.image)),
		MimeType:     "image/png",
		Visibility:   &vis,
		Metadata:     map[string]interface{}{"camera": "x100"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cat.png", file.OriginalName)
	assert.Equal(t, models.VisibilityUnlisted, file.Visibility)
	assert.NotNil(t, file.CompletedAt)
	assert.Equal(t, "x100", file.Metadata["camera"])

	// 等待异步变体生成
	f.pool.Stop()
	stored, err := f.repo.GetByID(ctx, res.FileID)
	require.NoError(t, err)
	v, ok := stored.FindVariant("thumb")
	require.True(t, ok)
	assert.True(t, v.IsReady())
}

func TestComplete_VariantFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	corrupt := []byte("definitely not a png")
	hash := testhelpers.Hash(corrupt)

	res, err := f.svc.Init(ctx, InitRequest{OwnerID: "u1", ContentHash: hash, MimeType: "image/png"})
	require.NoError(t, err)
	require.NoError(t, f.store.SaveWithContext(ctx, res.StorageKey, bytes.NewReader(corrupt), "image/png"))

	file, err := f.svc.Complete(ctx, CompleteRequest{FileID: res.FileID, OriginalName: "broken.png"})
	require.NoError(t, err)
	assert.Equal(t, "broken.png", file.OriginalName)

	f.pool.Stop()
	stored, err := f.repo.GetByID(ctx, res.FileID)
	require.NoError(t, err)
	assert.Empty(t, stored.Variants)
	assert.NotNil(t, stored.CompletedAt)
}

func TestLink_VisibilityInference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.upload(t, "u1")
	file, err := f.svc.Link(ctx, withFile(link("avatar", "p1"), a.ID))
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityPublic, file.Visibility)

	// 推断不会降级
	file, err = f.svc.Link(ctx, withFile(link("post", "p2"), a.ID))
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityPublic, file.Visibility)
	assert.Len(t, file.Links, 2)

	// 首个链接为普通实体时保持默认 private
	other := testhelpers.PNG(t, 20, 20)
	res, err := f.svc.Init(ctx, InitRequest{OwnerID: "u1", ContentHash: testhelpers.Hash(other), MimeType: "image/png"})
	require.NoError(t, err)
	file, err = f.svc.Link(ctx, withFile(link("post", "p3"), res.FileID))
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityPrivate, file.Visibility)

	// 显式指定优先
	unlisted := models.VisibilityUnlisted
	req := withFile(link("avatar", "p4"), res.FileID)
	req.Visibility = &unlisted
	file, err = f.svc.Link(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityUnlisted, file.Visibility)
}

func TestLinkUnlink_ReferenceCounting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.upload(t, "u1")

	file, err := f.svc.Link(ctx, withFile(link("post", "p1"), a.ID))
	require.NoError(t, err)
	version := file.Version

	// 重复链接不修改记录
	file, err = f.svc.Link(ctx, withFile(link("post", "p1"), a.ID))
	require.NoError(t, err)
	assert.Len(t, file.Links, 1)
	assert.Equal(t, version, file.Version)

	_, err = f.svc.Link(ctx, withFile(link("comment", "c1"), a.ID))
	require.NoError(t, err)

	unlink := func(entityType, entityID string) *models.File {
		file, err := f.svc.Unlink(ctx, UnlinkRequest{FileID: a.ID, App: "mention", EntityType: entityType, EntityID: entityID})
		require.NoError(t, err)
		return file
	}

	file = unlink("post", "p1")
	assert.Equal(t, models.FileStatusActive, file.Status)
	assert.Len(t, file.Links, 1)

	file = unlink("comment", "c1")
	assert.Equal(t, models.FileStatusTrash, file.Status)
	assert.Empty(t, file.Links)

	// 重复取消链接
	file = unlink("comment", "c1")
	assert.Equal(t, models.FileStatusTrash, file.Status)

	// 重新链接恢复 active
	file, err = f.svc.Link(ctx, withFile(link("post", "p9"), a.ID))
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusActive, file.Status)
}

func TestRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.upload(t, "u1")

	_, err := f.svc.Restore(ctx, a.ID)
	assert.ErrorIs(t, err, errs.ErrInvalidState)

	_, err = f.svc.Link(ctx, withFile(link("post", "p1"), a.ID))
	require.NoError(t, err)
	_, err = f.svc.Unlink(ctx, UnlinkRequest{FileID: a.ID, App: "mention", EntityType: "post", EntityID: "p1"})
	require.NoError(t, err)

	file, err := f.svc.Restore(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusActive, file.Status)

	_, err = f.svc.Restore(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDelete_Guard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.upload(t, "u1")

	_, err := f.svc.Link(ctx, withFile(link("post", "p1"), a.ID))
	require.NoError(t, err)

	impact, err := f.svc.DeletionImpact(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, impact.LinkCount)
	assert.Equal(t, 1, impact.VariantCount)
	assert.False(t, impact.CanDeleteWithoutForce)

	_, err = f.svc.Delete(ctx, a.ID, false)
	assert.ErrorIs(t, err, errs.ErrConflict)

	res, err := f.svc.Delete(ctx, a.ID, true)
	require.NoError(t, err)
	assert.Len(t, res.RemovedKeys, 2)
	assert.Empty(t, f.store.Keys())

	stored, err := f.repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusDeleted, stored.Status)
	assert.NotNil(t, stored.DeletedAt)

	// 删除后的状态约束
	_, err = f.svc.Link(ctx, withFile(link("post", "p2"), a.ID))
	assert.ErrorIs(t, err, errs.ErrInvalidState)
	_, err = f.svc.Unlink(ctx, UnlinkRequest{FileID: a.ID, App: "mention", EntityType: "post", EntityID: "p1"})
	assert.ErrorIs(t, err, errs.ErrInvalidState)
	_, err = f.svc.Restore(ctx, a.ID)
	assert.ErrorIs(t, err, errs.ErrInvalidState)

	res, err = f.svc.Delete(ctx, a.ID, false)
	require.NoError(t, err)
	assert.True(t, res.AlreadyDeleted)

	// 删除后相同内容重新上传得到新记录
	again, err := f.svc.Init(ctx, InitRequest{OwnerID: "u2", ContentHash: f.hash, MimeType: "image/png"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, again.FileID)
	assert.False(t, again.Deduplicated)
}

func TestDelete_WithoutLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.upload(t, "u1")

	_, err := f.svc.Delete(ctx, a.ID, false)
	require.NoError(t, err)

	stored, err := f.repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsDeleted())
}

func TestDelete_KeepsObjectsOfLiveSiblings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.upload(t, "u1")

	// 跨进程竞态产生的同内容记录
	sibling := *a
	sibling.ID = "sibling"
	sibling.Links = nil
	f.repo.Put(&sibling)

	res, err := f.svc.Delete(ctx, a.ID, true)
	require.NoError(t, err)
	assert.True(t, res.Impact.SharedContent)
	assert.Contains(t, res.RetainedKeys, a.StorageKey)

	ok, err := f.store.Exists(ctx, a.StorageKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

// flakyDeleteStorage 变体对象删除失败的存储
type flakyDeleteStorage struct {
	*storage.MemoryStorage
}

func (s flakyDeleteStorage) DeleteWithContext(ctx context.Context, key string) error {
	if strings.HasPrefix(key, "variants/") {
		return errors.New("disk unavailable")
	}
	return s.MemoryStorage.DeleteWithContext(ctx, key)
}

func TestDelete_CleanupFailureIsBestEffort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.upload(t, "u1")

	withVariant, err := f.repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	thumb, ok := withVariant.FindVariant("thumb")
	require.True(t, ok)

	svc := NewService(f.repo, flakyDeleteStorage{f.store}, f.variants, Options{
		PublicEntity: EntityTypePredicate(nil),
		Pool:         f.pool,
	})
	res, err := svc.Delete(ctx, a.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{a.StorageKey}, res.RemovedKeys)
	assert.Equal(t, []string{thumb.Key}, res.FailedKeys)

	stored, err := f.repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsDeleted())
	assert.NotNil(t, stored.DeletedAt)

	exists, err := f.store.Exists(ctx, a.StorageKey)
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = f.store.Exists(ctx, thumb.Key)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSetVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.upload(t, "u1")

	file, err := f.svc.SetVisibility(ctx, a.ID, models.VisibilityPublic)
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityPublic, file.Visibility)

	_, err = f.svc.SetVisibility(ctx, a.ID, "secret")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestDownloadURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.upload(t, "u1")

	_, err := f.svc.DownloadURL(ctx, DownloadRequest{FileRef: a.ID, ViewerID: "u2"})
	assert.ErrorIs(t, err, errs.ErrAccessDenied)

	res, err := f.svc.DownloadURL(ctx, DownloadRequest{FileRef: a.ID, ViewerID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, a.StorageKey, res.Key)
	assert.Contains(t, res.URL, "http://assets.test/blobs/"+a.StorageKey+"?token=")

	_, err = f.svc.SetVisibility(ctx, a.ID, models.VisibilityPublic)
	require.NoError(t, err)

	res, err = f.svc.DownloadURL(ctx, DownloadRequest{FileRef: a.ID, Variant: "thumb"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Key, "variants/"))
	assert.Equal(t, "image/png", res.MimeType)

	_, err = f.svc.DownloadURL(ctx, DownloadRequest{FileRef: a.ID, Variant: "poster"})
	assert.ErrorIs(t, err, errs.ErrUnsupportedVariant)

	_, err = f.svc.Delete(ctx, a.ID, true)
	require.NoError(t, err)
	_, err = f.svc.DownloadURL(ctx, DownloadRequest{FileRef: a.ID, ViewerID: "u1"})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDownloadURL_AllowAllGate(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Gate = access.AllowAll{} })
	ctx := context.Background()
	a := f.upload(t, "u1")
	require.Equal(t, models.VisibilityPrivate, a.Visibility)

	res, err := f.svc.DownloadURL(ctx, DownloadRequest{FileRef: a.ID})
	require.NoError(t, err)
	assert.Equal(t, a.StorageKey, res.Key)

	_, err = f.svc.Delete(ctx, a.ID, true)
	require.NoError(t, err)
	_, err = f.svc.DownloadURL(ctx, DownloadRequest{FileRef: a.ID})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDownloadURL_RequiresCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Init(ctx, InitRequest{OwnerID: "u1", ContentHash: f.hash, MimeType: "image/png"})
	require.NoError(t, err)

	_, err = f.svc.DownloadURL(ctx, DownloadRequest{FileRef: res.FileID, ViewerID: "u1"})
	assert.ErrorIs(t, err, errs.ErrInvalidState)
}

func TestGet_LegacyStorageKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.upload(t, "u1")

	byKey, err := f.svc.Get(ctx, a.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, a.ID, byKey.ID)

	_, err = f.svc.Get(ctx, "content/2020/01/aa/unknown.png")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = f.svc.Get(ctx, "")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestGet_ReadThroughCache(t *testing.T) {
	mem, err := cache.NewMemory(1 << 20)
	require.NoError(t, err)
	defer mem.Close()

	f := newFixture(t, func(o *Options) { o.Cache = mem })
	ctx := context.Background()
	a := f.upload(t, "u1")

	first, err := f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "cat.png", first.OriginalName)

	// 绕过服务直接修改，缓存仍返回旧值
	name := "direct.png"
	require.NoError(t, f.repo.Update(ctx, a.ID, files.Changes{OriginalName: &name}))
	cached, err := f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "cat.png", cached.OriginalName)

	// 经过服务的写入会清除缓存
	_, err = f.svc.SetVisibility(ctx, a.ID, models.VisibilityPublic)
	require.NoError(t, err)
	fresh, err := f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "direct.png", fresh.OriginalName)
	assert.Equal(t, models.VisibilityPublic, fresh.Visibility)
}

// racingRepo 在第一次读取返回前执行一次并发写入
type racingRepo struct {
	*testhelpers.Registry
	fired   bool
	onFirst func()
}

func (r *racingRepo) GetByID(ctx context.Context, id string) (*models.File, error) {
	file, err := r.Registry.GetByID(ctx, id)
	if !r.fired {
		r.fired = true
		r.onFirst()
	}
	return file, err
}

func TestGet_ConcurrentUpdateDoesNotLeaveStaleCache(t *testing.T) {
	mem, err := cache.NewMemory(1 << 20)
	require.NoError(t, err)
	defer mem.Close()

	f := newFixture(t, func(o *Options) { o.Cache = mem })
	ctx := context.Background()
	a := f.upload(t, "u1")

	repo := &racingRepo{Registry: f.repo}
	svc := NewService(repo, f.store, f.variants, Options{Cache: mem, Pool: f.pool})
	repo.onFirst = func() {
		_, err := svc.SetVisibility(ctx, a.ID, models.VisibilityPublic)
		require.NoError(t, err)
	}
	require.NoError(t, mem.Delete(ctx, cache.FileRecord.BuildID(a.ID)))

	// 读库得到的是修改前的快照
	stale, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityPrivate, stale.Visibility)

	fresh, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityPublic, fresh.Visibility)
}

func TestEntityTypePredicate(t *testing.T) {
	p := EntityTypePredicate([]string{" Avatar ", "profile_banner", ""})
	assert.True(t, p("mention", "avatar"))
	assert.True(t, p("any", "PROFILE_BANNER"))
	assert.False(t, p("mention", "post"))
	assert.False(t, p("mention", ""))
}

func withFile(req LinkRequest, fileID string) LinkRequest {
	req.FileID = fileID
	return req
}

func TestLifecycleEvents(t *testing.T) {
	pub := new(testhelpers.MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
	f := newFixture(t, func(o *Options) { o.Publisher = pub })
	ctx := context.Background()

	file := f.upload(t, "u1")
	_, err := f.svc.Link(ctx, withFile(link("avatar", "1"), file.ID))
	require.NoError(t, err)
	_, err = f.svc.Unlink(ctx, UnlinkRequest{FileID: file.ID, App: "mention", EntityType: "avatar", EntityID: "1"})
	require.NoError(t, err)
	_, err = f.svc.Restore(ctx, file.ID)
	require.NoError(t, err)
	_, err = f.svc.Delete(ctx, file.ID, false)
	require.NoError(t, err)

	assert.Equal(t, []string{
		events.FileCreated,
		events.FileCompleted,
		events.FileLinked,
		events.FileUnlinked,
		events.FileTrashed,
		events.FileRestored,
		events.FileDeleted,
	}, pub.Types())
}

func TestLifecycleEvents_PublishFailureIsIgnored(t *testing.T) {
	pub := new(testhelpers.MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	f := newFixture(t, func(o *Options) { o.Publisher = pub })

	file := f.upload(t, "u1")
	updated, err := f.svc.Link(context.Background(), withFile(link("post", "9"), file.ID))
	require.NoError(t, err)
	assert.Len(t, updated.Links, 1)
}
