package core

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/anoixa/asset-store/api/middleware"
	"github.com/anoixa/asset-store/cache"
	"github.com/anoixa/asset-store/config"
	"github.com/anoixa/asset-store/database"
	"github.com/anoixa/asset-store/database/models"
	"github.com/anoixa/asset-store/database/repo/files"
	"github.com/anoixa/asset-store/internal/assets"
	"github.com/anoixa/asset-store/internal/pipeline"
	"github.com/anoixa/asset-store/internal/testhelpers"
	"github.com/anoixa/asset-store/internal/variants"
	"github.com/anoixa/asset-store/internal/worker"
	"github.com/anoixa/asset-store/storage"
)

type envelope struct {
	Status string          `json:"status"`
	Msg    string          `json:"msg"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
}

type testServer struct {
	router *gin.Engine
	pool   *worker.Pool
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.File{}))
	provider := database.NewGormProviderFromDB(db, "sqlite")
	t.Cleanup(func() { _ = provider.Close() })

	signer, err := storage.NewSigner("server-secret", "http://assets.test")
	require.NoError(t, err)
	store := storage.NewMemoryStorage(signer)
	mem, err := cache.NewMemory(1 << 20)
	require.NoError(t, err)

	repo := files.NewRepository(db)
	variantSvc := variants.NewService(repo, store, pipeline.NewStdPipeline(), variants.Options{
		Presets: []config.VariantPreset{{Type: "thumb", Width: 32, Height: 32, Quality: 80, Format: "png"}},
		Cache:   mem,
	})
	pool := worker.NewPool(1, 8)
	t.Cleanup(pool.Stop)
	assetSvc := assets.NewService(repo, store, variantSvc, assets.Options{
		Cache: mem,
		Pool:  pool,
	})

	cfg := &config.Config{
		ServerDomain:          "http://assets.test",
		MaxConcurrentRequests: 16,
		MaxBlobSizeMB:         8,
	}
	router, cleanup := NewRouter(&RouterDependencies{
		Database:      provider,
		Storage:       store,
		Signer:        signer,
		CacheProvider: mem,
		Assets:        assetSvc,
		Variants:      variantSvc,
		ServerVersion: ServerVersion{Version: "test", CommitHash: "abc"},
		Config:        cfg,
	})
	t.Cleanup(cleanup)

	return &testServer{router: router, pool: pool}
}

func (s *testServer) do(t *testing.T, method, url, user string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, url, reader)
	if user != "" {
		req.Header.Set(middleware.HeaderUserID, user)
	}
	if _, raw := body.([]byte); raw {
		req.Header.Set("Content-Type", "image/png")
	} else if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func TestFileLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	img := testhelpers.PNG(t, 96, 64)
	initBody := gin.H{"content_hash": testhelpers.Hash(img), "size": len(img), "mime_type": "image/png"}

	w, _ := s.do(t, http.MethodPost, "/api/v1/files/init", "", initBody)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := s.do(t, http.MethodPost, "/api/v1/files/init", "alice", initBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var initRes assets.InitResult
	require.NoError(t, json.Unmarshal(env.Data, &initRes))
	assert.False(t, initRes.Deduplicated)
	require.True(t, strings.HasPrefix(initRes.UploadURL, "http://assets.test/blobs/"))
	base := "/api/v1/files/" + initRes.FileID

	w, _ = s.do(t, http.MethodPost, base+"/complete", "alice", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code, "object not uploaded yet")

	w, _ = s.do(t, http.MethodPut, initRes.UploadURL, "", img)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env = s.do(t, http.MethodPost, base+"/complete", "alice", gin.H{"original_name": "cat.png"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	s.pool.Stop()

	w, env = s.do(t, http.MethodGet, base, "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var file models.File
	require.NoError(t, json.Unmarshal(env.Data, &file))
	assert.Equal(t, "cat.png", file.OriginalName)
	assert.Len(t, file.ReadyVariants(), 1)

	link := gin.H{"app": "blog", "entity_type": "post", "entity_id": "1"}
	w, _ = s.do(t, http.MethodPost, base+"/links", "alice", link)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = s.do(t, http.MethodGet, base+"/deletion-impact", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var impact assets.Impact
	require.NoError(t, json.Unmarshal(env.Data, &impact))
	assert.Equal(t, 1, impact.LinkCount)
	assert.False(t, impact.CanDeleteWithoutForce)

	w, env = s.do(t, http.MethodDelete, base, "alice", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", env.Code)

	w, env = s.do(t, http.MethodGet, base+"/url?variant=thumb", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var dl assets.DownloadResult
	require.NoError(t, json.Unmarshal(env.Data, &dl))
	assert.Equal(t, "image/png", dl.MimeType)

	w, _ = s.do(t, http.MethodGet, dl.URL, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodGet, base+"/url", "mallory", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "access_denied", env.Code)

	w, env = s.do(t, http.MethodGet, base+"/url?variant=poster", "alice", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "unsupported_variant", env.Code)

	w, _ = s.do(t, http.MethodPost, base+"/variants/thumb", "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodDelete, base+"/links", "alice", link)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &file))
	assert.Equal(t, models.FileStatusTrash, file.Status)

	w, _ = s.do(t, http.MethodDelete, base, "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, base+"/url", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLookupAndValidation(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/api/v1/files", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := s.do(t, http.MethodGet, "/api/v1/files?ref=content/2024/01/aa/missing.png", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", env.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/files/init", "alice", gin.H{"content_hash": "nothex"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/v1/files/abc?force=maybe", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w, env := s.do(t, http.MethodGet, "/version", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"commit":"abc"`)

	w, _ = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "asset_store_http_requests_total")
}
