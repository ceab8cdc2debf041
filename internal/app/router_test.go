package app

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-console/internal/observability"
	"github.com/odyssey-erp/odyssey-console/internal/querycache"
	"github.com/odyssey-erp/odyssey-console/internal/session"
	"github.com/odyssey-erp/odyssey-console/internal/shared"
)

func testConfig(store string) *Config {
	return &Config{
		AppEnv:             "test",
		APIBaseURL:         "http://127.0.0.1:1",
		TokenStore:         store,
		LogFormat:          "json",
		Language:           "en-US",
		PermissionsUnwired: "open",
		LoginRateLimit:     10,
	}
}

func TestHealthzAndSecureHeaders(t *testing.T) {
	router := NewRouter(RouterParams{Config: testConfig(TokenStoreMemory)})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestStaticAssetsAreCached(t *testing.T) {
	router := NewRouter(RouterParams{Config: testConfig(TokenStoreMemory)})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/css/console.css", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
}

func TestCSRFMiddleware(t *testing.T) {
	manager := shared.NewCSRFManager("secret")
	handler := CSRFMiddleware(manager, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(req *http.Request) int {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusNoContent, serve(httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Equal(t, http.StatusForbidden, serve(httptest.NewRequest(http.MethodPost, "/", nil)))

	form := url.Values{shared.CSRFFormField: {manager.Token()}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusNoContent, serve(req))

	req = httptest.NewRequest(http.MethodDelete, "/", nil)
	req.Header.Set("X-CSRF-Token", manager.Token())
	assert.Equal(t, http.StatusNoContent, serve(req))

	stale := manager.Token()
	manager.Rotate()
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-CSRF-Token", stale)
	assert.Equal(t, http.StatusForbidden, serve(req))
}

func TestWireServesConsole(t *testing.T) {
	metrics := observability.NewMetrics()
	services, err := Wire(context.Background(), testConfig(TokenStoreMemory), nil, metrics)
	require.NoError(t, err)
	t.Cleanup(func() { _ = services.Close() })
	assert.IsType(t, &session.MemoryStorage{}, services.Storage)

	handler, err := services.NewConsole()
	require.NoError(t, err)
	router := NewRouter(RouterParams{Config: services.Config, CSRF: services.CSRF, Console: handler, Metrics: metrics})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), services.CSRF.Token())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/logout", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	form := url.Values{shared.CSRFFormField: {services.CSRF.Token()}}
	req := httptest.NewRequest(http.MethodPost, "/logout", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
}

func TestWireFileStorage(t *testing.T) {
	cfg := testConfig(TokenStoreFile)
	cfg.TokenFile = filepath.Join(t.TempDir(), "token")
	services, err := Wire(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	storage, ok := services.Storage.(*session.FileStorage)
	require.True(t, ok)
	assert.Equal(t, cfg.TokenFile, storage.Path())
}

func TestWireRedisStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(TokenStoreRedis)
	cfg.RedisAddr = mr.Addr()

	services, err := Wire(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = services.Close() })
	require.NotNil(t, services.Redis)

	user := session.User{ID: 7, Email: "ops@example.com", Role: session.RoleAdmin}
	require.NoError(t, services.Session.SetCredentials(context.Background(), user, "tok-7"))
	stored, err := mr.Get(redisNamespace + ":" + session.TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "tok-7", stored)
}

func TestWireFailsWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(TokenStoreRedis)
	cfg.RedisAddr = mr.Addr()
	mr.Close()

	_, err := Wire(context.Background(), cfg, nil, nil)
	assert.Error(t, err)
}

func TestStaticTypesRegistered(t *testing.T) {
	for ext := range staticTypes {
		assert.NotEmpty(t, mime.TypeByExtension(ext), ext)
	}
}

func TestCachePrunerKeepsSubscribedEntries(t *testing.T) {
	cfg := testConfig(TokenStoreMemory)
	cfg.CacheKeepUnused = 20 * time.Millisecond
	services, err := Wire(context.Background(), cfg, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	load := func(context.Context) (any, []querycache.Tag, error) { return "v", nil, nil }
	_, err = services.Cache.Fetch(ctx, "unused", load)
	require.NoError(t, err)
	release := services.Cache.Subscribe("held")
	_, err = services.Cache.Fetch(ctx, "held", load)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		services.RunCachePruner(ctx)
	}()
	require.Eventually(t, func() bool { return len(services.Cache.Entries()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "held", services.Cache.Entries()[0].Key)

	release()
	require.Eventually(t, func() bool { return len(services.Cache.Entries()) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
