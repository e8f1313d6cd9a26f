package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"inkwell/internal/auth"
	"inkwell/internal/detach"
	"inkwell/internal/entitycache"
	"inkwell/internal/kv"
	"inkwell/internal/metrics"
	"inkwell/internal/model"
	"inkwell/internal/repository"
	"inkwell/internal/service"
	"inkwell/internal/store"
)

type fakeVerifier map[string]*auth.Principal

func (v fakeVerifier) Verify(ctx context.Context, token string) (*auth.Principal, error) {
	p, ok := v[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return p, nil
}

type fixture struct {
	handler http.Handler
	cache   *entitycache.Helper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(context.Background(), db))

	backend := kv.NewMemoryBackend()
	m := metrics.New()
	cache := entitycache.New(backend, detach.New(time.Second, zap.NewNop()), zap.NewNop(), m)
	ttl := repository.DefaultTTLs()

	articles := repository.NewArticles(store.NewArticleStore(db), cache, ttl)
	categories := repository.NewCategories(store.NewCategoryStore(db), cache, ttl)
	images := repository.NewImages(store.NewImageStore(db), cache, ttl)
	users := repository.NewUsers(store.NewUserStore(db), cache, ttl)

	verifier := fakeVerifier{
		"alice": {Subject: "user_alice", Email: "alice@example.com", UserID: 1},
		"bob":   {Subject: "user_bob", Email: "bob@example.com", UserID: 2},
		"clone": {Subject: "user_clone", Email: "alice@example.com", UserID: 3},
	}
	srv := NewServer(
		service.NewArticleService(articles, categories, images, nil),
		service.NewCategoryService(categories),
		service.NewUserService(users),
		verifier,
		m,
		"https://blog.example.com",
		zap.NewNop(),
	)
	return &fixture{handler: srv.Router(), cache: cache}
}

func (f *fixture) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	// Let read-through write-backs land so the next request sees them.
	f.cache.Wait()
	return rec
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorBody struct {
	Error service.Error `json:"error"`
}

func TestHealthzAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	f.do(t, http.MethodGet, "/articles", "", nil)
	rec = f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "inkwell_entity_cache_lookups_total")
}

func TestAuthentication(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/articles", "", service.CreateArticleInput{Title: "t", Content: "c"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, service.CodeUnauthorized, decodeAs[errorBody](t, rec).Error.Code)

	rec = f.do(t, http.MethodGet, "/articles", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A valid token without a profile cannot write yet.
	rec = f.do(t, http.MethodPost, "/articles", "alice", service.CreateArticleInput{Title: "t", Content: "c"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/users/me", "alice", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestArticleLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/users", "alice", map[string]string{"name": "Alice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	alice := decodeAs[model.User](t, rec)
	assert.Equal(t, "alice@example.com", alice.Email)

	rec = f.do(t, http.MethodPost, "/users", "bob", map[string]string{"name": "Bob"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/users/me", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, alice.ID, decodeAs[model.User](t, rec).ID)

	rec = f.do(t, http.MethodPost, "/categories", "alice", map[string]string{"name": "Go"})
	require.Equal(t, http.StatusCreated, rec.Code)
	category := decodeAs[model.Category](t, rec)

	// Prime the cached listings.
	rec = f.do(t, http.MethodGet, "/articles", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeAs[[]model.Article](t, rec))

	rec = f.do(t, http.MethodPost, "/articles", "alice", service.CreateArticleInput{
		Title:       "Hello",
		Content:     "World",
		CategoryIDs: []int64{category.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	article := decodeAs[model.Article](t, rec)
	assert.Equal(t, alice.ID, article.UserID)

	rec = f.do(t, http.MethodGet, "/articles", "", nil)
	require.Len(t, decodeAs[[]model.Article](t, rec), 1)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/users/%d/articles", alice.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeAs[[]model.Article](t, rec), 1)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/articles/%d", article.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello", decodeAs[model.Article](t, rec).Title)

	rec = f.do(t, http.MethodPatch, fmt.Sprintf("/articles/%d", article.ID), "bob", map[string]string{"title": "Mine now"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You don't have permission to edit this article", decodeAs[errorBody](t, rec).Error.Message)

	rec = f.do(t, http.MethodPatch, fmt.Sprintf("/articles/%d", article.ID), "alice", map[string]string{"title": "Hello again"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Cached entries were dropped by the update, so every read sees the new title.
	for _, target := range []string{
		fmt.Sprintf("/articles/%d", article.ID),
		"/articles",
		fmt.Sprintf("/users/%d/articles", alice.ID),
	} {
		rec = f.do(t, http.MethodGet, target, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Hello again", target)
	}

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/articles/%d", article.ID), "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/articles/%d", article.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, fmt.Sprintf("Article with ID %d not found", article.ID), decodeAs[errorBody](t, rec).Error.Message)
}

func TestRequestErrors(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/users", "alice", map[string]string{"name": "Alice"}).Code)

	rec := f.do(t, http.MethodGet, "/articles/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/articles?take=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/articles?take=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/articles", "alice", service.CreateArticleInput{Title: "", Content: "c"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeAs[errorBody](t, rec)
	assert.Equal(t, "title", body.Error.Field)

	rec = f.do(t, http.MethodPost, "/articles", "alice", service.CreateArticleInput{Title: "t", Content: "c", CategoryIDs: []int64{41, 42}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Categories with ID 41, 42 not found", decodeAs[errorBody](t, rec).Error.Message)

	rec = f.do(t, http.MethodGet, "/categories/9", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Same email under another subject.
	rec = f.do(t, http.MethodPost, "/users", "clone", map[string]string{"name": "Clone"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUserSelfService(t *testing.T) {
	f := newFixture(t)
	alice := decodeAs[model.User](t, f.do(t, http.MethodPost, "/users", "alice", map[string]string{"name": "Alice"}))
	bob := decodeAs[model.User](t, f.do(t, http.MethodPost, "/users", "bob", map[string]string{"name": "Bob"}))

	rec := f.do(t, http.MethodGet, "/users", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAs[[]model.User](t, rec), 2)

	rec = f.do(t, http.MethodPatch, fmt.Sprintf("/users/%d", bob.ID), "alice", map[string]string{"name": "Not Bob"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPatch, fmt.Sprintf("/users/%d", alice.ID), "alice", map[string]string{"email": "alice@new.example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@new.example.com", decodeAs[model.User](t, rec).Email)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/users/%d", alice.ID), "", nil)
	assert.Equal(t, "alice@new.example.com", decodeAs[model.User](t, rec).Email)

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/users/%d", alice.ID), "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/users", "", nil)
	assert.Len(t, decodeAs[[]model.User](t, rec), 1)
}

func TestCORS(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/articles", nil)
	req.Header.Set("Origin", "https://blog.example.com")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://blog.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}
