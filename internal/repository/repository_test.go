package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/internal/entitycache"
	"inkwell/internal/kv"
	"inkwell/internal/model"
	"inkwell/internal/store"
)

// countingArticles records how often the store is reached.
type countingArticles struct {
	ArticleStore
	findByID atomic.Int32
	findMany atomic.Int32
}

func (c *countingArticles) FindByID(ctx context.Context, id int64) (*model.Article, error) {
	c.findByID.Add(1)
	return c.ArticleStore.FindByID(ctx, id)
}

func (c *countingArticles) FindMany(ctx context.Context, opts *model.FindOptions) ([]model.Article, error) {
	c.findMany.Add(1)
	return c.ArticleStore.FindMany(ctx, opts)
}

type fixture struct {
	backend    *kv.MemoryBackend
	cache      *entitycache.Helper
	articleDB  *countingArticles
	articles   *Articles
	categories *Categories
	users      *Users
	images     *Images
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(context.Background(), db))

	f := &fixture{backend: kv.NewMemoryBackend()}
	f.cache = entitycache.New(f.backend, nil, nil, nil)
	f.articleDB = &countingArticles{ArticleStore: store.NewArticleStore(db)}
	f.articles = NewArticles(f.articleDB, f.cache, TTLs{})
	f.categories = NewCategories(store.NewCategoryStore(db), f.cache, TTLs{})
	f.users = NewUsers(store.NewUserStore(db), f.cache, TTLs{})
	f.images = NewImages(store.NewImageStore(db), f.cache, TTLs{})
	return f
}

func (f *fixture) cached(t *testing.T, key string) bool {
	t.Helper()
	f.cache.Wait()
	_, err := f.backend.Get(context.Background(), key)
	if errors.Is(err, kv.ErrNotFound) {
		return false
	}
	require.NoError(t, err)
	return true
}

func (f *fixture) user(t *testing.T, sub string) *model.User {
	t.Helper()
	u := &model.User{Sub: sub, Email: sub + "@example.com", Name: sub}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "article:7", ArticleKey(7))
	assert.Equal(t, "articles:all", ArticlesAllKey())
	assert.Equal(t, "articles:user:3", ArticlesByUserKey(3))
	assert.Equal(t, "category:2", CategoryKey(2))
	assert.Equal(t, "categories:all", CategoriesAllKey())
	assert.Equal(t, "user:1", UserKey(1))
	assert.Equal(t, "users:all", UsersAllKey())
	assert.Equal(t, "images:article:9", ImagesByArticleKey(9))
	assert.Equal(t, "user:email:a%2Bb%40example.com", UserByEmailKey("a+b@example.com"))
	assert.Equal(t, "user:sub:auth0%7C1%3A2", UserBySubKey("auth0|1:2"))
	assert.NotEqual(t, UserBySubKey("a:b"), UserByEmailKey("b"))
}

func TestArticles_FindByIDIsReadThrough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")
	a := &model.Article{Title: "t", Content: "c", UserID: u.ID}
	require.NoError(t, f.articles.Create(ctx, a))

	first, err := f.articles.FindByID(ctx, a.ID)
	require.NoError(t, err)
	f.cache.Wait()
	second, err := f.articles.FindByID(ctx, a.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, int32(1), f.articleDB.findByID.Load())
}

func TestArticles_MissingIsNotCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	got, err := f.articles.FindByID(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, f.cached(t, ArticleKey(404)))
}

func TestArticles_UpdateInvalidatesOwnAllAndOwnerKeys(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	a := &model.Article{Title: "t", Content: "c", UserID: alice.ID}
	require.NoError(t, f.articles.Create(ctx, a))
	require.NoError(t, f.articles.Create(ctx, &model.Article{Title: "b", Content: "c", UserID: bob.ID}))

	_, err := f.articles.FindByID(ctx, a.ID)
	require.NoError(t, err)
	_, err = f.articles.FindMany(ctx, nil)
	require.NoError(t, err)
	_, err = f.articles.FindByUserID(ctx, alice.ID)
	require.NoError(t, err)
	_, err = f.articles.FindByUserID(ctx, bob.ID)
	require.NoError(t, err)
	require.True(t, f.cached(t, ArticleKey(a.ID)))
	require.True(t, f.cached(t, ArticlesAllKey()))
	require.True(t, f.cached(t, ArticlesByUserKey(alice.ID)))

	title := "updated"
	_, err = f.articles.Update(ctx, a.ID, model.ArticleUpdate{Title: &title})
	require.NoError(t, err)

	assert.False(t, f.cached(t, ArticleKey(a.ID)))
	assert.False(t, f.cached(t, ArticlesAllKey()))
	assert.False(t, f.cached(t, ArticlesByUserKey(alice.ID)))
	assert.True(t, f.cached(t, ArticlesByUserKey(bob.ID)))

	got, err := f.articles.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Title)
}

func TestArticles_FailedWriteKeepsCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")
	require.NoError(t, f.articles.Create(ctx, &model.Article{Title: "t", Content: "c", UserID: u.ID}))
	_, err := f.articles.FindMany(ctx, nil)
	require.NoError(t, err)
	require.True(t, f.cached(t, ArticlesAllKey()))

	title := "x"
	_, err = f.articles.Update(ctx, 404, model.ArticleUpdate{Title: &title})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.True(t, f.cached(t, ArticlesAllKey()))
}

func TestArticles_DeleteInvalidatesImages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")
	a := &model.Article{Title: "t", Content: "c", UserID: u.ID}
	require.NoError(t, f.articles.Create(ctx, a))
	_, err := f.images.FindByArticleID(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, f.cached(t, ImagesByArticleKey(a.ID)), "empty lists are cached")

	_, err = f.articles.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, f.cached(t, ImagesByArticleKey(a.ID)))
	assert.False(t, f.cached(t, ArticleKey(a.ID)))
}

func TestArticles_ParameterizedFindManyBypassesCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")
	require.NoError(t, f.articles.Create(ctx, &model.Article{Title: "t", Content: "c", UserID: u.ID}))

	for i := 0; i < 2; i++ {
		_, err := f.articles.FindMany(ctx, &model.FindOptions{Take: 10})
		require.NoError(t, err)
		f.cache.Wait()
	}

	assert.Equal(t, int32(2), f.articleDB.findMany.Load())
	assert.Zero(t, f.backend.Len())
}

func TestCategories_DeleteDropsCachedArticles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")
	c := &model.Category{Name: "News"}
	require.NoError(t, f.categories.Create(ctx, c))
	a := &model.Article{Title: "t", Content: "c", UserID: u.ID, CategoryIDs: []int64{c.ID}}
	require.NoError(t, f.articles.Create(ctx, a))

	_, err := f.articles.FindByID(ctx, a.ID)
	require.NoError(t, err)
	_, err = f.articles.FindByUserID(ctx, u.ID)
	require.NoError(t, err)
	_, err = f.categories.FindMany(ctx, nil)
	require.NoError(t, err)
	require.True(t, f.cached(t, ArticleKey(a.ID)))

	_, err = f.categories.Delete(ctx, c.ID)
	require.NoError(t, err)

	assert.False(t, f.cached(t, CategoriesAllKey()))
	assert.False(t, f.cached(t, ArticleKey(a.ID)))
	assert.False(t, f.cached(t, ArticlesByUserKey(u.ID)))

	got, err := f.articles.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CategoryIDs)
}

func TestUsers_UpdateInvalidatesOldAndNewEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")

	_, err := f.users.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	_, err = f.users.FindBySub(ctx, "alice")
	require.NoError(t, err)
	_, err = f.users.FindMany(ctx, nil)
	require.NoError(t, err)

	// Stale entry left by a previous holder of the new address.
	require.NoError(t, f.backend.Put(ctx, UserByEmailKey("alice@new.example.com"), []byte(`{"id":999}`), 0))
	require.True(t, f.cached(t, UserByEmailKey("alice@example.com")))

	email := "alice@new.example.com"
	_, err = f.users.Update(ctx, u.ID, model.UserUpdate{Email: &email})
	require.NoError(t, err)

	assert.False(t, f.cached(t, UserByEmailKey("alice@example.com")))
	assert.False(t, f.cached(t, UserByEmailKey("alice@new.example.com")))
	assert.False(t, f.cached(t, UserBySubKey("alice")))
	assert.False(t, f.cached(t, UsersAllKey()))

	got, err := f.users.FindByEmail(ctx, "alice@new.example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
}

func TestUsers_DeleteDropsArticleListings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")
	a := &model.Article{Title: "t", Content: "c", UserID: u.ID}
	require.NoError(t, f.articles.Create(ctx, a))
	_, err := f.images.CreateMany(ctx, []model.ImageArticle{{ArticleID: a.ID, Key: "images/articles/1/x.png", Size: 10, Type: "image/png"}})
	require.NoError(t, err)
	_, err = f.articles.FindByID(ctx, a.ID)
	require.NoError(t, err)
	_, err = f.images.FindByArticleID(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, f.cached(t, ArticleKey(a.ID)))
	require.True(t, f.cached(t, ImagesByArticleKey(a.ID)))
	_, err = f.articles.FindMany(ctx, nil)
	require.NoError(t, err)
	_, err = f.articles.FindByUserID(ctx, u.ID)
	require.NoError(t, err)
	_, err = f.users.FindByID(ctx, u.ID)
	require.NoError(t, err)

	_, err = f.users.Delete(ctx, u.ID)
	require.NoError(t, err)

	assert.False(t, f.cached(t, UserKey(u.ID)))
	assert.False(t, f.cached(t, ArticlesAllKey()))
	assert.False(t, f.cached(t, ArticlesByUserKey(u.ID)))
	assert.False(t, f.cached(t, ArticleKey(a.ID)))
	assert.False(t, f.cached(t, ImagesByArticleKey(a.ID)))

	all, err := f.articles.FindMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all)

	gone, err := f.articles.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	left, err := f.images.FindByArticleID(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestImages_CreateManyInvalidatesListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")
	a := &model.Article{Title: "t", Content: "c", UserID: u.ID}
	require.NoError(t, f.articles.Create(ctx, a))

	before, err := f.images.FindByArticleID(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, before)
	require.True(t, f.cached(t, ImagesByArticleKey(a.ID)))

	_, err = f.images.CreateMany(ctx, []model.ImageArticle{{ArticleID: a.ID, Key: "k", Size: 1, Type: "image/png"}})
	require.NoError(t, err)
	assert.False(t, f.cached(t, ImagesByArticleKey(a.ID)))

	after, err := f.images.FindByArticleID(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, after, 1)

	_, err = f.images.DeleteByArticleID(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, f.cached(t, ImagesByArticleKey(a.ID)))
}

func TestAdapters_WorkWithoutBackend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	off := entitycache.New(nil, nil, nil, nil)
	articles := NewArticles(f.articleDB, off, TTLs{})
	u := f.user(t, "alice")

	a := &model.Article{Title: "t", Content: "c", UserID: u.ID}
	require.NoError(t, articles.Create(ctx, a))
	got, err := articles.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "t", got.Title)
}
