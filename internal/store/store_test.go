package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"inkwell/internal/model"
)

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := Open("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func seedUser(t *testing.T, s *UserStore, sub string) *model.User {
	t.Helper()
	u := &model.User{Sub: sub, Email: sub + "@example.com", Name: sub}
	require.NoError(t, s.Create(context.Background(), u))
	return u
}

func TestArticleStore_CRUD(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := NewUserStore(db)
	categories := NewCategoryStore(db)
	articles := NewArticleStore(db)

	author := seedUser(t, users, "alice")
	news := &model.Category{Name: "News"}
	require.NoError(t, categories.Create(ctx, news))

	a := &model.Article{Title: "Hello", Content: "World", UserID: author.ID, CategoryIDs: []int64{news.ID, news.ID}}
	require.NoError(t, articles.Create(ctx, a))
	require.NotZero(t, a.ID)

	got, err := articles.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Hello", got.Title)
	assert.Equal(t, []int64{news.ID}, got.CategoryIDs)

	title := "Hello again"
	updated, err := articles.Update(ctx, a.ID, model.ArticleUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Hello again", updated.Title)
	assert.Equal(t, "World", updated.Content)
	assert.Equal(t, []int64{news.ID}, updated.CategoryIDs)

	deleted, err := articles.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, deleted.ID)

	missing, err := articles.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestArticleStore_WritesOnMissingRow(t *testing.T) {
	ctx := context.Background()
	articles := NewArticleStore(openTestDB(t))

	title := "x"
	_, err := articles.Update(ctx, 404, model.ArticleUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = articles.Delete(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArticleStore_FindMany(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := NewUserStore(db)
	articles := NewArticleStore(db)

	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")
	for _, title := range []string{"b", "a", "c"} {
		require.NoError(t, articles.Create(ctx, &model.Article{Title: title, Content: "-", UserID: alice.ID}))
	}
	require.NoError(t, articles.Create(ctx, &model.Article{Title: "bob's", Content: "-", UserID: bob.ID}))

	all, err := articles.FindMany(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "bob's", all[0].Title, "default order is newest id first")

	byTitle, err := articles.FindMany(ctx, &model.FindOptions{UserID: alice.ID, OrderBy: "title", Take: 2})
	require.NoError(t, err)
	require.Len(t, byTitle, 2)
	assert.Equal(t, "a", byTitle[0].Title)
	assert.Equal(t, "b", byTitle[1].Title)

	skipped, err := articles.FindMany(ctx, &model.FindOptions{Skip: 3})
	require.NoError(t, err)
	assert.Len(t, skipped, 1)

	_, err = articles.FindMany(ctx, &model.FindOptions{OrderBy: "content"})
	assert.Error(t, err)

	owned, err := articles.FindByUserID(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, bob.ID, owned[0].UserID)
}

func TestCategoryStore_DeleteUnlinksArticles(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := NewUserStore(db)
	categories := NewCategoryStore(db)
	articles := NewArticleStore(db)

	author := seedUser(t, users, "alice")
	tech := &model.Category{Name: "Tech"}
	require.NoError(t, categories.Create(ctx, tech))
	a := &model.Article{Title: "t", Content: "c", UserID: author.ID, CategoryIDs: []int64{tech.ID}}
	require.NoError(t, articles.Create(ctx, a))

	_, err := categories.Delete(ctx, tech.ID)
	require.NoError(t, err)

	got, err := articles.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CategoryIDs)

	_, err = categories.Delete(ctx, tech.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserStore_LookupsAndCascade(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := NewUserStore(db)
	articles := NewArticleStore(db)
	images := NewImageStore(db)

	u := seedUser(t, users, "carol")

	bySub, err := users.FindBySub(ctx, "carol")
	require.NoError(t, err)
	require.NotNil(t, bySub)
	assert.Equal(t, u.ID, bySub.ID)

	byEmail, err := users.FindByEmail(ctx, "carol@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)

	nobody, err := users.FindByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, nobody)

	a := &model.Article{Title: "t", Content: "c", UserID: u.ID}
	require.NoError(t, articles.Create(ctx, a))
	_, err = images.CreateMany(ctx, []model.ImageArticle{{ArticleID: a.ID, Key: "images/articles/1/x.png", Size: 10, Type: "image/png"}})
	require.NoError(t, err)

	_, err = users.Delete(ctx, u.ID)
	require.NoError(t, err)

	gone, err := articles.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	left, err := images.FindByArticleID(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestImageStore(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	u := seedUser(t, NewUserStore(db), "dave")
	a := &model.Article{Title: "t", Content: "c", UserID: u.ID}
	require.NoError(t, NewArticleStore(db).Create(ctx, a))
	images := NewImageStore(db)

	n, err := images.CreateMany(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = images.CreateMany(ctx, []model.ImageArticle{
		{ArticleID: a.ID, Key: "k1", Size: 1, Type: "image/png"},
		{ArticleID: a.ID, Key: "k2", Size: 2, Type: "image/jpeg"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err := images.FindByArticleID(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "k1", list[0].Key)
	assert.Equal(t, "k2", list[1].Key)

	removed, err := images.DeleteByArticleID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
}
