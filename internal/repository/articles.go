package repository

import (
	"context"

	"inkwell/internal/entitycache"
	"inkwell/internal/model"
)

type Articles struct {
	store ArticleStore
	cache *entitycache.Helper
	ttl   TTLs
}

func NewArticles(store ArticleStore, cache *entitycache.Helper, ttl TTLs) *Articles {
	return &Articles{store: store, cache: cache, ttl: ttl.withDefaults()}
}

func (r *Articles) FindByID(ctx context.Context, id int64) (*model.Article, error) {
	return entitycache.GetOrFetch(ctx, r.cache, ArticleKey(id), func(ctx context.Context) (*model.Article, error) {
		return r.store.FindByID(ctx, id)
	}, r.ttl.Entity)
}

// FindMany caches only the unparameterized listing.
func (r *Articles) FindMany(ctx context.Context, opts *model.FindOptions) ([]model.Article, error) {
	if !opts.IsZero() {
		return r.store.FindMany(ctx, opts)
	}
	return entitycache.GetOrFetch(ctx, r.cache, ArticlesAllKey(), func(ctx context.Context) ([]model.Article, error) {
		return r.store.FindMany(ctx, nil)
	}, r.ttl.List)
}

func (r *Articles) FindByUserID(ctx context.Context, userID int64) ([]model.Article, error) {
	return entitycache.GetOrFetch(ctx, r.cache, ArticlesByUserKey(userID), func(ctx context.Context) ([]model.Article, error) {
		return r.store.FindByUserID(ctx, userID)
	}, r.ttl.Owner)
}

func (r *Articles) Create(ctx context.Context, article *model.Article) error {
	if err := r.store.Create(ctx, article); err != nil {
		return err
	}
	r.cache.Invalidate(ctx, articleKeys(article))
	return nil
}

func (r *Articles) Update(ctx context.Context, id int64, upd model.ArticleUpdate) (*model.Article, error) {
	article, err := r.store.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	r.cache.Invalidate(ctx, articleKeys(article))
	return article, nil
}

func (r *Articles) Delete(ctx context.Context, id int64) (*model.Article, error) {
	article, err := r.store.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Invalidate(ctx, append(articleKeys(article), ImagesByArticleKey(article.ID)))
	return article, nil
}

func articleKeys(a *model.Article) []string {
	return []string{ArticleKey(a.ID), ArticlesAllKey(), ArticlesByUserKey(a.UserID)}
}
