package repository

import (
	"context"

	"inkwell/internal/entitycache"
	"inkwell/internal/model"
)

type Images struct {
	store ImageStore
	cache *entitycache.Helper
	ttl   TTLs
}

func NewImages(store ImageStore, cache *entitycache.Helper, ttl TTLs) *Images {
	return &Images{store: store, cache: cache, ttl: ttl.withDefaults()}
}

func (r *Images) FindByArticleID(ctx context.Context, articleID int64) ([]model.ImageArticle, error) {
	return entitycache.GetOrFetch(ctx, r.cache, ImagesByArticleKey(articleID), func(ctx context.Context) ([]model.ImageArticle, error) {
		return r.store.FindByArticleID(ctx, articleID)
	}, r.ttl.Owner)
}

// CreateMany invalidates the listing of every article an image was attached to.
func (r *Images) CreateMany(ctx context.Context, images []model.ImageArticle) (int64, error) {
	n, err := r.store.CreateMany(ctx, images)
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(images))
	for _, img := range images {
		keys = append(keys, ImagesByArticleKey(img.ArticleID))
	}
	r.cache.Invalidate(ctx, keys)
	return n, nil
}

func (r *Images) DeleteByArticleID(ctx context.Context, articleID int64) (int64, error) {
	n, err := r.store.DeleteByArticleID(ctx, articleID)
	if err != nil {
		return 0, err
	}
	r.cache.Invalidate(ctx, []string{ImagesByArticleKey(articleID)})
	return n, nil
}
