package repository

import (
	"context"

	"inkwell/internal/entitycache"
	"inkwell/internal/model"
)

type Categories struct {
	store CategoryStore
	cache *entitycache.Helper
	ttl   TTLs
}

func NewCategories(store CategoryStore, cache *entitycache.Helper, ttl TTLs) *Categories {
	return &Categories{store: store, cache: cache, ttl: ttl.withDefaults()}
}

func (r *Categories) FindByID(ctx context.Context, id int64) (*model.Category, error) {
	return entitycache.GetOrFetch(ctx, r.cache, CategoryKey(id), func(ctx context.Context) (*model.Category, error) {
		return r.store.FindByID(ctx, id)
	}, r.ttl.Entity)
}

func (r *Categories) FindMany(ctx context.Context, opts *model.FindOptions) ([]model.Category, error) {
	if !opts.IsZero() {
		return r.store.FindMany(ctx, opts)
	}
	return entitycache.GetOrFetch(ctx, r.cache, CategoriesAllKey(), func(ctx context.Context) ([]model.Category, error) {
		return r.store.FindMany(ctx, nil)
	}, r.ttl.List)
}

func (r *Categories) Create(ctx context.Context, category *model.Category) error {
	if err := r.store.Create(ctx, category); err != nil {
		return err
	}
	r.cache.Invalidate(ctx, []string{CategoryKey(category.ID), CategoriesAllKey()})
	return nil
}

func (r *Categories) Update(ctx context.Context, id int64, upd model.CategoryUpdate) (*model.Category, error) {
	category, err := r.store.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	r.cache.Invalidate(ctx, []string{CategoryKey(id), CategoriesAllKey()})
	return category, nil
}

// Delete also drops cached articles, which embed their category ids.
func (r *Categories) Delete(ctx context.Context, id int64) (*model.Category, error) {
	category, err := r.store.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Invalidate(ctx, []string{CategoryKey(id), CategoriesAllKey()})
	r.cache.InvalidateByPrefix(ctx, articlePrefix)
	r.cache.InvalidateByPrefix(ctx, articlesPrefix)
	return category, nil
}
