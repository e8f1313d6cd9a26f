package repository

import (
	"context"

	"inkwell/internal/entitycache"
	"inkwell/internal/model"
)

type Users struct {
	store UserStore
	cache *entitycache.Helper
	ttl   TTLs
}

func NewUsers(store UserStore, cache *entitycache.Helper, ttl TTLs) *Users {
	return &Users{store: store, cache: cache, ttl: ttl.withDefaults()}
}

func (r *Users) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return entitycache.GetOrFetch(ctx, r.cache, UserKey(id), func(ctx context.Context) (*model.User, error) {
		return r.store.FindByID(ctx, id)
	}, r.ttl.Entity)
}

func (r *Users) FindBySub(ctx context.Context, sub string) (*model.User, error) {
	return entitycache.GetOrFetch(ctx, r.cache, UserBySubKey(sub), func(ctx context.Context) (*model.User, error) {
		return r.store.FindBySub(ctx, sub)
	}, r.ttl.Entity)
}

func (r *Users) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return entitycache.GetOrFetch(ctx, r.cache, UserByEmailKey(email), func(ctx context.Context) (*model.User, error) {
		return r.store.FindByEmail(ctx, email)
	}, r.ttl.Entity)
}

func (r *Users) FindMany(ctx context.Context, opts *model.FindOptions) ([]model.User, error) {
	if !opts.IsZero() {
		return r.store.FindMany(ctx, opts)
	}
	return entitycache.GetOrFetch(ctx, r.cache, UsersAllKey(), func(ctx context.Context) ([]model.User, error) {
		return r.store.FindMany(ctx, nil)
	}, r.ttl.List)
}

func (r *Users) Create(ctx context.Context, user *model.User) error {
	if err := r.store.Create(ctx, user); err != nil {
		return err
	}
	r.cache.Invalidate(ctx, []string{
		UserKey(user.ID),
		UsersAllKey(),
		UserBySubKey(user.Sub),
		UserByEmailKey(user.Email),
	})
	return nil
}

// Update reads the current row first: the email-keyed entry for the old address
// is only known before the write.
func (r *Users) Update(ctx context.Context, id int64, upd model.UserUpdate) (*model.User, error) {
	before, err := r.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user, err := r.store.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}

	keys := []string{UserKey(id), UsersAllKey(), UserBySubKey(user.Sub), UserByEmailKey(user.Email)}
	if before != nil {
		keys = append(keys, UserByEmailKey(before.Email), UserBySubKey(before.Sub))
	}
	r.cache.Invalidate(ctx, keys)
	return user, nil
}

// Delete also drops every cached view of the user's articles and their images,
// which the store removes in the same transaction.
func (r *Users) Delete(ctx context.Context, id int64) (*model.User, error) {
	user, err := r.store.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Invalidate(ctx, []string{
		UserKey(id),
		UsersAllKey(),
		UserBySubKey(user.Sub),
		UserByEmailKey(user.Email),
	})
	r.cache.InvalidateByPrefix(ctx, articlePrefix)
	r.cache.InvalidateByPrefix(ctx, articlesPrefix)
	r.cache.InvalidateByPrefix(ctx, imagesPrefix)
	return user, nil
}
