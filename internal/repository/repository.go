// Package repository pairs each relational store with the entity cache. Reads go
// through the cache under a fixed key; writes hit the store first and then drop
// every key that could have observed the old record.
package repository

import (
	"context"
	"time"

	"inkwell/internal/model"
)

// TTLs are the three freshness classes used by the adapters.
type TTLs struct {
	Entity time.Duration
	List   time.Duration
	Owner  time.Duration
}

func DefaultTTLs() TTLs {
	return TTLs{Entity: time.Hour, List: 10 * time.Minute, Owner: 5 * time.Minute}
}

func (t TTLs) withDefaults() TTLs {
	d := DefaultTTLs()
	if t.Entity <= 0 {
		t.Entity = d.Entity
	}
	if t.List <= 0 {
		t.List = d.List
	}
	if t.Owner <= 0 {
		t.Owner = d.Owner
	}
	return t
}

type ArticleStore interface {
	FindByID(ctx context.Context, id int64) (*model.Article, error)
	FindMany(ctx context.Context, opts *model.FindOptions) ([]model.Article, error)
	FindByUserID(ctx context.Context, userID int64) ([]model.Article, error)
	Create(ctx context.Context, article *model.Article) error
	Update(ctx context.Context, id int64, upd model.ArticleUpdate) (*model.Article, error)
	Delete(ctx context.Context, id int64) (*model.Article, error)
}

type CategoryStore interface {
	FindByID(ctx context.Context, id int64) (*model.Category, error)
	FindMany(ctx context.Context, opts *model.FindOptions) ([]model.Category, error)
	Create(ctx context.Context, category *model.Category) error
	Update(ctx context.Context, id int64, upd model.CategoryUpdate) (*model.Category, error)
	Delete(ctx context.Context, id int64) (*model.Category, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
	FindBySub(ctx context.Context, sub string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindMany(ctx context.Context, opts *model.FindOptions) ([]model.User, error)
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, id int64, upd model.UserUpdate) (*model.User, error)
	Delete(ctx context.Context, id int64) (*model.User, error)
}

type ImageStore interface {
	CreateMany(ctx context.Context, images []model.ImageArticle) (int64, error)
	FindByArticleID(ctx context.Context, articleID int64) ([]model.ImageArticle, error)
	DeleteByArticleID(ctx context.Context, articleID int64) (int64, error)
}
