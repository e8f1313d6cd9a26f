// Package model holds the relational records shared by the store, the
// repository adapters and the services.
package model

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        int64     `json:"id" bun:"id,pk,autoincrement"`
	Sub       string    `json:"sub" bun:"sub,notnull,unique"`
	Email     string    `json:"email" bun:"email,notnull,unique"`
	Name      string    `json:"name" bun:"name,notnull"`
	CreatedAt time.Time `json:"createdAt" bun:"created_at,notnull"`
	UpdatedAt time.Time `json:"updatedAt" bun:"updated_at,notnull"`
}

type Category struct {
	bun.BaseModel `bun:"table:categories,alias:c"`

	ID        int64     `json:"id" bun:"id,pk,autoincrement"`
	Name      string    `json:"name" bun:"name,notnull"`
	CreatedAt time.Time `json:"createdAt" bun:"created_at,notnull"`
	UpdatedAt time.Time `json:"updatedAt" bun:"updated_at,notnull"`
}

type Article struct {
	bun.BaseModel `bun:"table:articles,alias:a"`

	ID          int64     `json:"id" bun:"id,pk,autoincrement"`
	Title       string    `json:"title" bun:"title,notnull"`
	Content     string    `json:"content" bun:"content,notnull"`
	UserID      int64     `json:"userId" bun:"user_id,notnull"`
	CategoryIDs []int64   `json:"categoryIds" bun:"-"`
	CreatedAt   time.Time `json:"createdAt" bun:"created_at,notnull"`
	UpdatedAt   time.Time `json:"updatedAt" bun:"updated_at,notnull"`
}

// ArticleCategory is the join row between articles and categories.
type ArticleCategory struct {
	bun.BaseModel `bun:"table:article_categories,alias:ac"`

	ArticleID  int64 `bun:"article_id,pk"`
	CategoryID int64 `bun:"category_id,pk"`
}

// ImageArticle records an uploaded image attached to an article.
// Key is the blob storage key returned by the upload endpoint.
type ImageArticle struct {
	bun.BaseModel `bun:"table:image_articles,alias:ia"`

	ID        int64     `json:"id" bun:"id,pk,autoincrement"`
	ArticleID int64     `json:"articleId" bun:"article_id,notnull"`
	Key       string    `json:"key" bun:"key,notnull"`
	Size      int64     `json:"size" bun:"size,notnull"`
	Type      string    `json:"type" bun:"type,notnull"`
	CreatedAt time.Time `json:"createdAt" bun:"created_at,notnull"`
}

// ArticleUpdate carries the fields an update may change. Nil means unchanged.
type ArticleUpdate struct {
	Title       *string
	Content     *string
	CategoryIDs *[]int64
}

type CategoryUpdate struct {
	Name *string
}

type UserUpdate struct {
	Name  *string
	Email *string
}

// FindOptions parameterizes list queries. The zero value means "everything in
// the default order", which is the only shape the repository caches.
type FindOptions struct {
	UserID  int64
	OrderBy string
	Desc    bool
	Take    int
	Skip    int
}

func (o *FindOptions) IsZero() bool {
	return o == nil || *o == (FindOptions{})
}
