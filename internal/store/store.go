// Package store is the relational store behind the repository adapters, on bun
// over SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"inkwell/internal/model"
)

// ErrNotFound is returned by writes that target a row that does not exist.
// Reads return a nil record instead.
var ErrNotFound = errors.New("store: record not found")

// Open connects to driver ("sqlite" or "postgres") and returns a bun handle.
func Open(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case "sqlite":
		sqldb, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		// SQLite serializes writers; one connection avoids SQLITE_BUSY and keeps
		// in-memory databases alive.
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case "postgres":
		sqldb, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, fmt.Errorf("unknown db driver: %s (supported: sqlite, postgres)", driver)
	}
}

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*model.User)(nil),
		(*model.Category)(nil),
		(*model.Article)(nil),
		(*model.ArticleCategory)(nil),
		(*model.ImageArticle)(nil),
	}
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", m, err)
		}
	}

	indexes := []struct {
		model  any
		name   string
		column string
	}{
		{(*model.Article)(nil), "articles_user_id_idx", "user_id"},
		{(*model.ImageArticle)(nil), "image_articles_article_id_idx", "article_id"},
		{(*model.ArticleCategory)(nil), "article_categories_category_id_idx", "category_id"},
	}
	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.column).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// orderColumns whitelists the columns a caller may sort by.
var orderColumns = map[string]string{
	"id":        "id",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"title":     "title",
	"name":      "name",
}

func applyFindOptions(q *bun.SelectQuery, alias string, opts *model.FindOptions, allowed ...string) (*bun.SelectQuery, error) {
	if opts.IsZero() {
		return q.OrderExpr(alias + ".id DESC"), nil
	}

	if opts.OrderBy != "" {
		column, ok := orderColumns[opts.OrderBy]
		if !ok || !contains(allowed, opts.OrderBy) {
			return nil, fmt.Errorf("unsupported order column %q", opts.OrderBy)
		}
		direction := "ASC"
		if opts.Desc {
			direction = "DESC"
		}
		q = q.OrderExpr(alias + "." + column + " " + direction)
	} else {
		q = q.OrderExpr(alias + ".id DESC")
	}

	if opts.Take > 0 {
		q = q.Limit(opts.Take)
	}
	if opts.Skip > 0 {
		if opts.Take <= 0 {
			// SQLite rejects OFFSET without LIMIT.
			q = q.Limit(math.MaxInt32)
		}
		q = q.Offset(opts.Skip)
	}
	return q, nil
}

func scanOne[T any](ctx context.Context, q *bun.SelectQuery, dest *T) (*T, error) {
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return dest, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
