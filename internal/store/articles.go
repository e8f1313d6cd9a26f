package store

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"inkwell/internal/model"
)

type ArticleStore struct {
	db *bun.DB
}

func NewArticleStore(db *bun.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

func (s *ArticleStore) FindByID(ctx context.Context, id int64) (*model.Article, error) {
	article := new(model.Article)
	found, err := scanOne(ctx, s.db.NewSelect().Model(article).Where("a.id = ?", id), article)
	if err != nil || found == nil {
		return nil, wrap("find article", err)
	}
	if err := loadCategoryIDs(ctx, s.db, found); err != nil {
		return nil, err
	}
	return found, nil
}

func (s *ArticleStore) FindMany(ctx context.Context, opts *model.FindOptions) ([]model.Article, error) {
	articles := make([]model.Article, 0)
	q := s.db.NewSelect().Model(&articles)
	if opts != nil && opts.UserID > 0 {
		q = q.Where("a.user_id = ?", opts.UserID)
	}
	q, err := applyFindOptions(q, "a", opts, "id", "createdAt", "updatedAt", "title")
	if err != nil {
		return nil, err
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("find articles: %w", err)
	}
	if err := loadCategoryIDs(ctx, s.db, ptrs(articles)...); err != nil {
		return nil, err
	}
	return articles, nil
}

// FindByUserID lists a user's articles, newest first.
func (s *ArticleStore) FindByUserID(ctx context.Context, userID int64) ([]model.Article, error) {
	articles := make([]model.Article, 0)
	err := s.db.NewSelect().
		Model(&articles).
		Where("a.user_id = ?", userID).
		OrderExpr("a.created_at DESC, a.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("find articles by user %d: %w", userID, err)
	}
	if err := loadCategoryIDs(ctx, s.db, ptrs(articles)...); err != nil {
		return nil, err
	}
	return articles, nil
}

func (s *ArticleStore) Create(ctx context.Context, article *model.Article) error {
	now := time.Now().UTC()
	article.CreatedAt = now
	article.UpdatedAt = now

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(article).Exec(ctx); err != nil {
			return fmt.Errorf("insert article: %w", err)
		}
		return replaceCategories(ctx, tx, article.ID, article.CategoryIDs)
	})
}

func (s *ArticleStore) Update(ctx context.Context, id int64, upd model.ArticleUpdate) (*model.Article, error) {
	var updated *model.Article
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		article := new(model.Article)
		found, err := scanOne(ctx, tx.NewSelect().Model(article).Where("a.id = ?", id), article)
		if err != nil {
			return fmt.Errorf("load article %d: %w", id, err)
		}
		if found == nil {
			return ErrNotFound
		}

		if upd.Title != nil {
			article.Title = *upd.Title
		}
		if upd.Content != nil {
			article.Content = *upd.Content
		}
		article.UpdatedAt = time.Now().UTC()

		_, err = tx.NewUpdate().
			Model(article).
			Column("title", "content", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update article %d: %w", id, err)
		}

		if upd.CategoryIDs != nil {
			article.CategoryIDs = *upd.CategoryIDs
			if err := replaceCategories(ctx, tx, id, article.CategoryIDs); err != nil {
				return err
			}
		} else if err := loadCategoryIDs(ctx, tx, article); err != nil {
			return err
		}

		updated = article
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the article with its category links and images, returning the
// deleted row.
func (s *ArticleStore) Delete(ctx context.Context, id int64) (*model.Article, error) {
	var deleted *model.Article
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		article := new(model.Article)
		found, err := scanOne(ctx, tx.NewSelect().Model(article).Where("a.id = ?", id), article)
		if err != nil {
			return fmt.Errorf("load article %d: %w", id, err)
		}
		if found == nil {
			return ErrNotFound
		}
		if err := loadCategoryIDs(ctx, tx, article); err != nil {
			return err
		}
		if err := deleteArticles(ctx, tx, []int64{id}); err != nil {
			return err
		}
		deleted = article
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func deleteArticles(ctx context.Context, tx bun.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := tx.NewDelete().Model((*model.ArticleCategory)(nil)).Where("article_id IN (?)", bun.In(ids)).Exec(ctx); err != nil {
		return fmt.Errorf("delete article categories: %w", err)
	}
	if _, err := tx.NewDelete().Model((*model.ImageArticle)(nil)).Where("article_id IN (?)", bun.In(ids)).Exec(ctx); err != nil {
		return fmt.Errorf("delete article images: %w", err)
	}
	if _, err := tx.NewDelete().Model((*model.Article)(nil)).Where("id IN (?)", bun.In(ids)).Exec(ctx); err != nil {
		return fmt.Errorf("delete articles: %w", err)
	}
	return nil
}

func replaceCategories(ctx context.Context, tx bun.Tx, articleID int64, categoryIDs []int64) error {
	if _, err := tx.NewDelete().Model((*model.ArticleCategory)(nil)).Where("article_id = ?", articleID).Exec(ctx); err != nil {
		return fmt.Errorf("clear categories of article %d: %w", articleID, err)
	}

	rows := make([]model.ArticleCategory, 0, len(categoryIDs))
	seen := make(map[int64]struct{}, len(categoryIDs))
	for _, cid := range categoryIDs {
		if _, ok := seen[cid]; ok {
			continue
		}
		seen[cid] = struct{}{}
		rows = append(rows, model.ArticleCategory{ArticleID: articleID, CategoryID: cid})
	}
	if len(rows) == 0 {
		return nil
	}
	if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("link categories to article %d: %w", articleID, err)
	}
	return nil
}

func loadCategoryIDs(ctx context.Context, db bun.IDB, articles ...*model.Article) error {
	if len(articles) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(articles))
	byID := make(map[int64]*model.Article, len(articles))
	for _, a := range articles {
		a.CategoryIDs = []int64{}
		ids = append(ids, a.ID)
		byID[a.ID] = a
	}

	var links []model.ArticleCategory
	err := db.NewSelect().
		Model(&links).
		Where("ac.article_id IN (?)", bun.In(ids)).
		OrderExpr("ac.article_id ASC, ac.category_id ASC").
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("load article categories: %w", err)
	}
	for _, link := range links {
		if a, ok := byID[link.ArticleID]; ok {
			a.CategoryIDs = append(a.CategoryIDs, link.CategoryID)
		}
	}
	return nil
}

func ptrs(articles []model.Article) []*model.Article {
	out := make([]*model.Article, len(articles))
	for i := range articles {
		out[i] = &articles[i]
	}
	return out
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
