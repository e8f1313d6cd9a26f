package store

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"inkwell/internal/model"
)

type CategoryStore struct {
	db *bun.DB
}

func NewCategoryStore(db *bun.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

func (s *CategoryStore) FindByID(ctx context.Context, id int64) (*model.Category, error) {
	category := new(model.Category)
	found, err := scanOne(ctx, s.db.NewSelect().Model(category).Where("c.id = ?", id), category)
	return found, wrap("find category", err)
}

func (s *CategoryStore) FindMany(ctx context.Context, opts *model.FindOptions) ([]model.Category, error) {
	categories := make([]model.Category, 0)
	q, err := applyFindOptions(s.db.NewSelect().Model(&categories), "c", opts, "id", "createdAt", "updatedAt", "name")
	if err != nil {
		return nil, err
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("find categories: %w", err)
	}
	return categories, nil
}

func (s *CategoryStore) Create(ctx context.Context, category *model.Category) error {
	now := time.Now().UTC()
	category.CreatedAt = now
	category.UpdatedAt = now

	if _, err := s.db.NewInsert().Model(category).Exec(ctx); err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (s *CategoryStore) Update(ctx context.Context, id int64, upd model.CategoryUpdate) (*model.Category, error) {
	var updated *model.Category
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		category := new(model.Category)
		found, err := scanOne(ctx, tx.NewSelect().Model(category).Where("c.id = ?", id), category)
		if err != nil {
			return fmt.Errorf("load category %d: %w", id, err)
		}
		if found == nil {
			return ErrNotFound
		}

		if upd.Name != nil {
			category.Name = *upd.Name
		}
		category.UpdatedAt = time.Now().UTC()

		if _, err := tx.NewUpdate().Model(category).Column("name", "updated_at").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("update category %d: %w", id, err)
		}
		updated = category
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the category and unlinks it from every article.
func (s *CategoryStore) Delete(ctx context.Context, id int64) (*model.Category, error) {
	var deleted *model.Category
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		category := new(model.Category)
		found, err := scanOne(ctx, tx.NewSelect().Model(category).Where("c.id = ?", id), category)
		if err != nil {
			return fmt.Errorf("load category %d: %w", id, err)
		}
		if found == nil {
			return ErrNotFound
		}

		if _, err := tx.NewDelete().Model((*model.ArticleCategory)(nil)).Where("category_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("unlink category %d: %w", id, err)
		}
		if _, err := tx.NewDelete().Model(category).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("delete category %d: %w", id, err)
		}
		deleted = category
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
