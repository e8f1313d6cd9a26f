package store

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"inkwell/internal/model"
)

type ImageStore struct {
	db *bun.DB
}

func NewImageStore(db *bun.DB) *ImageStore {
	return &ImageStore{db: db}
}

// CreateMany inserts every image and returns how many rows were written.
func (s *ImageStore) CreateMany(ctx context.Context, images []model.ImageArticle) (int64, error) {
	if len(images) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	for i := range images {
		images[i].CreatedAt = now
	}

	res, err := s.db.NewInsert().Model(&images).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("insert images: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return int64(len(images)), nil
	}
	return n, nil
}

// FindByArticleID lists an article's images in upload order.
func (s *ImageStore) FindByArticleID(ctx context.Context, articleID int64) ([]model.ImageArticle, error) {
	images := make([]model.ImageArticle, 0)
	err := s.db.NewSelect().
		Model(&images).
		Where("ia.article_id = ?", articleID).
		OrderExpr("ia.created_at ASC, ia.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("find images of article %d: %w", articleID, err)
	}
	return images, nil
}

func (s *ImageStore) DeleteByArticleID(ctx context.Context, articleID int64) (int64, error) {
	res, err := s.db.NewDelete().Model((*model.ImageArticle)(nil)).Where("article_id = ?", articleID).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete images of article %d: %w", articleID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}
