package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"inkwell/internal/logger"
	"inkwell/internal/model"
	"inkwell/internal/repository"
	"inkwell/internal/store"
)

type ImageInput struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

type CreateArticleInput struct {
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	CategoryIDs []int64      `json:"categoryIds"`
	Images      []ImageInput `json:"images"`
}

type UpdateArticleInput struct {
	Title       *string  `json:"title"`
	Content     *string  `json:"content"`
	CategoryIDs *[]int64 `json:"categoryIds"`
}

type ArticleService struct {
	articles   repository.ArticleStore
	categories repository.CategoryStore
	images     repository.ImageStore
	logger     *zap.Logger
}

func NewArticleService(articles repository.ArticleStore, categories repository.CategoryStore, images repository.ImageStore, log *zap.Logger) *ArticleService {
	return &ArticleService{
		articles:   articles,
		categories: categories,
		images:     images,
		logger:     logger.Component(log, "ArticleService"),
	}
}

func (s *ArticleService) Get(ctx context.Context, id int64) (*model.Article, error) {
	article, err := s.articles.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, NotFound("Article", strconv.FormatInt(id, 10))
	}
	return article, nil
}

// List returns the newest articles. Without paging it is served from the
// cached listing.
func (s *ArticleService) List(ctx context.Context, take, skip int) ([]model.Article, error) {
	if take < 0 || skip < 0 {
		return nil, Invalid("take", "Paging values must not be negative")
	}
	if take == 0 && skip == 0 {
		return s.articles.FindMany(ctx, nil)
	}
	return s.articles.FindMany(ctx, &model.FindOptions{Take: take, Skip: skip})
}

func (s *ArticleService) ListByAuthor(ctx context.Context, authorID int64) ([]model.Article, error) {
	return s.articles.FindByUserID(ctx, authorID)
}

func (s *ArticleService) Create(ctx context.Context, input CreateArticleInput, userID int64) (*model.Article, error) {
	if err := check("title", input.Title, validation.Required.Error("Title is required")); err != nil {
		return nil, err
	}
	if err := check("content", input.Content, validation.Required.Error("Content is required")); err != nil {
		return nil, err
	}
	for _, img := range input.Images {
		if err := check("images", img.Key, validation.Required.Error("Image key is required")); err != nil {
			return nil, err
		}
	}
	if err := s.requireCategories(ctx, input.CategoryIDs); err != nil {
		return nil, err
	}

	article := &model.Article{
		Title:       input.Title,
		Content:     input.Content,
		UserID:      userID,
		CategoryIDs: input.CategoryIDs,
	}
	if article.CategoryIDs == nil {
		article.CategoryIDs = []int64{}
	}
	if err := s.articles.Create(ctx, article); err != nil {
		return nil, err
	}

	if len(input.Images) > 0 {
		rows := make([]model.ImageArticle, len(input.Images))
		for i, img := range input.Images {
			rows[i] = model.ImageArticle{ArticleID: article.ID, Key: img.Key, Size: img.Size, Type: img.Type}
		}
		if _, err := s.images.CreateMany(ctx, rows); err != nil {
			return nil, fmt.Errorf("attach images to article %d: %w", article.ID, err)
		}
		s.logger.Debug("Attached images", zap.Int64("article_id", article.ID), zap.Int("count", len(rows)))
	}

	return article, nil
}

func (s *ArticleService) Update(ctx context.Context, id int64, input UpdateArticleInput, userID int64) (*model.Article, error) {
	article, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if article.UserID != userID {
		return nil, Forbidden("edit this article")
	}

	if err := checkOptional("title", input.Title, validation.Required.Error("Title cannot be empty")); err != nil {
		return nil, err
	}
	if err := checkOptional("content", input.Content, validation.Required.Error("Content cannot be empty")); err != nil {
		return nil, err
	}
	if input.CategoryIDs != nil {
		if err := s.requireCategories(ctx, *input.CategoryIDs); err != nil {
			return nil, err
		}
	}

	updated, err := s.articles.Update(ctx, id, model.ArticleUpdate{
		Title:       input.Title,
		Content:     input.Content,
		CategoryIDs: input.CategoryIDs,
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFound("Article", strconv.FormatInt(id, 10))
	}
	return updated, err
}

func (s *ArticleService) Delete(ctx context.Context, id, userID int64) (*model.Article, error) {
	article, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if article.UserID != userID {
		return nil, Forbidden("delete this article")
	}

	deleted, err := s.articles.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFound("Article", strconv.FormatInt(id, 10))
	}
	return deleted, err
}

func (s *ArticleService) requireCategories(ctx context.Context, ids []int64) error {
	var missing []int64
	for _, id := range ids {
		category, err := s.categories.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if category == nil {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return NotFound("Categories", joinIDs(missing))
	}
	return nil
}
