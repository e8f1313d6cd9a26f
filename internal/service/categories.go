package service

import (
	"context"
	"errors"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"inkwell/internal/model"
	"inkwell/internal/repository"
	"inkwell/internal/store"
)

type CategoryService struct {
	categories repository.CategoryStore
}

func NewCategoryService(categories repository.CategoryStore) *CategoryService {
	return &CategoryService{categories: categories}
}

func (s *CategoryService) Get(ctx context.Context, id int64) (*model.Category, error) {
	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, NotFound("Category", strconv.FormatInt(id, 10))
	}
	return category, nil
}

func (s *CategoryService) List(ctx context.Context) ([]model.Category, error) {
	return s.categories.FindMany(ctx, nil)
}

func (s *CategoryService) Create(ctx context.Context, name string) (*model.Category, error) {
	if err := check("name", name, validation.Required.Error("Name is required"), validation.RuneLength(0, 100).Error("Name is too long")); err != nil {
		return nil, err
	}
	category := &model.Category{Name: name}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *CategoryService) Update(ctx context.Context, id int64, name *string) (*model.Category, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := checkOptional("name", name, validation.Required.Error("Name cannot be empty"), validation.RuneLength(0, 100).Error("Name is too long")); err != nil {
		return nil, err
	}

	updated, err := s.categories.Update(ctx, id, model.CategoryUpdate{Name: name})
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFound("Category", strconv.FormatInt(id, 10))
	}
	return updated, err
}

func (s *CategoryService) Delete(ctx context.Context, id int64) (*model.Category, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	deleted, err := s.categories.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFound("Category", strconv.FormatInt(id, 10))
	}
	return deleted, err
}
