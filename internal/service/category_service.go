package service

import (
	"context"
	"errors"

	"github.com/aimennsou/testecom/internal/domain"
	"github.com/aimennsou/testecom/internal/repository"
)

var ErrCategoryNotFound = errors.New("category not found")

type CategoryService struct {
	store repository.CategoryStore
}

func NewCategoryService(store repository.CategoryStore) *CategoryService {
	return &CategoryService{store: store}
}

func (s *CategoryService) CreateCategory(ctx context.Context, c *domain.Category) error {
	if c.Name == "" {
		return ErrInvalidRequest
	}
	return s.store.CreateCategory(ctx, c)
}

func (s *CategoryService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *CategoryService) UpdateCategory(ctx context.Context, c *domain.Category) error {
	if c.ID <= 0 || c.Name == "" {
		return ErrInvalidRequest
	}
	err := s.store.UpdateCategory(ctx, c)
	if errors.Is(err, repository.ErrCategoryNotFound) {
		return ErrCategoryNotFound
	}
	return err
}

func (s *CategoryService) DeleteCategory(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidRequest
	}
	err := s.store.DeleteCategory(ctx, id)
	if errors.Is(err, repository.ErrCategoryNotFound) {
		return ErrCategoryNotFound
	}
	return err
}
