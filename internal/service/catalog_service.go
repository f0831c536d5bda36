package service

import (
	"context"
	"errors"

	"github.com/aimennsou/testecom/internal/domain"
	"github.com/aimennsou/testecom/internal/repository"
)

// CatalogService is plain product CRUD. Stock here is the administratively
// set level; the cart engine is the only thing that moves it in lockstep
// with cart contents.
type CatalogService struct {
	store repository.CatalogStore
}

func NewCatalogService(store repository.CatalogStore) *CatalogService {
	return &CatalogService{store: store}
}

func (s *CatalogService) CreateProduct(ctx context.Context, p *domain.Product) error {
	if p.Name == "" || p.Price < 0 || p.Stock < 0 {
		return ErrInvalidRequest
	}
	return s.store.CreateProduct(ctx, p)
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if id <= 0 {
		return nil, ErrInvalidRequest
	}
	p, err := s.store.GetProduct(ctx, id)
	if errors.Is(err, repository.ErrProductNotFound) {
		return nil, ErrProductNotFound
	}
	return p, err
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	return s.store.ListProducts(ctx)
}

func (s *CatalogService) UpdateProduct(ctx context.Context, p *domain.Product) error {
	if p.ID <= 0 || p.Name == "" || p.Price < 0 || p.Stock < 0 {
		return ErrInvalidRequest
	}
	err := s.store.UpdateProduct(ctx, p)
	if errors.Is(err, repository.ErrProductNotFound) {
		return ErrProductNotFound
	}
	return err
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidRequest
	}
	err := s.store.DeleteProduct(ctx, id)
	if errors.Is(err, repository.ErrProductNotFound) {
		return ErrProductNotFound
	}
	return err
}
