package service

import (
	"context"
	"log/slog"

	"github.com/aimennsou/testecom/internal/repository"
)

// AdminService exposes the full reset: wipe categories, products and cart
// state, returning the cart lifecycle to its initial absent state.
type AdminService struct {
	store  repository.AdminStore
	logger *slog.Logger
}

func NewAdminService(store repository.AdminStore, logger *slog.Logger) *AdminService {
	return &AdminService{store: store, logger: logger}
}

func (s *AdminService) Reset(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return err
	}
	s.logger.Info("database reset")
	return nil
}
