package cache

import (
	"context"
	"errors"

	"github.com/aimennsou/testecom/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context) ([]domain.CartItem, error)
	Set(ctx context.Context, items []domain.CartItem) error
	Delete(ctx context.Context) error
}

var ErrCacheMiss = errors.New("cache miss")
